package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dealer-ai-platform/internal/events"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

func TestPublisher_EnqueueInbound(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, logging.Discard())

	evt := events.MessageReceivedV1{MessageID: "SM1", ConversationID: "5215512345678", Body: "hola"}
	if err := publisher.EnqueueInbound(context.Background(), evt); err != nil {
		t.Fatalf("enqueue returned error: %v", err)
	}
	if len(queue.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(queue.sent))
	}
	if queue.groups[0] != "5215512345678" {
		t.Fatalf("expected conversation group, got %q", queue.groups[0])
	}

	var payload queuePayload
	if err := json.Unmarshal([]byte(queue.sent[0]), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.Kind != jobTypeInbound {
		t.Fatalf("expected inbound job, got %s", payload.Kind)
	}
	if payload.Inbound == nil || payload.Inbound.MessageID != "SM1" {
		t.Fatalf("unexpected inbound payload: %#v", payload.Inbound)
	}
}

func TestPublisher_EnqueueEcho(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, logging.Discard())

	err := publisher.EnqueueEcho(context.Background(), events.EchoObservedV1{MessageID: "wamid.1", ConversationID: "521", Body: "te marco"})
	require.NoError(t, err)

	var payload queuePayload
	require.NoError(t, json.Unmarshal([]byte(queue.sent[0]), &payload))
	assert.Equal(t, jobTypeEcho, payload.Kind)
	assert.Equal(t, "te marco", payload.Echo.Body)
}

func TestPublisher_SendError(t *testing.T) {
	publisher := NewPublisher(&stubQueue{err: errors.New("queue down")}, logging.Discard())
	err := publisher.EnqueueInbound(context.Background(), events.MessageReceivedV1{ConversationID: "521"})
	assert.Error(t, err)
}

type stubQueue struct {
	sent   []string
	groups []string
	err    error
}

func (s *stubQueue) Send(ctx context.Context, group, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, body)
	s.groups = append(s.groups, group)
	return nil
}

func (s *stubQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	return nil, context.Canceled
}

func (s *stubQueue) Delete(ctx context.Context, receiptHandle string) error {
	return nil
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "a", "one"))
	require.NoError(t, q.Send(ctx, "b", "two"))
	assert.Equal(t, 2, q.Len())

	msgs, err := q.Receive(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Body)
	assert.Equal(t, "two", msgs[1].Body)
	assert.NotEmpty(t, msgs[0].ReceiptHandle)
}

func TestMemoryQueue_ReceiveTimesOut(t *testing.T) {
	q := NewMemoryQueue(1)
	start := time.Now()
	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestMemoryQueue_ReceiveHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Receive(ctx, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeSQS struct {
	sent    []*sqs.SendMessageInput
	deleted []string
	out     *sqs.ReceiveMessageOutput
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.out == nil {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	return f.out, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue_FIFOUsesConversationGroup(t *testing.T) {
	api := &fakeSQS{}
	q := NewSQSQueue(api, "https://sqs.us-east-1.amazonaws.com/123/dealer-turns.fifo")

	require.NoError(t, q.Send(context.Background(), "5215512345678", "{}"))
	require.Len(t, api.sent, 1)
	assert.Equal(t, "5215512345678", aws.ToString(api.sent[0].MessageGroupId))
	assert.NotEmpty(t, aws.ToString(api.sent[0].MessageDeduplicationId))
}

func TestSQSQueue_StandardQueueHasNoGroup(t *testing.T) {
	api := &fakeSQS{}
	q := NewSQSQueue(api, "https://sqs.us-east-1.amazonaws.com/123/dealer-turns")

	require.NoError(t, q.Send(context.Background(), "5215512345678", "{}"))
	assert.Nil(t, api.sent[0].MessageGroupId)
}

func TestSQSQueue_ReceiveAndDelete(t *testing.T) {
	api := &fakeSQS{out: &sqs.ReceiveMessageOutput{Messages: []types.Message{
		{MessageId: aws.String("m-1"), Body: aws.String("body"), ReceiptHandle: aws.String("rh-1")},
	}}}
	q := NewSQSQueue(api, "https://sqs.local/queue")

	msgs, err := q.Receive(context.Background(), 5, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, queueMessage{ID: "m-1", Body: "body", ReceiptHandle: "rh-1"}, msgs[0])

	require.NoError(t, q.Delete(context.Background(), "rh-1"))
	require.NoError(t, q.Delete(context.Background(), ""))
	assert.Equal(t, []string{"rh-1"}, api.deleted)
}
