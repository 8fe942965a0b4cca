package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dealer-ai-platform/internal/leads"
)

// fakeDynamo keeps items by sessionId and records the last put.
type fakeDynamo struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	lastPut *dynamodb.PutItemInput
	err     error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := in.Key["sessionId"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.lastPut = in
	key := in.Item["sessionId"].(*types.AttributeValueMemberS).Value
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeDynamo()
	store := NewDynamoStore(client, "dealer_sessions", 0, nil)

	_, err := store.Get(ctx, "5215512345678")
	assert.ErrorIs(t, err, ErrNotFound)

	s := sampleSession()
	s.LeadStage = leads.StageAppointmentScheduled
	require.NoError(t, store.Upsert(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Juan Pérez", got.UserName)
	assert.Equal(t, leads.PaymentFinancing, got.LastPayment)
	assert.Equal(t, leads.StageAppointmentScheduled, got.LeadStage)
	assert.Equal(t, s.History, got.History)

	require.NotNil(t, client.lastPut)
	assert.Equal(t, "dealer_sessions", *client.lastPut.TableName)
	_, hasExpiry := client.lastPut.Item["expiresAt"]
	assert.False(t, hasExpiry, "zero ttl writes no expiry")
}

func TestDynamoStore_TopLevelAttributes(t *testing.T) {
	client := newFakeDynamo()
	store := NewDynamoStore(client, "dealer_sessions", time.Hour, nil)

	require.NoError(t, store.Upsert(context.Background(), sampleSession()))

	var rec dynamoRecord
	require.NoError(t, attributevalue.UnmarshalMap(client.lastPut.Item, &rec))
	assert.Equal(t, "5215512345678", rec.ID)
	assert.Equal(t, string(StateActive), rec.State)
	assert.NotEmpty(t, rec.UpdatedAt)
	assert.Greater(t, rec.ExpiresAt, time.Now().Unix())
}

func TestDynamoStore_ExpiredRowIsNotFound(t *testing.T) {
	client := newFakeDynamo()
	item, err := attributevalue.MarshalMap(dynamoRecord{
		ID:        "521",
		State:     string(StateActive),
		Data:      `{"id":"521"}`,
		UpdatedAt: time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339Nano),
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)
	client.items["521"] = item

	_, err = NewDynamoStore(client, "dealer_sessions", time.Hour, nil).Get(context.Background(), "521")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoStore_Errors(t *testing.T) {
	client := newFakeDynamo()
	client.err = errors.New("throttled")
	store := NewDynamoStore(client, "dealer_sessions", 0, nil)

	_, err := store.Get(context.Background(), "521")
	assert.ErrorContains(t, err, "throttled")
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.ErrorContains(t, store.Upsert(context.Background(), sampleSession()), "throttled")
	assert.Error(t, store.Upsert(context.Background(), &Session{}))
}

func TestNewDynamoStore_RequiresTable(t *testing.T) {
	assert.Panics(t, func() { NewDynamoStore(newFakeDynamo(), "", 0, nil) })
	assert.Panics(t, func() { NewDynamoStore(nil, "dealer_sessions", 0, nil) })
}
