package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DynamoAPI is the part of the DynamoDB client the store calls.
type DynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// dynamoRecord is one table row. The snapshot stays a JSON document so every
// backend reads the same shape; state and updatedAt are top-level for
// console queries, and expiresAt feeds the table's TTL attribute.
type dynamoRecord struct {
	ID        string `dynamodbav:"sessionId"`
	State     string `dynamodbav:"state"`
	Data      string `dynamodbav:"data"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt,omitempty"`
}

// DynamoStore keeps sessions in a DynamoDB table keyed by sessionId. A zero
// TTL writes no expiry.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
	tracer    trace.Tracer
}

func NewDynamoStore(client DynamoAPI, tableName string, ttl time.Duration, tracer trace.Tracer) *DynamoStore {
	if client == nil {
		panic("session: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("session: dynamodb table name cannot be empty")
	}
	if tracer == nil {
		tracer = otel.Tracer("dealer.internal.session.dynamo")
	}
	return &DynamoStore{client: client, tableName: tableName, ttl: ttl, tracer: tracer}
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            map[string]types.AttributeValue{"sessionId": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode %s: %w", id, err)
	}
	// DynamoDB deletes expired rows lazily
	if rec.ExpiresAt > 0 && time.Now().Unix() >= rec.ExpiresAt {
		return nil, ErrNotFound
	}

	var sess Session
	if err := json.Unmarshal([]byte(rec.Data), &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode %s: %w", id, err)
	}
	return &sess, nil
}

func (s *DynamoStore) Upsert(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session: id required")
	}
	ctx, span := s.tracer.Start(ctx, "session.upsert")
	defer span.End()

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal %s: %w", sess.ID, err)
	}
	now := time.Now().UTC()
	rec := dynamoRecord{
		ID:        sess.ID,
		State:     string(sess.State),
		Data:      string(data),
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	if s.ttl > 0 {
		rec.ExpiresAt = now.Add(s.ttl).Unix()
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal %s: %w", sess.ID, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist %s: %w", sess.ID, err)
	}
	return nil
}
