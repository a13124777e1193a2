package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoEventStore keeps the ledger in a DynamoDB table keyed by
// (aggregate_id, version). It does not publish: the table's Kinesis stream
// feeds the projector lambda.
type DynamoEventStore struct {
	client        *dynamodb.Client
	eventsTable   string
	snapshotTable string
}

// eventItem is one ledger event as stored in DynamoDB
type eventItem struct {
	AggregateID   string `dynamodbav:"aggregate_id"`
	Version       int    `dynamodbav:"version"`
	ID            string `dynamodbav:"id"`
	AggregateType string `dynamodbav:"aggregate_type"`
	EventType     string `dynamodbav:"event_type"`
	Data          string `dynamodbav:"data"`
	CreatedAt     string `dynamodbav:"created_at"`
}

func (it eventItem) event() Event {
	ts, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	return Event{
		ID:            it.ID,
		AggregateID:   it.AggregateID,
		AggregateType: it.AggregateType,
		EventType:     it.EventType,
		Data:          json.RawMessage(it.Data),
		Timestamp:     ts,
		Version:       it.Version,
	}
}

// snapshotItem is stored in the snapshot table keyed by aggregate_id
type snapshotItem struct {
	AggregateID   string `dynamodbav:"aggregate_id"`
	AggregateType string `dynamodbav:"aggregate_type"`
	Version       int    `dynamodbav:"version"`
	State         string `dynamodbav:"state"`
	CreatedAt     string `dynamodbav:"created_at"`
}

func NewDynamoEventStore(client *dynamodb.Client, eventsTable, snapshotTable string) *DynamoEventStore {
	return &DynamoEventStore{
		client:        client,
		eventsTable:   eventsTable,
		snapshotTable: snapshotTable,
	}
}

// NewDynamoClient builds a DynamoDB client from the default AWS credential chain.
// A non-empty endpoint points the client at a local DynamoDB.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Append writes the event as version expectedVersion+1 with a conditional
// put, so a second writer of the same version gets ErrVersionConflict.
func (es *DynamoEventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, expectedVersion int, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          payload,
		Timestamp:     time.Now().UTC(),
		Version:       expectedVersion + 1,
	}
	item, err := attributevalue.MarshalMap(eventItem{
		AggregateID:   event.AggregateID,
		Version:       event.Version,
		ID:            event.ID,
		AggregateType: event.AggregateType,
		EventType:     event.EventType,
		Data:          string(payload),
		CreatedAt:     event.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = es.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(es.eventsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	var conflict *types.ConditionalCheckFailedException
	if errors.As(err, &conflict) {
		return nil, fmt.Errorf("%w: %s version %d already written", ErrVersionConflict, aggregateID, event.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to put event: %w", err)
	}
	return &event, nil
}

func (es *DynamoEventStore) GetEvents(ctx context.Context, aggregateID string) ([]Event, error) {
	return es.GetEventsFromVersion(ctx, aggregateID, 0)
}

// GetEventsFromVersion returns the aggregate's events newer than fromVersion, oldest first
func (es *DynamoEventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, fromVersion int) ([]Event, error) {
	var events []Event
	paginator := dynamodb.NewQueryPaginator(es.client, &dynamodb.QueryInput{
		TableName:              aws.String(es.eventsTable),
		KeyConditionExpression: aws.String("aggregate_id = :id AND version > :from"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id":   &types.AttributeValueMemberS{Value: aggregateID},
			":from": &types.AttributeValueMemberN{Value: strconv.Itoa(fromVersion)},
		},
		ScanIndexForward: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query events of %s: %w", aggregateID, err)
		}
		if events, err = appendItems(events, page.Items); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// GetAllEvents scans the whole table for replay. Events come back ordered
// by creation time, ties broken by version.
func (es *DynamoEventStore) GetAllEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	paginator := dynamodb.NewScanPaginator(es.client, &dynamodb.ScanInput{
		TableName: aws.String(es.eventsTable),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan events: %w", err)
		}
		if events, err = appendItems(events, page.Items); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Version < events[j].Version
	})
	return events, nil
}

func appendItems(events []Event, items []map[string]types.AttributeValue) ([]Event, error) {
	for _, raw := range items {
		var it eventItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, it.event())
	}
	return events, nil
}

// SaveSnapshot overwrites the aggregate's snapshot unless a newer one is stored
func (es *DynamoEventStore) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	item, err := attributevalue.MarshalMap(snapshotItem{
		AggregateID:   snapshot.AggregateID,
		AggregateType: snapshot.AggregateType,
		Version:       snapshot.Version,
		State:         string(snapshot.State),
		CreatedAt:     snapshot.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = es.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(es.snapshotTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(aggregate_id) OR version < :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.Itoa(snapshot.Version)},
		},
	})
	var stale *types.ConditionalCheckFailedException
	if errors.As(err, &stale) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the aggregate's snapshot, or nil when there is none
func (es *DynamoEventStore) GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error) {
	out, err := es.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(es.snapshotTable),
		Key: map[string]types.AttributeValue{
			"aggregate_id": &types.AttributeValueMemberS{Value: aggregateID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var it snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	return &Snapshot{
		AggregateID:   it.AggregateID,
		AggregateType: it.AggregateType,
		Version:       it.Version,
		State:         json.RawMessage(it.State),
		CreatedAt:     createdAt,
	}, nil
}
