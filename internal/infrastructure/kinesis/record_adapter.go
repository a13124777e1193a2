package kinesis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/example/liquor-inventory/internal/infrastructure/store"
)

// Record is a ledger event decoded from the stream, with the sequence number
// needed to report it as a batch item failure.
type Record struct {
	Event          *store.Event
	SequenceNumber string
}

// FromKinesis decodes a Kinesis record carrying a DynamoDB stream change.
// ok is false for changes that are not inserts into the events table.
func FromKinesis(record events.KinesisEventRecord) (event *store.Event, ok bool, err error) {
	var change events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &change); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	return FromStream(change)
}

// FromStream decodes a DynamoDB stream record directly
func FromStream(record events.DynamoDBEventRecord) (*store.Event, bool, error) {
	if record.EventName != string(events.DynamoDBOperationTypeInsert) {
		return nil, false, nil
	}
	event, err := eventFromImage(record.Change.NewImage)
	if err != nil {
		return nil, false, err
	}
	return event, true, nil
}

// eventFromImage maps an item written by the DynamoDB event store back to an event
func eventFromImage(image map[string]events.DynamoDBAttributeValue) (*store.Event, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("stream record has no new image")
	}

	var missing []string
	str := func(name string) string {
		v, ok := image[name]
		if !ok || v.DataType() != events.DataTypeString || v.String() == "" {
			missing = append(missing, name)
			return ""
		}
		return v.String()
	}

	event := &store.Event{
		ID:            str("id"),
		AggregateID:   str("aggregate_id"),
		AggregateType: str("aggregate_type"),
		EventType:     str("event_type"),
		Data:          json.RawMessage(str("data")),
	}
	createdAt := str("created_at")

	if v, ok := image["version"]; ok && v.DataType() == events.DataTypeNumber {
		version, err := v.Integer()
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("invalid version %q", v.Number())
		}
		event.Version = int(version)
	} else {
		missing = append(missing, "version")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("stream record missing %s", strings.Join(missing, ", "))
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	event.Timestamp = t
	return event, nil
}

// Batch decodes every insert in a Kinesis batch. Records that fail to decode
// come back as batch item failures so the stream retries them.
func Batch(batch events.KinesisEvent) ([]Record, []events.KinesisBatchItemFailure) {
	var records []Record
	var failures []events.KinesisBatchItemFailure

	for _, r := range batch.Records {
		event, ok, err := FromKinesis(r)
		if err != nil {
			failures = append(failures, events.KinesisBatchItemFailure{ItemIdentifier: r.Kinesis.SequenceNumber})
			continue
		}
		if ok {
			records = append(records, Record{Event: event, SequenceNumber: r.Kinesis.SequenceNumber})
		}
	}

	return records, failures
}
