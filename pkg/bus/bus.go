// Package bus defines the transport boundary between the consumer loop and
// the underlying message broker. Reader and Writer are implemented by the
// franz-go-backed Kafka client (kafka.go) and by an in-memory fake used in
// tests (fake.go).
package bus

import "context"

// Record is a transport-agnostic view of a broker message, carrying enough
// metadata for manual offset commit.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Reader polls records from a consumer group and commits offsets manually,
// grounded on the jrepp-hermes consumer's DisableAutoCommit + CommitRecords
// pattern.
type Reader interface {
	// PollRecords blocks until records are available, ctx is done, or the
	// poll timeout elapses, whichever comes first.
	PollRecords(ctx context.Context) ([]Record, error)
	// CommitRecords commits the offsets for the given records.
	CommitRecords(ctx context.Context, records ...Record) error
	Close() error
}

// Writer produces records to topics, used both for the enriched-event
// output topic (C7) and the DLQ topic (C8).
type Writer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
	Flush(ctx context.Context) error
	Close() error
}
