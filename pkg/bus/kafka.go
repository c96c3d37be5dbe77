package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaReader implements Reader over a franz-go consumer-group client with
// autocommit disabled, grounded on the jrepp-hermes indexer consumer's
// PollFetches / EachPartition / CommitRecords loop.
type KafkaReader struct {
	client      *kgo.Client
	pollTimeout time.Duration
}

// NewKafkaReader constructs a consumer-group client over topic, joining
// groupID, with manual offset management.
func NewKafkaReader(brokers []string, groupID, topic string, pollTimeout time.Duration) (*KafkaReader, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("bus: no seed brokers provided")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.FetchMaxWait(pollTimeout),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: creating kafka client: %w", err)
	}

	return &KafkaReader{client: client, pollTimeout: pollTimeout}, nil
}

// PollRecords blocks for up to the configured poll timeout and returns any
// records fetched across all assigned partitions.
func (r *KafkaReader) PollRecords(ctx context.Context) ([]Record, error) {
	defer r.client.AllowRebalance()

	pollCtx, cancel := context.WithTimeout(ctx, r.pollTimeout)
	defer cancel()

	fetches := r.client.PollFetches(pollCtx)
	if errs := fetches.Errors(); len(errs) > 0 {
		var joined error
		for _, e := range errs {
			if errors.Is(e.Err, context.DeadlineExceeded) {
				continue
			}
			joined = errors.Join(joined, fmt.Errorf("topic %s partition %d: %w", e.Topic, e.Partition, e.Err))
		}
		if joined != nil {
			return nil, fmt.Errorf("bus: poll fetches: %w", joined)
		}
	}

	var records []Record
	fetches.EachPartition(func(p kgo.FetchTopicPartition) {
		for _, rec := range p.Records {
			records = append(records, Record{
				Topic:     rec.Topic,
				Partition: rec.Partition,
				Offset:    rec.Offset,
				Key:       rec.Key,
				Value:     rec.Value,
			})
		}
	})
	return records, nil
}

// CommitRecords commits the offsets for the given records synchronously.
func (r *KafkaReader) CommitRecords(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	kgoRecords := make([]*kgo.Record, len(records))
	for i, rec := range records {
		kgoRecords[i] = &kgo.Record{
			Topic:     rec.Topic,
			Partition: rec.Partition,
			Offset:    rec.Offset,
		}
	}
	if err := r.client.CommitRecords(ctx, kgoRecords...); err != nil {
		return fmt.Errorf("bus: commit records: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *KafkaReader) Close() error {
	r.client.Close()
	return nil
}

// KafkaWriter implements Writer over a franz-go producer client, grounded on
// the ai-cv-evaluator redpanda producer's record-construction and flush
// idiom (without its transactional-ID machinery, which this service does
// not need since exactly-once-effect is enforced by the idempotency ledger
// rather than by broker transactions).
type KafkaWriter struct {
	client *kgo.Client
}

// NewKafkaWriter constructs a producer client over the given brokers.
func NewKafkaWriter(brokers []string) (*KafkaWriter, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("bus: no seed brokers provided")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: creating kafka producer: %w", err)
	}
	return &KafkaWriter{client: client}, nil
}

// Produce publishes a single record and waits for its delivery result.
func (w *KafkaWriter) Produce(ctx context.Context, topic string, key, value []byte) error {
	resultCh := make(chan error, 1)
	w.client.Produce(ctx, &kgo.Record{Topic: topic, Key: key, Value: value}, func(_ *kgo.Record, err error) {
		resultCh <- err
	})

	select {
	case err := <-resultCh:
		if err != nil {
			return fmt.Errorf("bus: produce to %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bus: produce to %s: %w", topic, ctx.Err())
	}
}

// Flush blocks until all buffered records have been acknowledged.
func (w *KafkaWriter) Flush(ctx context.Context) error {
	if err := w.client.Flush(ctx); err != nil {
		return fmt.Errorf("bus: flush: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (w *KafkaWriter) Close() error {
	w.client.Close()
	return nil
}
