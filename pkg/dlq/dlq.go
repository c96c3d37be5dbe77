// Package dlq publishes unprocessable records to the dead-letter topic
// (C8). Publishing is best-effort: it is not retried internally, but a
// failure is reported to the caller so the original record's offset is left
// uncommitted and the record is re-consumed rather than silently dropped.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prabuddhasl/support-intel-enricher/pkg/bus"
)

// Entry is the envelope written to the DLQ topic, capturing enough of the
// original delivery to triage and, if desired, replay it.
type Entry struct {
	FailedTopic string          `json:"failed_topic"`
	Partition   int32           `json:"partition"`
	Offset      int64           `json:"offset"`
	Error       string          `json:"error"`
	Payload     json.RawMessage `json:"payload"`
	TS          time.Time       `json:"ts"`
}

// Publisher writes Entry envelopes to the configured DLQ topic.
type Publisher struct {
	writer bus.Writer
	topic  string
	logger *slog.Logger
}

// New constructs a Publisher over writer, targeting topic.
func New(writer bus.Writer, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: writer, topic: topic, logger: logger}
}

// Publish packages rec and cause as a DLQ entry and produces it, flushing
// with a bounded wait before returning. Any failure is logged and also
// returned: the caller must not commit the original record's offset when
// Publish fails, per spec §4.8's DLQ-commit-pairing rule.
func (p *Publisher) Publish(ctx context.Context, rec bus.Record, cause error, flushTimeout time.Duration) error {
	payload := json.RawMessage(rec.Value)
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(rec.Value))
	}

	entry := Entry{
		FailedTopic: rec.Topic,
		Partition:   rec.Partition,
		Offset:      rec.Offset,
		Error:       cause.Error(),
		Payload:     payload,
		TS:          time.Now(),
	}

	value, err := json.Marshal(entry)
	if err != nil {
		p.logger.Error("dlq: marshaling entry failed", "error", err, "cause", cause)
		return fmt.Errorf("dlq: marshaling entry: %w", err)
	}

	if err := p.writer.Produce(ctx, p.topic, rec.Key, value); err != nil {
		p.logger.Error("dlq: produce failed", "error", err, "cause", cause)
		return fmt.Errorf("dlq: produce: %w", err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := p.writer.Flush(flushCtx); err != nil {
		p.logger.Error("dlq: flush failed", "error", err, "cause", cause)
		return fmt.Errorf("dlq: flush: %w", err)
	}
	return nil
}
