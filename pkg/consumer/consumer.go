// Package consumer implements the enrichment pipeline's main loop (C7): for
// each polled record it decodes the ticket event, checks the idempotency
// ledger, retrieves KB context, calls the LLM, normalizes the result,
// writes it transactionally, publishes the enriched event, and commits the
// offset — with a dead-letter path for any unprocessable or failing record.
//
// The run loop itself is grounded on pkg/queue/worker.go's Start/Stop/run
// idiom: a stop channel, sync.Once, a WaitGroup, and a select-guarded poll
// loop, plus a mutex-protected health snapshot.
package consumer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prabuddhasl/support-intel-enricher/pkg/bus"
	"github.com/prabuddhasl/support-intel-enricher/pkg/codec"
	"github.com/prabuddhasl/support-intel-enricher/pkg/dlq"
	"github.com/prabuddhasl/support-intel-enricher/pkg/idempotency"
	"github.com/prabuddhasl/support-intel-enricher/pkg/kb"
	"github.com/prabuddhasl/support-intel-enricher/pkg/llm"
	"github.com/prabuddhasl/support-intel-enricher/pkg/masking"
	"github.com/prabuddhasl/support-intel-enricher/pkg/normalize"
	"github.com/prabuddhasl/support-intel-enricher/pkg/store"
)

// Retriever is the subset of *retrieval.Retriever the consumer depends on.
// Defined here (rather than imported as a concrete type) so tests can
// substitute a fake without a database.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]kb.Chunk, error)
}

// Enricher is the subset of *llm.Adapter the consumer depends on.
type Enricher interface {
	Enrich(ctx context.Context, ticket codec.TicketEvent, chunks []kb.Chunk) (llm.RawOutput, error)
}

// State names the pipeline stage a record last reached, used for logging and
// tests. The terminal states are Acked, DLQd, and DuplicateAcked.
type State string

// Pipeline states, in the order a successfully processed record passes
// through them.
const (
	StateReceived         State = "received"
	StateDecoded          State = "decoded"
	StateDuplicateChecked State = "duplicate_checked"
	StateRetrieved        State = "retrieved"
	StateLLMCalled        State = "llm_called"
	StateNormalized       State = "normalized"
	StateCommitted        State = "committed"
	StatePublished        State = "published"
	StateAcked            State = "acked"
	StateDLQd             State = "dlqd"
	StateDuplicateAcked   State = "duplicate_acked"
)

// Status reports a snapshot of consumer health for the HTTP health endpoint.
type Status struct {
	Running         bool
	RecordsHandled  int64
	RecordsFailed   int64
	LastRecordState State
	LastActivity    time.Time
}

// Consumer wires the bus, retrieval, LLM, normalization, store, and DLQ
// stages into a single per-record pipeline.
type Consumer struct {
	reader       bus.Reader
	output       bus.Writer
	outputTopic  string
	db           *sql.DB
	writer       *store.Writer
	retriever    Retriever
	llmAdapter   Enricher
	dlqPub       *dlq.Publisher
	flushTimeout time.Duration
	masker       *masking.Service

	logger *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu     sync.Mutex
	status Status
}

// New constructs a Consumer. logger may be nil, in which case slog.Default
// is used.
func New(
	reader bus.Reader,
	output bus.Writer,
	outputTopic string,
	db *sql.DB,
	writer *store.Writer,
	retriever Retriever,
	llmAdapter Enricher,
	dlqPub *dlq.Publisher,
	flushTimeout time.Duration,
	logger *slog.Logger,
) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader:       reader,
		output:       output,
		outputTopic:  outputTopic,
		db:           db,
		writer:       writer,
		retriever:    retriever,
		llmAdapter:   llmAdapter,
		dlqPub:       dlqPub,
		flushTimeout: flushTimeout,
		masker:       masking.NewService(),
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the poll loop in a goroutine.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	c.status.Running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)
}

// Stop signals the loop to finish its in-flight record and exit, then waits
// for it to do so. Safe to call multiple times.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	c.mu.Lock()
	c.status.Running = false
	c.mu.Unlock()
}

// Status returns a snapshot of the consumer's health.
func (c *Consumer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	log := c.logger.With("component", "consumer")
	log.Info("consumer started")

	for {
		select {
		case <-c.stopCh:
			log.Info("consumer shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, consumer shutting down")
			return
		default:
		}

		records, err := c.reader.PollRecords(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Error("poll failed", "error", err)
			continue
		}

		// Records already pulled off the topic are processed and committed
		// against a background context, not ctx: a shutdown signal should
		// stop the loop from fetching more work, not abort a ticket that is
		// mid-DB-transaction or mid-LLM-call.
		for _, rec := range records {
			state, commitOffset := c.processRecord(context.Background(), rec)

			c.mu.Lock()
			c.status.RecordsHandled++
			c.status.LastRecordState = state
			c.status.LastActivity = time.Now()
			if state == StateDLQd {
				c.status.RecordsFailed++
			}
			c.mu.Unlock()

			if !commitOffset {
				log.Warn("skipping offset commit, record will be re-consumed", "partition", rec.Partition, "offset", rec.Offset, "state", state)
				continue
			}

			if err := c.reader.CommitRecords(context.Background(), rec); err != nil {
				log.Error("offset commit failed", "partition", rec.Partition, "offset", rec.Offset, "error", err)
			}
		}
	}
}

// processRecord drives a single record through the pipeline, returning the
// terminal state it reached and whether the caller may commit the record's
// offset. It never returns an error: every failure is handled in place (DLQ
// publish, best-effort failed-status write). The offset must NOT be
// committed when even the DLQ write failed (spec §4.8): the message has to
// be re-consumed rather than silently dropped.
func (c *Consumer) processRecord(ctx context.Context, rec bus.Record) (State, bool) {
	log := c.logger.With("partition", rec.Partition, "offset", rec.Offset)

	ticket, err := codec.DecodeTicket(rec.Value)
	if err != nil {
		log.Warn("decode failed, sending to dlq", "error", err)
		return StateDLQd, c.dlqSucceeded(ctx, rec, err, log)
	}
	log = log.With("ticket_id", ticket.TicketID, "event_id", ticket.EventID)
	log.Debug("ticket received", "subject", c.masker.Mask(ticket.Subject), "body", c.masker.Mask(ticket.Body))

	tx, err := c.writer.BeginTx(ctx)
	if err != nil {
		log.Error("beginning transaction failed, sending to dlq", "error", err)
		return StateDLQd, c.dlqSucceeded(ctx, rec, err, log)
	}

	processed, err := idempotency.WasProcessed(ctx, tx, ticket.EventID)
	if err != nil {
		_ = tx.Rollback()
		log.Error("duplicate check failed, sending to dlq", "error", err)
		return StateDLQd, c.dlqSucceeded(ctx, rec, err, log)
	}
	if processed {
		_ = tx.Rollback()
		log.Info("duplicate event, acking without reprocessing")
		return StateDuplicateAcked, true
	}

	result, err := c.enrich(ctx, ticket)
	if err != nil {
		_ = tx.Rollback()
		log.Error("enrichment failed, marking failed and sending to dlq", "error", err)
		c.writer.MarkFailed(ctx, ticket.TicketID)
		return StateDLQd, c.dlqSucceeded(ctx, rec, err, log)
	}

	if err := c.writer.CommitEnriched(ctx, tx, ticket, ticket.EventID, result); err != nil {
		_ = tx.Rollback()
		log.Error("commit failed, marking failed and sending to dlq", "error", err)
		c.writer.MarkFailed(ctx, ticket.TicketID)
		return StateDLQd, c.dlqSucceeded(ctx, rec, err, log)
	}

	enriched := codec.EnrichedEvent{
		EventID:        ticket.EventID,
		TicketID:       ticket.TicketID,
		TS:             time.Now().UTC().Format(time.RFC3339Nano),
		Summary:        result.Summary,
		Category:       result.Category,
		Sentiment:      result.Sentiment,
		Risk:           result.Risk,
		SuggestedReply: result.SuggestedReply,
		Citations:      result.Citations,
	}
	value, err := codec.EncodeEnriched(enriched)
	if err != nil {
		log.Error("encoding enriched event failed", "error", err)
		return StateCommitted, false
	}

	if err := c.output.Produce(ctx, c.outputTopic, []byte(ticket.TicketID), value); err != nil {
		log.Error("publishing enriched event failed", "error", err)
		return StateCommitted, false
	}
	if err := c.output.Flush(ctx); err != nil {
		log.Error("flushing producer failed", "error", err)
		return StateCommitted, false
	}

	log.Info("ticket enriched")
	return StateAcked, true
}

// dlqSucceeded publishes rec to the dead-letter topic and reports whether
// the publish succeeded. A failed DLQ write must not be hidden behind a
// committed offset, so callers treat the return value as the offset's
// commit eligibility. Causes other than decode, schema and LLM-output errors
// are labelled "unexpected: " in the DLQ entry.
func (c *Consumer) dlqSucceeded(ctx context.Context, rec bus.Record, cause error, log *slog.Logger) bool {
	if !errors.Is(cause, codec.ErrDecodeFailed) && !errors.Is(cause, codec.ErrSchemaInvalid) && !errors.Is(cause, llm.ErrLLMOutputInvalid) {
		cause = fmt.Errorf("unexpected: %w", cause)
	}
	if err := c.dlqPub.Publish(ctx, rec, cause, c.flushTimeout); err != nil {
		log.Error("dlq publish failed, offset will not be committed", "error", err, "cause", cause)
		return false
	}
	return true
}

// enrich retrieves KB context, calls the LLM, and normalizes its output,
// covering the Retrieved, LLMCalled, and Normalized states.
func (c *Consumer) enrich(ctx context.Context, ticket codec.TicketEvent) (normalize.Result, error) {
	query := strings.TrimSpace(ticket.Subject + "\n\n" + ticket.Body)
	chunks, err := c.retriever.Retrieve(ctx, query)
	if err != nil {
		return normalize.Result{}, fmt.Errorf("retrieval: %w", err)
	}

	raw, err := c.llmAdapter.Enrich(ctx, ticket, chunks)
	if err != nil {
		return normalize.Result{}, fmt.Errorf("llm: %w", err)
	}

	return normalize.Normalize(raw, chunks), nil
}
