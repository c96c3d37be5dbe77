package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prabuddhasl/support-intel-enricher/pkg/bus"
	"github.com/prabuddhasl/support-intel-enricher/pkg/codec"
	"github.com/prabuddhasl/support-intel-enricher/pkg/dlq"
	"github.com/prabuddhasl/support-intel-enricher/pkg/kb"
	"github.com/prabuddhasl/support-intel-enricher/pkg/llm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRetriever struct {
	chunks []kb.Chunk
	err    error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string) ([]kb.Chunk, error) {
	return f.chunks, f.err
}

type fakeEnricher struct {
	out llm.RawOutput
	err error
}

func (f *fakeEnricher) Enrich(_ context.Context, _ codec.TicketEvent, _ []kb.Chunk) (llm.RawOutput, error) {
	return f.out, f.err
}

func TestProcessRecord_DecodeFailureGoesToDLQ(t *testing.T) {
	fb := bus.NewFakeBus()
	c := New(nil, fb.Writer(), "tickets.enriched", nil, nil, nil, nil,
		dlq.New(fb.Writer(), "tickets.dlq", nil), time.Second, quietLogger())

	rec := bus.Record{Topic: "tickets.raw", Value: []byte("not json")}
	state, commitOffset := c.processRecord(context.Background(), rec)

	assert.Equal(t, StateDLQd, state)
	assert.True(t, commitOffset)
	require.Len(t, fb.Records("tickets.dlq"), 1)

	var entry dlq.Entry
	require.NoError(t, json.Unmarshal(fb.Records("tickets.dlq")[0].Value, &entry))
	assert.Contains(t, entry.Error, "decode")
}

func TestProcessRecord_DLQPublishFailureSkipsOffsetCommit(t *testing.T) {
	failing := &bus.FailingWriter{Err: errors.New("broker unreachable")}
	c := New(nil, failing, "tickets.enriched", nil, nil, nil, nil,
		dlq.New(failing, "tickets.dlq", nil), time.Second, quietLogger())

	rec := bus.Record{Topic: "tickets.raw", Value: []byte("not json")}
	state, commitOffset := c.processRecord(context.Background(), rec)

	assert.Equal(t, StateDLQd, state)
	assert.False(t, commitOffset, "a failed DLQ publish must not let the offset commit")
}

func TestEnrich_PropagatesLLMFailure(t *testing.T) {
	c := &Consumer{
		retriever:  &fakeRetriever{chunks: []kb.Chunk{{ID: 1, Title: "FAQ"}}},
		llmAdapter: &fakeEnricher{err: errors.New("model unavailable")},
	}

	_, err := c.enrich(context.Background(), codec.TicketEvent{TicketID: "T-1", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestEnrich_PropagatesRetrievalFailure(t *testing.T) {
	c := &Consumer{
		retriever: &fakeRetriever{err: errors.New("db unreachable")},
	}

	_, err := c.enrich(context.Background(), codec.TicketEvent{TicketID: "T-1", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db unreachable")
}

func TestState_TerminalStatesAreDistinct(t *testing.T) {
	terminal := map[State]bool{StateAcked: true, StateDLQd: true, StateDuplicateAcked: true}
	assert.Len(t, terminal, 3)
}
