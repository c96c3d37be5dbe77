package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeBus_ProduceThenPoll(t *testing.T) {
	fb := NewFakeBus()
	w := fb.Writer()
	ctx := context.Background()

	require.NoError(t, w.Produce(ctx, "tickets.raw", []byte("k1"), []byte("v1")))
	require.NoError(t, w.Produce(ctx, "tickets.raw", []byte("k2"), []byte("v2")))

	r := fb.Reader("tickets.raw")
	records, err := r.PollRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []byte("v1"), records[0].Value)
	assert.Equal(t, []byte("v2"), records[1].Value)

	// A second poll with nothing new produced yields no records.
	records, err = r.PollRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFakeReader_CommitTracksHighestOffset(t *testing.T) {
	fb := NewFakeBus()
	w := fb.Writer()
	ctx := context.Background()
	require.NoError(t, w.Produce(ctx, "t", nil, []byte("a")))
	require.NoError(t, w.Produce(ctx, "t", nil, []byte("b")))

	r := fb.Reader("t")
	records, err := r.PollRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, r.CommitRecords(ctx, records[0]))
	assert.Equal(t, int64(1), r.CommittedOffset())

	require.NoError(t, r.CommitRecords(ctx, records[1]))
	assert.Equal(t, int64(2), r.CommittedOffset())
}
