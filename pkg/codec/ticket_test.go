package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTicketJSON = `{
	"schema_version": 1,
	"event_id": "evt-12345678",
	"ticket_id": "T-1",
	"ts": "2026-01-28T00:00:00Z",
	"subject": "Payment failed",
	"body": "Error 5001",
	"channel": "email",
	"priority": "high",
	"extra_field": "kept"
}`

func TestDecodeTicket_Valid(t *testing.T) {
	evt, err := DecodeTicket([]byte(validTicketJSON))
	require.NoError(t, err)
	assert.Equal(t, "evt-12345678", evt.EventID)
	assert.Equal(t, "T-1", evt.TicketID)
	assert.Equal(t, "high", evt.Priority)
	assert.Contains(t, evt.Extra, "extra_field")
}

func TestDecodeTicket_NotJSON(t *testing.T) {
	_, err := DecodeTicket([]byte("not-json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecodeFailed))
}

func TestDecodeTicket_MissingPriority(t *testing.T) {
	payload := `{
		"schema_version": 1,
		"event_id": "evt-12345678",
		"ticket_id": "T-1",
		"ts": "2026-01-28T00:00:00Z",
		"subject": "Payment failed",
		"body": "Error 5001",
		"channel": "email"
	}`
	_, err := DecodeTicket([]byte(payload))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaInvalid))
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "priority", schemaErr.Path)
}

func TestDecodeTicket_MissingSchemaVersion(t *testing.T) {
	payload := `{
		"event_id": "evt-12345678",
		"ticket_id": "T-1",
		"ts": "2026-01-28T00:00:00Z",
		"subject": "s",
		"body": "b",
		"channel": "email",
		"priority": "high"
	}`
	_, err := DecodeTicket([]byte(payload))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaInvalid))
}

func TestDecodeTicket_ShortEventID(t *testing.T) {
	payload := `{
		"schema_version": 1,
		"event_id": "abc",
		"ticket_id": "T-1",
		"ts": "2026-01-28T00:00:00Z",
		"subject": "s",
		"body": "b",
		"channel": "email",
		"priority": "high"
	}`
	_, err := DecodeTicket([]byte(payload))
	require.Error(t, err)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "event_id", schemaErr.Path)
}
