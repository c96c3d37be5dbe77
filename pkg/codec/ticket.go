// Package codec decodes and validates TicketEvent messages and encodes
// EnrichedEvent messages, enforcing the schema_version-tagged JSON contract
// with additionalProperties=true.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
)

const schemaVersion = 1

var knownTicketFields = map[string]struct{}{
	"schema_version": {},
	"event_id":       {},
	"ticket_id":      {},
	"ts":             {},
	"subject":        {},
	"body":           {},
	"channel":        {},
	"priority":       {},
	"customer_id":    {},
}

// TicketEvent is the input event contract (spec §3). Extra carries any
// additional properties present on the wire but not part of the declared
// schema; they are preserved on decode but never propagated to EnrichedEvent.
type TicketEvent struct {
	SchemaVersion int    `json:"schema_version"`
	EventID       string `json:"event_id"`
	TicketID      string `json:"ticket_id"`
	TS            string `json:"ts"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	Channel       string `json:"channel"`
	Priority      string `json:"priority"`
	CustomerID    string `json:"customer_id,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// DecodeTicket parses raw bytes into a TicketEvent and validates it against
// the declared schema. A JSON syntax error wraps ErrDecodeFailed; a schema
// violation returns a *SchemaError wrapping ErrSchemaInvalid.
func DecodeTicket(data []byte) (TicketEvent, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return TicketEvent{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	var evt TicketEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return TicketEvent{}, newSchemaError(typeErr.Field, "wrong type: expected "+typeErr.Type.String())
		}
		return TicketEvent{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	evt.Extra = make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if _, known := knownTicketFields[k]; known {
			continue
		}
		evt.Extra[k] = v
	}

	if err := evt.Validate(); err != nil {
		return TicketEvent{}, err
	}
	return evt, nil
}

// Validate checks the required fields, the schema_version value, and the
// minimum lengths of event_id and ticket_id of a decoded TicketEvent. Unknown fields are never a validation error
// (additionalProperties=true).
func (e TicketEvent) Validate() error {
	if e.SchemaVersion == 0 {
		return newSchemaError("schema_version", "required field is missing")
	}
	if e.SchemaVersion != schemaVersion {
		return newSchemaError("schema_version", fmt.Sprintf("must equal %d", schemaVersion))
	}
	if len(e.EventID) < 8 {
		return newSchemaError("event_id", "must be at least 8 characters")
	}
	if len(e.TicketID) < 1 {
		return newSchemaError("ticket_id", "must be non-empty")
	}
	if e.TS == "" {
		return newSchemaError("ts", "required field is missing")
	}
	if e.Subject == "" {
		return newSchemaError("subject", "required field is missing")
	}
	if e.Body == "" {
		return newSchemaError("body", "required field is missing")
	}
	if e.Channel == "" {
		return newSchemaError("channel", "required field is missing")
	}
	if e.Priority == "" {
		return newSchemaError("priority", "required field is missing")
	}
	return nil
}
