package codec

import "encoding/json"

// Category is the closed enum of ticket categories (spec §3).
type Category string

const (
	CategoryAccountAccess    Category = "account_access"
	CategoryBilling          Category = "billing"
	CategorySecurityIncident Category = "security_incident"
	CategoryDataRefresh      Category = "data_refresh"
	CategoryExports          Category = "exports"
	CategoryFeatureRequest   Category = "feature_request"
	CategoryIntegration      Category = "integration"
	CategoryNotifications    Category = "notifications"
	CategoryGeneral          Category = "general"
)

// Sentiment is the closed enum of ticket sentiments (spec §3).
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Citation identifies a KB chunk the enrichment drew on.
type Citation struct {
	ChunkID     int    `json:"chunk_id"`
	Title       string `json:"title"`
	HeadingPath string `json:"heading_path"`
}

// EnrichedEvent is the output event contract (spec §3).
type EnrichedEvent struct {
	SchemaVersion  int        `json:"schema_version"`
	EventID        string     `json:"event_id"`
	TicketID       string     `json:"ticket_id"`
	TS             string     `json:"ts"`
	Summary        string     `json:"summary"`
	Category       Category   `json:"category"`
	Sentiment      Sentiment  `json:"sentiment"`
	Risk           float64    `json:"risk"`
	SuggestedReply string     `json:"suggested_reply"`
	Citations      []Citation `json:"citations"`
}

// EncodeEnriched serializes e as JSON, stamping schema_version=1.
func EncodeEnriched(e EnrichedEvent) ([]byte, error) {
	e.SchemaVersion = schemaVersion
	if e.Citations == nil {
		e.Citations = []Citation{}
	}
	return json.Marshal(e)
}

// DecodeEnriched parses raw bytes into an EnrichedEvent, used by round-trip
// tests and by consumers of the output topic.
func DecodeEnriched(data []byte) (EnrichedEvent, error) {
	var e EnrichedEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return EnrichedEvent{}, err
	}
	return e, nil
}
