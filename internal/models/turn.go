package models

import "time"

// Source tags where a response came from.
type Source string

const (
	SourceUser    Source = "user"
	SourceWeb     Source = "web"
	SourceSystem  Source = "system"
	SourceUnknown Source = "unknown"
)

// ParseSource maps a raw provenance string to a known Source.
func ParseSource(s string) Source {
	switch Source(s) {
	case SourceUser, SourceWeb, SourceSystem:
		return Source(s)
	default:
		return SourceUnknown
	}
}

// Turn is one completed query/response exchange. Turns created locally carry
// a temporary timestamp-based ID until a history refetch replaces them with
// the server-assigned record.
type Turn struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Response    string    `json:"response"`
	Source      Source    `json:"source"`
	Confidence  *float64  `json:"confidence,omitempty"`
	KnowledgeID string    `json:"knowledgeId,omitempty"`
	Feedback    int       `json:"feedback,omitempty"` // +1, -1, or 0 when unset
	CreatedAt   time.Time `json:"created_at"`
}

// TempTurnID builds the client-side placeholder ID used before the store
// reconciles with server history.
func TempTurnID(now time.Time) string {
	return now.UTC().Format(time.RFC3339Nano)
}
