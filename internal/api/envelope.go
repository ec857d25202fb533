package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/asistente-voz/vozterm/internal/models"
)

// QueryOptions carries the confirmation round-trip flags. Zero value means a
// fresh query.
type QueryOptions struct {
	AwaitingWebSearchConfirmation bool   `json:"awaitingWebSearchConfirmation,omitempty"`
	AwaitingUpdateConfirmation    bool   `json:"awaitingUpdateConfirmation,omitempty"`
	OriginalQuery                 string `json:"originalQuery,omitempty"`
	KnowledgeID                   string `json:"knowledgeId,omitempty"`
	IsConfirmed                   *bool  `json:"isConfirmed,omitempty"`
}

// QueryRequest is the body of POST /assistant/query.
type QueryRequest struct {
	Query   string        `json:"query"`
	Options *QueryOptions `json:"options,omitempty"`
}

// QueryResult is the single normalized envelope the rest of the client works
// with. The backend answers either with a top-level payload or with the same
// payload wrapped in "data"; both shapes decode into this one type so the
// confirmation state machine never branches on transport shape.
//
// Defaults after normalization: Response falls back to a generic "no answer"
// message when the backend sent none, Source falls back to "unknown",
// CreatedAt falls back to the decode time.
type QueryResult struct {
	Response       string
	Source         models.Source
	Confidence     *float64
	KnowledgeID    string
	AwaitingSearch bool
	AwaitingUpdate bool
	OriginalQuery  string
	ID             string
	CreatedAt      time.Time
}

// AwaitingConfirmation reports whether the backend is holding the query for a
// yes/no follow-up instead of answering it.
func (r QueryResult) AwaitingConfirmation() bool {
	return r.AwaitingSearch || r.AwaitingUpdate
}

// NoAnswerFallback is the response text substituted when the backend replies
// without one.
const NoAnswerFallback = "No se pudo obtener una respuesta"

type queryPayload struct {
	Response                      string   `json:"response"`
	Source                        string   `json:"source"`
	Confidence                    *float64 `json:"confidence"`
	KnowledgeID                   string   `json:"knowledgeId"`
	AwaitingWebSearchConfirmation bool     `json:"awaitingWebSearchConfirmation"`
	AwaitingUpdateConfirmation    bool     `json:"awaitingUpdateConfirmation"`
	OriginalQuery                 string   `json:"originalQuery"`
	ID                            string   `json:"id"`
	CreatedAt                     string   `json:"created_at"`
}

type queryEnvelope struct {
	queryPayload
	Data *queryPayload `json:"data"`
}

// decodeQueryResult reads one query response and normalizes it, preferring
// the top-level payload and falling back to the data-wrapped one.
func decodeQueryResult(r io.Reader) (QueryResult, error) {
	var env queryEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return QueryResult{}, fmt.Errorf("decoding query response: %w", err)
	}

	payload := env.queryPayload
	if payload.Response == "" && env.Data != nil {
		payload = *env.Data
	}

	res := QueryResult{
		Response:       payload.Response,
		Source:         models.ParseSource(payload.Source),
		Confidence:     payload.Confidence,
		KnowledgeID:    payload.KnowledgeID,
		AwaitingSearch: payload.AwaitingWebSearchConfirmation,
		AwaitingUpdate: payload.AwaitingUpdateConfirmation,
		OriginalQuery:  payload.OriginalQuery,
		ID:             payload.ID,
	}
	if res.Response == "" {
		res.Response = NoAnswerFallback
	}
	res.CreatedAt = parseServerTime(payload.CreatedAt)
	return res, nil
}

// historyTurn mirrors one row of GET /assistant/history. Older backend
// versions used snake_case for the knowledge back-reference.
type historyTurn struct {
	ID               string   `json:"id"`
	Query            string   `json:"query"`
	Response         string   `json:"response"`
	Source           string   `json:"source"`
	Confidence       *float64 `json:"confidence"`
	KnowledgeID      string   `json:"knowledgeId"`
	KnowledgeIDSnake string   `json:"knowledge_id"`
	Feedback         int      `json:"feedback"`
	CreatedAt        string   `json:"created_at"`
}

func (h historyTurn) toTurn() models.Turn {
	knowledgeID := h.KnowledgeID
	if knowledgeID == "" {
		knowledgeID = h.KnowledgeIDSnake
	}
	return models.Turn{
		ID:          h.ID,
		Query:       h.Query,
		Response:    h.Response,
		Source:      models.ParseSource(h.Source),
		Confidence:  h.Confidence,
		KnowledgeID: knowledgeID,
		Feedback:    h.Feedback,
		CreatedAt:   parseServerTime(h.CreatedAt),
	}
}

func parseServerTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
