package api

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistente-voz/vozterm/internal/models"
)

func TestDecodeQueryResultTopLevel(t *testing.T) {
	body := `{
		"response": "La capital de Francia es París",
		"source": "user",
		"confidence": 0.9,
		"knowledgeId": "kn-1",
		"id": "conv-1",
		"created_at": "2026-08-29T10:00:00Z"
	}`

	res, err := decodeQueryResult(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "La capital de Francia es París", res.Response)
	assert.Equal(t, models.SourceUser, res.Source)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.9, *res.Confidence, 0.001)
	assert.Equal(t, "kn-1", res.KnowledgeID)
	assert.Equal(t, "conv-1", res.ID)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), res.CreatedAt)
	assert.False(t, res.AwaitingConfirmation())
}

func TestDecodeQueryResultDataWrapped(t *testing.T) {
	body := `{"data": {
		"response": "¿Deseas buscar esta información en fuentes externas?",
		"source": "system",
		"awaitingWebSearchConfirmation": true,
		"originalQuery": "qué es un agujero negro"
	}}`

	res, err := decodeQueryResult(strings.NewReader(body))
	require.NoError(t, err)
	assert.True(t, res.AwaitingSearch)
	assert.False(t, res.AwaitingUpdate)
	assert.True(t, res.AwaitingConfirmation())
	assert.Equal(t, "qué es un agujero negro", res.OriginalQuery)
	assert.Equal(t, models.SourceSystem, res.Source)
}

func TestDecodeQueryResultDefaults(t *testing.T) {
	res, err := decodeQueryResult(strings.NewReader(`{"source": "martian"}`))
	require.NoError(t, err)
	assert.Equal(t, NoAnswerFallback, res.Response)
	assert.Equal(t, models.SourceUnknown, res.Source)
	assert.Nil(t, res.Confidence)
	assert.WithinDuration(t, time.Now().UTC(), res.CreatedAt, time.Minute)
}

func TestDecodeQueryResultMalformed(t *testing.T) {
	_, err := decodeQueryResult(strings.NewReader("not json"))
	assert.Error(t, err)
}

func TestHistoryTurnKnowledgeIDFallback(t *testing.T) {
	tests := []struct {
		name string
		turn historyTurn
		want string
	}{
		{"camelCase wins", historyTurn{KnowledgeID: "kn-camel", KnowledgeIDSnake: "kn-snake"}, "kn-camel"},
		{"snake_case fallback", historyTurn{KnowledgeIDSnake: "kn-snake"}, "kn-snake"},
		{"neither", historyTurn{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.turn.toTurn().KnowledgeID)
		})
	}
}

func TestParseServerTime(t *testing.T) {
	want := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, want, parseServerTime("2026-08-29T10:30:00Z"))
	assert.True(t, parseServerTime("2026-08-29 10:30:00").Equal(want))
	assert.WithinDuration(t, time.Now().UTC(), parseServerTime("nonsense"), time.Minute)
}
