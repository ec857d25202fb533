package stubserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewServer(store, NewCannedAnswerer(), zap.NewNop()).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func register(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rec, body := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secreto123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	data := body["data"].(map[string]any)
	return data["token"].(string)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	rec, body := doJSON(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	h := newTestServer(t)

	token := register(t, h, "maria")
	require.NotEmpty(t, token)

	// First registered user becomes admin.
	rec, body := doJSON(t, h, http.MethodGet, "/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "maria", data["username"])
	assert.Equal(t, true, data["isAdmin"])

	registerSecond := register(t, h, "pedro")
	rec, body = doJSON(t, h, http.MethodGet, "/auth/profile", registerSecond, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["data"].(map[string]any)["isAdmin"])

	// Duplicate username rejected.
	rec, _ = doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "maria", "password": "otra",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Login round-trips the same credentials.
	rec, body = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "maria", "password": "secreto123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["data"].(map[string]any)["token"])

	rec, _ = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "maria", "password": "equivocada",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueryConfirmationFlow(t *testing.T) {
	h := newTestServer(t)

	// Unknown query is held for web-search confirmation; guests may query.
	rec, body := doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
		"query": "qué es un agujero negro",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["awaitingWebSearchConfirmation"])
	assert.Equal(t, "qué es un agujero negro", data["originalQuery"])
	assert.Equal(t, "system", data["source"])

	// Confirming runs the answerer and stores the result as knowledge.
	rec, body = doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
		"query": "sí",
		"options": map[string]any{
			"awaitingWebSearchConfirmation": true,
			"originalQuery":                 "qué es un agujero negro",
			"isConfirmed":                   true,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	assert.Equal(t, "web", data["source"])
	assert.Contains(t, data["response"], "agujero negro")
	require.NotEmpty(t, data["knowledgeId"])

	// The same query now hits the knowledge base directly.
	rec, body = doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
		"query": "Qué es un agujero negro",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	assert.Nil(t, data["awaitingWebSearchConfirmation"])
	assert.Equal(t, "web", data["source"])
}

func TestQueryDeclinedConfirmation(t *testing.T) {
	h := newTestServer(t)

	rec, body := doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
		"query": "no gracias",
		"options": map[string]any{
			"awaitingWebSearchConfirmation": true,
			"originalQuery":                 "algo desconocido",
			"isConfirmed":                   false,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, searchDeclined, data["response"])
	assert.Equal(t, "system", data["source"])

	// Declining never stores knowledge.
	rec, body = doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
		"query": "algo desconocido",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["data"].(map[string]any)["awaitingWebSearchConfirmation"])
}

func TestUpdateKeywordFlow(t *testing.T) {
	h := newTestServer(t)

	// Seed knowledge via a confirmed search.
	_, body := doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
		"query": "sí",
		"options": map[string]any{
			"awaitingWebSearchConfirmation": true,
			"originalQuery":                 "capital de francia",
			"isConfirmed":                   true,
		},
	})
	knowledgeID := body["data"].(map[string]any)["knowledgeId"].(string)

	// "actualiza X" on known subject asks for update confirmation.
	rec, body := doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
		"query": "Actualiza capital de francia",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["awaitingUpdateConfirmation"])
	assert.Equal(t, knowledgeID, data["knowledgeId"])
	assert.Equal(t, updatePrompt, data["response"])

	// Confirming refreshes the stored entry.
	rec, body = doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
		"query": "sí",
		"options": map[string]any{
			"awaitingUpdateConfirmation": true,
			"originalQuery":              "capital de francia",
			"knowledgeId":                knowledgeID,
			"isConfirmed":                true,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	assert.Equal(t, "web", data["source"])
	assert.Equal(t, knowledgeID, data["knowledgeId"])

	// Unknown subject falls back to a search confirmation.
	rec, body = doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
		"query": "actualiza algo que no existe",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].(map[string]any)
	assert.Equal(t, true, data["awaitingWebSearchConfirmation"])
	assert.Equal(t, "algo que no existe", data["originalQuery"])
}

func TestHistoryAndFeedback(t *testing.T) {
	h := newTestServer(t)
	token := register(t, h, "maria")

	// Answered query for a logged-in user lands in history.
	rec, body := doJSON(t, h, http.MethodPost, "/assistant/query", token, map[string]any{
		"query": "sí",
		"options": map[string]any{
			"awaitingWebSearchConfirmation": true,
			"originalQuery":                 "capital de italia",
			"isConfirmed":                   true,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	convID := body["data"].(map[string]any)["id"].(string)
	require.NotEmpty(t, convID)

	rec, body = doJSON(t, h, http.MethodGet, "/assistant/history?limit=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(1), body["total"])
	row := rows[0].(map[string]any)
	assert.Equal(t, convID, row["id"])
	assert.Equal(t, float64(0), row["feedback"])

	// History requires a token.
	rec, _ = doJSON(t, h, http.MethodGet, "/assistant/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Feedback round-trip.
	rec, body = doJSON(t, h, http.MethodPost, "/assistant/feedback", token, map[string]any{
		"conversationId": convID, "feedback": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, _ = doJSON(t, h, http.MethodGet, "/assistant/history", token, nil)
	var after map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Equal(t, float64(1), after["data"].([]any)[0].(map[string]any)["feedback"])

	// Invalid feedback values are rejected.
	rec, _ = doJSON(t, h, http.MethodPost, "/assistant/feedback", token, map[string]any{
		"conversationId": convID, "feedback": 5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown conversation is a 404.
	rec, _ = doJSON(t, h, http.MethodPost, "/assistant/feedback", token, map[string]any{
		"conversationId": "missing", "feedback": -1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Another user cannot rate someone else's conversation.
	other := register(t, h, "pedro")
	rec, _ = doJSON(t, h, http.MethodPost, "/assistant/feedback", other, map[string]any{
		"conversationId": convID, "feedback": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteKnowledge(t *testing.T) {
	h := newTestServer(t)
	token := register(t, h, "maria")

	_, body := doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
		"query": "sí",
		"options": map[string]any{
			"awaitingWebSearchConfirmation": true,
			"originalQuery":                 "capital de japón",
			"isConfirmed":                   true,
		},
	})
	knowledgeID := body["data"].(map[string]any)["knowledgeId"].(string)

	rec, body := doJSON(t, h, http.MethodDelete, "/assistant/knowledge/"+knowledgeID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	// Deleting again reports nothing removed.
	rec, body = doJSON(t, h, http.MethodDelete, "/assistant/knowledge/"+knowledgeID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestAdminEndpoints(t *testing.T) {
	h := newTestServer(t)
	admin := register(t, h, "maria") // first user is admin
	guest := register(t, h, "pedro")

	for i := 0; i < 3; i++ {
		doJSON(t, h, http.MethodPost, "/assistant/query", "", map[string]any{
			"query": "sí",
			"options": map[string]any{
				"awaitingWebSearchConfirmation": true,
				"originalQuery":                 fmt.Sprintf("tema %d", i),
				"isConfirmed":                   true,
			},
		})
	}

	rec, body := doJSON(t, h, http.MethodGet, "/admin/knowledge?page=1&limit=2", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"].([]any), 2)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["limit"])

	rec, body = doJSON(t, h, http.MethodPost, "/admin/update-knowledge", admin, map[string]any{"limit": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["updated"])

	// Non-admins are forbidden, guests unauthorized.
	rec, _ = doJSON(t, h, http.MethodGet, "/admin/knowledge", guest, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = doJSON(t, h, http.MethodGet, "/admin/knowledge", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = doJSON(t, h, http.MethodPost, "/admin/clear-knowledge", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, body = doJSON(t, h, http.MethodGet, "/admin/knowledge", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["total"])
}
