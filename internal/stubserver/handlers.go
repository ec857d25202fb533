package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	searchPrompt   = "No tengo una respuesta para eso en mi base de conocimientos. ¿Deseas buscar esta información en fuentes externas?"
	updatePrompt   = "Ya tengo información sobre eso. ¿Deseas actualizar esta información?"
	searchDeclined = "De acuerdo, no buscaré en la web."
	updateDeclined = "De acuerdo, mantendré la información actual."
)

// updateKeyword prefixes a query that asks to refresh stored knowledge.
const updateKeyword = "actualiza "

func withUser(ctx context.Context, user UserRecord) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func userFrom(ctx context.Context) (UserRecord, bool) {
	user, ok := ctx.Value(userKey).(UserRecord)
	return user, ok
}

type userPayload struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	IsAdmin     bool           `json:"isAdmin"`
	Preferences map[string]any `json:"preferences"`
}

func toUserPayload(user UserRecord) userPayload {
	return userPayload{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsAdmin:     user.IsAdmin,
		Preferences: user.Preferences,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		httpError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if _, err := s.store.UserByUsername(req.Username); err == nil {
		httpError(w, http.StatusConflict, "username already taken")
		return
	}

	user, err := s.store.CreateUser(req.Username, req.Email, hashPassword(req.Password))
	if err != nil {
		s.log.Error("creating user", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"token": s.issueToken(user.ID),
			"user":  toUserPayload(user),
		},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	user, err := s.store.UserByUsername(req.Username)
	if err != nil || user.PasswordHash != hashPassword(req.Password) {
		httpError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"token": s.issueToken(user.ID),
			"user":  toUserPayload(user),
		},
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"data": toUserPayload(user)})
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	var prefs map[string]any
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if err := s.store.SavePreferences(user.ID, prefs); err != nil {
		s.log.Error("saving preferences", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": prefs})
}

type queryOptions struct {
	AwaitingWebSearchConfirmation bool   `json:"awaitingWebSearchConfirmation"`
	AwaitingUpdateConfirmation    bool   `json:"awaitingUpdateConfirmation"`
	OriginalQuery                 string `json:"originalQuery"`
	KnowledgeID                   string `json:"knowledgeId"`
	IsConfirmed                   *bool  `json:"isConfirmed"`
}

type queryResponse struct {
	ID                            string   `json:"id,omitempty"`
	Response                      string   `json:"response"`
	Source                        string   `json:"source"`
	Confidence                    *float64 `json:"confidence,omitempty"`
	KnowledgeID                   string   `json:"knowledgeId,omitempty"`
	AwaitingWebSearchConfirmation bool     `json:"awaitingWebSearchConfirmation,omitempty"`
	AwaitingUpdateConfirmation    bool     `json:"awaitingUpdateConfirmation,omitempty"`
	OriginalQuery                 string   `json:"originalQuery,omitempty"`
	CreatedAt                     string   `json:"created_at,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query   string        `json:"query"`
		Options *queryOptions `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		httpError(w, http.StatusBadRequest, "query is required")
		return
	}

	var payload queryResponse
	var err error
	if req.Options != nil && (req.Options.AwaitingWebSearchConfirmation || req.Options.AwaitingUpdateConfirmation) {
		payload, err = s.resolveConfirmation(r.Context(), req.Query, *req.Options)
	} else {
		payload, err = s.answerQuery(r.Context(), req.Query)
	}
	if err != nil {
		s.log.Error("processing query", zap.String("query", req.Query), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to process query")
		return
	}

	// Answered queries become history rows for logged-in users.
	if user, ok := userFrom(r.Context()); ok && !payload.AwaitingWebSearchConfirmation && !payload.AwaitingUpdateConfirmation {
		rec, saveErr := s.store.SaveConversation(ConversationRecord{
			UserID:      user.ID,
			Query:       req.Query,
			Response:    payload.Response,
			Source:      payload.Source,
			Confidence:  payload.Confidence,
			KnowledgeID: payload.KnowledgeID,
		})
		if saveErr != nil {
			s.log.Warn("saving conversation", zap.Error(saveErr))
		} else {
			payload.ID = rec.ID
			payload.CreatedAt = rec.CreatedAt.Format(time.RFC3339Nano)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": payload})
}

// answerQuery handles a fresh query: knowledge hit, update request, or a
// confirmation ask when nothing is known.
func (s *Server) answerQuery(ctx context.Context, query string) (queryResponse, error) {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)

	if strings.HasPrefix(lower, updateKeyword) {
		subject := strings.TrimSpace(trimmed[len(updateKeyword):])
		if rec, err := s.store.FindKnowledge(subject); err == nil {
			return queryResponse{
				Response:                   updatePrompt,
				Source:                     "system",
				KnowledgeID:                rec.ID,
				AwaitingUpdateConfirmation: true,
				OriginalQuery:              subject,
			}, nil
		}
		// Nothing stored to update; offer a search for the subject instead.
		return queryResponse{
			Response:                      searchPrompt,
			Source:                        "system",
			AwaitingWebSearchConfirmation: true,
			OriginalQuery:                 subject,
		}, nil
	}

	if rec, err := s.store.FindKnowledge(trimmed); err == nil {
		return queryResponse{
			Response:    rec.Response,
			Source:      rec.Source,
			Confidence:  rec.Confidence,
			KnowledgeID: rec.ID,
		}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return queryResponse{}, err
	}

	return queryResponse{
		Response:                      searchPrompt,
		Source:                        "system",
		AwaitingWebSearchConfirmation: true,
		OriginalQuery:                 query,
	}, nil
}

// resolveConfirmation handles the yes/no follow-up to a held query.
func (s *Server) resolveConfirmation(ctx context.Context, query string, opts queryOptions) (queryResponse, error) {
	confirmed := opts.IsConfirmed != nil && *opts.IsConfirmed
	original := opts.OriginalQuery
	if original == "" {
		original = query
	}

	if !confirmed {
		declined := searchDeclined
		if opts.AwaitingUpdateConfirmation {
			declined = updateDeclined
		}
		return queryResponse{Response: declined, Source: "system"}, nil
	}

	if opts.AwaitingUpdateConfirmation {
		rec, err := s.store.KnowledgeByID(opts.KnowledgeID)
		if err != nil {
			return queryResponse{}, err
		}
		answer, err := s.answerer.Answer(ctx, rec.Query)
		if err != nil {
			return queryResponse{}, err
		}
		if err := s.store.TouchKnowledge(rec.ID, answer); err != nil {
			return queryResponse{}, err
		}
		confidence := 0.9
		return queryResponse{
			Response:    answer,
			Source:      "web",
			Confidence:  &confidence,
			KnowledgeID: rec.ID,
		}, nil
	}

	answer, err := s.answerer.Answer(ctx, original)
	if err != nil {
		return queryResponse{}, err
	}
	confidence := 0.9
	rec, err := s.store.SaveKnowledge(original, answer, "web", &confidence)
	if err != nil {
		return queryResponse{}, err
	}
	return queryResponse{
		Response:    answer,
		Source:      "web",
		Confidence:  &confidence,
		KnowledgeID: rec.ID,
	}, nil
}

type historyRow struct {
	ID          string   `json:"id"`
	Query       string   `json:"query"`
	Response    string   `json:"response"`
	Source      string   `json:"source"`
	Confidence  *float64 `json:"confidence,omitempty"`
	KnowledgeID string   `json:"knowledge_id,omitempty"`
	Feedback    int      `json:"feedback"`
	CreatedAt   string   `json:"created_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, total, err := s.store.History(user.ID, limit, offset)
	if err != nil {
		s.log.Error("listing history", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to list history")
		return
	}

	rows := make([]historyRow, len(records))
	for i, rec := range records {
		rows[i] = historyRow{
			ID:          rec.ID,
			Query:       rec.Query,
			Response:    rec.Response,
			Source:      rec.Source,
			Confidence:  rec.Confidence,
			KnowledgeID: rec.KnowledgeID,
			Feedback:    rec.Feedback,
			CreatedAt:   rec.CreatedAt.Format(time.RFC3339Nano),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": rows, "total": total})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	var req struct {
		ConversationID string `json:"conversationId"`
		Feedback       int    `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Feedback != 1 && req.Feedback != -1 {
		httpError(w, http.StatusBadRequest, "feedback must be 1 or -1")
		return
	}

	if err := s.store.SetFeedback(user.ID, req.ConversationID, req.Feedback); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.log.Error("saving feedback", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to save feedback")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := s.store.DeleteKnowledge(id)
	if err != nil {
		s.log.Error("deleting knowledge", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to delete knowledge")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": deleted})
}

type knowledgeRow struct {
	ID         string   `json:"id"`
	Query      string   `json:"query"`
	Response   string   `json:"response"`
	Source     string   `json:"source"`
	Confidence *float64 `json:"confidence,omitempty"`
	UpdatedAt  string   `json:"updated_at"`
}

func (s *Server) handleListKnowledge(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 20
	}

	records, total, err := s.store.ListKnowledge(page, limit)
	if err != nil {
		s.log.Error("listing knowledge", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to list knowledge")
		return
	}

	rows := make([]knowledgeRow, len(records))
	for i, rec := range records {
		rows[i] = knowledgeRow{
			ID:         rec.ID,
			Query:      rec.Query,
			Response:   rec.Response,
			Source:     rec.Source,
			Confidence: rec.Confidence,
			UpdatedAt:  rec.UpdatedAt.Format(time.RFC3339Nano),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": rows, "total": total, "limit": limit})
}

func (s *Server) handleUpdateKnowledge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Limit < 1 {
		req.Limit = 10
	}

	records, err := s.store.StaleKnowledge(req.Limit)
	if err != nil {
		s.log.Error("listing stale knowledge", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to list knowledge")
		return
	}

	updated := 0
	for _, rec := range records {
		answer, err := s.answerer.Answer(r.Context(), rec.Query)
		if err != nil {
			s.log.Warn("re-answering knowledge", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		if err := s.store.TouchKnowledge(rec.ID, answer); err != nil {
			s.log.Warn("updating knowledge", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		updated++
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": updated})
}

func (s *Server) handleUpdateSingleKnowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.KnowledgeByID(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpError(w, http.StatusNotFound, "knowledge entry not found")
			return
		}
		s.log.Error("fetching knowledge", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to fetch knowledge")
		return
	}

	answer, err := s.answerer.Answer(r.Context(), rec.Query)
	if err != nil {
		s.log.Error("re-answering knowledge", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to update knowledge")
		return
	}
	if err := s.store.TouchKnowledge(rec.ID, answer); err != nil {
		s.log.Error("updating knowledge", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to update knowledge")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleClearKnowledge(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearKnowledge(); err != nil {
		s.log.Error("clearing knowledge", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "failed to clear knowledge")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
