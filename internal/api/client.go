package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/asistente-voz/vozterm/internal/models"
)

// DefaultBaseURL is used when no backend origin is configured.
const DefaultBaseURL = "https://asistente-voz-backend.onrender.com/api"

const requestTimeout = 10 * time.Second

// Client talks to the assistant backend. All methods do exactly one HTTP
// round-trip; retry policy lives in the retry package, not here.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

// New creates a Client for the given backend origin. An empty baseURL falls
// back to DefaultBaseURL with a logged warning. token may be empty for
// anonymous use.
func New(baseURL, token string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if baseURL == "" {
		log.Warn("backend base URL not configured, using default",
			zap.String("default", DefaultBaseURL))
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

// SetToken replaces the bearer credential attached to every request.
func (c *Client) SetToken(token string) { c.token = token }

// Authenticated reports whether a bearer credential is configured.
func (c *Client) Authenticated() bool { return c.token != "" }

// BaseURL returns the backend origin in use.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	if resp.StatusCode >= 400 {
		apiErr := newError(resp)
		resp.Body.Close()
		c.log.Debug("request rejected",
			zap.String("path", path), zap.Int("status", apiErr.StatusCode))
		return nil, apiErr
	}
	return resp, nil
}

// decodeJSON drains and closes resp while decoding into v.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// ProcessQuery sends one query (fresh or confirmation follow-up) and returns
// the normalized result.
func (c *Client) ProcessQuery(ctx context.Context, req QueryRequest) (QueryResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/assistant/query", req)
	if err != nil {
		return QueryResult{}, err
	}
	defer resp.Body.Close()
	return decodeQueryResult(resp.Body)
}

type historyEnvelope struct {
	Data  []historyTurn `json:"data"`
	Total int           `json:"total"`
}

// History fetches the server-side conversation history page.
func (c *Client) History(ctx context.Context, limit, offset int) ([]models.Turn, int, error) {
	path := fmt.Sprintf("/assistant/history?limit=%d&offset=%d", limit, offset)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, 0, err
	}
	var env historyEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return nil, 0, err
	}
	turns := make([]models.Turn, len(env.Data))
	for i, h := range env.Data {
		turns[i] = h.toTurn()
	}
	return turns, env.Total, nil
}

// SendFeedback records a +1/-1 vote for a conversation turn.
func (c *Client) SendFeedback(ctx context.Context, conversationID string, feedback int) error {
	body := map[string]any{"conversationId": conversationID, "feedback": feedback}
	resp, err := c.do(ctx, http.MethodPost, "/assistant/feedback", body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type successEnvelope struct {
	Success bool `json:"success"`
}

// DeleteKnowledge removes a knowledge record and reports whether the server
// confirmed the deletion.
func (c *Client) DeleteKnowledge(ctx context.Context, knowledgeID string) (bool, error) {
	resp, err := c.do(ctx, http.MethodDelete, "/assistant/knowledge/"+url.PathEscape(knowledgeID), nil)
	if err != nil {
		return false, err
	}
	var env successEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return false, err
	}
	return env.Success, nil
}

// Health probes the backend liveness endpoint. Any 2xx counts as alive.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
