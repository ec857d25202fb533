package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// KnowledgeItem is one server-side knowledge record as listed by the admin
// surface.
type KnowledgeItem struct {
	ID         string   `json:"id"`
	Query      string   `json:"query"`
	Response   string   `json:"response"`
	Source     string   `json:"source"`
	Confidence *float64 `json:"confidence"`
	UpdatedAt  string   `json:"updated_at"`
}

// Updated parses the record's last-update timestamp, zero when absent.
func (k KnowledgeItem) Updated() time.Time {
	if k.UpdatedAt == "" {
		return time.Time{}
	}
	return parseServerTime(k.UpdatedAt)
}

type knowledgeListEnvelope struct {
	Data  []KnowledgeItem `json:"data"`
	Total int             `json:"total"`
	Limit int             `json:"limit"`
}

// ListKnowledge pages through the knowledge base.
func (c *Client) ListKnowledge(ctx context.Context, page, limit int) ([]KnowledgeItem, int, error) {
	path := fmt.Sprintf("/admin/knowledge?page=%d&limit=%d", page, limit)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, 0, err
	}
	var env knowledgeListEnvelope
	if err := decodeJSON(resp, &env); err != nil {
		return nil, 0, err
	}
	return env.Data, env.Total, nil
}

// UpdateKnowledge asks the backend to refresh up to limit stale records.
func (c *Client) UpdateKnowledge(ctx context.Context, limit int) error {
	resp, err := c.do(ctx, http.MethodPost, "/admin/update-knowledge", map[string]int{"limit": limit})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// UpdateSingleKnowledge refreshes one knowledge record.
func (c *Client) UpdateSingleKnowledge(ctx context.Context, knowledgeID string) error {
	resp, err := c.do(ctx, http.MethodPost, "/admin/update-knowledge/"+url.PathEscape(knowledgeID), nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ClearKnowledge wipes the knowledge base.
func (c *Client) ClearKnowledge(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/admin/clear-knowledge", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
