package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKnowledgeItemUpdated(t *testing.T) {
	item := KnowledgeItem{UpdatedAt: "2026-08-29T10:30:00Z"}
	assert.Equal(t, time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC), item.Updated())

	// Records without a timestamp report zero instead of "now".
	assert.True(t, KnowledgeItem{}.Updated().IsZero())
}
