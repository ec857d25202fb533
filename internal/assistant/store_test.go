package assistant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistente-voz/vozterm/internal/models"
)

type fakeHistoryClient struct {
	mu           sync.Mutex
	authed       bool
	serverTurns  []models.Turn
	total        int
	historyCalls int
	feedback     map[string]int
	deleteOK     bool
}

func (c *fakeHistoryClient) History(context.Context, int, int) ([]models.Turn, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historyCalls++
	out := make([]models.Turn, len(c.serverTurns))
	copy(out, c.serverTurns)
	return out, c.total, nil
}

func (c *fakeHistoryClient) SendFeedback(_ context.Context, conversationID string, feedback int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feedback == nil {
		c.feedback = make(map[string]int)
	}
	c.feedback[conversationID] = feedback
	return nil
}

func (c *fakeHistoryClient) DeleteKnowledge(context.Context, string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteOK, nil
}

func (c *fakeHistoryClient) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed
}

func (c *fakeHistoryClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.historyCalls
}

func neverTransient(error) bool { return false }

func TestStoreAppendPrepends(t *testing.T) {
	s := NewStore(&fakeHistoryClient{}, neverTransient, nil)

	s.Append(models.Turn{ID: "a"})
	s.Append(models.Turn{ID: "b"})

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "b", turns[0].ID)
	assert.Equal(t, "a", turns[1].ID)
}

func TestFetchHistoryReplacesWholesale(t *testing.T) {
	client := &fakeHistoryClient{
		authed: true,
		serverTurns: []models.Turn{
			{ID: "srv-2", Query: "dos"},
			{ID: "srv-1", Query: "uno"},
		},
		total: 2,
	}
	s := NewStore(client, neverTransient, nil)
	s.Append(models.Turn{ID: "2025-06-01T12:00:00Z", Query: "dos"}) // temporary local ID

	turns, total, err := s.FetchHistory(context.Background(), DefaultHistoryLimit, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, turns, 2)

	// Server truth replaced the optimistic list, reconciling the temp ID.
	local := s.Turns()
	assert.Equal(t, "srv-2", local[0].ID)
	assert.Equal(t, "srv-1", local[1].ID)
}

func TestFetchHistoryUnauthenticatedIsNoOp(t *testing.T) {
	client := &fakeHistoryClient{authed: false}
	s := NewStore(client, neverTransient, nil)
	s.Append(models.Turn{ID: "local"})

	turns, total, err := s.FetchHistory(context.Background(), DefaultHistoryLimit, 0)
	require.NoError(t, err)
	assert.Nil(t, turns)
	assert.Zero(t, total)
	assert.Equal(t, 0, client.calls())

	// The local conversation is untouched.
	assert.Len(t, s.Turns(), 1)
}

func TestProvideFeedbackOptimisticAndSynced(t *testing.T) {
	client := &fakeHistoryClient{authed: true}
	s := NewStore(client, neverTransient, nil)
	s.Append(models.Turn{ID: "conv-1"})

	s.ProvideFeedback("conv-1", 1)

	// Local state flips immediately.
	assert.Equal(t, 1, s.Turns()[0].Feedback)

	// The remote sync is fire-and-forget.
	assert.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.feedback["conv-1"] == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProvideFeedbackUnauthenticatedIsNoOp(t *testing.T) {
	client := &fakeHistoryClient{authed: false}
	s := NewStore(client, neverTransient, nil)
	s.Append(models.Turn{ID: "conv-1"})

	s.ProvideFeedback("conv-1", -1)
	assert.Zero(t, s.Turns()[0].Feedback)
}

func TestDeleteKnowledgeRefetchesOnSuccess(t *testing.T) {
	client := &fakeHistoryClient{authed: true, deleteOK: true}
	s := NewStore(client, neverTransient, nil)

	success, err := s.DeleteKnowledge(context.Background(), "kn-1")
	require.NoError(t, err)
	assert.True(t, success)
	assert.Equal(t, 1, client.calls())
}

func TestDeleteKnowledgeUnconfirmedSkipsRefetch(t *testing.T) {
	client := &fakeHistoryClient{authed: true, deleteOK: false}
	s := NewStore(client, neverTransient, nil)

	success, err := s.DeleteKnowledge(context.Background(), "kn-1")
	require.NoError(t, err)
	assert.False(t, success)
	assert.Equal(t, 0, client.calls())
}
