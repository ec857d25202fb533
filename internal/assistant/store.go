package assistant

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/asistente-voz/vozterm/internal/models"
	"github.com/asistente-voz/vozterm/internal/retry"
)

// HistoryClient is what the store needs from the API layer.
type HistoryClient interface {
	History(ctx context.Context, limit, offset int) ([]models.Turn, int, error)
	SendFeedback(ctx context.Context, conversationID string, feedback int) error
	DeleteKnowledge(ctx context.Context, knowledgeID string) (bool, error)
	Authenticated() bool
}

// DefaultHistoryLimit is the page size used when reconciling with server
// history.
const DefaultHistoryLimit = 50

// Store holds the in-memory conversation, newest first. Local turns are
// appended optimistically; a history refetch replaces the whole list with
// server truth (no merging), which is how temporary IDs get reconciled.
type Store struct {
	client    HistoryClient
	transient retry.Classifier
	log       *zap.Logger

	mu    sync.RWMutex
	turns []models.Turn
}

func NewStore(client HistoryClient, transient retry.Classifier, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, transient: transient, log: log}
}

// Turns returns a copy of the conversation, newest first.
func (s *Store) Turns() []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Append prepends a completed turn.
func (s *Store) Append(turn models.Turn) {
	s.mu.Lock()
	s.turns = append([]models.Turn{turn}, s.turns...)
	s.mu.Unlock()
}

// FetchHistory pulls a history page and replaces the whole local list with
// it. Without an authenticated session it is a benign no-op returning an
// empty result: history is an enhancement anonymous users simply don't get.
func (s *Store) FetchHistory(ctx context.Context, limit, offset int) ([]models.Turn, int, error) {
	if !s.client.Authenticated() {
		return nil, 0, nil
	}

	type page struct {
		turns []models.Turn
		total int
	}
	result, err := retry.Do(ctx, queryAttempts, retryBaseDelay, s.transient,
		func(ctx context.Context) (page, error) {
			turns, total, err := s.client.History(ctx, limit, offset)
			return page{turns: turns, total: total}, err
		})
	if err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	s.turns = result.turns
	s.mu.Unlock()
	return result.turns, result.total, nil
}

// ProvideFeedback records the vote locally right away and syncs it to the
// server fire-and-forget; a failed sync only logs. Unauthenticated sessions
// are a no-op.
func (s *Store) ProvideFeedback(turnID string, value int) {
	if !s.client.Authenticated() || turnID == "" {
		return
	}

	s.mu.Lock()
	for i := range s.turns {
		if s.turns[i].ID == turnID {
			s.turns[i].Feedback = value
			break
		}
	}
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := retry.Do(ctx, queryAttempts, retryBaseDelay, s.transient,
			func(ctx context.Context) (struct{}, error) {
				return struct{}{}, s.client.SendFeedback(ctx, turnID, value)
			})
		if err != nil {
			s.log.Warn("feedback sync failed", zap.String("turn_id", turnID), zap.Error(err))
		}
	}()
}

// DeleteKnowledge removes a knowledge record server-side; when the server
// confirms the deletion the history is refetched so the local list reflects
// it. Unauthenticated sessions are a no-op returning false.
func (s *Store) DeleteKnowledge(ctx context.Context, knowledgeID string) (bool, error) {
	if !s.client.Authenticated() {
		return false, nil
	}

	success, err := retry.Do(ctx, queryAttempts, retryBaseDelay, s.transient,
		func(ctx context.Context) (bool, error) {
			return s.client.DeleteKnowledge(ctx, knowledgeID)
		})
	if err != nil {
		return false, err
	}
	if success {
		if _, _, err := s.FetchHistory(ctx, DefaultHistoryLimit, 0); err != nil {
			s.log.Warn("history refetch after delete failed", zap.Error(err))
		}
	}
	return success, nil
}
