package assistant

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/asistente-voz/vozterm/internal/api"
	"github.com/asistente-voz/vozterm/internal/models"
	"github.com/asistente-voz/vozterm/internal/retry"
)

// QueryClient is what the pipeline needs from the API layer.
type QueryClient interface {
	ProcessQuery(ctx context.Context, req api.QueryRequest) (api.QueryResult, error)
}

// Phase is the pipeline's current state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseProcessing
	PhaseAwaitingConfirmation
)

// ErrBusy is returned when Submit is called while a query is already in
// flight. Callers are expected to gate submission on Phase; this guard makes
// the overlap loud instead of undefined.
var ErrBusy = errors.New("a query is already being processed")

const (
	queryAttempts  = 2
	retryBaseDelay = time.Second
)

// Outcome is what one submission produced: exactly one of Turn or Pending
// is set.
type Outcome struct {
	// Turn is the completed exchange, ready to append to the store.
	Turn *models.Turn
	// Pending is set when the backend held the query for a yes/no follow-up.
	// The confirmation prompt is surfaced but never stored as a turn.
	Pending *models.PendingConfirmation
}

// Pipeline drives the query/confirmation state machine. Fresh queries go out
// as-is; while a confirmation is pending the next submission is classified
// as an affirmative or negative answer and re-submitted with confirmation
// flags. All traffic passes through the retry wrapper.
type Pipeline struct {
	client QueryClient
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	phase   Phase
	pending *models.PendingConfirmation
}

func NewPipeline(client QueryClient, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{client: client, log: log, now: time.Now}
}

// Phase returns the current state.
func (p *Pipeline) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Pending returns the live confirmation, nil when there is none.
func (p *Pipeline) Pending() *models.PendingConfirmation {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return nil
	}
	c := *p.pending
	return &c
}

// Reset discards any pending confirmation and returns to idle.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.phase = PhaseIdle
	p.pending = nil
	p.mu.Unlock()
}

// Submit routes one user input through the state machine. With no pending
// confirmation it is a fresh query; otherwise it is treated as the yes/no
// answer and the original query is re-submitted with confirmation flags. On
// transport failure the pipeline returns to idle and any pending
// confirmation is destroyed.
func (p *Pipeline) Submit(ctx context.Context, text string) (Outcome, error) {
	p.mu.Lock()
	if p.phase == PhaseProcessing {
		p.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	pending := p.pending
	p.phase = PhaseProcessing
	p.mu.Unlock()

	if pending != nil {
		return p.submitAnswer(ctx, text, pending)
	}
	return p.submitQuery(ctx, text)
}

func (p *Pipeline) submitQuery(ctx context.Context, text string) (Outcome, error) {
	result, err := p.send(ctx, api.QueryRequest{Query: text})
	if err != nil {
		p.Reset()
		return Outcome{}, err
	}

	switch {
	case result.AwaitingSearch:
		return p.holdForConfirmation(models.ConfirmSearch, text, result), nil
	case result.AwaitingUpdate:
		return p.holdForConfirmation(models.ConfirmUpdate, text, result), nil
	default:
		p.Reset()
		turn := p.turnFromResult(text, result)
		return Outcome{Turn: &turn}, nil
	}
}

func (p *Pipeline) holdForConfirmation(kind models.ConfirmationKind, submitted string, result api.QueryResult) Outcome {
	original := result.OriginalQuery
	if original == "" {
		original = submitted
	}
	pending := &models.PendingConfirmation{
		Kind:          kind,
		OriginalQuery: original,
		Prompt:        result.Response,
	}
	if kind == models.ConfirmUpdate {
		pending.KnowledgeID = result.KnowledgeID
	}

	p.mu.Lock()
	p.phase = PhaseAwaitingConfirmation
	p.pending = pending
	p.mu.Unlock()

	p.log.Info("awaiting confirmation",
		zap.String("kind", kind.String()), zap.String("original_query", original))
	c := *pending
	return Outcome{Pending: &c}
}

func (p *Pipeline) submitAnswer(ctx context.Context, answer string, pending *models.PendingConfirmation) (Outcome, error) {
	confirmed := IsAffirmative(answer)
	opts := &api.QueryOptions{
		OriginalQuery: pending.OriginalQuery,
		IsConfirmed:   &confirmed,
	}
	switch pending.Kind {
	case models.ConfirmUpdate:
		opts.AwaitingUpdateConfirmation = true
		opts.KnowledgeID = pending.KnowledgeID
	default:
		opts.AwaitingWebSearchConfirmation = true
	}

	// The confirmation is consumed by this round-trip, success or failure.
	result, err := p.send(ctx, api.QueryRequest{Query: pending.OriginalQuery, Options: opts})
	p.Reset()
	if err != nil {
		return Outcome{}, err
	}

	// The turn is keyed to the original query, never the raw answer.
	turn := p.turnFromResult(pending.OriginalQuery, result)
	return Outcome{Turn: &turn}, nil
}

func (p *Pipeline) send(ctx context.Context, req api.QueryRequest) (api.QueryResult, error) {
	return retry.Do(ctx, queryAttempts, retryBaseDelay, api.IsTransient,
		func(ctx context.Context) (api.QueryResult, error) {
			return p.client.ProcessQuery(ctx, req)
		})
}

func (p *Pipeline) turnFromResult(query string, result api.QueryResult) models.Turn {
	id := result.ID
	createdAt := result.CreatedAt
	if id == "" {
		// Placeholder until the next history refetch reconciles IDs.
		id = models.TempTurnID(p.now())
	}
	if createdAt.IsZero() {
		createdAt = p.now().UTC()
	}
	return models.Turn{
		ID:          id,
		Query:       query,
		Response:    result.Response,
		Source:      result.Source,
		Confidence:  result.Confidence,
		KnowledgeID: result.KnowledgeID,
		CreatedAt:   createdAt,
	}
}

// affirmativePatterns is the fixed ordered list of start-anchored patterns
// that classify a confirmation answer as "yes". Anything else is "no".
var affirmativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^s[ií]`),          // "si", "sí"
	regexp.MustCompile(`(?i)^y[eo]s`),         // "yes"
	regexp.MustCompile(`(?i)^claro`),          // "claro"
	regexp.MustCompile(`(?i)^por supuesto`),   // "por supuesto"
	regexp.MustCompile(`(?i)^ok`),             // "ok"
	regexp.MustCompile(`(?i)^busc[ao]`),       // "busca", "busco"
	regexp.MustCompile(`(?i)^actualiza`),      // "actualiza", "actualizar"
	regexp.MustCompile(`(?i)^hazlo`),          // "hazlo"
	regexp.MustCompile(`(?i)^adelante`),       // "adelante"
	regexp.MustCompile(`(?i)^dale`),           // "dale"
}

// IsAffirmative classifies a confirmation answer.
func IsAffirmative(answer string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(answer))
	for _, pattern := range affirmativePatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}
	return false
}
