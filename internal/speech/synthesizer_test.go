package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingEngine records utterances and blocks each one until its context is
// canceled or release is closed.
type blockingEngine struct {
	mu      sync.Mutex
	calls   []Utterance
	started chan struct{}
	release chan struct{}
}

func newBlockingEngine() *blockingEngine {
	return &blockingEngine{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (e *blockingEngine) Speak(ctx context.Context, u Utterance) error {
	e.mu.Lock()
	e.calls = append(e.calls, u)
	e.mu.Unlock()
	e.started <- struct{}{}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.release:
		return nil
	}
}

func (e *blockingEngine) utterances() []Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Utterance, len(e.calls))
	copy(out, e.calls)
	return out
}

func waitStarted(t *testing.T, e *blockingEngine) {
	t.Helper()
	select {
	case <-e.started:
	case <-time.After(2 * time.Second):
		t.Fatal("engine was never invoked")
	}
}

func TestSynthesizerDisabledWithoutEngine(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	assert.False(t, s.Available())

	// All of these must be safe no-ops.
	s.Speak("hola")
	assert.False(t, s.SpeakTurn("t1", "hola"))
	s.Stop()
	assert.False(t, s.Speaking())
}

func TestSynthesizerStopClearsSpeaking(t *testing.T) {
	engine := newBlockingEngine()
	s := NewSynthesizer(engine, nil)

	s.Speak("hola mundo")
	waitStarted(t, engine)
	assert.True(t, s.Speaking())

	s.Stop()
	// The flag is already false when Stop returns, not eventually.
	assert.False(t, s.Speaking())
}

func TestSynthesizerSecondSpeakCancelsFirst(t *testing.T) {
	engine := newBlockingEngine()
	s := NewSynthesizer(engine, nil)

	s.Speak("primera frase")
	waitStarted(t, engine)

	s.Speak("segunda frase")
	waitStarted(t, engine)

	utterances := engine.utterances()
	require.Len(t, utterances, 2)
	assert.Equal(t, "primera frase", utterances[0].Text)
	assert.Equal(t, "segunda frase", utterances[1].Text)
	assert.True(t, s.Speaking())

	s.Stop()
}

func TestSpeakTurnDuplicateGuard(t *testing.T) {
	engine := newBlockingEngine()
	s := NewSynthesizer(engine, nil)

	assert.True(t, s.SpeakTurn("turn-1", "respuesta"))
	waitStarted(t, engine)

	// The same turn is never vocalized twice.
	assert.False(t, s.SpeakTurn("turn-1", "respuesta"))

	// A different turn resets the guard.
	assert.True(t, s.SpeakTurn("turn-2", "otra respuesta"))
	waitStarted(t, engine)

	assert.Len(t, engine.utterances(), 2)
	s.Stop()
}

func TestSynthesizerCarriesVoiceAndRate(t *testing.T) {
	engine := newBlockingEngine()
	s := NewSynthesizer(engine, nil)
	s.SetVoice("monica")
	s.SetRate(1.5)

	s.Speak("hola")
	waitStarted(t, engine)

	utterances := engine.utterances()
	require.Len(t, utterances, 1)
	assert.Equal(t, "monica", utterances[0].Voice)
	assert.InDelta(t, 1.5, utterances[0].Rate, 0.001)
	s.Stop()
}

func TestBenignSynthesisError(t *testing.T) {
	assert.True(t, benignSynthesisError(context.Canceled))
	assert.True(t, benignSynthesisError(errors.New("speech was interrupted")))
	assert.True(t, benignSynthesisError(errors.New("process aborted")))
	assert.False(t, benignSynthesisError(errors.New("engine not found")))
}
