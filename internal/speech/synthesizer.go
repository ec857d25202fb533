package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Utterance is one piece of text handed to a synthesis engine.
type Utterance struct {
	Text  string
	Voice string
	// Rate is a speed multiplier around the engine's normal speed, 1.0 when
	// unset.
	Rate float64
}

// SynthesisEngine plays exactly one utterance and blocks until it finishes
// or ctx is canceled.
type SynthesisEngine interface {
	Speak(ctx context.Context, u Utterance) error
}

const (
	// settleDelay sits between canceling an in-flight utterance and starting
	// the next one; some engines race cancel against start.
	settleDelay = 100 * time.Millisecond

	// maxUtteranceRetries bounds replays of a failing text so a broken
	// engine cannot loop forever.
	maxUtteranceRetries = 2
)

// Synthesizer enforces the single-utterance-at-a-time discipline on top of
// an engine. It is safe for concurrent use.
type Synthesizer struct {
	engine SynthesisEngine
	log    *zap.Logger

	voice string
	rate  float64

	onChange func(speaking bool)

	mu           sync.Mutex
	speaking     bool
	cancel       context.CancelFunc
	lastSpokenID string
	failures     map[string]int
}

// NewSynthesizer wires a Synthesizer over engine. A nil engine produces a
// disabled Synthesizer whose Speak calls are no-ops.
func NewSynthesizer(engine SynthesisEngine, log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{
		engine:   engine,
		log:      log,
		rate:     1.0,
		failures: make(map[string]int),
	}
}

// Available reports whether a synthesis engine was found.
func (s *Synthesizer) Available() bool { return s != nil && s.engine != nil }

// SetVoice selects the engine voice; empty keeps the engine's Spanish
// default.
func (s *Synthesizer) SetVoice(voice string) {
	s.mu.Lock()
	s.voice = voice
	s.mu.Unlock()
}

// SetRate sets the speed multiplier from user preference.
func (s *Synthesizer) SetRate(rate float64) {
	if rate <= 0 {
		rate = 1.0
	}
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
}

// SetStateListener registers a callback fired whenever the speaking flag
// flips. Must be called before the first Speak.
func (s *Synthesizer) SetStateListener(fn func(speaking bool)) {
	s.onChange = fn
}

// Speaking reports whether an utterance is in flight.
func (s *Synthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Speak starts text asynchronously, canceling any in-flight utterance first
// and observing the settle delay before the new one begins.
func (s *Synthesizer) Speak(text string) {
	if !s.Available() || strings.TrimSpace(text) == "" {
		return
	}

	s.mu.Lock()
	if s.failures[text] >= maxUtteranceRetries {
		s.mu.Unlock()
		s.log.Debug("utterance retry cap reached, dropping", zap.Int("len", len(text)))
		return
	}
	hadPrior := s.cancel != nil
	if hadPrior {
		s.cancel()
		s.cancel = nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.setSpeakingLocked(true)
	u := Utterance{Text: text, Voice: s.voice, Rate: s.rate}
	s.mu.Unlock()

	go func() {
		if hadPrior {
			select {
			case <-ctx.Done():
				return
			case <-time.After(settleDelay):
			}
		}
		err := s.engine.Speak(ctx, u)
		s.finish(ctx, text, err)
	}()
}

// SpeakTurn vocalizes a turn's response unless that turn was already spoken;
// the guard resets only when the turn identity changes. Returns whether
// playback was started.
func (s *Synthesizer) SpeakTurn(turnID, text string) bool {
	if !s.Available() {
		return false
	}
	s.mu.Lock()
	if turnID != "" && turnID == s.lastSpokenID {
		s.mu.Unlock()
		return false
	}
	s.lastSpokenID = turnID
	s.mu.Unlock()

	s.Speak(text)
	return true
}

// Stop cancels any in-flight utterance. Speaking is false by the time Stop
// returns.
func (s *Synthesizer) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.setSpeakingLocked(false)
	s.mu.Unlock()
}

func (s *Synthesizer) finish(ctx context.Context, text string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A cancel from Stop or a newer Speak already owns the state.
	if ctx.Err() != nil {
		return
	}
	s.cancel = nil
	s.setSpeakingLocked(false)

	switch {
	case err == nil, benignSynthesisError(err):
		delete(s.failures, text)
	default:
		s.failures[text]++
		s.log.Warn("synthesis failed",
			zap.Error(err), zap.Int("attempts", s.failures[text]))
	}
}

func (s *Synthesizer) setSpeakingLocked(speaking bool) {
	if s.speaking == speaking {
		return
	}
	s.speaking = speaking
	if s.onChange != nil {
		go s.onChange(speaking)
	}
}

// benignSynthesisError matches the interrupted/canceled class of engine
// callbacks, which resolve as success rather than surfacing.
func benignSynthesisError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, benign := range []string{"interrupted", "canceled", "cancelled", "aborted", "killed"} {
		if strings.Contains(msg, benign) {
			return true
		}
	}
	return false
}
