package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// RecognitionEngine captures one single-shot transcript and blocks until the
// user stops talking, the engine gives up, or ctx is canceled.
type RecognitionEngine interface {
	Listen(ctx context.Context) (string, error)
}

// RecognizerCallbacks receive the results of a listen cycle. All callbacks
// run on the recognizer's goroutine.
type RecognizerCallbacks struct {
	// OnTranscript gets every raw transcript, wake word or not.
	OnTranscript func(text string)
	// OnQuery gets the wake-word-stripped query when the gate passes.
	OnQuery func(query string)
	// OnError gets a user-visible message for non-benign failures.
	OnError func(message string)
	// OnStateChange fires when listening starts or stops.
	OnStateChange func(listening bool)
}

// Recognizer runs wake-word gated single-shot listen cycles.
type Recognizer struct {
	engine    RecognitionEngine
	wakeWord  string
	callbacks RecognizerCallbacks
	log       *zap.Logger

	mu        sync.Mutex
	listening bool
	cancel    context.CancelFunc
}

func NewRecognizer(engine RecognitionEngine, wakeWord string, cb RecognizerCallbacks, log *zap.Logger) *Recognizer {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(wakeWord) == "" {
		wakeWord = DefaultWakeWord
	}
	return &Recognizer{engine: engine, wakeWord: wakeWord, callbacks: cb, log: log}
}

// Available reports whether a recognition engine was found.
func (r *Recognizer) Available() bool { return r != nil && r.engine != nil }

// WakeWord returns the configured trigger phrase.
func (r *Recognizer) WakeWord() string { return r.wakeWord }

// Listening reports whether a listen cycle is in progress.
func (r *Recognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Start begins one listen cycle. It is a no-op while a cycle is already
// running or when no engine is available.
func (r *Recognizer) Start() {
	if !r.Available() {
		return
	}
	r.mu.Lock()
	if r.listening {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.listening = true
	r.mu.Unlock()
	r.notifyState(true)

	go r.listen(ctx)
}

// Stop aborts the in-flight listen cycle, if any.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	wasListening := r.listening
	r.listening = false
	r.mu.Unlock()
	if wasListening {
		r.notifyState(false)
	}
}

func (r *Recognizer) listen(ctx context.Context) {
	transcript, err := r.engine.Listen(ctx)

	r.mu.Lock()
	r.listening = false
	r.cancel = nil
	r.mu.Unlock()
	r.notifyState(false)

	if err != nil {
		if benignRecognitionError(err) {
			r.log.Debug("recognition interrupted", zap.Error(err))
			return
		}
		r.log.Warn("recognition failed", zap.Error(err))
		if r.callbacks.OnError != nil {
			r.callbacks.OnError("Error en reconocimiento de voz: " + err.Error())
		}
		return
	}
	if transcript == "" {
		return
	}

	if r.callbacks.OnTranscript != nil {
		r.callbacks.OnTranscript(transcript)
	}

	query, ok := ExtractQuery(transcript, r.wakeWord)
	if !ok {
		r.log.Debug("transcript without wake word", zap.String("wake_word", r.wakeWord))
		return
	}
	if r.callbacks.OnQuery != nil {
		r.callbacks.OnQuery(query)
	}
}

func (r *Recognizer) notifyState(listening bool) {
	if r.callbacks.OnStateChange != nil {
		r.callbacks.OnStateChange(listening)
	}
}

// benignRecognitionError matches the aborted/interrupted class that rapid
// start/stop produces; these never surface to the user.
func benignRecognitionError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, benign := range []string{"aborted", "interrupted", "canceled", "cancelled"} {
		if strings.Contains(msg, benign) {
			return true
		}
	}
	return false
}
