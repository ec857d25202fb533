package eventbus

import (
	"errors"
	"time"

	"github.com/asistente-voz/vozterm/internal/models"
)

// UIEvent represents events sent from UI to Core
type UIEvent interface {
	UIEvent()
}

// CoreEvent represents events sent from Core to UI
type CoreEvent interface {
	CoreEvent()
}

// SubmitEvent - UI submits user input. While a confirmation is pending the
// core interprets Text as the yes/no answer, not a new query.
type SubmitEvent struct {
	Text string
	// Voice marks input that came through the recognizer; voice responses
	// are always vocalized.
	Voice bool
}

func (e SubmitEvent) UIEvent() {}

// FeedbackEvent - user voted +1/-1 on a turn
type FeedbackEvent struct {
	TurnID string
	Value  int
}

func (e FeedbackEvent) UIEvent() {}

// DeleteKnowledgeEvent - user asked to remove a knowledge record
type DeleteKnowledgeEvent struct {
	KnowledgeID string
}

func (e DeleteKnowledgeEvent) UIEvent() {}

// RefreshHistoryEvent - UI requests a history refetch
type RefreshHistoryEvent struct{}

func (e RefreshHistoryEvent) UIEvent() {}

// SpeakEvent - UI requests playback of a turn's response
type SpeakEvent struct {
	TurnID string
	Text   string
}

func (e SpeakEvent) UIEvent() {}

// StopSpeechEvent - UI requests synthesis stop; pending network calls are
// unaffected
type StopSpeechEvent struct{}

func (e StopSpeechEvent) UIEvent() {}

// ToggleListenEvent - UI starts or aborts one voice listen cycle
type ToggleListenEvent struct{}

func (e ToggleListenEvent) UIEvent() {}

// SetAutoSpeakEvent - UI toggled the auto-speak preference
type SetAutoSpeakEvent struct {
	Enabled bool
}

func (e SetAutoSpeakEvent) UIEvent() {}

// StateUpdateEvent - Core pushes a full state snapshot to the UI
type StateUpdateEvent struct {
	Turns      []models.Turn
	Notices    []string
	Pending    *models.PendingConfirmation
	Processing bool
	Speaking   bool
	Listening  bool
	Transcript string
	Err        string
	AutoSpeak  bool
	Authed     bool
}

func (e StateUpdateEvent) CoreEvent() {}

// ConnectivityEvent - Core reports a reachability transition
type ConnectivityEvent struct {
	State    models.Connectivity
	Restored bool
}

func (e ConnectivityEvent) CoreEvent() {}

// EventBusError represents errors in event processing
type EventBusError struct {
	Operation string
	Err       error
	Timestamp time.Time
}

func (e EventBusError) Error() string {
	return e.Operation + ": " + e.Err.Error()
}

// CircuitBreakerState represents the state of circuit breaker
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker implements circuit breaker pattern
type CircuitBreaker struct {
	maxFailures     int
	resetTimeout    time.Duration
	failureCount    int
	lastFailureTime time.Time
	state           CircuitBreakerState
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	if cb.state == CircuitOpen {
		// Check if we should transition to half-open
		if time.Since(cb.lastFailureTime) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
		}
	}
	return cb.state == CircuitOpen
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.failureCount = 0
	cb.state = CircuitClosed
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.failureCount++
	cb.lastFailureTime = time.Now()

	if cb.failureCount >= cb.maxFailures {
		cb.state = CircuitOpen
	}
}

// EventBus handles communication between UI and Core with circuit breaker
type EventBus struct {
	uiToCore       chan UIEvent
	coreToUI       chan CoreEvent
	errorCallback  func(EventBusError)
	circuitBreaker *CircuitBreaker
}

func NewEventBus() *EventBus {
	return &EventBus{
		uiToCore:       make(chan UIEvent, 100),
		coreToUI:       make(chan CoreEvent, 100),
		circuitBreaker: NewCircuitBreaker(5, 30*time.Second),
	}
}

func (eb *EventBus) SetErrorCallback(callback func(EventBusError)) {
	eb.errorCallback = callback
}

func (eb *EventBus) reportError(operation string, err error) {
	busError := EventBusError{
		Operation: operation,
		Err:       err,
		Timestamp: time.Now(),
	}

	eb.circuitBreaker.RecordFailure()

	if eb.errorCallback != nil {
		eb.errorCallback(busError)
	}
}

func (eb *EventBus) SendToCore(event UIEvent) error {
	if eb.circuitBreaker.IsOpen() {
		err := errors.New("circuit breaker is open")
		eb.reportError("SendToCore", err)
		return err
	}

	select {
	case eb.uiToCore <- event:
		eb.circuitBreaker.RecordSuccess()
		return nil
	default:
		err := errors.New("UI to Core channel is full")
		eb.reportError("SendToCore", err)
		return err
	}
}

func (eb *EventBus) SendToUI(event CoreEvent) error {
	if eb.circuitBreaker.IsOpen() {
		err := errors.New("circuit breaker is open")
		eb.reportError("SendToUI", err)
		return err
	}

	select {
	case eb.coreToUI <- event:
		eb.circuitBreaker.RecordSuccess()
		return nil
	default:
		err := errors.New("Core to UI channel is full")
		eb.reportError("SendToUI", err)
		return err
	}
}

func (eb *EventBus) UIToCore() <-chan UIEvent {
	return eb.uiToCore
}

func (eb *EventBus) CoreToUI() <-chan CoreEvent {
	return eb.coreToUI
}

func (eb *EventBus) Close() {
	close(eb.uiToCore)
	close(eb.coreToUI)
}
