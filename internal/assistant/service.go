package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/asistente-voz/vozterm/internal/api"
	"github.com/asistente-voz/vozterm/internal/connectivity"
	"github.com/asistente-voz/vozterm/internal/eventbus"
	"github.com/asistente-voz/vozterm/internal/models"
	"github.com/asistente-voz/vozterm/internal/speech"
)

// genericQueryError is shown when a query fails without a server message.
const genericQueryError = "Lo siento, ha ocurrido un error al procesar tu consulta. Por favor, intenta más tarde."

// reportingClient feeds every outbound call's outcome into the connectivity
// monitor on its way through.
type reportingClient struct {
	inner   *api.Client
	monitor *connectivity.Monitor
}

func (r reportingClient) ProcessQuery(ctx context.Context, req api.QueryRequest) (api.QueryResult, error) {
	res, err := r.inner.ProcessQuery(ctx, req)
	r.monitor.Report(err, api.IsTransient)
	return res, err
}

func (r reportingClient) History(ctx context.Context, limit, offset int) ([]models.Turn, int, error) {
	turns, total, err := r.inner.History(ctx, limit, offset)
	r.monitor.Report(err, api.IsTransient)
	return turns, total, err
}

func (r reportingClient) SendFeedback(ctx context.Context, conversationID string, feedback int) error {
	err := r.inner.SendFeedback(ctx, conversationID, feedback)
	r.monitor.Report(err, api.IsTransient)
	return err
}

func (r reportingClient) DeleteKnowledge(ctx context.Context, knowledgeID string) (bool, error) {
	ok, err := r.inner.DeleteKnowledge(ctx, knowledgeID)
	r.monitor.Report(err, api.IsTransient)
	return ok, err
}

func (r reportingClient) Authenticated() bool { return r.inner.Authenticated() }

// Options configure the core service.
type Options struct {
	AutoSpeak bool
	WakeWord  string
}

// Service is the core of the assistant: it owns the pipeline, the
// conversation store and the speech adapter, consumes UI events from the bus
// and pushes state snapshots back. At most one query is in flight at a time;
// the UI disables submission while Processing.
type Service struct {
	client     *api.Client
	store      *Store
	pipeline   *Pipeline
	monitor    *connectivity.Monitor
	synth      *speech.Synthesizer
	recognizer *speech.Recognizer
	eventBus   *eventbus.EventBus
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc

	mu         sync.Mutex
	notices    []string
	autoSpeak  bool
	processing bool
	transcript string
	errMsg     string
}

// NewService wires the core together. synth may be disabled and recEngine
// nil; the service degrades to text-only.
func NewService(client *api.Client, monitor *connectivity.Monitor, synth *speech.Synthesizer, recEngine speech.RecognitionEngine, eb *eventbus.EventBus, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	reporting := reportingClient{inner: client, monitor: monitor}
	s := &Service{
		client:    client,
		store:     NewStore(reporting, api.IsTransient, log),
		pipeline:  NewPipeline(reporting, log),
		monitor:   monitor,
		synth:     synth,
		eventBus:  eb,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		autoSpeak: opts.AutoSpeak,
	}

	s.recognizer = speech.NewRecognizer(recEngine, opts.WakeWord, speech.RecognizerCallbacks{
		OnTranscript: func(text string) {
			s.mu.Lock()
			s.transcript = text
			s.mu.Unlock()
			s.pushState()
		},
		OnQuery: func(query string) {
			// Serialize through the bus so voice input follows the same
			// state machine as typed input.
			if err := eb.SendToCore(eventbus.SubmitEvent{Text: query, Voice: true}); err != nil {
				log.Warn("dropping voice query", zap.Error(err))
			}
		},
		OnError: func(message string) {
			s.setError(message)
			s.pushState()
		},
		OnStateChange: func(bool) { s.pushState() },
	}, log)

	synth.SetStateListener(func(bool) { s.pushState() })

	s.addWelcomeNotices()
	return s
}

// Start launches the event loop, the connectivity probes, and the initial
// history load.
func (s *Service) Start() {
	s.pushState()
	s.monitor.Start(s.ctx)
	go s.connectivityLoop()
	go s.eventLoop()
	go s.initialHistory()
}

// Stop halts background work. In-flight backend calls are not canceled;
// only speech playback stops immediately.
func (s *Service) Stop() {
	s.cancel()
	s.recognizer.Stop()
	s.synth.Stop()
}

func (s *Service) eventLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-s.eventBus.UIToCore():
			if !ok {
				return
			}
			s.handleUIEvent(event)
		}
	}
}

func (s *Service) handleUIEvent(event eventbus.UIEvent) {
	switch e := event.(type) {
	case eventbus.SubmitEvent:
		s.processSubmission(e)
	case eventbus.FeedbackEvent:
		s.store.ProvideFeedback(e.TurnID, e.Value)
		s.pushState()
	case eventbus.DeleteKnowledgeEvent:
		if _, err := s.store.DeleteKnowledge(s.ctx, e.KnowledgeID); err != nil {
			s.setError(api.UserMessage(err, "Error al eliminar conocimiento"))
		}
		s.pushState()
	case eventbus.RefreshHistoryEvent:
		if _, _, err := s.store.FetchHistory(s.ctx, DefaultHistoryLimit, 0); err != nil {
			s.setError(api.UserMessage(err, "Error al obtener historial"))
		}
		s.pushState()
	case eventbus.SpeakEvent:
		s.synth.Speak(e.Text)
	case eventbus.StopSpeechEvent:
		s.synth.Stop()
		s.pushState()
	case eventbus.ToggleListenEvent:
		if s.recognizer.Listening() {
			s.recognizer.Stop()
		} else {
			s.recognizer.Start()
		}
	case eventbus.SetAutoSpeakEvent:
		s.mu.Lock()
		s.autoSpeak = e.Enabled
		s.mu.Unlock()
		s.pushState()
	}
}

func (s *Service) processSubmission(e eventbus.SubmitEvent) {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return
	}

	s.mu.Lock()
	if s.processing {
		// Submission is gated in the UI; a second call while processing is
		// dropped rather than queued.
		s.mu.Unlock()
		return
	}
	s.processing = true
	s.errMsg = ""
	s.mu.Unlock()
	s.pushState()

	outcome, err := s.pipeline.Submit(s.ctx, text)

	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrBusy) {
			return
		}
		message := api.UserMessage(err, genericQueryError)
		s.log.Warn("query failed", zap.Error(err))
		s.setError(message)
		if e.Voice {
			s.synth.Speak(message)
		}
		s.pushState()
		return
	}

	switch {
	case outcome.Pending != nil:
		// The confirmation prompt is surfaced and optionally vocalized but
		// never committed as a turn.
		if e.Voice || s.autoSpeakEnabled() {
			s.synth.Speak(outcome.Pending.Prompt)
		}
		s.pushState()

	case outcome.Turn != nil:
		s.store.Append(*outcome.Turn)
		s.pushState()
		if e.Voice {
			s.synth.Speak(outcome.Turn.Response)
		} else if s.autoSpeakEnabled() {
			s.synth.SpeakTurn(outcome.Turn.ID, outcome.Turn.Response)
		}
		if s.client.Authenticated() {
			// Reconcile temporary IDs with server-assigned ones.
			if _, _, err := s.store.FetchHistory(s.ctx, DefaultHistoryLimit, 0); err != nil {
				s.log.Warn("history reconciliation failed", zap.Error(err))
			} else {
				s.pushState()
			}
		}
	}
}

func (s *Service) initialHistory() {
	if !s.client.Authenticated() {
		return
	}
	if _, _, err := s.store.FetchHistory(s.ctx, DefaultHistoryLimit, 0); err != nil {
		s.log.Warn("initial history load failed", zap.Error(err))
		return
	}
	s.pushState()
}

func (s *Service) connectivityLoop() {
	changes := s.monitor.Subscribe()
	for {
		select {
		case <-s.ctx.Done():
			return
		case change := <-changes:
			if err := s.eventBus.SendToUI(eventbus.ConnectivityEvent{
				State:    change.State,
				Restored: change.Restored,
			}); err != nil {
				s.log.Warn("dropping connectivity event", zap.Error(err))
			}
		}
	}
}

func (s *Service) autoSpeakEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSpeak
}

func (s *Service) setError(message string) {
	s.mu.Lock()
	s.errMsg = message
	s.mu.Unlock()
}

func (s *Service) addWelcomeNotices() {
	notices := []string{
		"-- ASISTENTE DE VOZ --",
		fmt.Sprintf("Backend: %s", s.client.BaseURL()),
	}
	if s.client.Authenticated() {
		notices = append(notices, "Sesión iniciada: tu historial se guardará")
	} else {
		notices = append(notices, "Inicia sesión (vozterm login) para guardar tu historial")
	}
	if s.recognizer.Available() {
		notices = append(notices, fmt.Sprintf("Voz: Ctrl+V para escuchar, di \"%s\" seguido de tu consulta", s.recognizer.WakeWord()))
	} else {
		notices = append(notices, "Reconocimiento de voz no disponible, escribe tu consulta")
	}
	notices = append(notices, "Controles: Enter envía · Ctrl+S leer/parar · Ctrl+A auto-lectura · Ctrl+C salir", "")

	s.mu.Lock()
	s.notices = notices
	s.mu.Unlock()
}

// pushState sends a full snapshot to the UI. Failures are logged and the
// next push supersedes them.
func (s *Service) pushState() {
	s.mu.Lock()
	snapshot := eventbus.StateUpdateEvent{
		Notices:    s.notices,
		Processing: s.processing,
		Transcript: s.transcript,
		Err:        s.errMsg,
		AutoSpeak:  s.autoSpeak,
	}
	s.mu.Unlock()

	snapshot.Turns = s.store.Turns()
	snapshot.Pending = s.pipeline.Pending()
	snapshot.Speaking = s.synth.Speaking()
	snapshot.Listening = s.recognizer.Listening()
	snapshot.Authed = s.client.Authenticated()

	if err := s.eventBus.SendToUI(snapshot); err != nil {
		s.log.Warn("state push dropped", zap.Error(err))
	}
}
