package app

import (
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/asistente-voz/vozterm/internal/api"
	"github.com/asistente-voz/vozterm/internal/assistant"
	"github.com/asistente-voz/vozterm/internal/config"
	"github.com/asistente-voz/vozterm/internal/connectivity"
	"github.com/asistente-voz/vozterm/internal/eventbus"
	"github.com/asistente-voz/vozterm/internal/speech"
)

// Application manages the complete application lifecycle
type Application struct {
	config   *config.Config
	eventBus *eventbus.EventBus
	service  *assistant.Service
	log      *zap.Logger
	model    *AppModel
}

func NewApplication(cfg *config.Config, log *zap.Logger) (*Application, error) {
	eb := eventbus.NewEventBus()
	eb.SetErrorCallback(func(busErr eventbus.EventBusError) {
		log.Warn("event bus error", zap.String("operation", busErr.Operation), zap.Error(busErr.Err))
	})

	client := api.New(cfg.GetBaseURL(), cfg.GetToken(), log)
	monitor := connectivity.NewMonitor(client, log)

	synth := speech.NewSynthesizer(speech.DetectSynthesisEngine(cfg.GetSpeakCommand(), log), log)
	synth.SetVoice(cfg.GetVoiceName())
	synth.SetRate(cfg.GetVoiceRate())
	recEngine := speech.DetectRecognitionEngine(cfg.GetListenCommand(), log)

	service := assistant.NewService(client, monitor, synth, recEngine, eb, log, assistant.Options{
		AutoSpeak: cfg.GetAutoSpeak(),
		WakeWord:  cfg.GetWakeWord(),
	})

	return &Application{
		config:   cfg,
		eventBus: eb,
		service:  service,
		log:      log,
		model:    newAppModel(eb),
	}, nil
}

func (app *Application) Start() error {
	app.service.Start()

	p := tea.NewProgram(app.model, tea.WithAltScreen())
	_, err := p.Run()

	return err
}

func (app *Application) Stop() {
	app.service.Stop()
	app.eventBus.Close()
}
