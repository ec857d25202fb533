package update

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asistente-voz/vozterm/internal/eventbus"
	"github.com/asistente-voz/vozterm/internal/models"
)

// bannerDuration is how long the "connection restored" strip stays visible.
const bannerDuration = 3 * time.Second

// CoreEventMsg wraps core events for Bubble Tea
type CoreEventMsg struct {
	Event eventbus.CoreEvent
}

// BannerExpireMsg dismisses the restored-connection banner.
type BannerExpireMsg struct{}

func bannerExpireCmd() tea.Cmd {
	return tea.Tick(bannerDuration, func(time.Time) tea.Msg {
		return BannerExpireMsg{}
	})
}

// HandleKeyMsg maps keystrokes to bus events. It returns nil commands for
// keys the app model should feed to its text input instead.
func HandleKeyMsg(appModel *models.AppModel, keyMsg tea.KeyMsg, eb *eventbus.EventBus, input string) (tea.Cmd, bool) {
	switch keyMsg.String() {
	case "ctrl+c":
		return tea.Quit, true
	case "esc":
		appModel.Err = ""
		return nil, true
	case "enter":
		if strings.TrimSpace(input) == "" || appModel.Processing {
			return nil, true
		}
		if err := eb.SendToCore(eventbus.SubmitEvent{Text: input}); err != nil {
			appModel.Status = "Error al enviar: " + err.Error()
		}
		return nil, true
	case "ctrl+v":
		sendToCore(appModel, eb, eventbus.ToggleListenEvent{})
		return nil, true
	case "ctrl+s":
		if appModel.Speaking {
			sendToCore(appModel, eb, eventbus.StopSpeechEvent{})
		} else if len(appModel.Turns) > 0 {
			latest := appModel.Turns[0]
			sendToCore(appModel, eb, eventbus.SpeakEvent{TurnID: latest.ID, Text: latest.Response})
		}
		return nil, true
	case "ctrl+a":
		sendToCore(appModel, eb, eventbus.SetAutoSpeakEvent{Enabled: !appModel.AutoSpeak})
		return nil, true
	case "ctrl+r":
		sendToCore(appModel, eb, eventbus.RefreshHistoryEvent{})
		return nil, true
	case "ctrl+y":
		if len(appModel.Turns) > 0 {
			sendToCore(appModel, eb, eventbus.FeedbackEvent{TurnID: appModel.Turns[0].ID, Value: 1})
		}
		return nil, true
	case "ctrl+n":
		if len(appModel.Turns) > 0 {
			sendToCore(appModel, eb, eventbus.FeedbackEvent{TurnID: appModel.Turns[0].ID, Value: -1})
		}
		return nil, true
	}
	return nil, false
}

func sendToCore(appModel *models.AppModel, eb *eventbus.EventBus, event eventbus.UIEvent) {
	if err := eb.SendToCore(event); err != nil {
		appModel.Status = "Error al enviar: " + err.Error()
	}
}

// HandleCoreEvent processes events from the core
func HandleCoreEvent(appModel *models.AppModel, coreEventMsg CoreEventMsg) tea.Cmd {
	switch event := coreEventMsg.Event.(type) {
	case eventbus.StateUpdateEvent:
		appModel.Turns = event.Turns
		appModel.Notices = event.Notices
		appModel.Pending = event.Pending
		appModel.Processing = event.Processing
		appModel.Speaking = event.Speaking
		appModel.Listening = event.Listening
		appModel.Transcript = event.Transcript
		appModel.Err = event.Err
		appModel.AutoSpeak = event.AutoSpeak
		appModel.Authed = event.Authed

	case eventbus.ConnectivityEvent:
		appModel.Connectivity = event.State
		switch {
		case event.State == models.ConnectivityDisconnected:
			appModel.Banner = "Sin conexión con el servidor"
		case event.Restored:
			appModel.Banner = "Conexión restablecida"
			return bannerExpireCmd()
		default:
			appModel.Banner = ""
		}
	}

	return nil
}

// HandleBannerExpire clears the restored banner. An offline banner that
// replaced it in the meantime is kept.
func HandleBannerExpire(appModel *models.AppModel) {
	if appModel.Connectivity != models.ConnectivityDisconnected {
		appModel.Banner = ""
	}
}

func HandleWindowSizeMsg(appModel *models.AppModel, sizeMsg tea.WindowSizeMsg) {
	appModel.Width = sizeMsg.Width
	appModel.Height = sizeMsg.Height
}
