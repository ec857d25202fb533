package update

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistente-voz/vozterm/internal/eventbus"
	"github.com/asistente-voz/vozterm/internal/models"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+v":
		return tea.KeyMsg{Type: tea.KeyCtrlV}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+a":
		return tea.KeyMsg{Type: tea.KeyCtrlA}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+y":
		return tea.KeyMsg{Type: tea.KeyCtrlY}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func receiveUIEvent(t *testing.T, eb *eventbus.EventBus) eventbus.UIEvent {
	t.Helper()
	select {
	case ev := <-eb.UIToCore():
		return ev
	default:
		t.Fatal("expected an event on the bus")
		return nil
	}
}

func TestHandleKeyMsgSubmits(t *testing.T) {
	eb := eventbus.NewEventBus()
	defer eb.Close()
	appModel := &models.AppModel{}

	cmd, handled := HandleKeyMsg(appModel, keyMsg("enter"), eb, "hola mundo")
	require.True(t, handled)
	assert.Nil(t, cmd)

	ev := receiveUIEvent(t, eb)
	submit, ok := ev.(eventbus.SubmitEvent)
	require.True(t, ok)
	assert.Equal(t, "hola mundo", submit.Text)
	assert.False(t, submit.Voice)
}

func TestHandleKeyMsgEnterGuards(t *testing.T) {
	eb := eventbus.NewEventBus()
	defer eb.Close()

	// Blank input is swallowed.
	_, handled := HandleKeyMsg(&models.AppModel{}, keyMsg("enter"), eb, "   ")
	require.True(t, handled)
	select {
	case <-eb.UIToCore():
		t.Fatal("blank input must not submit")
	default:
	}

	// No double submission while a query is in flight.
	busy := &models.AppModel{Processing: true}
	_, handled = HandleKeyMsg(busy, keyMsg("enter"), eb, "otra consulta")
	require.True(t, handled)
	select {
	case <-eb.UIToCore():
		t.Fatal("busy model must not submit")
	default:
	}
}

func TestHandleKeyMsgBindings(t *testing.T) {
	turn := models.Turn{ID: "t-1", Response: "respuesta"}

	tests := []struct {
		name  string
		key   string
		model models.AppModel
		want  eventbus.UIEvent
	}{
		{"toggle listen", "ctrl+v", models.AppModel{}, eventbus.ToggleListenEvent{}},
		{"speak latest", "ctrl+s", models.AppModel{Turns: []models.Turn{turn}}, eventbus.SpeakEvent{TurnID: "t-1", Text: "respuesta"}},
		{"stop while speaking", "ctrl+s", models.AppModel{Speaking: true}, eventbus.StopSpeechEvent{}},
		{"toggle auto speak", "ctrl+a", models.AppModel{AutoSpeak: true}, eventbus.SetAutoSpeakEvent{Enabled: false}},
		{"refresh history", "ctrl+r", models.AppModel{}, eventbus.RefreshHistoryEvent{}},
		{"thumbs up", "ctrl+y", models.AppModel{Turns: []models.Turn{turn}}, eventbus.FeedbackEvent{TurnID: "t-1", Value: 1}},
		{"thumbs down", "ctrl+n", models.AppModel{Turns: []models.Turn{turn}}, eventbus.FeedbackEvent{TurnID: "t-1", Value: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eb := eventbus.NewEventBus()
			defer eb.Close()

			model := tt.model
			_, handled := HandleKeyMsg(&model, keyMsg(tt.key), eb, "")
			require.True(t, handled)
			assert.Equal(t, tt.want, receiveUIEvent(t, eb))
		})
	}
}

func TestHandleKeyMsgUnhandledFallsThrough(t *testing.T) {
	eb := eventbus.NewEventBus()
	defer eb.Close()

	cmd, handled := HandleKeyMsg(&models.AppModel{}, keyMsg("a"), eb, "")
	assert.Nil(t, cmd)
	assert.False(t, handled)
}

func TestHandleKeyMsgEscClearsError(t *testing.T) {
	eb := eventbus.NewEventBus()
	defer eb.Close()

	appModel := &models.AppModel{Err: "algo falló"}
	_, handled := HandleKeyMsg(appModel, keyMsg("esc"), eb, "")
	require.True(t, handled)
	assert.Empty(t, appModel.Err)
}

func TestHandleCoreEventStateUpdate(t *testing.T) {
	appModel := &models.AppModel{}
	pending := &models.PendingConfirmation{Kind: models.ConfirmSearch, OriginalQuery: "algo"}

	cmd := HandleCoreEvent(appModel, CoreEventMsg{Event: eventbus.StateUpdateEvent{
		Turns:      []models.Turn{{ID: "t-1"}},
		Notices:    []string{"bienvenida"},
		Pending:    pending,
		Processing: true,
		Listening:  true,
		Transcript: "hola asis",
		AutoSpeak:  true,
		Authed:     true,
	}})

	assert.Nil(t, cmd)
	assert.Len(t, appModel.Turns, 1)
	assert.Equal(t, []string{"bienvenida"}, appModel.Notices)
	assert.Equal(t, pending, appModel.Pending)
	assert.True(t, appModel.Processing)
	assert.True(t, appModel.Listening)
	assert.Equal(t, "hola asis", appModel.Transcript)
	assert.True(t, appModel.AutoSpeak)
	assert.True(t, appModel.Authed)
}

func TestHandleCoreEventConnectivityBanners(t *testing.T) {
	appModel := &models.AppModel{}

	cmd := HandleCoreEvent(appModel, CoreEventMsg{Event: eventbus.ConnectivityEvent{
		State: models.ConnectivityDisconnected,
	}})
	assert.Nil(t, cmd)
	assert.Equal(t, "Sin conexión con el servidor", appModel.Banner)

	cmd = HandleCoreEvent(appModel, CoreEventMsg{Event: eventbus.ConnectivityEvent{
		State:    models.ConnectivityConnected,
		Restored: true,
	}})
	assert.NotNil(t, cmd)
	assert.Equal(t, "Conexión restablecida", appModel.Banner)

	// The expiry tick clears the restored banner.
	HandleBannerExpire(appModel)
	assert.Empty(t, appModel.Banner)
}

func TestHandleUpdateRouting(t *testing.T) {
	appModel := &models.AppModel{}

	cmd := HandleUpdate(appModel, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Nil(t, cmd)
	assert.Equal(t, 120, appModel.Width)
	assert.Equal(t, 40, appModel.Height)

	cmd = HandleUpdate(appModel, CoreEventMsg{Event: eventbus.ConnectivityEvent{
		State:    models.ConnectivityConnected,
		Restored: true,
	}})
	assert.NotNil(t, cmd)
	assert.Equal(t, "Conexión restablecida", appModel.Banner)

	cmd = HandleUpdate(appModel, BannerExpireMsg{})
	assert.Nil(t, cmd)
	assert.Empty(t, appModel.Banner)

	// Messages the app model handles itself pass through untouched.
	before := *appModel
	assert.Nil(t, HandleUpdate(appModel, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")}))
	assert.Equal(t, before, *appModel)
}

func TestHandleBannerExpireKeepsOfflineBanner(t *testing.T) {
	appModel := &models.AppModel{
		Connectivity: models.ConnectivityDisconnected,
		Banner:       "Sin conexión con el servidor",
	}
	HandleBannerExpire(appModel)
	assert.Equal(t, "Sin conexión con el servidor", appModel.Banner)
}
