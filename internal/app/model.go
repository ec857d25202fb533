package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/asistente-voz/vozterm/internal/eventbus"
	"github.com/asistente-voz/vozterm/internal/models"
	"github.com/asistente-voz/vozterm/internal/update"
	"github.com/asistente-voz/vozterm/ui/components"
	"github.com/asistente-voz/vozterm/ui/styles"
)

// AppModel is the Bubble Tea model. Shared state lives in models.AppModel
// and is replaced wholesale by core snapshots; the bubbles components here
// are local UI concerns only.
type AppModel struct {
	appModel  models.AppModel
	eventBus  *eventbus.EventBus
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer
	ready     bool
}

func newAppModel(eb *eventbus.EventBus) *AppModel {
	ti := textinput.New()
	ti.Placeholder = "Escribe tu consulta... (Enter envía, Ctrl+C sale)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 1024
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.SetContent("")

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(76),
	)

	return &AppModel{
		appModel:  models.AppModel{Width: 80, Height: 24},
		eventBus:  eb,
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		renderer:  renderer,
	}
}

// listenForCoreEvents blocks on the core channel and resubscribes after
// every delivered event.
func (m *AppModel) listenForCoreEvents() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.eventBus.CoreToUI()
		if !ok {
			return nil
		}
		return update.CoreEventMsg{Event: event}
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.listenForCoreEvents(),
	)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case update.CoreEventMsg:
		cmd := update.HandleUpdate(&m.appModel, msg)
		m.refreshViewport()
		return m, tea.Batch(cmd, m.listenForCoreEvents())

	case tea.KeyMsg:
		cmd, handled := update.HandleKeyMsg(&m.appModel, msg, m.eventBus, m.textinput.Value())
		if handled {
			if msg.String() == "enter" {
				m.textinput.Reset()
			}
			return m, cmd
		}
		var tiCmd tea.Cmd
		m.textinput, tiCmd = m.textinput.Update(msg)
		return m, tiCmd

	case tea.WindowSizeMsg:
		update.HandleUpdate(&m.appModel, msg)
		m.resize(msg)
		return m, nil

	case update.BannerExpireMsg:
		return m, update.HandleUpdate(&m.appModel, msg)

	case spinner.TickMsg:
		var spCmd tea.Cmd
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, spCmd
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, vpCmd
}

func (m *AppModel) resize(msg tea.WindowSizeMsg) {
	chromeHeight := 8
	if !m.ready {
		m.viewport = viewport.New(msg.Width-2, msg.Height-chromeHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = msg.Height - chromeHeight
	}
	m.textinput.Width = msg.Width - 6

	wrap := msg.Width - 4
	if wrap > 100 {
		wrap = 100
	}
	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	m.refreshViewport()
}

func (m *AppModel) refreshViewport() {
	var b strings.Builder
	b.WriteString(components.RenderNotices(m.appModel.Notices))
	b.WriteString(components.RenderTurns(m.appModel.Turns, m.markdown))
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *AppModel) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	rendered, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

func (m *AppModel) View() string {
	var b strings.Builder

	b.WriteString(components.RenderBanner(m.appModel))
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.appModel.Transcript != "" && m.appModel.Listening {
		b.WriteString(styles.TranscriptStyle().Render("🎤 "+m.appModel.Transcript) + "\n")
	}
	b.WriteString(components.RenderPending(m.appModel.Pending, m.appModel.Width))
	if m.appModel.Err != "" {
		b.WriteString(styles.ErrorStyle().Render(m.appModel.Err) + "\n")
	}

	b.WriteString(components.RenderInput(m.textinput.View(), m.appModel.Width))
	b.WriteString("\n")
	b.WriteString(components.RenderStatus(m.appModel, m.spinner.View()))

	return b.String()
}
