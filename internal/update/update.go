package update

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/asistente-voz/vozterm/internal/models"
)

// HandleUpdate routes messages that mutate the shared UI state. Component
// messages (text input, viewport, spinner) are handled by the app model.
func HandleUpdate(appModel *models.AppModel, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		HandleWindowSizeMsg(appModel, msg)
		return nil
	case CoreEventMsg:
		return HandleCoreEvent(appModel, msg)
	case BannerExpireMsg:
		HandleBannerExpire(appModel)
		return nil
	}
	return nil
}
