package components

import (
	"fmt"

	"github.com/asistente-voz/vozterm/internal/models"
	"github.com/asistente-voz/vozterm/ui/styles"
)

// RenderPending shows the live confirmation question. The next submission
// answers it instead of starting a new query.
func RenderPending(pending *models.PendingConfirmation, width int) string {
	if pending == nil {
		return ""
	}
	var hint string
	switch pending.Kind {
	case models.ConfirmUpdate:
		hint = "Responde \"sí\" para actualizar el conocimiento"
	default:
		hint = "Responde \"sí\" para buscar en la web"
	}
	body := fmt.Sprintf("%s\n%s", pending.Prompt, hint)
	return styles.PendingStyle(width).Render(body) + "\n"
}
