package components

import (
	"strings"

	"github.com/asistente-voz/vozterm/internal/models"
	"github.com/asistente-voz/vozterm/ui/styles"
)

func RenderStatus(model models.AppModel, spinner string) string {
	parts := []string{statusText(model, spinner)}

	if model.Listening {
		parts = append(parts, "🎤")
	}
	if model.Speaking {
		parts = append(parts, "🔊")
	}
	if model.AutoSpeak {
		parts = append(parts, "auto-lectura")
	}
	if model.Connectivity == models.ConnectivityDisconnected {
		parts = append(parts, "sin conexión")
	}
	if !model.Authed {
		parts = append(parts, "invitado")
	}

	return styles.StatusStyle(model.Width).Render(strings.Join(parts, " · "))
}

func statusText(model models.AppModel, spinner string) string {
	switch {
	case model.Err != "":
		return "Error (Esc para descartar)"
	case model.Processing:
		return spinner + " Procesando"
	case model.Pending != nil:
		return "Esperando confirmación"
	case model.Listening:
		return "Escuchando"
	default:
		return "Listo"
	}
}
