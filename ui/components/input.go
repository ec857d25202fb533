package components

import (
	"github.com/asistente-voz/vozterm/ui/styles"
)

func RenderInput(inputView string, width int) string {
	return styles.InputStyle(width).Render(inputView)
}
