package components

import (
	"fmt"
	"strings"

	"github.com/asistente-voz/vozterm/internal/models"
	"github.com/asistente-voz/vozterm/ui/styles"
)

// Markdown renders assistant text for the terminal. The app injects a
// glamour renderer; tests can pass the identity function.
type Markdown func(string) string

// RenderTurns renders the conversation oldest-first. The store keeps turns
// newest-first, so iteration runs backwards.
func RenderTurns(turns []models.Turn, markdown Markdown) string {
	var b strings.Builder

	userStyle := styles.UserStyle()
	assistantStyle := styles.AssistantStyle()
	chipStyle := styles.SourceChipStyle()

	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		b.WriteString(userStyle.Render("Tú: "+turn.Query) + "\n")
		b.WriteString(assistantStyle.Render(strings.TrimRight(markdown(turn.Response), "\n")) + "\n")
		if chip := renderChip(turn); chip != "" {
			b.WriteString(chipStyle.Render(chip) + "\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

func renderChip(turn models.Turn) string {
	parts := make([]string, 0, 3)
	if turn.Source != "" && turn.Source != models.SourceUnknown {
		parts = append(parts, sourceLabel(turn.Source))
	}
	if turn.Confidence != nil {
		parts = append(parts, fmt.Sprintf("confianza %.0f%%", *turn.Confidence*100))
	}
	switch turn.Feedback {
	case 1:
		parts = append(parts, "👍")
	case -1:
		parts = append(parts, "👎")
	}
	return strings.Join(parts, " · ")
}

func sourceLabel(source models.Source) string {
	switch source {
	case models.SourceWeb:
		return "fuente: web"
	case models.SourceUser:
		return "fuente: usuario"
	case models.SourceSystem:
		return "fuente: sistema"
	default:
		return ""
	}
}

// RenderNotices renders the program banner lines shown above the history.
func RenderNotices(notices []string) string {
	var b strings.Builder
	noticeStyle := styles.NoticeStyle()
	for _, notice := range notices {
		if notice == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(noticeStyle.Render(notice) + "\n")
	}
	return b.String()
}
