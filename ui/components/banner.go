package components

import (
	"github.com/asistente-voz/vozterm/internal/models"
	"github.com/asistente-voz/vozterm/ui/styles"
)

// RenderBanner draws the connectivity strip. Offline banners stay up until
// the connection returns; restored banners are dismissed on a timer.
func RenderBanner(model models.AppModel) string {
	if model.Banner == "" {
		return ""
	}
	if model.Connectivity == models.ConnectivityDisconnected {
		return styles.BannerOfflineStyle(model.Width).Render(model.Banner) + "\n"
	}
	return styles.BannerOnlineStyle(model.Width).Render(model.Banner) + "\n"
}
