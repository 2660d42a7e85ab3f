package welcome

import (
	"charm.land/lipgloss/v2"

	"github.com/ecoloop/ecoloop/internal/ui/theme"
)

// BannerArt is the block-letter logo, 60 columns wide.
const BannerArt = `
 ███████╗ ██████╗ ██████╗ ██╗      ██████╗  ██████╗ ██████╗
 ██╔════╝██╔════╝██╔═══██╗██║     ██╔═══██╗██╔═══██╗██╔══██╗
 █████╗  ██║     ██║   ██║██║     ██║   ██║██║   ██║██████╔╝
 ██╔══╝  ██║     ██║   ██║██║     ██║   ██║██║   ██║██╔═══╝
 ███████╗╚██████╗╚██████╔╝███████╗╚██████╔╝╚██████╔╝██║
 ╚══════╝ ╚═════╝ ╚═════╝ ╚══════╝ ╚═════╝  ╚═════╝ ╚═╝`

const bannerCompact = "E C O L O O P"

// RenderBanner returns the ECOLOOP banner styled in the primary color.
// Uses a compact fallback for terminals narrower than 62 columns.
func RenderBanner(width int) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	if width < 62 {
		return style.Render(bannerCompact)
	}
	return style.Render(BannerArt)
}
