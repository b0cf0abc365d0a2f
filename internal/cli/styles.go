package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/triggerpoints/internal/integration/debug"
)

var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

const (
	symbolOK    = "✓"
	symbolError = "✗"
)

func renderOK(msg string) string {
	return styleOK.Render(symbolOK) + " " + msg
}

func renderError(msg string) string {
	return styleError.Render(symbolError) + " " + msg
}

// modeGlyph mirrors the gutter glyphs: filled for sources, hollow for
// dormant targets, filled diamond once triggered.
func modeGlyph(m debug.Mode) string {
	switch m {
	case debug.ModeTriggerAndBreak:
		return "●"
	case debug.ModeTriggerAndContinue:
		return "▶"
	case debug.ModeNotTriggered:
		return "◇"
	case debug.ModeTriggered:
		return "◆"
	default:
		return "?"
	}
}

// swatchStyle colours text with the palette entry for c, or mutes it when c
// is not in the palette.
func swatchStyle(p *debug.Palette, c debug.Color) lipgloss.Style {
	s, ok := p.Lookup(c)
	if !ok {
		return styleMuted
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(s.Hex))
}

// renderBreakpoint formats one record as a status line.
func renderBreakpoint(p *debug.Palette, s debug.Snapshot) string {
	glyph := swatchStyle(p, s.Color).Render(modeGlyph(s.Mode))
	line := fmt.Sprintf("%s %-28s %-22s %s", glyph, s.Location, s.Mode, s.Color)
	if !s.Valid {
		line += " " + styleError.Render("(unresolved)")
	}
	return line
}
