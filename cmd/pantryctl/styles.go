package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pantry/internal/colors"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// swatch renders a category name on its own color. Colors that do not
// parse are shown as plain text.
func swatch(c category) string {
	hex := c.Hex
	if hex == "" {
		hex, _ = colors.ToHex(c.Color)
	}
	if hex == "" {
		return c.Name
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(hex)).
		Foreground(lipgloss.Color("0")).
		Padding(0, 1).
		Render(c.Name)
}

func swatches(cats []category) string {
	if len(cats) == 0 {
		return mutedStyle.Render("(none)")
	}
	parts := make([]string, 0, len(cats))
	for _, c := range cats {
		parts = append(parts, swatch(c))
	}
	return strings.Join(parts, " ")
}
