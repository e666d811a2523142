package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/shazow/simplewifi/internal/config"
)

// signalColor blends between the low and high colors by strength (0-100).
func signalColor(strength uint32, colors config.Colors) lipgloss.Color {
	start, err := colorful.Hex(colors.SignalLow)
	if err != nil {
		start, _ = colorful.Hex(config.Default().Colors.SignalLow)
	}
	end, err := colorful.Hex(colors.SignalHigh)
	if err != nil {
		end, _ = colorful.Hex(config.Default().Colors.SignalHigh)
	}
	p := float64(min(strength, 100)) / 100.0
	return lipgloss.Color(start.BlendRgb(end, p).Hex())
}

// formatSignal renders strength as a colored percentage. Colors are dropped
// when the output is not a terminal.
func formatSignal(strength uint32, colors config.Colors) string {
	return lipgloss.NewStyle().
		Foreground(signalColor(strength, colors)).
		Render(fmt.Sprintf("%3d%%", strength))
}
