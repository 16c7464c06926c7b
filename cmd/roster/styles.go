package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const appName = "roster"

// ASCII art logo lines for roster
var logoLines = []string{
	"█▀▀▄ ▄▀▀▄ ▄▀▀▀ ▀█▀ █▀▀▀ █▀▀▄",
	"█▄▄▀ █  █ ▀▀▀▄  █  █▀▀  █▄▄▀",
	"▀  ▀  ▀▀  ▀▀▀   ▀  ▀▀▀▀ ▀  ▀",
}

// Banner gradient colors
var bannerColors = []lipgloss.Color{
	lipgloss.Color("#FF6B6B"),
	lipgloss.Color("#FFA86B"),
	lipgloss.Color("#95E1D3"),
	lipgloss.Color("#4ECDC4"),
}

var (
	primaryColor   = lipgloss.Color("#FF6B6B")
	secondaryColor = lipgloss.Color("#4ECDC4")
	accentColor    = lipgloss.Color("#95E1D3")
	mutedColor     = lipgloss.Color("#94A3B8")
	warnColor      = lipgloss.Color("#FFE66D")
	errorColor     = lipgloss.Color("#EF4444")
	successColor   = lipgloss.Color("#10B981")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(12)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	tagStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor)

	warnStyle = lipgloss.NewStyle().
			Foreground(warnColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)
)

// showBanner prints the serve banner with the listen address.
func showBanner(version, addr string) {
	var coloredLines []string
	for i, line := range logoLines {
		style := lipgloss.NewStyle().
			Foreground(bannerColors[i%len(bannerColors)]).
			Bold(true)
		coloredLines = append(coloredLines, style.Render(line))
	}

	tagline := "member timeline"
	if version != "" && version != "dev" {
		if version[0] != 'v' && version[0] != 'V' {
			version = "v" + version
		}
		tagline = fmt.Sprintf("%s %s", tagline, version)
	}
	coloredLines = append(coloredLines, "", mutedStyle.Render(tagline))

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(secondaryColor).
		Padding(1, 3).
		MarginTop(1)

	banner := lipgloss.JoinVertical(lipgloss.Center, coloredLines...)
	fmt.Println(borderStyle.Render(banner))
	fmt.Println(lipgloss.NewStyle().
		Foreground(primaryColor).
		MarginBottom(1).
		Render("listening on " + addr))
}
