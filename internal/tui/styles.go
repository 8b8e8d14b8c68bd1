package tui

import "github.com/charmbracelet/lipgloss"

// Palette is one color theme for the viewer.
type Palette struct {
	Name     string
	Bg       lipgloss.Color
	Fg       lipgloss.Color
	HeaderBg lipgloss.Color
	HeaderFg lipgloss.Color
	FooterBg lipgloss.Color
	FooterFg lipgloss.Color
}

var (
	Dark = Palette{
		Name: "dark", Bg: "#000000", Fg: "#ffffff",
		HeaderBg: "#333333", HeaderFg: "#ffffff",
		FooterBg: "#02539c", FooterFg: "#ffffff",
	}
	Light = Palette{
		Name: "light", Bg: "#ffffff", Fg: "#000000",
		HeaderBg: "#e0e0e0", HeaderFg: "#000000",
		FooterBg: "#02539c", FooterFg: "#ffffff",
	}
)

// PaletteFor returns the named palette, dark when unknown.
func PaletteFor(name string) Palette {
	if name == Light.Name {
		return Light
	}
	return Dark
}

// Styles are the lipgloss styles derived from a Palette.
type Styles struct {
	Body   lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Result lipgloss.Style
	Footer lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style
	Border lipgloss.Style
}

// Cell widths in terminal columns; the first column holds names.
const (
	firstColumnWidth = 18
	columnWidth      = 12
)

func newStyles(p Palette) Styles {
	cell := lipgloss.NewStyle().Foreground(p.Fg).Background(p.Bg).Padding(0, 1)
	return Styles{
		Body:   lipgloss.NewStyle().Foreground(p.Fg).Background(p.Bg),
		Header: lipgloss.NewStyle().Foreground(p.HeaderFg).Background(p.HeaderBg).Bold(true).Padding(0, 1),
		Cell:   cell,
		Result: cell.Bold(true),
		Footer: lipgloss.NewStyle().Foreground(p.FooterFg).Background(p.FooterBg).Padding(0, 1),
		Status: lipgloss.NewStyle().Foreground(p.Fg).Faint(true),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("#c0392b")).Bold(true),
		Border: lipgloss.NewStyle().Foreground(p.HeaderBg),
	}
}
