// Package styles holds the lipgloss styles shared by the run report, the
// streaming output prefixes and the live progress view.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on dark terminals
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	BlueColor      = lipgloss.Color("#60A5FA")
	PinkColor      = lipgloss.Color("#F472B6")
	OrangeColor    = lipgloss.Color("#FB923C")
	YellowColor    = lipgloss.Color("#FBBF24")
	CyanColor      = lipgloss.Color("#22D3EE")

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)

	// Package status colors
	StatusPending   = MutedColor
	StatusRunning   = BlueColor
	StatusSucceeded = SecondaryColor
	StatusFailed    = ErrorColor
	StatusSkipped   = WarningColor

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	// Error message
	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// Success message
	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	// Warning message
	WarningMsg = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	// Captured output attached to a failure
	OutputBlock = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(MutedColor).
			PaddingLeft(1)
)

// prefixColors is the rotation used for streaming output prefixes, so that
// interleaved lines from neighbouring packages are easy to tell apart.
var prefixColors = []lipgloss.Color{
	CyanColor,
	SecondaryColor,
	YellowColor,
	BlueColor,
	PinkColor,
	OrangeColor,
	PrimaryColor,
}

// PrefixStyle returns the prefix style for the i-th package of a run.
func PrefixStyle(i int) lipgloss.Style {
	if i < 0 {
		i = -i
	}
	return lipgloss.NewStyle().Foreground(prefixColors[i%len(prefixColors)])
}

// StatusColor returns the color for a package status name.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "pending":
		return StatusPending
	case "running":
		return StatusRunning
	case "succeeded":
		return StatusSucceeded
	case "failed":
		return StatusFailed
	case "skipped":
		return StatusSkipped
	default:
		return MutedColor
	}
}

// StatusIcon returns the glyph shown next to a package with the given status.
func StatusIcon(status string) string {
	switch status {
	case "pending":
		return "○"
	case "running":
		return "●"
	case "succeeded":
		return "✓"
	case "failed":
		return "✗"
	case "skipped":
		return "-"
	default:
		return "●"
	}
}
