package main

import "github.com/charmbracelet/lipgloss"

// Colors used by the frame printer.
var (
	colorBulletin = lipgloss.Color("78")  // Green
	colorUpdate   = lipgloss.Color("81")  // Cyan
	colorFocal    = lipgloss.Color("212") // Pink
	colorControl  = lipgloss.Color("62")  // Purple
	colorError    = lipgloss.Color("203") // Red
	colorMuted    = lipgloss.Color("241") // Gray
)

// Title style for the connect banner.
var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorControl)

// KindHeader styles the frame-kind line printed above each frame.
var kindHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Padding(0, 1)

// Hint style for the command listing and other quiet output.
var hintStyle = lipgloss.NewStyle().
	Foreground(colorMuted)

// ErrorText style for local errors such as a failed send.
var errorTextStyle = lipgloss.NewStyle().
	Foreground(colorError)

// kindColor maps a frame kind to its header color. Bulletin kinds get
// their own colors so a replay stream is scannable at a glance.
func kindColor(kind string) lipgloss.Color {
	switch kind {
	case "add_event":
		return colorBulletin
	case "update_location":
		return colorUpdate
	case "update_focal":
		return colorFocal
	case "error":
		return colorError
	default:
		return colorControl
	}
}
