package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed     = lipgloss.Color("#FF4444")
	colorGreen   = lipgloss.Color("#04B575")
	colorYellow  = lipgloss.Color("#FFCC00")
	colorCyan    = lipgloss.Color("#00FFFF")
	colorGray    = lipgloss.Color("#666666")
	colorDimGray = lipgloss.Color("#444444")
	colorWhite   = lipgloss.Color("#FAFAFA")
	colorPurple  = lipgloss.Color("#7D56F4")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Background(colorPurple).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPurple).
			Padding(1, 2)

	questionStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true)

	checkedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	uncheckedStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	recordingStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	// 接近最长录音时间时的计时颜色
	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	activeStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	confirmStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	transcriptStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)
)
