// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/signalbox/internal/events"
	"github.com/Thermoquad/signalbox/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Device panel model
type deviceModel struct {
	connInfo      string
	backend       string
	startTime     time.Time
	state         protocol.State
	led1          bool
	led2          bool
	linkUp        bool
	lastInput     string
	stats         *protocol.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

// Messages
type deviceTickMsg time.Time
type deviceTransitionMsg events.TransitionEvent
type deviceTransmitFailureMsg events.TransmitFailureEvent
type deviceLinkMsg events.LinkEvent

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func plural(n uint64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func initialDeviceModel(connInfo, backend string) deviceModel {
	return deviceModel{
		connInfo:      connInfo,
		backend:       backend,
		startTime:     time.Now(),
		state:         protocol.StateUninitialized,
		stats:         protocol.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m deviceModel) Init() tea.Cmd {
	return deviceTickCmd()
}

func deviceTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return deviceTickMsg(t)
	})
}

func (m deviceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case deviceTickMsg:
		m.stats.CalculateRates()
		return m, deviceTickCmd()

	case deviceTransitionMsg:
		m.applyTransition(msg.Transition)

	case deviceTransmitFailureMsg:
		m.stats.RecordTransmitFailure()
		m.addLogEntry(fmt.Sprintf("Transmit failed: %v", msg.Err), true)

	case deviceLinkMsg:
		m.linkUp = msg.Connected
		if msg.Connected {
			m.connInfo = msg.Info
			// The board restarts from reset on every link
			m.state = protocol.StateUninitialized
			m.led1, m.led2 = false, false
			m.addLogEntry("Link up: "+msg.Info, false)
		} else {
			m.addLogEntry("Link closed", true)
		}
	}

	return m, nil
}

func (m *deviceModel) applyTransition(t protocol.Transition) {
	m.stats.Observe(t)
	m.lastInput = protocol.FormatByte(t.Input)

	switch t.Outcome {
	case protocol.OutcomeAccepted:
		m.state = t.To
		m.led1, m.led2 = t.To.LEDLevels()
		m.addLogEntry(fmt.Sprintf("%s %s -> %s, sent %s",
			m.lastInput, t.From, t.To, strings.TrimSpace(t.Response)), false)
	case protocol.OutcomeRejected:
		m.addLogEntry(fmt.Sprintf("%s rejected, sent ERR", m.lastInput), true)
	}
}

func (m *deviceModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// renderLamp draws one LED as a filled or hollow dot
func renderLamp(label string, on bool, color lipgloss.Color) string {
	offStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	if on {
		return lipgloss.NewStyle().Foreground(color).Bold(true).Render("● " + label + " ON ")
	}
	return offStyle.Render("○ " + label + " OFF")
}

func (m deviceModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SIGNALBOX - DEVICE"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | LEDs: %s | r=reset stats | q=quit", m.connInfo, m.backend)))
	s.WriteString("\n\n")

	// Link status
	if m.linkUp {
		s.WriteString(statsValueStyle.Render("✓ Link up"))
	} else {
		s.WriteString(warningStyle.Render("⏳ Link down"))
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("  uptime %s", formatUptime(uint64(time.Since(m.startTime).Milliseconds())))))
	s.WriteString("\n\n")

	// LED panel
	panel := strings.Builder{}
	panel.WriteString(fmt.Sprintf("%s   %s\n\n",
		renderLamp("LED1", m.led1, lipgloss.Color("10")),
		renderLamp("LED2", m.led2, lipgloss.Color("11"))))
	panel.WriteString(fmt.Sprintf("%s %s",
		statsLabelStyle.Render("Held state:"), statsValueStyle.Render(m.state.String())))
	if m.lastInput != "" {
		panel.WriteString(fmt.Sprintf("   %s %s", statsLabelStyle.Render("Last byte:"), m.lastInput))
	}
	s.WriteString(boxStyle.Render(panel.String()))
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Bytes:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.BytesHandled)),
		statsLabelStyle.Render("Accepted:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Accepted)),
		statsLabelStyle.Render("Repeated:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Repeated)),
		statsLabelStyle.Render("Rejected:"), func() string {
			if m.stats.Rejected > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.Rejected))
			}
			return statsValueStyle.Render("0")
		}(),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Responses:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.ResponsesSent)),
		statsLabelStyle.Render("Tx failures:"), func() string {
			if m.stats.TransmitFailures > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.TransmitFailures))
			}
			return statsValueStyle.Render("0")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f bytes/s", m.stats.ByteRate)),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 16 // Reserve space for header, LEDs and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
