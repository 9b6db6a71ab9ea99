// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/signalbox/pkg/protocol"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusCommandList = iota
	focusByteInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// commandSender writes a command byte to the board
type commandSender interface {
	write(c protocol.Command) error
}

// commandItem is one entry in the command list
type commandItem struct {
	command protocol.Command
}

// Implement list.Item interface
func (c commandItem) Title() string {
	return fmt.Sprintf("%c  %s", byte(c.command), protocol.FormatCommand(c.command))
}
func (c commandItem) Description() string { return describeLEDs(c.command) }
func (c commandItem) FilterValue() string { return protocol.FormatCommand(c.command) }

// pendingCommand is a sent command still waiting for its answer
type pendingCommand struct {
	command protocol.Command
	sentAt  time.Time
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection (for sending commands)
	sender   commandSender
	connInfo string
	timeout  time.Duration

	// Command selection
	commandList list.Model
	byteInput   textinput.Model
	focused     int

	// Exchange tracking
	pending    *pendingCommand
	boardState protocol.State // from the last matching ACK
	lastRTT    time.Duration

	// Monitoring
	stats         *protocol.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlDataMsg struct {
	response  *protocol.Response
	decodeErr error
}

type controlBatchMsg struct {
	messages []controlDataMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(sender commandSender, connInfo string, timeout time.Duration) controlModel {
	ti := textinput.New()
	ti.Placeholder = "0x3F"
	ti.CharLimit = 12
	ti.Width = 12

	items := make([]list.Item, 0, 3)
	for _, c := range protocol.Commands() {
		items = append(items, commandItem{command: c})
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	commandList := list.New(items, delegate, 30, 10)
	commandList.Title = "Commands"
	commandList.SetShowStatusBar(false)
	commandList.SetShowHelp(false)
	commandList.SetFilteringEnabled(false)

	return controlModel{
		sender:        sender,
		connInfo:      connInfo,
		timeout:       timeout,
		commandList:   commandList,
		byteInput:     ti,
		focused:       focusCommandList,
		boardState:    protocol.StateUninitialized,
		stats:         protocol.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.stats.CalculateRates()
		m.checkTimeout(time.Time(msg))
		return m, controlTickCmd()

	case controlBatchMsg:
		for _, data := range msg.messages {
			m.processControlData(data)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.pending = nil
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.boardState = protocol.StateUninitialized
		m.addLogEntry("Reconnected: "+msg.connInfo, false)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focused != focusByteInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		return m.toggleFocus(), nil

	case "enter":
		return m.handleEnter(), nil

	case "a", "b", "n":
		// Shortcuts while the list has focus
		if m.focused == focusCommandList {
			return m.sendCommand(protocol.Command(strings.ToUpper(msg.String())[0])), nil
		}
	}

	var cmd tea.Cmd
	if m.focused == focusByteInput {
		m.byteInput, cmd = m.byteInput.Update(msg)
	} else {
		m.commandList, cmd = m.commandList.Update(msg)
	}
	return m, cmd
}

func (m controlModel) toggleFocus() controlModel {
	if m.focused == focusCommandList {
		m.focused = focusByteInput
		m.byteInput.Focus()
	} else {
		m.focused = focusCommandList
		m.byteInput.Blur()
	}
	return m
}

func (m controlModel) handleEnter() controlModel {
	if m.focused == focusByteInput {
		raw := strings.TrimSpace(m.byteInput.Value())
		if raw == "" {
			raw = m.byteInput.Placeholder
		}
		c, err := parseCommandArg(raw)
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m
		}
		m.byteInput.Reset()
		return m.sendCommand(c)
	}

	item, ok := m.commandList.SelectedItem().(commandItem)
	if !ok {
		return m
	}
	return m.sendCommand(item.command)
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("SIGNALBOX CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | a/b/n=send Enter=send Tab=switch q=quit", connStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (commands) | right panel (exchange)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 20 {
		rightWidth = 20
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focused == focusCommandList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	commandPanel := listStyle.Render(m.commandList.View())

	exchangeStyle := boxStyle.Width(rightWidth)
	if m.focused == focusByteInput {
		exchangeStyle = focusedBoxStyle.Width(rightWidth)
	}
	exchangePanel := exchangeStyle.Render(m.renderExchangePanel(statsLabelStyle, statsValueStyle, headerStyle, warningStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, commandPanel, " ", exchangePanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderExchangePanel(statsLabelStyle, statsValueStyle, headerStyle, warningStyle lipgloss.Style) string {
	var s strings.Builder

	s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Board state:"), statsValueStyle.Render(m.boardState.String())))

	led1, led2 := m.boardState.LEDLevels()
	s.WriteString(fmt.Sprintf("%s LED1 %s, LED2 %s\n", statsLabelStyle.Render("Expected LEDs:"), onOff(led1), onOff(led2)))

	if m.lastRTT > 0 {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Last RTT:"), statsValueStyle.Render(m.lastRTT.Round(time.Millisecond).String())))
	}

	if m.pending != nil {
		s.WriteString(warningStyle.Render(fmt.Sprintf("Waiting for answer to %s...", protocol.FormatByte(byte(m.pending.command)))))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(statsLabelStyle.Render("Raw byte: "))
	if m.focused == focusByteInput {
		s.WriteString(m.byteInput.View())
	} else {
		val := m.byteInput.Value()
		if val == "" {
			val = m.byteInput.Placeholder
		}
		s.WriteString(headerStyle.Render(fmt.Sprintf("[%s]", val)))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	failures := m.stats.Errs + m.stats.Timeouts + m.stats.Mismatches + m.stats.DecodeErrors

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.CommandsSent)),
		statsLabelStyle.Render("ACKs:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Acks)),
		statsLabelStyle.Render("Timeouts:"), func() string {
			if m.stats.Timeouts > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.Timeouts))
			}
			return statsValueStyle.Render("0")
		}(),
		statsLabelStyle.Render("Errors:"), func() string {
			if failures > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", failures))
			}
			return statsValueStyle.Render("0")
		}(),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 8
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}

	startIdx := len(m.errorLog) - logHeight

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				s.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyleLocal.Render("✗ "+entry.message),
				))
			} else {
				s.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processControlData(msg controlDataMsg) {
	if msg.decodeErr != nil {
		m.stats.RecordResponse(0, nil, msg.decodeErr)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		return
	}
	if msg.response == nil {
		return
	}

	resp := msg.response
	if m.pending == nil {
		m.stats.RecordResponse(0, resp, nil)
		m.addLogEntry(fmt.Sprintf("Unsolicited response: %s", resp.Raw), true)
		return
	}

	c := m.pending.command
	m.lastRTT = resp.Timestamp.Sub(m.pending.sentAt)
	m.pending = nil
	m.stats.RecordResponse(c, resp, nil)

	if !resp.Answers(c) {
		m.addLogEntry(fmt.Sprintf("%s answered %s, want %s", protocol.FormatByte(byte(c)), resp.Raw,
			strings.TrimSpace(protocol.ExpectedResponse(c))), true)
		return
	}

	if resp.IsAck() {
		m.boardState, _ = protocol.StateFor(c)
		m.addLogEntry(fmt.Sprintf("%s -> %s (%s)", resp.Raw, m.boardState, m.lastRTT.Round(time.Millisecond)), false)
	} else {
		m.addLogEntry(fmt.Sprintf("%s rejected with %s", protocol.FormatByte(byte(c)), resp.Raw), false)
	}
}

// checkTimeout expires the pending command once its answer is overdue
func (m *controlModel) checkTimeout(now time.Time) {
	if m.pending == nil || now.Sub(m.pending.sentAt) < m.timeout {
		return
	}

	c := m.pending.command
	m.pending = nil
	m.stats.RecordTimeout()

	if s, ok := protocol.StateFor(c); ok && s == m.boardState {
		m.addLogEntry(fmt.Sprintf("No answer to %s: board already holds %s", protocol.FormatByte(byte(c)), s), false)
		return
	}
	m.addLogEntry(fmt.Sprintf("No answer to %s within %s", protocol.FormatByte(byte(c)), m.timeout), true)
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m controlModel) sendCommand(c protocol.Command) controlModel {
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m
	}

	if err := m.sender.write(c); err != nil {
		if errors.Is(err, ErrConnectionClosed) {
			m.addLogEntry("Cannot send command: connection lost", true)
		} else {
			m.addLogEntry(fmt.Sprintf("Failed to send command: %v", err), true)
		}
		return m
	}

	m.stats.RecordSent()
	m.pending = &pendingCommand{command: c, sentAt: time.Now()}
	m.addLogEntry(fmt.Sprintf("Sent %s", describeCommand(c)), false)
	return m
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 8 {
		listHeight = 8
	}
	m.commandList.SetSize(28, listHeight)
}
