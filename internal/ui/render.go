package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"yaprooms/internal/chat"
	"yaprooms/internal/gossip"
)

const (
	groupWindow = 30 * time.Second
	maxHistory  = 500
)

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("180"))
	roomStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("140")).Bold(true)
	nameStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	joinStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("47"))
	leaveStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	messageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("251"))
	ownBodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("159"))
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	blockStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			PaddingLeft(1)
	borderSystem = lipgloss.Color("140")
	borderOther  = lipgloss.Color("24")
	borderSelf   = lipgloss.Color("39")
)

type block struct {
	key       string
	border    lipgloss.Color
	header    string
	lines     []string
	timestamp time.Time
}

// appendBlock adds blk to history, folding it into the previous block
// when both come from the same source within groupWindow.
func appendBlock(history []block, blk block) []block {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.key == blk.key && blk.timestamp.Sub(last.timestamp) <= groupWindow {
			last.lines = append(last.lines, blk.lines...)
			last.timestamp = blk.timestamp
			history[n-1] = last
			return history
		}
	}
	if len(history) >= maxHistory {
		history = history[len(history)-maxHistory+1:]
	}
	return append(history, blk)
}

func header(at time.Time, label string, style lipgloss.Style) string {
	return timestampStyle.Render("["+at.Format(time.TimeOnly)+"]") + " " + style.Render(label)
}

func styledLines(text string, style lipgloss.Style) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, len(raw))
	for i, line := range raw {
		if line == "" {
			line = " "
		}
		lines[i] = style.Render(line)
	}
	return lines
}

// renderSystem formats a notification that did not come from a room.
func renderSystem(at time.Time, lines []string, isErr bool) block {
	style := systemStyle
	label := "system"
	if isErr {
		style, label = errorStyle, "error"
	}
	return block{
		key:       label,
		border:    borderSystem,
		header:    header(at, label, style),
		lines:     styledLines(strings.Join(lines, "\n"), style),
		timestamp: at,
	}
}

// renderEvent styles a chat event. Events for rooms other than active are
// labelled with their room.
func renderEvent(ev chat.Event, active string) block {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	room := ""
	if ev.Topic != active {
		room = roomStyle.Render("#"+ev.Topic) + " "
	}

	switch ev.Kind {
	case chat.EventMessage:
		border, body := borderOther, messageStyle
		if ev.Self {
			border, body = borderSelf, ownBodyStyle
		}
		text := ev.Text
		if text == "" {
			text = "[empty message]"
		}
		return block{
			key:       "message:" + ev.Topic + ":" + ev.Sender,
			border:    border,
			header:    room + header(at, "@"+ev.Sender, nameStyle),
			lines:     styledLines(text, body),
			timestamp: at,
		}
	case chat.EventPeerRenamed:
		return statusBlock(at, room, fmt.Sprintf("%s is %s", gossip.ShortID(ev.Peer), ev.Sender), joinStyle)
	case chat.EventConnected:
		return statusBlock(at, room, "connected to "+ev.Topic, joinStyle)
	case chat.EventNewTopic:
		text := "new room " + ev.Topic
		if ev.Ticket != "" {
			text += "\nticket: " + ev.Ticket
		}
		return statusBlock(at, room, text, systemStyle)
	case chat.EventTopicClosed:
		return statusBlock(at, room, ev.Topic+" closed", leaveStyle)
	default:
		return statusBlock(at, room, string(ev.Kind), systemStyle)
	}
}

func statusBlock(at time.Time, room, text string, body lipgloss.Style) block {
	return block{
		key:       "status",
		border:    borderSystem,
		header:    room + header(at, "status", systemStyle),
		lines:     styledLines(text, body),
		timestamp: at,
	}
}

func (b block) render() string {
	content := b.header + "\n" + strings.Join(b.lines, "\n")
	return blockStyle.BorderForeground(b.border).Render(content)
}

func renderHistory(history []block) string {
	parts := make([]string, len(history))
	for i, blk := range history {
		parts[i] = blk.render()
	}
	return strings.Join(parts, "\n")
}

func renderPrompt(room, name string) string {
	if room == "" {
		room = "no room"
	}
	return roomStyle.Render("["+room+"]") + " " + promptStyle.Render(name+" ▸")
}
