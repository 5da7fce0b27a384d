package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	monitorDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	monitorActiveStyle = lipgloss.NewStyle().Foreground(colorCyan)
	monitorDoneStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	monitorErrStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

// channelRow is the monitor's view of one channel.
type channelRow struct {
	id     int64
	kind   string
	chunks int
	status string
}

// tailModel is the bubbletea model for the live channel monitor.
type tailModel struct {
	events <-chan tailEvent

	order    []int64
	channels map[int64]*channelRow
	parts    int
	chunks   int
	finished bool
	err      error
}

func newTailModel(events <-chan tailEvent) tailModel {
	return tailModel{
		events:   events,
		channels: map[int64]*channelRow{},
	}
}

// eventMsg wraps one stream event; streamDoneMsg marks the end.
type (
	eventMsg      tailEvent
	streamDoneMsg struct{}
)

// waitForEvent bridges the reader goroutine into bubbletea's message loop.
func waitForEvent(events <-chan tailEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamDoneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m tailModel) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m tailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case streamDoneMsg:
		m.finished = true
		return m, nil
	case eventMsg:
		m.apply(tailEvent(msg))
		if m.err != nil {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)
	}
	return m, nil
}

func (m *tailModel) apply(ev tailEvent) {
	switch {
	case ev.err != nil:
		m.err = ev.err
	case ev.head:
		m.parts = ev.parts
	default:
		m.chunks++
		row, ok := m.channels[ev.channel]
		if !ok {
			row = &channelRow{id: ev.channel, kind: ev.kind, status: "open"}
			m.channels[ev.channel] = row
			m.order = append(m.order, ev.channel)
		}
		row.chunks++
		if ev.terminal {
			row.status = ev.status
		}
	}
}

func (m tailModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Stream Monitor"))
	b.WriteString("\n")
	b.WriteString(monitorDimStyle.Render("q quit"))
	b.WriteString("\n\n")

	rows := [][]string{}
	for _, id := range m.order {
		row := m.channels[id]
		rows = append(rows, []string{
			fmt.Sprintf("%d", row.id),
			row.kind,
			fmt.Sprintf("%d", row.chunks),
			row.status,
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Channel", "Kind", "Chunks", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row >= len(m.order) {
				return lipgloss.NewStyle()
			}
			switch m.channels[m.order[row]].status {
			case "open":
				return monitorActiveStyle
			case "rejected", "error":
				return monitorErrStyle
			default:
				return monitorDoneStyle
			}
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")

	summary := fmt.Sprintf("  head: %d parts · chunks: %d", m.parts, m.chunks)
	if m.finished {
		summary += " · " + monitorDoneStyle.Render("stream ended")
	}
	b.WriteString(monitorDimStyle.Render(summary))
	b.WriteString("\n")

	return b.String()
}
