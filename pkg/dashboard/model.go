/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/carverauto/hostmon/pkg/models"
)

const (
	logLines       = 8
	sparkWidth     = 40
	minTableHeight = 5
	chromeHeight   = 6 + logLines + 4 // title, panes, help
)

// StreamStateMsg reports the stream client's connection state.
type StreamStateMsg struct {
	Connected bool
	Err       error
}

// Model is the Bubble Tea model for the host dashboard.
type Model struct {
	state     *State
	table     table.Model
	source    string
	connected bool
	lastErr   error
	width     int
	height    int
	quitting  bool
}

func NewModel(source string) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Host", Width: 20},
			{Title: "OS", Width: 26},
			{Title: "Cores", Width: 5},
			{Title: "CPU %", Width: 7},
			{Title: "Mem %", Width: 7},
			{Title: "Status", Width: 10},
			{Title: "Captured", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(minTableHeight),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(draculaPurple)).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color(draculaForeground)).
		Background(lipgloss.Color(draculaComment))
	t.SetStyles(styles)

	return Model{
		state:  NewState(models.DefaultHistorySize),
		table:  t,
		source: source,
	}
}

func (Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetHeight(max(msg.Height-chromeHeight, minTableHeight))

	case models.StreamMessage:
		m.applyStream(msg)
		m.refreshRows()

		return m, nil

	case StreamStateMsg:
		m.connected = msg.Connected
		m.lastErr = msg.Err

		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m Model) applyStream(msg models.StreamMessage) {
	switch msg.Type {
	case models.StreamSnapshot:
		m.state.ApplySnapshot(msg.Hosts, msg.Timestamp)
	case models.StreamEvent:
		if msg.Event != nil {
			m.state.ApplyEvent(*msg.Event)
		}
	}
}

func (m *Model) refreshRows() {
	hosts := m.state.Hosts()
	rows := make([]table.Row, 0, len(hosts))

	for _, host := range hosts {
		st, _ := m.state.Host(host)
		rec := st.Latest

		rows = append(rows, table.Row{
			host,
			rec.OSDescription,
			fmt.Sprintf("%d", rec.CPUCoreCount),
			fmt.Sprintf("%.1f", rec.CPUUsagePercent),
			fmt.Sprintf("%.1f", rec.MemoryUsagePercent()),
			rec.Status,
			rec.CapturedAt.Local().Format("15:04:05"),
		})
	}

	m.table.SetRows(rows)

	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

// SelectedHost returns the host under the cursor, or "" when empty.
func (m Model) SelectedHost() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}

	return row[0]
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.header(),
		paneStyle.Render(m.table.View()),
		paneStyle.Render(m.detail()),
		paneStyle.Render(m.eventLog()),
		helpStyle.Render("↑/↓ select host • q quit"),
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) header() string {
	conn := onlineStyle.Render("● live")
	if !m.connected {
		conn = offlineStyle.Render("○ reconnecting")
		if m.lastErr != nil {
			conn += " " + labelStyle.Render(m.lastErr.Error())
		}
	}

	return fmt.Sprintf("%s  %s  %s %s  %s",
		titleStyle.Render("hostmon"),
		conn,
		labelStyle.Render("hosts:"),
		valueStyle.Render(fmt.Sprintf("%d", m.state.Len())),
		labelStyle.Render(m.source))
}

func (m Model) detail() string {
	host := m.SelectedHost()
	if host == "" {
		return labelStyle.Render("no hosts connected")
	}

	st, ok := m.state.Host(host)
	if !ok {
		return ""
	}

	cpu := st.Latest.CPUUsagePercent
	mem := st.Latest.MemoryUsagePercent()

	return strings.Join([]string{
		valueStyle.Bold(true).Render(host),
		fmt.Sprintf("%s %s %s", labelStyle.Render("CPU"),
			cpuStyle.Render(Sparkline(st.CPUHistory(), sparkWidth)),
			severityStyle(cpu).Render(fmt.Sprintf("%5.1f%%", cpu))),
		fmt.Sprintf("%s %s %s", labelStyle.Render("MEM"),
			memStyle.Render(Sparkline(st.MemoryHistory(), sparkWidth)),
			severityStyle(mem).Render(fmt.Sprintf("%5.1f%%", mem))),
	}, "\n")
}

func (m Model) eventLog() string {
	entries := m.state.Log(logLines)
	if len(entries) == 0 {
		return labelStyle.Render("waiting for events")
	}

	lines := make([]string, 0, len(entries))

	for _, e := range entries {
		marker := labelStyle.Render("·")

		switch {
		case e.Host == "":
		case e.Added:
			marker = addedStyle.Render("+")
		default:
			marker = removedStyle.Render("-")
		}

		line := fmt.Sprintf("%s %s %s", labelStyle.Render(e.At.Local().Format("15:04:05")), marker, e.Message)
		if e.Host != "" {
			line = fmt.Sprintf("%s %s %s %s", labelStyle.Render(e.At.Local().Format("15:04:05")), marker,
				valueStyle.Render(e.Host), e.Message)
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}
