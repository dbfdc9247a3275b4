package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/gcscan/internal/gc"
	"github.com/mabhi256/gcscan/internal/heap"
	"github.com/mabhi256/gcscan/utils"
)

// KeyMap defines the key bindings
type KeyMap struct {
	Quit key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

var keys = KeyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

// Model is a read-only dashboard over a completed scan report. Scans are
// not interactive; the model only resizes and quits.
type Model struct {
	report *gc.ScanReport
	snap   *heap.Snapshot

	width  int
	height int
	keys   KeyMap
	help   help.Model
}

func NewModel(report *gc.ScanReport, snap *heap.Snapshot) *Model {
	return &Model{
		report: report,
		snap:   snap,
		width:  80,
		height: 24,
		keys:   keys,
		help:   help.New(),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) View() string {
	leftWidth := m.width/2 - 2
	rightWidth := m.width - leftWidth - 6

	columns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderKindBreakdown(leftWidth),
		"    ",
		m.renderReferences(rightWidth),
	)

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		utils.TitleStyle.Render("Heap scan"),
		"",
		columns,
		"",
		m.renderDeferred(),
	)

	helpBar := utils.HelpBarStyle.Width(m.width).Render(m.help.View(m.keys))
	return content + "\n" + helpBar
}

func (m *Model) renderKindBreakdown(width int) string {
	title := utils.TitleStyle.Render("Objects scanned")

	total := m.report.ObjectsScanned
	barWidth := width - 4
	if barWidth < 10 {
		barWidth = 10
	}

	kinds := []struct {
		name  string
		count uint64
		color lipgloss.Color
	}{
		{"Classes", m.report.Counts.Classes, utils.InfoColor},
		{"Arrays", m.report.Counts.Arrays, utils.WarningColor},
		{"Instances", m.report.Counts.Other, utils.GoodColor},
	}

	rows := []string{title, ""}
	for _, kind := range kinds {
		share := 0.0
		if total > 0 {
			share = float64(kind.count) / float64(total)
		}
		label := fmt.Sprintf("%-10s %d", kind.name, kind.count)
		rows = append(rows, utils.CreateProgressBarWithLabel(share, barWidth, kind.color, label))
	}
	rows = append(rows, "", utils.FormatKeyValue("Total", fmt.Sprintf("%d of %d objects", total, m.snap.Heap.NumObjects()), 8))

	return strings.Join(rows, "\n")
}

func (m *Model) renderReferences(width int) string {
	title := utils.TitleStyle.Render("References")

	rows := []string{
		title,
		"",
		utils.FormatKeyValue("Visited", fmt.Sprintf("%d", m.report.RefsVisited), 10),
		utils.FormatKeyValue("Null", fmt.Sprintf("%d", m.report.NullRefs), 10),
		utils.FormatKeyValue("Static", fmt.Sprintf("%d", m.report.StaticRefs), 10),
		utils.FormatKeyValue("Density", fmt.Sprintf("%.2f refs/object", m.report.ReferenceDensity()), 10),
	}

	return strings.Join(rows, "\n")
}

func (m *Model) renderDeferred() string {
	if len(m.report.Delayed) == 0 {
		return utils.MutedStyle.Render("No reference objects deferred")
	}

	names := make([]string, len(m.report.Delayed))
	for i, id := range m.report.Delayed {
		names[i] = m.snap.NameOf(id)
	}
	return utils.FormatKeyValue("Deferred", strings.Join(names, ", "), 10)
}
