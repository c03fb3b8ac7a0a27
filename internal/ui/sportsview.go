package ui

import (
	"context"
	"encoding/json"
	"garminai/internal/app"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const sportColumns = 5

type sportsKeys struct {
	Select  key.Binding
	Analyze key.Binding
}

var sportsKeyMap = sportsKeys{
	Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Analyze: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", app.LabelAnalyze)),
}

type probeDoneMsg struct {
	status string
}

type analysisDoneMsg struct {
	call app.AnalysisCall
	raw  json.RawMessage
	err  error
}

// SportsModel is the interactive sport client.
type SportsModel struct {
	ctx     context.Context
	session *app.SportSession
	sports  []app.Sport

	cursor   int
	spinner  spinner.Model
	result   viewport.Model
	help     help.Model
	shown    string
	width    int
	quitting bool
}

func NewSportsModel(ctx context.Context, session *app.SportSession) SportsModel {
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(warningStyle))

	return SportsModel{
		ctx:     ctx,
		session: session,
		sports:  app.Sports(),
		spinner: sp,
		result:  viewport.New(80, 12),
		help:    help.New(),
	}
}

func (m SportsModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.probe())
}

func (m SportsModel) probe() tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return probeDoneMsg{status: session.Probe(ctx)}
	}
}

func (m SportsModel) execute(call app.AnalysisCall) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		raw, err := session.Execute(ctx, call)
		return analysisDoneMsg{call: call, raw: raw, err: err}
	}
}

func (m SportsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.result.Width = msg.Width - 4
		if h := msg.Height - 16; h > 3 {
			m.result.Height = h
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case probeDoneMsg:
		return m, nil

	case analysisDoneMsg:
		m.session.CompleteAnalyze(msg.call, msg.raw, msg.err)
		m.syncResult()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.result, cmd = m.result.Update(msg)
	return m, cmd
}

func (m SportsModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, common.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, common.Left):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, common.Right):
		if m.cursor < len(m.sports)-1 {
			m.cursor++
		}
	case key.Matches(msg, common.Up):
		if m.cursor-sportColumns >= 0 {
			m.cursor -= sportColumns
		}
	case key.Matches(msg, common.Down):
		if m.cursor+sportColumns < len(m.sports) {
			m.cursor += sportColumns
		}

	case key.Matches(msg, sportsKeyMap.Select):
		_ = m.session.Select(m.sports[m.cursor].ID)

	case key.Matches(msg, sportsKeyMap.Analyze):
		call, err := m.session.BeginAnalyze()
		if err != nil {
			// The session records a notice for a missing selection; busy is a no-op.
			return m, nil
		}
		return m, m.execute(call)

	default:
		var cmd tea.Cmd
		m.result, cmd = m.result.Update(msg)
		return m, cmd
	}

	return m, nil
}

// syncResult refreshes the viewport when the stored result changed.
func (m *SportsModel) syncResult() {
	text := m.session.Snapshot().ResultText
	if text == m.shown {
		return
	}
	m.shown = text
	m.result.SetContent(text)
	m.result.GotoTop()
}

func (m SportsModel) View() string {
	if m.quitting {
		return ""
	}

	snap := m.session.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render("Garmin AI 運動分析"))
	b.WriteString("  ")
	b.WriteString(statusStyle(snap.Status).Render("● " + snap.Status))
	b.WriteString("\n\n")

	b.WriteString(m.renderGrid(snap.Selected))
	b.WriteString("\n\n")

	if snap.CanAnalyze {
		b.WriteString(buttonStyle.Render(snap.ButtonLabel))
	} else {
		b.WriteString(disabledButtonStyle.Render(snap.ButtonLabel))
	}
	if snap.Busy {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n")

	if notice := renderNotice(snap.Notice); notice != "" {
		b.WriteString(notice + "\n")
	}

	if snap.ResultText != "" {
		b.WriteString("\n")
		b.WriteString(paneStyle.Render(m.result.View()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{
		common.Left, common.Right, sportsKeyMap.Select, sportsKeyMap.Analyze, common.Quit,
	}))
	return b.String()
}

func (m SportsModel) renderGrid(selected string) string {
	var rows []string
	var row []string

	for i, s := range m.sports {
		style := cellStyle
		switch {
		case s.ID == selected:
			style = selectedCellStyle
		case i == m.cursor:
			style = cursorCellStyle
		}
		row = append(row, style.Render(s.Icon+" "+s.Name))

		if len(row) == sportColumns {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Cursor returns the index of the highlighted sport.
func (m SportsModel) Cursor() int {
	return m.cursor
}
