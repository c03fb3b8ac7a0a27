package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"garminai/clients/assistantapi"
	"garminai/clients/updates"
	"garminai/internal/app"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	themes    = []string{"light", "dark"}
	languages = []string{"zh-TW", "en"}
)

type activityKeys struct {
	Open     key.Binding
	Insight  key.Binding
	Refresh  key.Binding
	Theme    key.Binding
	Language key.Binding
	Save     key.Binding
}

var activityKeyMap = activityKeys{
	Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Insight:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "insight")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Theme:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
	Language: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "language")),
	Save:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save prefs")),
}

type refreshDoneMsg struct {
	call app.RefreshCall
	list []assistantapi.Activity
	err  error
}

type detailDoneMsg struct {
	call app.DetailCall
	raw  json.RawMessage
	err  error
}

type insightDoneMsg struct {
	call    app.InsightCall
	insight *assistantapi.Insight
	err     error
}

type prefsSavedMsg struct{}

// PushMsg carries a push channel update that has already been applied to the
// board; the model only re-renders.
type PushMsg struct {
	Update updates.Update
}

// ActivitiesModel is the interactive activity client.
type ActivitiesModel struct {
	ctx         context.Context
	board       *app.ActivityBoard
	insightType string

	cursor   int
	inFlight int
	theme    int
	language int

	spinner  spinner.Model
	pane     viewport.Model
	help     help.Model
	shown    string
	quitting bool
}

func NewActivitiesModel(ctx context.Context, board *app.ActivityBoard, insightType string) ActivitiesModel {
	return ActivitiesModel{
		ctx:         ctx,
		board:       board,
		insightType: insightType,
		spinner:     spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(warningStyle)),
		pane:        viewport.New(80, 10),
		help:        help.New(),
	}
}

func (m ActivitiesModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh())
}

func (m ActivitiesModel) refresh() tea.Cmd {
	board, ctx := m.board, m.ctx
	call := board.BeginRefresh()
	return func() tea.Msg {
		list, err := board.ExecuteRefresh(ctx, call)
		return refreshDoneMsg{call: call, list: list, err: err}
	}
}

func (m ActivitiesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.pane.Width = msg.Width - 4
		if h := msg.Height - 14; h > 3 {
			m.pane.Height = h / 2
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case refreshDoneMsg:
		m.board.CompleteRefresh(msg.call, msg.list, msg.err)
		if n := len(m.board.Activities()); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		return m, nil

	case detailDoneMsg:
		m.board.CompleteDetail(msg.call, msg.raw, msg.err)
		return m, nil

	case insightDoneMsg:
		m.inFlight--
		m.board.CompleteInsight(msg.call, msg.insight, msg.err)
		m.syncPane()
		return m, nil

	case prefsSavedMsg:
		return m, nil

	case PushMsg:
		if n := len(m.board.Activities()); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		m.syncPane()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.pane, cmd = m.pane.Update(msg)
	return m, cmd
}

func (m ActivitiesModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	activities := m.board.Activities()

	switch {
	case key.Matches(msg, common.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, common.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, common.Down):
		if m.cursor < len(activities)-1 {
			m.cursor++
		}

	case key.Matches(msg, activityKeyMap.Open):
		if m.cursor >= len(activities) {
			return m, nil
		}
		call, err := m.board.BeginDetail(activities[m.cursor].ID)
		if err != nil {
			return m, nil
		}
		board, ctx := m.board, m.ctx
		return m, func() tea.Msg {
			raw, err := board.ExecuteDetail(ctx, call)
			return detailDoneMsg{call: call, raw: raw, err: err}
		}

	case key.Matches(msg, activityKeyMap.Insight):
		call, err := m.board.BeginInsight(m.insightType)
		if err != nil {
			return m, nil
		}
		m.inFlight++
		board, ctx := m.board, m.ctx
		return m, func() tea.Msg {
			insight, err := board.ExecuteInsight(ctx, call)
			return insightDoneMsg{call: call, insight: insight, err: err}
		}

	case key.Matches(msg, activityKeyMap.Refresh):
		return m, m.refresh()

	case key.Matches(msg, activityKeyMap.Theme):
		m.theme = (m.theme + 1) % len(themes)
	case key.Matches(msg, activityKeyMap.Language):
		m.language = (m.language + 1) % len(languages)

	case key.Matches(msg, activityKeyMap.Save):
		board, ctx := m.board, m.ctx
		prefs := m.Preferences()
		return m, func() tea.Msg {
			board.SavePreferences(ctx, prefs)
			return prefsSavedMsg{}
		}

	default:
		var cmd tea.Cmd
		m.pane, cmd = m.pane.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Preferences returns the preferences currently chosen in the form.
func (m ActivitiesModel) Preferences() assistantapi.Preferences {
	return assistantapi.Preferences{
		Theme:    themes[m.theme],
		Language: languages[m.language],
	}
}

func (m *ActivitiesModel) syncPane() {
	snap := m.board.Snapshot()
	text := renderPane(snap.Pane)
	if text == m.shown {
		return
	}
	m.shown = text
	m.pane.SetContent(text)
	m.pane.GotoTop()
}

func renderPane(p app.Pane) string {
	var b strings.Builder
	b.WriteString(p.Render())
	if len(p.Suggestions) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("建議:\n")
		for _, s := range p.Suggestions {
			b.WriteString("• " + s + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m ActivitiesModel) View() string {
	if m.quitting {
		return ""
	}

	snap := m.board.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render("Garmin AI 活動"))
	if m.inFlight > 0 {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	switch {
	case !snap.Loaded && len(snap.Activities) == 0:
		b.WriteString(mutedStyle.Render("載入中...") + "\n")
	case len(snap.Activities) == 0:
		b.WriteString(mutedStyle.Render("沒有活動") + "\n")
	}
	for i, a := range snap.Activities {
		line := fmt.Sprintf("%s  %s  %s",
			app.SanitizeText(a.Date), app.SanitizeText(a.Title), mutedStyle.Render(app.SanitizeText(a.Type)))
		switch {
		case a.ID == snap.Selected:
			line = selectedRowStyle.Render("● " + line)
		case i == m.cursor:
			line = cursorRowStyle.Render("› " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if snap.Detail != "" {
		b.WriteString("\n" + mutedStyle.Render(snap.Detail) + "\n")
	}

	if snap.HasPane {
		b.WriteString("\n" + paneStyle.Render(m.pane.View()) + "\n")
	}

	if notice := renderNotice(snap.Notice); notice != "" {
		b.WriteString("\n" + notice + "\n")
	}

	prefs := m.Preferences()
	b.WriteString("\n" + mutedStyle.Render(fmt.Sprintf("theme: %s  language: %s", prefs.Theme, prefs.Language)) + "\n")

	b.WriteString(m.help.ShortHelpView([]key.Binding{
		common.Up, common.Down, activityKeyMap.Open, activityKeyMap.Insight,
		activityKeyMap.Refresh, activityKeyMap.Theme, activityKeyMap.Language,
		activityKeyMap.Save, common.Quit,
	}))
	return b.String()
}

// Cursor returns the index of the highlighted activity.
func (m ActivitiesModel) Cursor() int {
	return m.cursor
}
