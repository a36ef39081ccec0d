// internal/tui/app.go
//
// This is the terminal front end for airway. It uses bubbletea, which follows
// The Elm Architecture:
//
// 1. Model: the App, holding the session and the widgets for the current step
// 2. Update: applies key presses and stream messages to the model
// 3. View: renders the model to a string
//
// All navigation goes through the session's Navigator, so the terminal and
// the HTTP boundary enforce the same step graph.

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/airway/internal/chat"
	"github.com/kingrea/airway/internal/logbook"
	"github.com/kingrea/airway/internal/navigation"
	"github.com/kingrea/airway/internal/record"
	"github.com/kingrea/airway/internal/session"
	"github.com/kingrea/airway/internal/steps"
)

const logPanelLines = 6

// Asker streams a reply to one user turn.
type Asker interface {
	Ask(ctx context.Context, conv *chat.Conversation, text string, onChunk func(string)) error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogbook records navigation and chat events to lb and shows its tail.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithAssistant enables the chat overlay.
func WithAssistant(asker Asker) AppOption {
	return func(a *App) {
		a.assistant = asker
	}
}

// WithUnchecked lets the session move to any step, skipping graph checks.
func WithUnchecked() AppOption {
	return func(a *App) {
		a.unchecked = true
	}
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	session   *session.Session
	logbook   *logbook.Logbook
	assistant Asker
	unchecked bool

	// view is re-derived after every change to the session.
	view session.View
	// shown is the step the widgets below were built for.
	shown steps.StepID

	choices  list.Model
	inputs   []textinput.Model
	focus    int
	multi    []steps.Option
	picked   map[string]bool
	cursor   int
	formErrs []string

	chat *chatOverlay

	statusMsg string
	width     int
	height    int
}

// optionItem implements list.Item for choice options.
type optionItem struct {
	opt steps.Option
}

func (i optionItem) Title() string       { return i.opt.Label }
func (i optionItem) Description() string { return "" }
func (i optionItem) FilterValue() string { return i.opt.Label }

// NewApp starts a session on catalog. A nil catalog selects the embedded one.
func NewApp(catalog *steps.Catalog, opts ...AppOption) *App {
	a := &App{}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	navOpts := []navigation.Option{
		navigation.WithLogbook(a.logbook),
		navigation.WithBeforeStep(a.beforeStep),
	}
	if a.unchecked {
		navOpts = append(navOpts, navigation.WithUnchecked())
	}
	if catalog == nil {
		catalog = steps.Default()
	}
	a.session = session.New(catalog, navOpts...)

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	a.choices = list.New(nil, delegate, 0, 0)
	a.choices.SetShowStatusBar(false)
	a.choices.SetFilteringEnabled(false)
	a.choices.SetShowHelp(false)

	a.chat = newChatOverlay()
	a.refresh()
	a.logInfo("Session %s opened at %s", a.session.ID, a.view.Current)
	return a
}

// Session exposes the underlying triage session.
func (a *App) Session() *session.Session {
	return a.session
}

// beforeStep runs inside the navigator before the step changes. It must not
// call back into the navigator.
func (a *App) beforeStep(from, to steps.StepID) {
	if a.chat.open {
		a.chat.close()
	}
	a.formErrs = nil
	a.logInfo("Step · %s → %s", from, to)
}

func (a *App) logInfo(format string, args ...any) {
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	a.logbook.Warn(format, args...)
}

// refresh re-derives the view and rebuilds the widgets when the step changed.
func (a *App) refresh() {
	a.view = a.session.View()
	if a.view.Current != a.shown {
		a.loadStep()
		a.shown = a.view.Current
	}
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.choices.SetSize(max(20, msg.Width-44), max(6, msg.Height-18))
		return a, nil

	case chatChunkMsg, chatDoneMsg:
		return a, a.chat.handle(msg, a)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.chat.open {
			return a, a.chat.handleKey(msg, a)
		}
		if cmd, handled := a.handleGlobalKey(msg); handled {
			return a, cmd
		}
		return a, a.handleStepKey(msg)
	}
	return a, nil
}

// handleGlobalKey processes the keys that work on every step. Letters are
// left to the form inputs while a form is focused.
func (a *App) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	typing := a.view.Step.Kind == steps.KindForm
	switch key := msg.String(); {
	case key == "ctrl+b" || (!typing && (key == "b" || key == "esc")):
		a.goBack()
		return nil, true
	case key == "ctrl+r" || (!typing && key == "r"):
		a.restart()
		return nil, true
	case key == "ctrl+t" || (!typing && key == "c"):
		return a.openChat(), true
	case !typing && key == "q":
		a.logInfo("Session %s closed", a.session.ID)
		return tea.Quit, true
	}
	return nil, false
}

func (a *App) goBack() {
	if !a.session.Navigator().GoBack() {
		a.statusMsg = "Already at the first step"
		return
	}
	a.chat.close()
	a.statusMsg = ""
	a.logInfo("Step · back to %s", a.session.Navigator().Current())
	a.refresh()
}

func (a *App) restart() {
	a.chat.close()
	a.session.Navigator().Reset()
	a.statusMsg = "Started a new assessment"
	a.logInfo("Session %s reset", a.session.ID)
	a.shown = ""
	a.refresh()
}

// advance moves to target with patch, or to the first legal successor when
// target is empty. A patch with nowhere to go is still kept on the record.
func (a *App) advance(target steps.StepID, patch *record.Patch) {
	nav := a.session.Navigator()
	if target == "" {
		candidate := nav.Record()
		if patch != nil {
			candidate = record.Merge(candidate, *patch)
		}
		next, ok := nav.Catalog().Resolve(nav.Current(), candidate)
		if !ok {
			if patch != nil && !patch.Empty() {
				if _, err := nav.Apply(*patch); err != nil {
					a.statusMsg = err.Error()
					return
				}
			}
			a.statusMsg = a.deadEndHint()
			a.refresh()
			return
		}
		target = next
	}
	if err := nav.NavigateTo(target, patch); err != nil {
		a.statusMsg = err.Error()
		a.logWarn("Navigation to %s failed: %v", target, err)
		return
	}
	a.statusMsg = ""
	a.refresh()
}

func (a *App) deadEndHint() string {
	step := a.view.Step
	switch step.Kind {
	case steps.KindInfo:
		return "End of this pathway · b → back    r → restart"
	case steps.KindForm:
		return "Answer every question to continue"
	default:
		return "Make a selection to continue"
	}
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	rightWidth := max(32, width/3)
	leftWidth := width - rightWidth - 4
	if leftWidth < 40 {
		leftWidth = width - 4
		rightWidth = 0
	}

	var content string
	if a.chat.open {
		content = a.chat.view(leftWidth - 4)
	} else {
		content = a.renderStep(leftWidth - 4)
	}
	return a.renderBoard(content, leftWidth, rightWidth)
}

func (a *App) renderBoard(mainContent string, leftWidth, rightWidth int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ AIRWAY")
	leftBox := panelStyle.
		Width(max(20, leftWidth)).
		Render(mainContent)
	body := leftBox
	if rightWidth > 0 {
		rightBox := panelStyle.
			Width(max(20, rightWidth)).
			Render(a.renderRecordPanel(rightWidth - 4))
		body = lipgloss.JoinHorizontal(lipgloss.Top, leftBox, rightBox)
	}
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, a.renderFooter())
	return strings.Join(sections, "\n")
}

func (a *App) renderFooter() string {
	keys := "b → back    r → restart    q → quit"
	if a.view.Step.Kind == steps.KindForm {
		keys = "ctrl+b → back    ctrl+r → restart    ctrl+c → quit"
	}
	if a.assistant != nil {
		keys += "    c/ctrl+t → ask the assistant"
	}
	lines := []string{hintStyle.Render(keys)}
	if a.statusMsg != "" {
		lines = append(lines, statusStyle.Render(a.statusMsg))
	}
	return lipgloss.NewStyle().MarginTop(1).Render(strings.Join(lines, "\n"))
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := titleStyle.Render(fmt.Sprintf("LOG · %s (%d)", fileName, total))
	body := detailTextStyle.Render(strings.Join(lines, "\n"))
	return panelStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}

// renderRecordPanel summarises what the session knows so far.
func (a *App) renderRecordPanel(width int) string {
	rec := a.view.Record
	lines := []string{titleStyle.Render("Patient record")}
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, value))
		}
	}
	if rec.AgeGroup != nil {
		add("Age group", titleCase(string(*rec.AgeGroup)))
	}
	if rec.DiagnosisConfirmed != nil {
		add("Diagnosis confirmed", yesNo(*rec.DiagnosisConfirmed))
	}
	if rec.CurrentStep != nil {
		add("Treatment step", fmt.Sprintf("%d", *rec.CurrentStep))
	}
	if rec.Pathway != nil {
		add("Track", trackLabel(*rec.Pathway))
	}
	if a.view.Control != nil {
		add("Control", a.view.Control.Label)
	}
	if a.view.Risk != nil {
		add("Risk", fmt.Sprintf("%s (%d)", a.view.Risk.Label, a.view.Risk.Score))
	}
	if rec.Severity != nil {
		add("Flare-up", humanize(string(*rec.Severity)))
	}
	if len(lines) == 1 {
		lines = append(lines, detailTextStyle.Render("Nothing recorded yet."))
	}

	trail := make([]string, 0, len(a.view.History))
	for _, id := range a.view.History {
		trail = append(trail, humanize(string(id)))
	}
	lines = append(lines, "", titleStyle.Render("Path"), detailTextStyle.Render(strings.Join(trail, " → ")))
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func trackLabel(p record.Pathway) string {
	switch p {
	case record.Pathway1:
		return "Track 1 (ICS-formoterol reliever)"
	case record.Pathway2:
		return "Track 2 (SABA reliever)"
	}
	return string(p)
}

func titleCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	lower := strings.ToLower(value)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// humanize turns ids such as "severe-phenotype" or "mildModerate" into words.
func humanize(value string) string {
	var b strings.Builder
	for i, r := range value {
		switch {
		case r == '-' || r == '_':
			b.WriteRune(' ')
		case i > 0 && r >= 'A' && r <= 'Z':
			b.WriteRune(' ')
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return titleCase(b.String())
}
