package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/airway/internal/classify"
	"github.com/kingrea/airway/internal/record"
	"github.com/kingrea/airway/internal/steps"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	promptStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	detailTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	goodStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	cautionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	alertStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	cursorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
)

// loadStep rebuilds the widgets for the current step.
func (a *App) loadStep() {
	step := a.view.Step
	a.inputs = nil
	a.focus = 0
	a.multi = nil
	a.picked = nil
	a.cursor = 0
	a.formErrs = nil

	switch step.Kind {
	case steps.KindChoice:
		items := make([]list.Item, len(step.Options))
		for i, opt := range step.Options {
			items[i] = optionItem{opt: opt}
		}
		a.choices.SetItems(items)
		a.choices.Title = step.Title
		a.choices.Select(0)
	case steps.KindForm:
		for i, q := range step.Questions {
			input := textinput.New()
			input.Prompt = "› "
			input.Placeholder = placeholderFor(q.Input)
			input.CharLimit = 12
			input.Width = 16
			input.SetValue(currentValue(a.view.Record, q.Field))
			if i == 0 {
				input.Focus()
			}
			a.inputs = append(a.inputs, input)
		}
	case steps.KindMulti:
		a.multi = multiOptions(step, a.view.Record.AgeGroup)
		a.picked = make(map[string]bool)
		for _, id := range selected(a.view.Record, step.Field) {
			a.picked[id] = true
		}
	}
}

func placeholderFor(input string) string {
	switch input {
	case "yesno":
		return "yes / no"
	case "number":
		return "number"
	}
	return ""
}

// multiOptions lists the choices of a multi step. Risk factor steps take
// them from the age group's risk catalog.
func multiOptions(step steps.Step, age *record.AgeGroup) []steps.Option {
	if step.Source != steps.SourceRiskCatalog {
		return step.Options
	}
	factors := classify.DefaultCatalogs().For(age).Factors()
	out := make([]steps.Option, 0, len(factors))
	for _, f := range factors {
		out = append(out, steps.Option{Label: fmt.Sprintf("%s (+%d)", f.Label, f.Weight), Value: f.ID})
	}
	return out
}

func selected(rec record.Record, field record.Field) []string {
	switch field {
	case record.FieldRiskFactors:
		return rec.RiskFactors
	case record.FieldExacerbationSigns:
		return rec.ExacerbationSigns
	case record.FieldComorbidities:
		return rec.Comorbidities
	}
	return nil
}

// currentValue prefills a form input from the record.
func currentValue(rec record.Record, path string) string {
	section, leaf, _ := strings.Cut(path, ".")
	var v any
	switch record.Field(section) {
	case record.FieldDaytimeSymptoms:
		v = rec.DaytimeSymptoms
	case record.FieldNightWaking:
		v = rec.NightWaking
	case record.FieldRelieverUse:
		v = rec.RelieverUse
	case record.FieldActivityLimitation:
		v = rec.ActivityLimitation
	case record.FieldDemographics:
		d := rec.DemographicsOrZero()
		v = map[string]any{"age": d.Age, "weightKg": d.WeightKg, "smoker": d.Smoker, "adultOnset": d.AdultOnset}[leaf]
	case record.FieldBiomarkers:
		b := rec.BiomarkersOrZero()
		v = map[string]any{"eosinophils": b.Eosinophils, "feno": b.FeNO, "totalIgE": b.TotalIgE, "allergicSensitization": b.AllergicSensitization}[leaf]
	case record.FieldMedications:
		m := rec.MedicationsOrZero()
		v = map[string]any{"highDoseICS": m.HighDoseICS, "maintenanceOCS": m.MaintenanceOCS, "steroidDependent": m.SteroidDependent, "exacerbationsPastYear": m.ExacerbationsPastYear}[leaf]
	}
	switch p := v.(type) {
	case *bool:
		if p != nil {
			if *p {
				return "yes"
			}
			return "no"
		}
	case *int:
		if p != nil {
			return fmt.Sprintf("%d", *p)
		}
	case *float64:
		if p != nil {
			return fmt.Sprintf("%g", *p)
		}
	}
	return ""
}

// handleStepKey routes a key press to the widget of the current step.
func (a *App) handleStepKey(msg tea.KeyMsg) tea.Cmd {
	if a.view.Missing != nil && msg.String() == "enter" {
		a.recoverMissing()
		return nil
	}
	switch a.view.Step.Kind {
	case steps.KindChoice:
		if msg.String() == "enter" {
			a.submitChoice()
			return nil
		}
		var cmd tea.Cmd
		a.choices, cmd = a.choices.Update(msg)
		return cmd
	case steps.KindForm:
		return a.handleFormKey(msg)
	case steps.KindMulti:
		a.handleMultiKey(msg)
	case steps.KindInfo:
		if msg.String() == "enter" {
			a.advance("", nil)
		}
	}
	return nil
}

func (a *App) submitChoice() {
	item, ok := a.choices.SelectedItem().(optionItem)
	if !ok {
		return
	}
	patch, err := a.view.Step.Answer(item.opt.Value)
	if err != nil {
		a.statusMsg = err.Error()
		return
	}
	a.advance(item.opt.Next, &patch)
}

func (a *App) handleFormKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		a.focusInput(a.focus + 1)
		return nil
	case "shift+tab", "up":
		a.focusInput(a.focus - 1)
		return nil
	case "enter":
		if a.focus < len(a.inputs)-1 {
			a.focusInput(a.focus + 1)
			return nil
		}
		a.submitForm()
		return nil
	case "ctrl+s":
		a.submitForm()
		return nil
	}
	if len(a.inputs) == 0 {
		return nil
	}
	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
	return cmd
}

func (a *App) focusInput(idx int) {
	if len(a.inputs) == 0 {
		return
	}
	idx = (idx + len(a.inputs)) % len(a.inputs)
	a.inputs[a.focus].Blur()
	a.focus = idx
	a.inputs[a.focus].Focus()
}

// formPatch parses every filled input. Blank inputs leave the field as it is.
func (a *App) formPatch() (record.Patch, []string) {
	var patches []record.Patch
	var errs []string
	for i, q := range a.view.Step.Questions {
		if i >= len(a.inputs) {
			break
		}
		value := strings.TrimSpace(a.inputs[i].Value())
		if value == "" {
			continue
		}
		p, err := record.Assign(q.Field, value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", q.LabelFor(a.view.Record.AgeGroup), err))
			continue
		}
		patches = append(patches, p)
	}
	return record.Combine(patches...), errs
}

func (a *App) submitForm() {
	patch, errs := a.formPatch()
	a.formErrs = errs
	if len(errs) > 0 {
		a.statusMsg = "Fix the highlighted answers"
		return
	}
	a.advance("", &patch)
}

func (a *App) handleMultiKey(msg tea.KeyMsg) {
	switch msg.String() {
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.multi)-1 {
			a.cursor++
		}
	case " ", "x":
		if a.cursor < len(a.multi) {
			id := a.multi[a.cursor].Value
			a.picked[id] = !a.picked[id]
		}
	case "enter":
		a.submitMulti()
	}
}

func (a *App) submitMulti() {
	ids := make([]string, 0, len(a.picked))
	for _, opt := range a.multi {
		if a.picked[opt.Value] {
			ids = append(ids, opt.Value)
		}
	}
	patch, err := a.view.Step.Answer(strings.Join(ids, ","))
	if err != nil {
		a.statusMsg = err.Error()
		return
	}
	a.advance("", &patch)
}

// recoverMissing jumps to the step that supplies the missing fields.
func (a *App) recoverMissing() {
	target := a.view.Missing.Recover
	if target == "" {
		a.statusMsg = "No recovery step on file · b → back"
		return
	}
	if err := a.session.Navigator().NavigateTo(target, nil); err != nil {
		a.statusMsg = fmt.Sprintf("Cannot return to %s: %v · b → back", humanize(string(target)), err)
		return
	}
	a.statusMsg = ""
	a.refresh()
}

// renderStep draws the title, prompt and widget of the current step.
func (a *App) renderStep(width int) string {
	step := a.view.Step
	sections := []string{
		titleStyle.Render(step.Title),
		promptStyle.Width(max(20, width)).Render(a.view.Prompt),
		"",
	}
	if m := a.view.Missing; m != nil {
		fields := make([]string, len(m.Fields))
		for i, f := range m.Fields {
			fields[i] = humanize(string(f))
		}
		sections = append(sections,
			alertStyle.Render("⚠ This step needs: "+strings.Join(fields, ", ")),
			hintStyle.Render(fmt.Sprintf("Enter → go to %s", humanize(string(m.Recover)))),
		)
		return strings.Join(sections, "\n")
	}
	switch step.Kind {
	case steps.KindChoice:
		sections = append(sections, a.choices.View(), hintStyle.Render("↑/↓ → move    Enter → choose"))
	case steps.KindForm:
		sections = append(sections, a.renderForm(), hintStyle.Render("Tab → next field    Enter on the last field → continue"))
	case steps.KindMulti:
		sections = append(sections, a.renderMulti(), hintStyle.Render("Space → toggle    Enter → continue (nothing selected is a valid answer)"))
	case steps.KindInfo:
		if details := a.renderDetails(width); details != "" {
			sections = append(sections, details, "")
		}
		if len(a.view.Successors) > 0 {
			sections = append(sections, hintStyle.Render("Enter → continue"))
		} else {
			sections = append(sections, hintStyle.Render("End of this pathway"))
		}
	}
	return strings.Join(sections, "\n")
}

func (a *App) renderForm() string {
	age := a.view.Record.AgeGroup
	rows := make([]string, 0, len(a.inputs))
	for i, q := range a.view.Step.Questions {
		if i >= len(a.inputs) {
			break
		}
		label := q.LabelFor(age)
		if i == a.focus {
			label = cursorStyle.Render(label)
		}
		rows = append(rows, label, a.inputs[i].View())
	}
	for _, e := range a.formErrs {
		rows = append(rows, alertStyle.Render(e))
	}
	return strings.Join(rows, "\n")
}

func (a *App) renderMulti() string {
	rows := make([]string, 0, len(a.multi))
	for i, opt := range a.multi {
		mark := "[ ]"
		if a.picked[opt.Value] {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s", mark, opt.Label)
		if i == a.cursor {
			line = cursorStyle.Render("› " + line)
		} else {
			line = "  " + line
		}
		rows = append(rows, line)
	}
	return strings.Join(rows, "\n")
}

// renderDetails shows the derived results an information step presents.
func (a *App) renderDetails(width int) string {
	v := a.view
	var lines []string
	switch v.Current {
	case steps.StepTreatment:
		if v.Record.CurrentStep != nil {
			lines = append(lines, titleStyle.Render(fmt.Sprintf("Step %d", *v.Record.CurrentStep)))
		}
		lines = append(lines, v.Plan)
	case steps.StepControlResult:
		if v.Control != nil {
			lines = append(lines, levelStyle(string(v.Control.Level)).Render(v.Control.Label),
				fmt.Sprintf("%d of 4 control questions answered yes", v.Control.Score))
		}
	case steps.StepRiskResult:
		if v.Risk != nil {
			lines = append(lines, levelStyle(string(v.Risk.Level)).Render(fmt.Sprintf("%s (score %d)", v.Risk.Label, v.Risk.Score)))
		}
	case steps.StepSeverePhenotype:
		if p := v.Phenotype; p != nil {
			lines = append(lines, titleStyle.Render(humanize(string(p.Phenotype))))
			if len(p.Drivers) > 0 {
				lines = append(lines, "Drivers: "+strings.Join(p.Drivers, ", "))
			}
			if p.Low {
				lines = append(lines, cautionStyle.Render("Eosinophils and FeNO both low"))
			}
		}
		if !v.Eligible {
			lines = append(lines, cautionStyle.Render("Not eligible for add-on biologics yet"))
		}
	case steps.StepSevereRecommendations:
		lines = append(lines, a.renderRecommendations()...)
	}
	if len(lines) == 0 {
		return ""
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(strings.Join(lines, "\n"))
}

func (a *App) renderRecommendations() []string {
	recs := a.view.Recommendations
	if len(recs) == 0 {
		return []string{cautionStyle.Render("No candidate qualifies on the current record.")}
	}
	var lines []string
	for i, r := range recs {
		head := fmt.Sprintf("%d. %s · %s · %d", i+1, r.Name, r.Strength, r.Score)
		style := titleStyle
		if r.Score >= 90 {
			style = goodStyle
		}
		lines = append(lines, style.Render(head), detailTextStyle.Render(r.Reason))
		if r.EligibilityNote != "" {
			lines = append(lines, detailTextStyle.Render(r.EligibilityNote))
		}
	}
	return lines
}

func levelStyle(level string) lipgloss.Style {
	switch level {
	case string(classify.WellControlled), string(classify.RiskLow):
		return goodStyle
	case string(classify.PartlyControlled), string(classify.RiskModerate):
		return cautionStyle
	default:
		return alertStyle
	}
}
