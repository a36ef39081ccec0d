// Package steps declares the questionnaire as an explicit step graph.
//
// Every screen is a Step identified by a StepID. A step lists the successors it
// may move to, each behind a named guard evaluated on the record the
// transition would produce. The catalog is loaded from YAML so wording can be
// revised without touching navigation code.
package steps

import (
	"errors"
	"fmt"

	"github.com/kingrea/airway/internal/classify"
	"github.com/kingrea/airway/internal/record"
)

// StepID identifies one screen of the questionnaire.
type StepID string

const (
	StepStart             StepID = "start"
	StepDiagnosis         StepID = "diagnosis"
	StepDiagnosisWorkup   StepID = "diagnosis-workup"
	StepFrequency         StepID = "frequency"
	StepPathway           StepID = "pathway"
	StepTreatment         StepID = "treatment"
	StepControlAssessment StepID = "control-assessment"
	StepControlResult     StepID = "control-result"
	StepRiskFactors       StepID = "risk-factors"
	StepRiskResult        StepID = "risk-result"
	StepAdjust            StepID = "step-adjust"

	StepExacerbationTriage   StepID = "exacerbation-triage"
	StepExacerbationSeverity StepID = "exacerbation-severity"
	StepExacerbationMild     StepID = "exacerbation-mild"
	StepExacerbationSevere   StepID = "exacerbation-severe"

	StepSevereDemographics    StepID = "severe-demographics"
	StepSevereBiomarkers      StepID = "severe-biomarkers"
	StepSevereComorbidities   StepID = "severe-comorbidities"
	StepSevereMedications     StepID = "severe-medications"
	StepSeverePhenotype       StepID = "severe-phenotype"
	StepSevereRecommendations StepID = "severe-recommendations"
)

// Initial is the root of every session and the target of a reset.
const Initial = StepStart

var allSteps = []StepID{
	StepStart,
	StepDiagnosis,
	StepDiagnosisWorkup,
	StepFrequency,
	StepPathway,
	StepTreatment,
	StepControlAssessment,
	StepControlResult,
	StepRiskFactors,
	StepRiskResult,
	StepAdjust,
	StepExacerbationTriage,
	StepExacerbationSeverity,
	StepExacerbationMild,
	StepExacerbationSevere,
	StepSevereDemographics,
	StepSevereBiomarkers,
	StepSevereComorbidities,
	StepSevereMedications,
	StepSeverePhenotype,
	StepSevereRecommendations,
}

// All returns every StepID in declaration order.
func All() []StepID {
	out := make([]StepID, len(allSteps))
	copy(out, allSteps)
	return out
}

// Known reports whether id is a declared step.
func (id StepID) Known() bool {
	for _, candidate := range allSteps {
		if candidate == id {
			return true
		}
	}
	return false
}

// Kind selects how a step collects its answer.
type Kind string

const (
	KindChoice Kind = "choice"
	KindForm   Kind = "form"
	KindMulti  Kind = "multi"
	KindInfo   Kind = "info"
)

// SourceRiskCatalog makes a multi step offer the risk factor catalog of the
// record's age group instead of inline options.
const SourceRiskCatalog = "risk-catalog"

// Option is one answer offered by a choice or multi step.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
	// Next, when set, is the step this answer moves to.
	Next StepID `json:"next,omitempty" yaml:"next,omitempty"`
}

// Question is one input on a form step. Field is a record path accepted by
// record.Assign.
type Question struct {
	Field    string                     `json:"field" yaml:"field"`
	Label    string                     `json:"label" yaml:"label"`
	Input    string                     `json:"input,omitempty" yaml:"input,omitempty"`
	Variants map[record.AgeGroup]string `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// LabelFor returns the wording for the given age group.
func (q Question) LabelFor(age *record.AgeGroup) string {
	return variant(q.Label, q.Variants, age)
}

// Edge is one allowed successor. An empty When means GuardAlways.
type Edge struct {
	To   StepID `json:"to" yaml:"to"`
	When string `json:"when,omitempty" yaml:"when,omitempty"`
}

func (e Edge) guard() string {
	if e.When == "" {
		return GuardAlways
	}
	return e.When
}

// Step is one node of the graph.
type Step struct {
	ID        StepID                     `json:"id" yaml:"id"`
	Branch    string                     `json:"branch" yaml:"branch"`
	Kind      Kind                       `json:"kind" yaml:"kind"`
	Title     string                     `json:"title" yaml:"title"`
	Prompt    string                     `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Variants  map[record.AgeGroup]string `json:"variants,omitempty" yaml:"variants,omitempty"`
	Field     record.Field               `json:"field,omitempty" yaml:"field,omitempty"`
	Source    string                     `json:"source,omitempty" yaml:"source,omitempty"`
	Options   []Option                   `json:"options,omitempty" yaml:"options,omitempty"`
	Questions []Question                 `json:"questions,omitempty" yaml:"questions,omitempty"`
	Next      []Edge                     `json:"next,omitempty" yaml:"next,omitempty"`
	Requires  []record.Field             `json:"requires,omitempty" yaml:"requires,omitempty"`
	Recover   StepID                     `json:"recover,omitempty" yaml:"recover,omitempty"`
}

// PromptFor returns the prompt wording for the given age group.
func (s Step) PromptFor(age *record.AgeGroup) string {
	return variant(s.Prompt, s.Variants, age)
}

// Answer turns the textual value chosen on a choice or multi step into the
// patch for the step's field. Choosing a symptom frequency also records the
// treatment step it implies.
func (s Step) Answer(value string) (record.Patch, error) {
	if s.Field == "" {
		return record.Patch{}, nil
	}
	patch, err := record.Assign(string(s.Field), value)
	if err != nil {
		return record.Patch{}, fmt.Errorf("steps: %s: %w", s.ID, err)
	}
	if s.Field == record.FieldSymptomFrequency && patch.SymptomFrequency != nil {
		if step, ok := classify.StartingStep(*patch.SymptomFrequency); ok {
			patch = record.Combine(patch, record.Patch{Record: record.Record{CurrentStep: record.Ptr(step)}})
		}
	}
	return patch, nil
}

// Option returns the option with the given value.
func (s Step) Option(value string) (Option, bool) {
	for _, opt := range s.Options {
		if opt.Value == value {
			return opt, true
		}
	}
	return Option{}, false
}

// Targets lists the successor ids in declaration order.
func (s Step) Targets() []StepID {
	out := make([]StepID, 0, len(s.Next))
	for _, e := range s.Next {
		out = append(out, e.To)
	}
	return out
}

func (s Step) edge(to StepID) (Edge, bool) {
	for _, e := range s.Next {
		if e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

func variant(base string, variants map[record.AgeGroup]string, age *record.AgeGroup) string {
	if age != nil {
		if v, ok := variants[*age]; ok && v != "" {
			return v
		}
	}
	return base
}

// ErrIllegalTransition is wrapped by every rejected transition.
var ErrIllegalTransition = errors.New("illegal transition")

// TransitionError describes a rejected transition.
type TransitionError struct {
	From   StepID
	To     StepID
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("steps: %s -> %s: %s: %s", e.From, e.To, ErrIllegalTransition, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}
