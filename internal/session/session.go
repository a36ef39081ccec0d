// Package session couples a Navigator with the derived reads every
// presentation layer needs.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/airway/internal/classify"
	"github.com/kingrea/airway/internal/navigation"
	"github.com/kingrea/airway/internal/recommend"
	"github.com/kingrea/airway/internal/record"
	"github.com/kingrea/airway/internal/steps"
)

// Session is one triage session.
type Session struct {
	ID      string
	Created time.Time
	nav     *navigation.Navigator
}

// New starts a session on catalog with a fresh id.
func New(catalog *steps.Catalog, opts ...navigation.Option) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		nav:     navigation.New(catalog, opts...),
	}
}

// Navigator exposes the session's navigation engine.
func (s *Session) Navigator() *navigation.Navigator {
	return s.nav
}

// ControlView is the symptom control classification.
type ControlView struct {
	Score int            `json:"score"`
	Level classify.Level `json:"level"`
	Label string         `json:"label"`
}

// RiskView is the weighted exacerbation risk.
type RiskView struct {
	Catalog string             `json:"catalog"`
	Score   int                `json:"score"`
	Level   classify.RiskLevel `json:"level"`
	Label   string             `json:"label"`
}

// MissingView reports a step rendered before its upstream data was set.
type MissingView struct {
	Fields  []record.Field `json:"fields"`
	Recover steps.StepID   `json:"recover"`
}

// View is everything a presentation layer reads to render the current step.
type View struct {
	ID              string                     `json:"id"`
	Created         time.Time                  `json:"created"`
	Current         steps.StepID               `json:"current"`
	Step            steps.Step                 `json:"step"`
	Prompt          string                     `json:"prompt"`
	History         []steps.StepID             `json:"history"`
	Record          record.Record              `json:"record"`
	Successors      []steps.StepID             `json:"successors"`
	Missing         *MissingView               `json:"missing,omitempty"`
	Plan            string                     `json:"plan,omitempty"`
	Control         *ControlView               `json:"control,omitempty"`
	Risk            *RiskView                  `json:"risk,omitempty"`
	Guidance        classify.SeverityGuidance  `json:"guidance,omitempty"`
	Phenotype       *classify.PhenotypeResult  `json:"phenotype,omitempty"`
	Eligible        bool                       `json:"eligible"`
	Recommendations []recommend.Recommendation `json:"recommendations,omitempty"`
}

// View derives the render state from one consistent snapshot.
func (s *Session) View() View {
	snap := s.nav.Snapshot()
	catalog := s.nav.Catalog()
	step, _ := catalog.Step(snap.Current)
	rec := snap.Record

	v := View{
		ID:         s.ID,
		Created:    s.Created,
		Current:    snap.Current,
		Step:       step,
		Prompt:     step.PromptFor(rec.AgeGroup),
		History:    snap.History,
		Record:     rec,
		Successors: catalog.Successors(snap.Current, rec),
		Guidance:   classify.GuidanceFor(rec.Severity),
		Eligible:   recommend.Eligible(rec),
	}
	if missing := catalog.Missing(snap.Current, rec); len(missing) > 0 {
		v.Missing = &MissingView{Fields: missing, Recover: step.Recover}
	}
	if rec.Pathway != nil && rec.CurrentStep != nil {
		v.Plan = Plan(*rec.Pathway, *rec.CurrentStep)
	}
	answers := classify.ControlAnswersFrom(rec)
	if level, ok := classify.ControlOf(rec); ok {
		v.Control = &ControlView{Score: answers.Score(), Level: level, Label: level.Label()}
	}
	if rec.RiskFactors != nil {
		factors := classify.DefaultCatalogs().For(rec.AgeGroup)
		score := classify.ScoreRiskFactors(rec.RiskFactors, factors)
		level := classify.RiskBucket(score)
		v.Risk = &RiskView{Catalog: factors.Name(), Score: score, Level: level, Label: level.Label()}
	}
	if step.Branch == "severe" {
		phenotype := classify.PhenotypeOf(rec)
		v.Phenotype = &phenotype
		v.Recommendations = recommend.Evaluate(rec, v.Eligible)
	}
	return v
}
