package steps

import (
	"sort"

	"github.com/kingrea/airway/internal/classify"
	"github.com/kingrea/airway/internal/recommend"
	"github.com/kingrea/airway/internal/record"
)

// Guard decides whether an edge may be taken given the record the transition
// would produce.
type Guard func(record.Record) bool

// Guard names referenced from the catalog.
const (
	GuardAlways                = "always"
	GuardAgeSet                = "age-set"
	GuardDiagnosisConfirmed    = "diagnosis-confirmed"
	GuardDiagnosisUnconfirmed  = "diagnosis-unconfirmed"
	GuardFrequencySet          = "frequency-set"
	GuardPathwaySet            = "pathway-set"
	GuardControlComplete       = "control-complete"
	GuardRiskAnswered          = "risk-answered"
	GuardSevereReferral        = "severe-referral"
	GuardSignsAnswered         = "signs-answered"
	GuardSeverityMildModerate  = "severity-mild-moderate"
	GuardSeveritySevere        = "severity-severe"
	GuardComorbiditiesAnswered = "comorbidities-answered"
	GuardCandidatesEligible    = "candidates-eligible"
)

// Guards maps guard names to predicates.
type Guards map[string]Guard

// Names returns the registered guard names, sorted.
func (g Guards) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultGuards returns the guards used by the built-in catalog.
func DefaultGuards() Guards {
	return Guards{
		GuardAlways: func(record.Record) bool { return true },
		GuardAgeSet: func(r record.Record) bool { return r.AgeGroup != nil },
		GuardDiagnosisConfirmed: func(r record.Record) bool {
			return r.DiagnosisConfirmed != nil && *r.DiagnosisConfirmed
		},
		GuardDiagnosisUnconfirmed: func(r record.Record) bool {
			return r.DiagnosisConfirmed != nil && !*r.DiagnosisConfirmed
		},
		GuardFrequencySet: func(r record.Record) bool {
			return r.SymptomFrequency != nil && r.CurrentStep != nil
		},
		GuardPathwaySet: func(r record.Record) bool { return r.Pathway != nil },
		GuardControlComplete: func(r record.Record) bool {
			return classify.ControlAnswersFrom(r).Complete()
		},
		GuardRiskAnswered: func(r record.Record) bool { return r.RiskFactors != nil },
		GuardSevereReferral: func(r record.Record) bool {
			level, ok := classify.ControlOf(r)
			return ok && level != classify.WellControlled && record.Int(r.CurrentStep) >= 4
		},
		GuardSignsAnswered: func(r record.Record) bool { return r.ExacerbationSigns != nil },
		GuardSeverityMildModerate: func(r record.Record) bool {
			return r.Severity != nil && *r.Severity == record.SeverityMildModerate
		},
		GuardSeveritySevere: func(r record.Record) bool {
			return r.Severity != nil && *r.Severity == record.SeveritySevere
		},
		GuardComorbiditiesAnswered: func(r record.Record) bool { return r.Comorbidities != nil },
		GuardCandidatesEligible:    recommend.Eligible,
	}
}
