// Package classify turns raw answers into discrete clinical levels. Every
// function here is pure.
package classify

import "github.com/kingrea/airway/internal/record"

// Level is the symptom-control classification.
type Level string

const (
	WellControlled   Level = "wellControlled"
	PartlyControlled Level = "partlyControlled"
	Uncontrolled     Level = "uncontrolled"
)

// Label returns the display form of the level.
func (l Level) Label() string {
	switch l {
	case WellControlled:
		return "Well controlled"
	case PartlyControlled:
		return "Partly controlled"
	case Uncontrolled:
		return "Uncontrolled"
	}
	return "Unknown"
}

// ControlAnswers are the four control questions asked over the last four
// weeks. Wording varies by age group; the meaning does not.
type ControlAnswers struct {
	// DaytimeSymptoms: daytime symptoms more than twice a week.
	DaytimeSymptoms *bool `json:"daytimeSymptoms"`
	// NightWaking: any night waking due to asthma.
	NightWaking *bool `json:"nightWaking"`
	// RelieverUse: reliever needed more than twice a week.
	RelieverUse *bool `json:"relieverUse"`
	// ActivityLimitation: any activity limitation due to asthma.
	ActivityLimitation *bool `json:"activityLimitation"`
}

// ControlAnswersFrom extracts the control answers from a record.
func ControlAnswersFrom(rec record.Record) ControlAnswers {
	return ControlAnswers{
		DaytimeSymptoms:    rec.DaytimeSymptoms,
		NightWaking:        rec.NightWaking,
		RelieverUse:        rec.RelieverUse,
		ActivityLimitation: rec.ActivityLimitation,
	}
}

// Complete reports whether all four questions were answered. Callers must
// not present a classification before this holds.
func (a ControlAnswers) Complete() bool {
	return a.DaytimeSymptoms != nil && a.NightWaking != nil && a.RelieverUse != nil && a.ActivityLimitation != nil
}

// Score counts the true answers, 0-4. Unanswered questions count as false.
func (a ControlAnswers) Score() int {
	score := 0
	for _, answer := range []*bool{a.DaytimeSymptoms, a.NightWaking, a.RelieverUse, a.ActivityLimitation} {
		if record.Bool(answer) {
			score++
		}
	}
	return score
}

// Control maps the answers to a level: 0 well controlled, 1-2 partly
// controlled, 3-4 uncontrolled.
func Control(a ControlAnswers) Level {
	switch score := a.Score(); {
	case score == 0:
		return WellControlled
	case score <= 2:
		return PartlyControlled
	default:
		return Uncontrolled
	}
}

// ControlOf classifies rec when its answers are complete. ok is false
// otherwise.
func ControlOf(rec record.Record) (level Level, ok bool) {
	answers := ControlAnswersFrom(rec)
	if !answers.Complete() {
		return "", false
	}
	return Control(answers), true
}
