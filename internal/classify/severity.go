package classify

import "github.com/kingrea/airway/internal/record"

// StartingStep is the treatment step implied by the presenting symptom
// frequency. ok is false for unknown values.
func StartingStep(freq record.SymptomFrequency) (step int, ok bool) {
	switch freq {
	case record.FrequencyInfrequent:
		return 1, true
	case record.FrequencyTwiceMonthly:
		return 2, true
	case record.FrequencyMostDays:
		return 3, true
	case record.FrequencyDailyOrLowLFT:
		return 4, true
	}
	return 0, false
}

// SeverityGuidance names the guidance block an acute severity choice opens.
// Severity itself is never computed; the clinician picks it against the
// displayed checklist.
type SeverityGuidance string

const (
	GuidanceNone           SeverityGuidance = ""
	GuidancePrimaryCare    SeverityGuidance = "primary-care-management"
	GuidanceUrgentReferral SeverityGuidance = "urgent-transfer"
)

// GuidanceFor maps the severity choice to its guidance block.
func GuidanceFor(sev *record.Severity) SeverityGuidance {
	if sev == nil {
		return GuidanceNone
	}
	switch *sev {
	case record.SeverityMildModerate:
		return GuidancePrimaryCare
	case record.SeveritySevere:
		return GuidanceUrgentReferral
	}
	return GuidanceNone
}
