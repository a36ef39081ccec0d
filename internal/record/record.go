// Package record holds the cumulative answer record of one triage session.
//
// Every field is optional: nil means "not yet assessed". Records are treated as
// values. Updates go through Merge/MergeNested, which return a new record and
// never mutate their inputs.
package record

// AgeGroup selects question wording and the risk catalog. It never changes
// classifier semantics.
type AgeGroup string

const (
	AgeAdult      AgeGroup = "adult"
	AgeAdolescent AgeGroup = "adolescent"
	AgeChild      AgeGroup = "child"
)

// SymptomFrequency is the presenting symptom pattern used to pick a starting
// treatment step.
type SymptomFrequency string

const (
	FrequencyInfrequent    SymptomFrequency = "lessThanTwiceMonthly"
	FrequencyTwiceMonthly  SymptomFrequency = "twiceMonthlyOrMore"
	FrequencyMostDays      SymptomFrequency = "mostDaysOrWakingWeekly"
	FrequencyDailyOrLowLFT SymptomFrequency = "dailyOrLowLungFunction"
)

// Pathway is the treatment track chosen for maintenance therapy.
type Pathway string

const (
	// Pathway1 uses as-needed low-dose ICS-formoterol as the reliever.
	Pathway1 Pathway = "pathway1"
	// Pathway2 uses an as-needed SABA as the reliever.
	Pathway2 Pathway = "pathway2"
)

// Severity is the clinician's explicit acute-episode triage choice.
type Severity string

const (
	SeverityMildModerate Severity = "mildModerate"
	SeveritySevere       Severity = "severe"
)

// Demographics is a nested sub-record of the severe asthma branch.
type Demographics struct {
	Age        *int     `json:"age,omitempty" yaml:"age,omitempty"`
	WeightKg   *float64 `json:"weightKg,omitempty" yaml:"weightKg,omitempty"`
	Smoker     *bool    `json:"smoker,omitempty" yaml:"smoker,omitempty"`
	AdultOnset *bool    `json:"adultOnset,omitempty" yaml:"adultOnset,omitempty"`
}

// Biomarkers is a nested sub-record of the severe asthma branch. Units:
// eosinophils in cells/µL, FeNO in ppb, total IgE in IU/mL.
type Biomarkers struct {
	Eosinophils           *float64 `json:"eosinophils,omitempty" yaml:"eosinophils,omitempty"`
	FeNO                  *float64 `json:"feno,omitempty" yaml:"feno,omitempty"`
	TotalIgE              *float64 `json:"totalIgE,omitempty" yaml:"totalIgE,omitempty"`
	AllergicSensitization *bool    `json:"allergicSensitization,omitempty" yaml:"allergicSensitization,omitempty"`
}

// Medications is a nested sub-record describing treatment history.
type Medications struct {
	HighDoseICS           *bool `json:"highDoseICS,omitempty" yaml:"highDoseICS,omitempty"`
	MaintenanceOCS        *bool `json:"maintenanceOCS,omitempty" yaml:"maintenanceOCS,omitempty"`
	SteroidDependent      *bool `json:"steroidDependent,omitempty" yaml:"steroidDependent,omitempty"`
	ExacerbationsPastYear *int  `json:"exacerbationsPastYear,omitempty" yaml:"exacerbationsPastYear,omitempty"`
}

// Record is the flat, partially populated answer record.
type Record struct {
	AgeGroup           *AgeGroup         `json:"ageGroup,omitempty" yaml:"ageGroup,omitempty"`
	DiagnosisConfirmed *bool             `json:"diagnosisConfirmed,omitempty" yaml:"diagnosisConfirmed,omitempty"`
	SymptomFrequency   *SymptomFrequency `json:"symptomFrequency,omitempty" yaml:"symptomFrequency,omitempty"`
	// CurrentStep is the treatment step (1-5), unrelated to the navigation step.
	CurrentStep *int     `json:"currentStep,omitempty" yaml:"currentStep,omitempty"`
	Pathway     *Pathway `json:"pathway,omitempty" yaml:"pathway,omitempty"`

	DaytimeSymptoms    *bool `json:"daytimeSymptoms,omitempty" yaml:"daytimeSymptoms,omitempty"`
	NightWaking        *bool `json:"nightWaking,omitempty" yaml:"nightWaking,omitempty"`
	RelieverUse        *bool `json:"relieverUse,omitempty" yaml:"relieverUse,omitempty"`
	ActivityLimitation *bool `json:"activityLimitation,omitempty" yaml:"activityLimitation,omitempty"`

	RiskFactors []string `json:"riskFactors,omitempty" yaml:"riskFactors,omitempty"`

	Severity          *Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	ExacerbationSigns []string  `json:"exacerbationSigns,omitempty" yaml:"exacerbationSigns,omitempty"`

	Demographics  *Demographics `json:"demographics,omitempty" yaml:"demographics,omitempty"`
	Biomarkers    *Biomarkers   `json:"biomarkers,omitempty" yaml:"biomarkers,omitempty"`
	Medications   *Medications  `json:"medications,omitempty" yaml:"medications,omitempty"`
	Comorbidities []string      `json:"comorbidities,omitempty" yaml:"comorbidities,omitempty"`
}

// Default returns the all-nil record a session starts with.
func Default() Record {
	return Record{}
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}

// Float dereferences p, reading nil as 0.
func Float(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Int dereferences p, reading nil as 0.
func Int(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// Bool dereferences p, reading nil as false.
func Bool(p *bool) bool {
	return p != nil && *p
}

// BiomarkersOrZero returns the biomarker sub-record or an empty one.
func (r Record) BiomarkersOrZero() Biomarkers {
	if r.Biomarkers == nil {
		return Biomarkers{}
	}
	return *r.Biomarkers
}

// MedicationsOrZero returns the medication sub-record or an empty one.
func (r Record) MedicationsOrZero() Medications {
	if r.Medications == nil {
		return Medications{}
	}
	return *r.Medications
}

// DemographicsOrZero returns the demographics sub-record or an empty one.
func (r Record) DemographicsOrZero() Demographics {
	if r.Demographics == nil {
		return Demographics{}
	}
	return *r.Demographics
}

// HasComorbidity reports whether id was selected.
func (r Record) HasComorbidity(id string) bool {
	return containsID(r.Comorbidities, id)
}

// HasRiskFactor reports whether id was selected.
func (r Record) HasRiskFactor(id string) bool {
	return containsID(r.RiskFactors, id)
}

// Clone returns a deep copy so callers cannot reach shared pointees.
func (r Record) Clone() Record {
	return Record{
		AgeGroup:           clonePtr(r.AgeGroup),
		DiagnosisConfirmed: clonePtr(r.DiagnosisConfirmed),
		SymptomFrequency:   clonePtr(r.SymptomFrequency),
		CurrentStep:        clonePtr(r.CurrentStep),
		Pathway:            clonePtr(r.Pathway),
		DaytimeSymptoms:    clonePtr(r.DaytimeSymptoms),
		NightWaking:        clonePtr(r.NightWaking),
		RelieverUse:        clonePtr(r.RelieverUse),
		ActivityLimitation: clonePtr(r.ActivityLimitation),
		RiskFactors:        cloneStrings(r.RiskFactors),
		Severity:           clonePtr(r.Severity),
		ExacerbationSigns:  cloneStrings(r.ExacerbationSigns),
		Demographics:       r.Demographics.clone(),
		Biomarkers:         r.Biomarkers.clone(),
		Medications:        r.Medications.clone(),
		Comorbidities:      cloneStrings(r.Comorbidities),
	}
}

func (d *Demographics) clone() *Demographics {
	if d == nil {
		return nil
	}
	return &Demographics{
		Age:        clonePtr(d.Age),
		WeightKg:   clonePtr(d.WeightKg),
		Smoker:     clonePtr(d.Smoker),
		AdultOnset: clonePtr(d.AdultOnset),
	}
}

func (b *Biomarkers) clone() *Biomarkers {
	if b == nil {
		return nil
	}
	return &Biomarkers{
		Eosinophils:           clonePtr(b.Eosinophils),
		FeNO:                  clonePtr(b.FeNO),
		TotalIgE:              clonePtr(b.TotalIgE),
		AllergicSensitization: clonePtr(b.AllergicSensitization),
	}
}

func (m *Medications) clone() *Medications {
	if m == nil {
		return nil
	}
	return &Medications{
		HighDoseICS:           clonePtr(m.HighDoseICS),
		MaintenanceOCS:        clonePtr(m.MaintenanceOCS),
		SteroidDependent:      clonePtr(m.SteroidDependent),
		ExacerbationsPastYear: clonePtr(m.ExacerbationsPastYear),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func containsID(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
