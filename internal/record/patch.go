package record

import "fmt"

// Field names a top-level record field. Values match the JSON keys.
type Field string

const (
	FieldAgeGroup           Field = "ageGroup"
	FieldDiagnosisConfirmed Field = "diagnosisConfirmed"
	FieldSymptomFrequency   Field = "symptomFrequency"
	FieldCurrentStep        Field = "currentStep"
	FieldPathway            Field = "pathway"
	FieldDaytimeSymptoms    Field = "daytimeSymptoms"
	FieldNightWaking        Field = "nightWaking"
	FieldRelieverUse        Field = "relieverUse"
	FieldActivityLimitation Field = "activityLimitation"
	FieldRiskFactors        Field = "riskFactors"
	FieldSeverity           Field = "severity"
	FieldExacerbationSigns  Field = "exacerbationSigns"
	FieldDemographics       Field = "demographics"
	FieldBiomarkers         Field = "biomarkers"
	FieldMedications        Field = "medications"
	FieldComorbidities      Field = "comorbidities"
)

var allFields = []Field{
	FieldAgeGroup,
	FieldDiagnosisConfirmed,
	FieldSymptomFrequency,
	FieldCurrentStep,
	FieldPathway,
	FieldDaytimeSymptoms,
	FieldNightWaking,
	FieldRelieverUse,
	FieldActivityLimitation,
	FieldRiskFactors,
	FieldSeverity,
	FieldExacerbationSigns,
	FieldDemographics,
	FieldBiomarkers,
	FieldMedications,
	FieldComorbidities,
}

// Fields returns every top-level field in declaration order.
func Fields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// Known reports whether f names a top-level field.
func (f Field) Known() bool {
	for _, candidate := range allFields {
		if candidate == f {
			return true
		}
	}
	return false
}

// Patch names the fields to overwrite. Non-nil fields of the embedded Record
// replace the prior value; nested sub-records are replaced wholesale. Fields
// listed in Clear are reset to nil. Nested, when set, is applied last and
// merges inside the sub-records field by field.
type Patch struct {
	Record `yaml:",inline"`
	Clear  []Field      `json:"clear,omitempty" yaml:"clear,omitempty"`
	Nested *NestedPatch `json:"nested,omitempty" yaml:"nested,omitempty"`
}

// NestedPatch updates individual fields inside the severe-branch sub-records
// without clobbering their siblings.
type NestedPatch struct {
	Demographics *Demographics `json:"demographics,omitempty" yaml:"demographics,omitempty"`
	Biomarkers   *Biomarkers   `json:"biomarkers,omitempty" yaml:"biomarkers,omitempty"`
	Medications  *Medications  `json:"medications,omitempty" yaml:"medications,omitempty"`
}

// Empty reports whether the patch names nothing.
func (p Patch) Empty() bool {
	return len(p.Clear) == 0 && p.Nested == nil && p.Record.countSet() == 0
}

// Validate rejects clears of unknown fields.
func (p Patch) Validate() error {
	for _, f := range p.Clear {
		if !f.Known() {
			return fmt.Errorf("record: cannot clear unknown field %q", f)
		}
	}
	return nil
}

// Merge returns rec with every field named by patch overwritten.
func Merge(rec Record, patch Patch) Record {
	out := rec.Clone()
	in := patch.Record.Clone()
	if in.AgeGroup != nil {
		out.AgeGroup = in.AgeGroup
	}
	if in.DiagnosisConfirmed != nil {
		out.DiagnosisConfirmed = in.DiagnosisConfirmed
	}
	if in.SymptomFrequency != nil {
		out.SymptomFrequency = in.SymptomFrequency
	}
	if in.CurrentStep != nil {
		out.CurrentStep = in.CurrentStep
	}
	if in.Pathway != nil {
		out.Pathway = in.Pathway
	}
	if in.DaytimeSymptoms != nil {
		out.DaytimeSymptoms = in.DaytimeSymptoms
	}
	if in.NightWaking != nil {
		out.NightWaking = in.NightWaking
	}
	if in.RelieverUse != nil {
		out.RelieverUse = in.RelieverUse
	}
	if in.ActivityLimitation != nil {
		out.ActivityLimitation = in.ActivityLimitation
	}
	if in.RiskFactors != nil {
		out.RiskFactors = in.RiskFactors
	}
	if in.Severity != nil {
		out.Severity = in.Severity
	}
	if in.ExacerbationSigns != nil {
		out.ExacerbationSigns = in.ExacerbationSigns
	}
	if in.Demographics != nil {
		out.Demographics = in.Demographics
	}
	if in.Biomarkers != nil {
		out.Biomarkers = in.Biomarkers
	}
	if in.Medications != nil {
		out.Medications = in.Medications
	}
	if in.Comorbidities != nil {
		out.Comorbidities = in.Comorbidities
	}
	for _, f := range patch.Clear {
		out.clear(f)
	}
	if patch.Nested != nil {
		out = MergeNested(out, *patch.Nested)
	}
	return out
}

// MergeNested returns rec with the named nested fields overwritten. A nil
// sub-record on rec is created on demand.
func MergeNested(rec Record, nested NestedPatch) Record {
	out := rec.Clone()
	if d := nested.Demographics; d != nil {
		cur := out.DemographicsOrZero()
		if d.Age != nil {
			cur.Age = clonePtr(d.Age)
		}
		if d.WeightKg != nil {
			cur.WeightKg = clonePtr(d.WeightKg)
		}
		if d.Smoker != nil {
			cur.Smoker = clonePtr(d.Smoker)
		}
		if d.AdultOnset != nil {
			cur.AdultOnset = clonePtr(d.AdultOnset)
		}
		out.Demographics = &cur
	}
	if b := nested.Biomarkers; b != nil {
		cur := out.BiomarkersOrZero()
		if b.Eosinophils != nil {
			cur.Eosinophils = clonePtr(b.Eosinophils)
		}
		if b.FeNO != nil {
			cur.FeNO = clonePtr(b.FeNO)
		}
		if b.TotalIgE != nil {
			cur.TotalIgE = clonePtr(b.TotalIgE)
		}
		if b.AllergicSensitization != nil {
			cur.AllergicSensitization = clonePtr(b.AllergicSensitization)
		}
		out.Biomarkers = &cur
	}
	if m := nested.Medications; m != nil {
		cur := out.MedicationsOrZero()
		if m.HighDoseICS != nil {
			cur.HighDoseICS = clonePtr(m.HighDoseICS)
		}
		if m.MaintenanceOCS != nil {
			cur.MaintenanceOCS = clonePtr(m.MaintenanceOCS)
		}
		if m.SteroidDependent != nil {
			cur.SteroidDependent = clonePtr(m.SteroidDependent)
		}
		if m.ExacerbationsPastYear != nil {
			cur.ExacerbationsPastYear = clonePtr(m.ExacerbationsPastYear)
		}
		out.Medications = &cur
	}
	return out
}

// IsSet reports whether the field holds a value.
func (r Record) IsSet(f Field) bool {
	switch f {
	case FieldAgeGroup:
		return r.AgeGroup != nil
	case FieldDiagnosisConfirmed:
		return r.DiagnosisConfirmed != nil
	case FieldSymptomFrequency:
		return r.SymptomFrequency != nil
	case FieldCurrentStep:
		return r.CurrentStep != nil
	case FieldPathway:
		return r.Pathway != nil
	case FieldDaytimeSymptoms:
		return r.DaytimeSymptoms != nil
	case FieldNightWaking:
		return r.NightWaking != nil
	case FieldRelieverUse:
		return r.RelieverUse != nil
	case FieldActivityLimitation:
		return r.ActivityLimitation != nil
	case FieldRiskFactors:
		return r.RiskFactors != nil
	case FieldSeverity:
		return r.Severity != nil
	case FieldExacerbationSigns:
		return r.ExacerbationSigns != nil
	case FieldDemographics:
		return r.Demographics != nil
	case FieldBiomarkers:
		return r.Biomarkers != nil
	case FieldMedications:
		return r.Medications != nil
	case FieldComorbidities:
		return r.Comorbidities != nil
	}
	return false
}

func (r Record) countSet() int {
	n := 0
	for _, f := range allFields {
		if r.IsSet(f) {
			n++
		}
	}
	return n
}

func (r *Record) clear(f Field) {
	switch f {
	case FieldAgeGroup:
		r.AgeGroup = nil
	case FieldDiagnosisConfirmed:
		r.DiagnosisConfirmed = nil
	case FieldSymptomFrequency:
		r.SymptomFrequency = nil
	case FieldCurrentStep:
		r.CurrentStep = nil
	case FieldPathway:
		r.Pathway = nil
	case FieldDaytimeSymptoms:
		r.DaytimeSymptoms = nil
	case FieldNightWaking:
		r.NightWaking = nil
	case FieldRelieverUse:
		r.RelieverUse = nil
	case FieldActivityLimitation:
		r.ActivityLimitation = nil
	case FieldRiskFactors:
		r.RiskFactors = nil
	case FieldSeverity:
		r.Severity = nil
	case FieldExacerbationSigns:
		r.ExacerbationSigns = nil
	case FieldDemographics:
		r.Demographics = nil
	case FieldBiomarkers:
		r.Biomarkers = nil
	case FieldMedications:
		r.Medications = nil
	case FieldComorbidities:
		r.Comorbidities = nil
	}
}

// Store holds the current record of a session. It is not safe for concurrent
// use; one user action drives it at a time.
type Store struct {
	current Record
}

// NewStore returns a store holding the default record.
func NewStore() *Store {
	return &Store{current: Default()}
}

// Record returns a copy of the current record.
func (s *Store) Record() Record {
	return s.current.Clone()
}

// Merge applies patch and returns the new record.
func (s *Store) Merge(patch Patch) Record {
	s.current = Merge(s.current, patch)
	return s.Record()
}

// MergeNested applies a nested-path update and returns the new record.
func (s *Store) MergeNested(nested NestedPatch) Record {
	s.current = MergeNested(s.current, nested)
	return s.Record()
}

// Replace swaps in rec wholesale.
func (s *Store) Replace(rec Record) {
	s.current = rec.Clone()
}

// Reset restores the default record.
func (s *Store) Reset() {
	s.current = Default()
}

// Combine folds patches left to right into one. Later values win: a set
// drops an earlier clear of the same field and a clear drops an earlier set.
// Nested updates merge field by field.
func Combine(patches ...Patch) Patch {
	var out Patch
	for _, p := range patches {
		out.Clear = withoutFields(out.Clear, func(f Field) bool {
			return p.IsSet(f) || p.Nested.touches(f)
		})
		out.Record = Merge(out.Record, Patch{Record: p.Record})
		if p.Nested != nil {
			var acc Record
			if out.Nested != nil {
				acc = Record{
					Demographics: out.Nested.Demographics,
					Biomarkers:   out.Nested.Biomarkers,
					Medications:  out.Nested.Medications,
				}
			}
			acc = MergeNested(acc, *p.Nested)
			out.Nested = &NestedPatch{
				Demographics: acc.Demographics,
				Biomarkers:   acc.Biomarkers,
				Medications:  acc.Medications,
			}
		}
		for _, f := range p.Clear {
			out.Record.clear(f)
			out.Nested = out.Nested.without(f)
			if !containsField(out.Clear, f) {
				out.Clear = append(out.Clear, f)
			}
		}
	}
	return out
}

// touches reports whether the nested patch updates the sub-record named by f.
func (n *NestedPatch) touches(f Field) bool {
	if n == nil {
		return false
	}
	switch f {
	case FieldDemographics:
		return n.Demographics != nil
	case FieldBiomarkers:
		return n.Biomarkers != nil
	case FieldMedications:
		return n.Medications != nil
	}
	return false
}

// without returns a copy of n minus the sub-record named by f, or nil when
// nothing is left.
func (n *NestedPatch) without(f Field) *NestedPatch {
	if !n.touches(f) {
		return n
	}
	out := *n
	switch f {
	case FieldDemographics:
		out.Demographics = nil
	case FieldBiomarkers:
		out.Biomarkers = nil
	case FieldMedications:
		out.Medications = nil
	}
	if out.Demographics == nil && out.Biomarkers == nil && out.Medications == nil {
		return nil
	}
	return &out
}

func withoutFields(fields []Field, drop func(Field) bool) []Field {
	var out []Field
	for _, f := range fields {
		if !drop(f) {
			out = append(out, f)
		}
	}
	return out
}

func containsField(fields []Field, target Field) bool {
	for _, f := range fields {
		if f == target {
			return true
		}
	}
	return false
}
