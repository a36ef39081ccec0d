package classify

import "github.com/kingrea/airway/internal/record"

// Biomarker thresholds, eosinophils in cells/µL and FeNO in ppb. Absent
// measurements read as 0 in every comparison.
const (
	EosinophilType2 = 150.0
	EosinophilHigh  = 300.0
	FeNOType2       = 20.0
	FeNOLowCutoff   = 25.0
	FeNOHigh        = 50.0
)

// Phenotype names the inflammatory phenotype shown to the clinician.
type Phenotype string

const (
	PhenotypeType2High Phenotype = "type2High"
	PhenotypeType2Low  Phenotype = "type2Low"
)

// PhenotypeResult is the phenotype gate output plus the facts behind it.
type PhenotypeResult struct {
	Phenotype Phenotype `json:"phenotype"`
	// Low is the "phenotype-low" pattern: eosinophils and FeNO both below
	// their low cut-offs at the same time.
	Low     bool     `json:"low"`
	Drivers []string `json:"drivers,omitempty"`
}

// PhenotypeOf evaluates the phenotype gate on the severe-branch sub-records.
func PhenotypeOf(rec record.Record) PhenotypeResult {
	bio := rec.BiomarkersOrZero()
	meds := rec.MedicationsOrZero()
	eos := record.Float(bio.Eosinophils)
	feno := record.Float(bio.FeNO)

	var drivers []string
	if eos >= EosinophilType2 {
		drivers = append(drivers, "eosinophils")
	}
	if feno >= FeNOType2 {
		drivers = append(drivers, "feno")
	}
	if record.Bool(bio.AllergicSensitization) {
		drivers = append(drivers, "allergen-driven")
	}
	if record.Bool(meds.MaintenanceOCS) {
		drivers = append(drivers, "maintenance-ocs")
	}

	res := PhenotypeResult{
		Phenotype: PhenotypeType2Low,
		Low:       eos < EosinophilType2 && feno < FeNOLowCutoff,
		Drivers:   drivers,
	}
	if len(drivers) > 0 {
		res.Phenotype = PhenotypeType2High
	}
	return res
}
