package recommend

import (
	"github.com/kingrea/airway/internal/classify"
	"github.com/kingrea/airway/internal/record"
)

// CandidateID identifies an add-on biologic therapy.
type CandidateID string

const (
	Omalizumab   CandidateID = "omalizumab"
	Mepolizumab  CandidateID = "mepolizumab"
	Benralizumab CandidateID = "benralizumab"
	Dupilumab    CandidateID = "dupilumab"
	Tezepelumab  CandidateID = "tezepelumab"
)

// Fact is a tag for one clinical fact that fired during evaluation.
type Fact string

const (
	FactEosinophils260   Fact = "eosinophils>=260"
	FactEosinophils300   Fact = "eosinophils>=300"
	FactFeNO20           Fact = "feno>=20"
	FactFeNO25           Fact = "feno>=25"
	FactFeNO50           Fact = "feno>=50"
	FactChildhoodOnset   Fact = "childhood-onset"
	FactAdultOnset       Fact = "adult-onset"
	FactMaintenanceOCS   Fact = "maintenance-ocs"
	FactSteroidDependent Fact = "steroid-dependent"
	FactNasalPolyps      Fact = "nasal-polyps"
	FactChronicUrticaria Fact = "chronic-urticaria"
	FactAtopicDermatitis Fact = "atopic-dermatitis"
	FactEGPA             Fact = "egpa"
	FactPhenotypeLow     Fact = "phenotype-low"
	FactExacerbations2   Fact = "exacerbations>=2"
)

var factLabels = map[Fact]string{
	FactEosinophils260:   "blood eosinophils ≥260/µL",
	FactEosinophils300:   "blood eosinophils ≥300/µL",
	FactFeNO20:           "FeNO ≥20 ppb",
	FactFeNO25:           "FeNO ≥25 ppb",
	FactFeNO50:           "FeNO ≥50 ppb",
	FactChildhoodOnset:   "childhood-onset asthma",
	FactAdultOnset:       "adult-onset asthma",
	FactMaintenanceOCS:   "on maintenance oral corticosteroids",
	FactSteroidDependent: "steroid-dependent",
	FactNasalPolyps:      "nasal polyps",
	FactChronicUrticaria: "chronic spontaneous urticaria",
	FactAtopicDermatitis: "moderate-severe atopic dermatitis",
	FactEGPA:             "eosinophilic granulomatosis with polyangiitis",
	FactPhenotypeLow:     "low eosinophils and low FeNO",
	FactExacerbations2:   "two or more exacerbations in the past year",
}

// Label returns the display text for the fact.
func (f Fact) Label() string {
	if label, ok := factLabels[f]; ok {
		return label
	}
	return string(f)
}

// Comorbidity ids used by the bonus rules.
const (
	ComorbidityNasalPolyps      = "nasal-polyps"
	ComorbidityChronicUrticaria = "chronic-urticaria"
	ComorbidityAtopicDermatitis = "atopic-dermatitis"
	ComorbidityEGPA             = "egpa"
)

// facts is the evaluated view of a record. Absent numbers are 0.
type facts struct {
	rec         record.Record
	eosinophils float64
	feno        float64
	totalIgE    float64
	sensitized  bool
	exacerbs    int
	ocs         bool
	steroidDep  bool
	adultOnset  *bool
	phenotype   classify.PhenotypeResult
}

func factsOf(rec record.Record) facts {
	bio := rec.BiomarkersOrZero()
	meds := rec.MedicationsOrZero()
	return facts{
		rec:         rec,
		eosinophils: record.Float(bio.Eosinophils),
		feno:        record.Float(bio.FeNO),
		totalIgE:    record.Float(bio.TotalIgE),
		sensitized:  record.Bool(bio.AllergicSensitization),
		exacerbs:    record.Int(meds.ExacerbationsPastYear),
		ocs:         record.Bool(meds.MaintenanceOCS),
		steroidDep:  record.Bool(meds.SteroidDependent),
		adultOnset:  rec.DemographicsOrZero().AdultOnset,
		phenotype:   classify.PhenotypeOf(rec),
	}
}

type bonus struct {
	fact   Fact
	points int
	// force marks facts that make the candidate "Strongly Recommended"
	// whatever the score.
	force bool
	holds func(facts) bool
}

type candidate struct {
	id       CandidateID
	name     string
	target   string
	base     int
	note     string
	eligible func(facts) bool
	bonuses  []bonus
}

func comorbidity(id string) func(facts) bool {
	return func(f facts) bool { return f.rec.HasComorbidity(id) }
}

// candidates is evaluated in declaration order; ties in score keep it.
var candidates = []candidate{
	{
		id:     Omalizumab,
		name:   "Omalizumab",
		target: "anti-IgE",
		base:   75,
		note:   "allergic sensitization, total IgE 30-1500 IU/mL and at least one exacerbation in the past year",
		eligible: func(f facts) bool {
			return f.sensitized && f.totalIgE >= 30 && f.totalIgE <= 1500 && f.exacerbs >= 1
		},
		bonuses: []bonus{
			{fact: FactEosinophils260, points: 5, holds: func(f facts) bool { return f.eosinophils >= 260 }},
			{fact: FactFeNO20, points: 5, holds: func(f facts) bool { return f.feno >= 20 }},
			{fact: FactChildhoodOnset, points: 5, holds: func(f facts) bool { return f.adultOnset != nil && !*f.adultOnset }},
			{fact: FactNasalPolyps, points: 5, holds: comorbidity(ComorbidityNasalPolyps)},
			{fact: FactChronicUrticaria, points: 10, force: true, holds: comorbidity(ComorbidityChronicUrticaria)},
		},
	},
	{
		id:     Mepolizumab,
		name:   "Mepolizumab",
		target: "anti-IL5",
		base:   78,
		note:   "blood eosinophils ≥150/µL and at least one exacerbation in the past year",
		eligible: func(f facts) bool {
			return f.eosinophils >= 150 && f.exacerbs >= 1
		},
		bonuses: []bonus{
			{fact: FactEosinophils300, points: 8, holds: func(f facts) bool { return f.eosinophils >= 300 }},
			{fact: FactMaintenanceOCS, points: 8, holds: func(f facts) bool { return f.ocs }},
			{fact: FactAdultOnset, points: 4, holds: func(f facts) bool { return record.Bool(f.adultOnset) }},
			{fact: FactNasalPolyps, points: 5, holds: comorbidity(ComorbidityNasalPolyps)},
			{fact: FactEGPA, points: 12, force: true, holds: comorbidity(ComorbidityEGPA)},
		},
	},
	{
		id:     Benralizumab,
		name:   "Benralizumab",
		target: "anti-IL5 receptor",
		base:   80,
		note:   "blood eosinophils ≥300/µL and at least one exacerbation in the past year",
		eligible: func(f facts) bool {
			return f.eosinophils >= 300 && f.exacerbs >= 1
		},
		bonuses: []bonus{
			{fact: FactMaintenanceOCS, points: 8, holds: func(f facts) bool { return f.ocs }},
			{fact: FactSteroidDependent, points: 5, force: true, holds: func(f facts) bool { return f.steroidDep }},
			{fact: FactAdultOnset, points: 4, holds: func(f facts) bool { return record.Bool(f.adultOnset) }},
			{fact: FactNasalPolyps, points: 5, holds: comorbidity(ComorbidityNasalPolyps)},
		},
	},
	{
		id:     Dupilumab,
		name:   "Dupilumab",
		target: "anti-IL4Rα",
		base:   76,
		note:   "blood eosinophils 150-1500/µL or FeNO ≥25 ppb, and at least one exacerbation in the past year",
		eligible: func(f facts) bool {
			type2 := (f.eosinophils >= 150 && f.eosinophils <= 1500) || f.feno >= 25
			return type2 && f.exacerbs >= 1
		},
		bonuses: []bonus{
			{fact: FactFeNO50, points: 8, holds: func(f facts) bool { return f.feno >= 50 }},
			{fact: FactMaintenanceOCS, points: 6, holds: func(f facts) bool { return f.ocs }},
			{fact: FactNasalPolyps, points: 8, holds: comorbidity(ComorbidityNasalPolyps)},
			{fact: FactAtopicDermatitis, points: 12, force: true, holds: comorbidity(ComorbidityAtopicDermatitis)},
		},
	},
	{
		id:     Tezepelumab,
		name:   "Tezepelumab",
		target: "anti-TSLP",
		base:   70,
		note:   "at least one exacerbation in the past year; acts across inflammatory phenotypes",
		eligible: func(f facts) bool {
			return f.exacerbs >= 1
		},
		bonuses: []bonus{
			{fact: FactPhenotypeLow, points: 20, holds: func(f facts) bool { return f.phenotype.Low }},
			{fact: FactEosinophils300, points: 5, holds: func(f facts) bool { return f.eosinophils >= 300 }},
			{fact: FactFeNO25, points: 5, holds: func(f facts) bool { return f.feno >= 25 }},
			{fact: FactExacerbations2, points: 3, holds: func(f facts) bool { return f.exacerbs >= 2 }},
		},
	},
}
