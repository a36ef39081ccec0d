package record

import (
	"encoding/json"
	"testing"
)

func TestMergeOverwritesOnlyNamedFields(t *testing.T) {
	base := Merge(Default(), Patch{Record: Record{
		AgeGroup:    Ptr(AgeAdult),
		CurrentStep: Ptr(2),
	}})
	next := Merge(base, Patch{Record: Record{CurrentStep: Ptr(3)}})

	if next.AgeGroup == nil || *next.AgeGroup != AgeAdult {
		t.Fatalf("ageGroup should survive an unrelated patch, got %v", next.AgeGroup)
	}
	if Int(next.CurrentStep) != 3 {
		t.Fatalf("currentStep = %d, want 3", Int(next.CurrentStep))
	}
	if Int(base.CurrentStep) != 2 {
		t.Fatalf("merge must not mutate its input, base currentStep = %d", Int(base.CurrentStep))
	}
}

func TestMergeClearResetsField(t *testing.T) {
	rec := Merge(Default(), Patch{Record: Record{Pathway: Ptr(Pathway1), CurrentStep: Ptr(3)}})
	rec = Merge(rec, Patch{Clear: []Field{FieldPathway}})
	if rec.Pathway != nil {
		t.Fatalf("pathway should be cleared, got %v", *rec.Pathway)
	}
	if Int(rec.CurrentStep) != 3 {
		t.Fatalf("clearing pathway must leave currentStep alone")
	}
}

func TestMergeReplacesNestedWholesale(t *testing.T) {
	rec := Merge(Default(), Patch{Record: Record{Biomarkers: &Biomarkers{
		Eosinophils: Ptr(300.0),
		FeNO:        Ptr(40.0),
	}}})
	rec = Merge(rec, Patch{Record: Record{Biomarkers: &Biomarkers{TotalIgE: Ptr(200.0)}}})
	if rec.Biomarkers.Eosinophils != nil || rec.Biomarkers.FeNO != nil {
		t.Fatalf("wholesale replacement should drop siblings, got %+v", rec.Biomarkers)
	}
	if Float(rec.Biomarkers.TotalIgE) != 200 {
		t.Fatalf("totalIgE = %v, want 200", Float(rec.Biomarkers.TotalIgE))
	}
}

func TestMergeNestedKeepsSiblings(t *testing.T) {
	rec := Merge(Default(), Patch{Record: Record{Biomarkers: &Biomarkers{
		Eosinophils: Ptr(300.0),
		FeNO:        Ptr(40.0),
	}}})
	rec = MergeNested(rec, NestedPatch{Biomarkers: &Biomarkers{TotalIgE: Ptr(200.0)}})
	got := rec.BiomarkersOrZero()
	if Float(got.Eosinophils) != 300 || Float(got.FeNO) != 40 || Float(got.TotalIgE) != 200 {
		t.Fatalf("nested merge lost a sibling: %+v", got)
	}

	fresh := MergeNested(Default(), NestedPatch{Medications: &Medications{MaintenanceOCS: Ptr(true)}})
	if fresh.Medications == nil || !Bool(fresh.Medications.MaintenanceOCS) {
		t.Fatalf("nested merge should create the sub-record on demand")
	}
}

func TestCloneIsDeep(t *testing.T) {
	rec := Merge(Default(), Patch{Record: Record{
		RiskFactors: []string{"smoking"},
		Biomarkers:  &Biomarkers{FeNO: Ptr(10.0)},
	}})
	clone := rec.Clone()
	clone.RiskFactors[0] = "changed"
	*clone.Biomarkers.FeNO = 99
	if rec.RiskFactors[0] != "smoking" || Float(rec.Biomarkers.FeNO) != 10 {
		t.Fatalf("clone shares memory with the original: %+v", rec)
	}
}

func TestStoreReset(t *testing.T) {
	store := NewStore()
	store.Merge(Patch{Record: Record{AgeGroup: Ptr(AgeChild)}})
	store.Reset()
	if got := store.Record(); got.countSet() != 0 {
		t.Fatalf("reset should restore the all-nil record, got %+v", got)
	}
}

func TestAssign(t *testing.T) {
	cases := []struct {
		path    string
		value   string
		wantErr bool
		check   func(Record) bool
	}{
		{path: "ageGroup", value: "adult", check: func(r Record) bool { return *r.AgeGroup == AgeAdult }},
		{path: "ageGroup", value: "toddler", wantErr: true},
		{path: "diagnosisConfirmed", value: "yes", check: func(r Record) bool { return Bool(r.DiagnosisConfirmed) }},
		{path: "nightWaking", value: "no", check: func(r Record) bool { return r.NightWaking != nil && !*r.NightWaking }},
		{path: "currentStep", value: "6", wantErr: true},
		{path: "currentStep", value: "4", check: func(r Record) bool { return Int(r.CurrentStep) == 4 }},
		{path: "riskFactors", value: "smoking, smoking,obesity", check: func(r Record) bool { return len(r.RiskFactors) == 2 }},
		{path: "riskFactors", value: "", check: func(r Record) bool { return r.RiskFactors != nil && len(r.RiskFactors) == 0 }},
		{path: "biomarkers.eosinophils", value: "310", check: func(r Record) bool { return Float(r.Biomarkers.Eosinophils) == 310 }},
		{path: "biomarkers.feno", value: "abc", wantErr: true},
		{path: "biomarkers.eosinophils", value: "NaN", wantErr: true},
		{path: "biomarkers.eosinophils", value: "Inf", wantErr: true},
		{path: "biomarkers.totalIgE", value: "+Inf", wantErr: true},
		{path: "demographics.weightKg", value: "-Inf", wantErr: true},
		{path: "medications.exacerbationsPastYear", value: "-1", wantErr: true},
		{path: "medications.steroidDependent", value: "true", check: func(r Record) bool { return Bool(r.Medications.SteroidDependent) }},
		{path: "pathway.value", value: "x", wantErr: true},
		{path: "unknown", value: "x", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.path+"="+tc.value, func(t *testing.T) {
			patch, err := Assign(tc.path, tc.value)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("assign: %v", err)
			}
			if got := Merge(Default(), patch); !tc.check(got) {
				t.Fatalf("unexpected record %+v", got)
			}
		})
	}
}

func TestCombineFoldsPatches(t *testing.T) {
	a, _ := Assign("biomarkers.eosinophils", "300")
	b, _ := Assign("biomarkers.feno", "30")
	c, _ := Assign("pathway", "pathway2")
	combined := Combine(a, b, c)
	rec := Merge(Default(), combined)
	bio := rec.BiomarkersOrZero()
	if Float(bio.Eosinophils) != 300 || Float(bio.FeNO) != 30 {
		t.Fatalf("combined nested values lost: %+v", bio)
	}
	if rec.Pathway == nil || *rec.Pathway != Pathway2 {
		t.Fatalf("pathway = %v, want pathway2", rec.Pathway)
	}
}

func TestCombineLaterPatchWins(t *testing.T) {
	setPathway, _ := Assign("pathway", "pathway1")
	setFeno, _ := Assign("biomarkers.feno", "40")
	clearPathway := Patch{Clear: []Field{FieldPathway}}
	clearBiomarkers := Patch{Clear: []Field{FieldBiomarkers}}

	start := Merge(Default(), Patch{Record: Record{Pathway: Ptr(Pathway2)}})
	cases := []struct {
		name    string
		patches []Patch
		check   func(Record) bool
	}{
		{
			name:    "set after clear",
			patches: []Patch{clearPathway, setPathway},
			check:   func(r Record) bool { return r.Pathway != nil && *r.Pathway == Pathway1 },
		},
		{
			name:    "clear after set",
			patches: []Patch{setPathway, clearPathway},
			check:   func(r Record) bool { return r.Pathway == nil },
		},
		{
			name:    "nested after clear",
			patches: []Patch{clearBiomarkers, setFeno},
			check:   func(r Record) bool { return Float(r.BiomarkersOrZero().FeNO) == 40 },
		},
		{
			name:    "clear after nested",
			patches: []Patch{setFeno, clearBiomarkers},
			check:   func(r Record) bool { return r.Biomarkers == nil },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Merge(start, Combine(tc.patches...)); !tc.check(got) {
				t.Fatalf("unexpected record %+v", got)
			}
		})
	}
}

func TestPatchJSONFlattensRecordFields(t *testing.T) {
	var patch Patch
	payload := `{"ageGroup":"adult","currentStep":3,"clear":["pathway"],"nested":{"biomarkers":{"feno":25}}}`
	if err := json.Unmarshal([]byte(payload), &patch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if patch.AgeGroup == nil || Int(patch.CurrentStep) != 3 {
		t.Fatalf("record fields not decoded: %+v", patch.Record)
	}
	if len(patch.Clear) != 1 || patch.Clear[0] != FieldPathway {
		t.Fatalf("clear not decoded: %v", patch.Clear)
	}
	if err := (Patch{Clear: []Field{"bogus"}}).Validate(); err == nil {
		t.Fatalf("expected validation error for unknown clear field")
	}
}
