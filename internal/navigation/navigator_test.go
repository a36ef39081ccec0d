package navigation

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kingrea/airway/internal/logbook"
	"github.com/kingrea/airway/internal/record"
	"github.com/kingrea/airway/internal/steps"
)

func patch(r record.Record) *record.Patch {
	return &record.Patch{Record: r}
}

func walkToTreatment(t *testing.T, n *Navigator) {
	t.Helper()
	moves := []struct {
		to    steps.StepID
		patch *record.Patch
	}{
		{steps.StepDiagnosis, patch(record.Record{AgeGroup: record.Ptr(record.AgeAdult)})},
		{steps.StepFrequency, patch(record.Record{DiagnosisConfirmed: record.Ptr(true)})},
		{steps.StepPathway, patch(record.Record{SymptomFrequency: record.Ptr(record.FrequencyMostDays), CurrentStep: record.Ptr(3)})},
		{steps.StepTreatment, patch(record.Record{Pathway: record.Ptr(record.Pathway1)})},
	}
	for _, m := range moves {
		if err := n.NavigateTo(m.to, m.patch); err != nil {
			t.Fatalf("navigate to %s: %v", m.to, err)
		}
	}
}

func TestEndToEndMaintenanceWalk(t *testing.T) {
	n := New(nil)
	walkToTreatment(t, n)

	rec := n.Record()
	if record.Int(rec.CurrentStep) != 3 {
		t.Fatalf("currentStep = %v, want 3", rec.CurrentStep)
	}
	if rec.Pathway == nil || *rec.Pathway != record.Pathway1 {
		t.Fatalf("pathway = %v, want pathway1", rec.Pathway)
	}
	if got := len(n.History()); got != 5 {
		t.Fatalf("history length = %d, want 5", got)
	}
	if n.Current() != steps.StepTreatment {
		t.Fatalf("current = %s", n.Current())
	}
}

func TestGoBackUndoesNavigationNotData(t *testing.T) {
	n := New(nil)
	walkToTreatment(t, n)
	before := n.Record()
	if !n.GoBack() {
		t.Fatalf("GoBack should pop")
	}
	if n.Current() != steps.StepPathway {
		t.Fatalf("current after back = %s, want pathway", n.Current())
	}
	if !reflect.DeepEqual(n.Record(), before) {
		t.Fatalf("back must leave the record as it was")
	}
}

func TestGoBackAtRootIsNoop(t *testing.T) {
	n := New(nil)
	if n.GoBack() {
		t.Fatalf("GoBack at root should report false")
	}
	if got := n.History(); len(got) != 1 || got[0] != steps.Initial {
		t.Fatalf("history = %v", got)
	}
}

func TestResetFromAnyState(t *testing.T) {
	n := New(nil)
	walkToTreatment(t, n)
	n.Reset()
	snap := n.Snapshot()
	if snap.Current != steps.Initial || len(snap.History) != 1 {
		t.Fatalf("reset state = %+v", snap)
	}
	if !reflect.DeepEqual(snap.Record, record.Default()) {
		t.Fatalf("reset record = %+v", snap.Record)
	}
}

func TestIllegalTransitionChangesNothing(t *testing.T) {
	book, err := logbook.New(filepath.Join(t.TempDir(), "journey.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	n := New(nil, WithLogbook(book))
	err = n.NavigateTo(steps.StepTreatment, patch(record.Record{AgeGroup: record.Ptr(record.AgeChild)}))
	if !errors.Is(err, steps.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition, got %v", err)
	}
	if n.Current() != steps.Initial || len(n.History()) != 1 {
		t.Fatalf("history moved on rejection")
	}
	if n.Record().AgeGroup != nil {
		t.Fatalf("patch applied on rejection")
	}
	lines, _ := book.Tail(5)
	if len(lines) == 0 || !strings.Contains(lines[len(lines)-1], "rejected start -> treatment") {
		t.Fatalf("rejection not logged: %v", lines)
	}
}

func TestGuardSeesMergedPatch(t *testing.T) {
	n := New(nil)
	if err := n.NavigateTo(steps.StepDiagnosis, nil); err == nil {
		t.Fatalf("age group unset: move should be refused")
	}
	if err := n.NavigateTo(steps.StepDiagnosis, patch(record.Record{AgeGroup: record.Ptr(record.AgeAdolescent)})); err != nil {
		t.Fatalf("patch carrying the age group should satisfy the guard: %v", err)
	}
}

func TestUncheckedAcceptsAnyTarget(t *testing.T) {
	n := New(nil, WithUnchecked())
	if err := n.NavigateTo(steps.StepSevereRecommendations, nil); err != nil {
		t.Fatalf("unchecked navigator refused: %v", err)
	}
	if n.Checked() {
		t.Fatalf("Checked should be false")
	}
}

func TestHooksRunBeforeStepChange(t *testing.T) {
	var n *Navigator
	var seen []string
	n = New(nil, WithUnchecked(), WithBeforeStep(func(from, to steps.StepID) {
		seen = append(seen, string(from)+">"+string(to))
	}))
	overlayOpen := true
	n.hooks = append(n.hooks, func(from, to steps.StepID) {
		if n.current() != from {
			t.Errorf("hook observed step %s, want %s", n.current(), from)
		}
		overlayOpen = false
	})
	if err := n.NavigateTo(steps.StepDiagnosis, nil); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if overlayOpen {
		t.Fatalf("overlay should be closed by the hook")
	}
	if len(seen) != 1 || seen[0] != "start>diagnosis" {
		t.Fatalf("hook calls = %v", seen)
	}
	if err := n.NavigateTo(steps.StepTreatment, nil); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("hook should run on every navigation")
	}
	n.GoBack()
	if len(seen) != 2 {
		t.Fatalf("hooks are for forward moves only")
	}
}

func TestHooksSkippedOnRejection(t *testing.T) {
	called := false
	n := New(nil, WithBeforeStep(func(steps.StepID, steps.StepID) { called = true }))
	_ = n.NavigateTo(steps.StepTreatment, nil)
	if called {
		t.Fatalf("hook ran for a rejected transition")
	}
}

func TestNestedUpdatesKeepSiblings(t *testing.T) {
	n := New(nil, WithUnchecked())
	n.ApplyNested(record.NestedPatch{Biomarkers: &record.Biomarkers{Eosinophils: record.Ptr(320.0)}})
	if err := n.NavigateNested(steps.StepSevereComorbidities, record.NestedPatch{
		Biomarkers: &record.Biomarkers{FeNO: record.Ptr(41.0)},
	}); err != nil {
		t.Fatalf("navigate nested: %v", err)
	}
	bio := n.Record().BiomarkersOrZero()
	if record.Float(bio.Eosinophils) != 320 || record.Float(bio.FeNO) != 41 {
		t.Fatalf("nested merge lost a sibling: %+v", bio)
	}
}

func TestApplyRejectsUnknownClear(t *testing.T) {
	n := New(nil)
	if _, err := n.Apply(record.Patch{Clear: []record.Field{"nope"}}); err == nil {
		t.Fatalf("expected unknown field error")
	}
	rec, err := n.Apply(record.Patch{Record: record.Record{Severity: record.Ptr(record.SeveritySevere)}})
	if err != nil || rec.Severity == nil {
		t.Fatalf("apply = %+v, %v", rec, err)
	}
}

func TestSharedStore(t *testing.T) {
	store := record.NewStore()
	n := New(nil, WithStore(store))
	if _, err := n.Apply(record.Patch{Record: record.Record{Pathway: record.Ptr(record.Pathway2)}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if store.Record().Pathway == nil {
		t.Fatalf("navigator should write through the supplied store")
	}
}
