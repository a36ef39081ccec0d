// Package recommend ranks add-on biologic therapies for severe asthma.
//
// Each candidate is evaluated on its own: a base eligibility predicate, a
// fixed base score and a sequence of independent bonuses for auxiliary facts.
// Scores are clamped to 0-100 and the list is sorted best first. Results are
// computed on every call and never stored.
package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/airway/internal/classify"
	"github.com/kingrea/airway/internal/record"
)

// Strength is the qualitative label attached to a recommendation.
type Strength string

const (
	StrengthStrong      Strength = "Strongly Recommended"
	StrengthRecommended Strength = "Recommended"
)

const (
	maxScore        = 100
	strongFromScore = 90
)

// Recommendation is one ranked candidate.
type Recommendation struct {
	CandidateID     CandidateID `json:"candidateId"`
	Name            string      `json:"name"`
	Target          string      `json:"target"`
	Score           int         `json:"score"`
	Strength        Strength    `json:"strength"`
	Reason          string      `json:"reason"`
	Facts           []Fact      `json:"facts,omitempty"`
	EligibilityNote string      `json:"eligibilityNote"`
}

// Recommend evaluates rec behind the engine's own gate.
func Recommend(rec record.Record) []Recommendation {
	return Evaluate(rec, Eligible(rec))
}

// Eligible reports whether rec qualifies for biologic evaluation at all:
// treatment at step 4 or above (or high-dose ICS on record), together with
// ongoing poor control, frequent exacerbations or maintenance OCS.
func Eligible(rec record.Record) bool {
	meds := rec.MedicationsOrZero()
	if record.Int(rec.CurrentStep) < 4 && !record.Bool(meds.HighDoseICS) {
		return false
	}
	if level, ok := classify.ControlOf(rec); ok && level != classify.WellControlled {
		return true
	}
	return record.Int(meds.ExacerbationsPastYear) >= 2 || record.Bool(meds.MaintenanceOCS)
}

// Evaluate ranks every candidate whose eligibility predicate holds. It
// returns nil unless eligibleForCandidates is true.
func Evaluate(rec record.Record, eligibleForCandidates bool) []Recommendation {
	if !eligibleForCandidates {
		return nil
	}
	f := factsOf(rec)
	var out []Recommendation
	for _, c := range candidates {
		if !c.eligible(f) {
			continue
		}
		out = append(out, c.evaluate(f))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func (c candidate) evaluate(f facts) Recommendation {
	score := c.base
	forced := false
	var fired []Fact
	for _, b := range c.bonuses {
		if !b.holds(f) {
			continue
		}
		score += b.points
		fired = append(fired, b.fact)
		if b.force {
			forced = true
		}
	}
	score = clamp(score)

	strength := StrengthRecommended
	if forced || score >= strongFromScore {
		strength = StrengthStrong
	}
	return Recommendation{
		CandidateID:     c.id,
		Name:            c.name,
		Target:          c.target,
		Score:           score,
		Strength:        strength,
		Reason:          reason(c, fired),
		Facts:           fired,
		EligibilityNote: fmt.Sprintf("Eligible: %s.", c.note),
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

func reason(c candidate, fired []Fact) string {
	if len(fired) == 0 {
		return fmt.Sprintf("%s (%s) meets base eligibility.", c.name, c.target)
	}
	labels := make([]string, len(fired))
	for i, f := range fired {
		labels[i] = f.Label()
	}
	return fmt.Sprintf("%s (%s) supported by %s.", c.name, c.target, strings.Join(labels, "; "))
}

// Candidates lists the candidate ids in evaluation order.
func Candidates() []CandidateID {
	ids := make([]CandidateID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids
}
