package classify

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/airway/internal/record"
)

//go:embed catalogs.yaml
var embeddedCatalogs []byte

// RiskLevel buckets a weighted risk score for display.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Label returns the display form of the level.
func (l RiskLevel) Label() string {
	switch l {
	case RiskLow:
		return "Low"
	case RiskModerate:
		return "Moderate"
	case RiskHigh:
		return "High"
	}
	return "Unknown"
}

// Bucket boundaries. Scores below moderateFrom are low, scores from
// highFrom upward are high.
const (
	moderateFrom = 1
	highFrom     = 4
)

// RiskFactor is one immutable catalog entry.
type RiskFactor struct {
	ID       string `yaml:"id" json:"id"`
	Label    string `yaml:"label" json:"label"`
	Weight   int    `yaml:"weight" json:"weight"`
	Category string `yaml:"category" json:"category"`
}

// Catalog is an ordered, indexed list of risk factors for one branch.
type Catalog struct {
	name    string
	factors []RiskFactor
	index   map[string]RiskFactor
}

// NewCatalog indexes factors, rejecting duplicates and weights outside 1-3.
func NewCatalog(name string, factors []RiskFactor) (Catalog, error) {
	c := Catalog{name: name, index: make(map[string]RiskFactor, len(factors))}
	for i, f := range factors {
		f.ID = strings.TrimSpace(f.ID)
		if f.ID == "" {
			return Catalog{}, fmt.Errorf("classify: catalog %s entry[%d]: id is required", name, i)
		}
		if f.Weight < 1 || f.Weight > 3 {
			return Catalog{}, fmt.Errorf("classify: catalog %s factor %s: weight must be 1-3, got %d", name, f.ID, f.Weight)
		}
		if _, dup := c.index[f.ID]; dup {
			return Catalog{}, fmt.Errorf("classify: catalog %s: duplicate factor %s", name, f.ID)
		}
		c.index[f.ID] = f
		c.factors = append(c.factors, f)
	}
	return c, nil
}

// Name identifies the catalog.
func (c Catalog) Name() string { return c.name }

// Factors returns the entries in declaration order.
func (c Catalog) Factors() []RiskFactor {
	out := make([]RiskFactor, len(c.factors))
	copy(out, c.factors)
	return out
}

// Lookup finds a factor by id.
func (c Catalog) Lookup(id string) (RiskFactor, bool) {
	f, ok := c.index[id]
	return f, ok
}

// ScoreRiskFactors sums the catalog weight of every selected id. Unknown ids
// contribute 0 and repeated ids count once.
func ScoreRiskFactors(selected []string, catalog Catalog) int {
	seen := make(map[string]struct{}, len(selected))
	score := 0
	for _, id := range selected {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if f, ok := catalog.Lookup(id); ok {
			score += f.Weight
		}
	}
	return score
}

// RiskBucket maps a score to its display level.
func RiskBucket(score int) RiskLevel {
	switch {
	case score < moderateFrom:
		return RiskLow
	case score < highFrom:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// CatalogSet holds every branch catalog.
type CatalogSet struct {
	Maintenance Catalog
	Child       Catalog
}

// For selects the catalog used for an age group. Unknown or unset age groups
// use the maintenance catalog.
func (s CatalogSet) For(age *record.AgeGroup) Catalog {
	if age != nil && *age == record.AgeChild {
		return s.Child
	}
	return s.Maintenance
}

// ParseCatalogs decodes the catalog file format.
func ParseCatalogs(data []byte) (CatalogSet, error) {
	var raw struct {
		Maintenance []RiskFactor `yaml:"maintenance"`
		Child       []RiskFactor `yaml:"child"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return CatalogSet{}, fmt.Errorf("classify: decode catalogs: %w", err)
	}
	maintenance, err := NewCatalog("maintenance", raw.Maintenance)
	if err != nil {
		return CatalogSet{}, err
	}
	child, err := NewCatalog("child", raw.Child)
	if err != nil {
		return CatalogSet{}, err
	}
	return CatalogSet{Maintenance: maintenance, Child: child}, nil
}

var loadDefaultCatalogs = sync.OnceValues(func() (CatalogSet, error) {
	return ParseCatalogs(embeddedCatalogs)
})

// DefaultCatalogs returns the embedded catalogs, parsed once. It panics if the
// embedded file is malformed.
func DefaultCatalogs() CatalogSet {
	set, err := loadDefaultCatalogs()
	if err != nil {
		panic(err)
	}
	return set
}

// RiskOf scores the risk factors selected on rec against the catalog for its
// age group.
func RiskOf(rec record.Record) (int, RiskLevel) {
	score := ScoreRiskFactors(rec.RiskFactors, DefaultCatalogs().For(rec.AgeGroup))
	return score, RiskBucket(score)
}
