package steps

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/airway/internal/record"
)

//go:embed steps.yaml
var embeddedSteps []byte

// Catalog is a validated, immutable step graph.
type Catalog struct {
	steps  []Step
	index  map[StepID]int
	guards Guards
}

type catalogFile struct {
	Steps []Step `yaml:"steps"`
}

// NewCatalog validates steps against guards and builds a catalog.
func NewCatalog(steps []Step, guards Guards) (*Catalog, error) {
	if guards == nil {
		guards = DefaultGuards()
	}
	c := &Catalog{
		steps:  make([]Step, len(steps)),
		index:  make(map[StepID]int, len(steps)),
		guards: guards,
	}
	copy(c.steps, steps)
	for i, s := range c.steps {
		if _, dup := c.index[s.ID]; dup {
			return nil, fmt.Errorf("steps: duplicate step %q", s.ID)
		}
		c.index[s.ID] = i
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that every declared StepID is defined, and that every
// successor, guard, option target and recover step resolves.
func (c *Catalog) Validate() error {
	for _, id := range allSteps {
		if _, ok := c.index[id]; !ok {
			return fmt.Errorf("steps: step %q is not defined", id)
		}
	}
	for _, s := range c.steps {
		if !s.ID.Known() {
			return fmt.Errorf("steps: unknown step id %q", s.ID)
		}
		if err := c.validateStep(s); err != nil {
			return fmt.Errorf("steps: %s: %w", s.ID, err)
		}
	}
	return nil
}

func (c *Catalog) validateStep(s Step) error {
	switch s.Kind {
	case KindChoice:
		if len(s.Options) == 0 {
			return fmt.Errorf("choice step needs options")
		}
	case KindMulti:
		if len(s.Options) == 0 && s.Source != SourceRiskCatalog {
			return fmt.Errorf("multi step needs options or a source")
		}
		if s.Field == "" {
			return fmt.Errorf("multi step needs a field")
		}
	case KindForm:
		if len(s.Questions) == 0 {
			return fmt.Errorf("form step needs questions")
		}
		for i, q := range s.Questions {
			if q.Field == "" {
				return fmt.Errorf("question[%d] has no field", i)
			}
		}
	case KindInfo:
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	if s.Field != "" && !s.Field.Known() {
		return fmt.Errorf("unknown field %q", s.Field)
	}
	for _, f := range s.Requires {
		if !f.Known() {
			return fmt.Errorf("requires unknown field %q", f)
		}
	}
	if len(s.Requires) > 0 && s.Recover == "" {
		return fmt.Errorf("requires fields but names no recover step")
	}
	if s.Recover != "" {
		if _, ok := c.index[s.Recover]; !ok {
			return fmt.Errorf("recover step %q is not defined", s.Recover)
		}
	}
	for _, e := range s.Next {
		if _, ok := c.index[e.To]; !ok {
			return fmt.Errorf("successor %q is not defined", e.To)
		}
		if _, ok := c.guards[e.guard()]; !ok {
			return fmt.Errorf("successor %q uses unregistered guard %q", e.To, e.guard())
		}
	}
	for _, opt := range s.Options {
		if opt.Next == "" {
			continue
		}
		if _, ok := s.edge(opt.Next); !ok {
			return fmt.Errorf("option %q targets %q which is not a successor", opt.Value, opt.Next)
		}
	}
	return nil
}

// Step returns the step with the given id.
func (c *Catalog) Step(id StepID) (Step, bool) {
	i, ok := c.index[id]
	if !ok {
		return Step{}, false
	}
	return c.steps[i], true
}

// Steps returns every step in catalog order.
func (c *Catalog) Steps() []Step {
	out := make([]Step, len(c.steps))
	copy(out, c.steps)
	return out
}

// Allowed returns nil when to is a successor of from whose guard holds on
// rec. Otherwise it returns a *TransitionError.
func (c *Catalog) Allowed(from, to StepID, rec record.Record) error {
	step, ok := c.Step(from)
	if !ok {
		return &TransitionError{From: from, To: to, Reason: "unknown source step"}
	}
	if _, ok := c.index[to]; !ok {
		return &TransitionError{From: from, To: to, Reason: "unknown target step"}
	}
	edge, ok := step.edge(to)
	if !ok {
		return &TransitionError{From: from, To: to, Reason: "not a successor"}
	}
	if !c.guards[edge.guard()](rec) {
		return &TransitionError{From: from, To: to, Reason: fmt.Sprintf("guard %q does not hold", edge.guard())}
	}
	return nil
}

// Successors lists the targets of from that are legal on rec.
func (c *Catalog) Successors(from StepID, rec record.Record) []StepID {
	step, ok := c.Step(from)
	if !ok {
		return nil
	}
	var out []StepID
	for _, e := range step.Next {
		if c.guards[e.guard()](rec) {
			out = append(out, e.To)
		}
	}
	return out
}

// Resolve picks the first legal successor of from on rec, which is the
// default continuation when an answer names no target of its own.
func (c *Catalog) Resolve(from StepID, rec record.Record) (StepID, bool) {
	next := c.Successors(from, rec)
	if len(next) == 0 {
		return "", false
	}
	return next[0], true
}

// Missing lists the fields step requires that are still unset on rec. A
// non-empty result means the step was reached without its upstream data; the
// step's Recover names where to go to supply it.
func (c *Catalog) Missing(id StepID, rec record.Record) []record.Field {
	step, ok := c.Step(id)
	if !ok {
		return nil
	}
	var out []record.Field
	for _, f := range step.Requires {
		if !rec.IsSet(f) {
			out = append(out, f)
		}
	}
	return out
}

// ParseCatalog decodes a YAML step catalog and validates it with the default
// guards.
func ParseCatalog(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("steps: catalog payload is empty")
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("steps: decode catalog: %w", err)
	}
	return NewCatalog(file.Steps, DefaultGuards())
}

// LoadCatalogReader reads a catalog from r.
func LoadCatalogReader(r io.Reader) (*Catalog, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("steps: read catalog: %w", err)
	}
	return ParseCatalog(content)
}

// LoadCatalogFile loads a catalog override from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("steps: read %s: %w", path, err)
	}
	catalog, parseErr := ParseCatalog(content)
	if parseErr != nil {
		return nil, fmt.Errorf("steps: %s: %w", path, parseErr)
	}
	return catalog, nil
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(embeddedSteps)
})

// Default returns the embedded catalog. It panics if the embedded file is
// malformed.
func Default() *Catalog {
	c, err := loadDefault()
	if err != nil {
		panic(err)
	}
	return c
}

// Embedded returns the raw embedded catalog, for display and as a template
// for override files.
func Embedded() []byte {
	out := make([]byte, len(embeddedSteps))
	copy(out, embeddedSteps)
	return out
}
