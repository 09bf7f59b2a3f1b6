package template

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
)

// Milestone is one weighted step of a progress template. Discrete milestones
// are either done or not; partial milestones report 0-100 progress.
type Milestone struct {
	Name    string
	Weight  int
	Partial bool
	Order   int
}

// Template is a versioned per-component-type milestone definition. Weights sum
// to 100. Once a component references a template it never changes; new
// requirements create a new version.
type Template struct {
	id            uuid.UUID
	componentType comptype.Type
	name          string
	version       int
	milestones    []Milestone
	createdAt     time.Time
}

func New(componentType comptype.Type, name string, version int, milestones []Milestone) (Template, error) {
	t := Template{
		componentType: componentType,
		name:          name,
		version:       version,
		milestones:    sortedByOrder(milestones),
	}
	if err := t.Validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}

func Hydrate(
	id uuid.UUID,
	componentType comptype.Type,
	name string,
	version int,
	milestones []Milestone,
	createdAt time.Time,
) Template {
	return Template{
		id:            id,
		componentType: componentType,
		name:          name,
		version:       version,
		milestones:    sortedByOrder(milestones),
		createdAt:     createdAt,
	}
}

func sortedByOrder(milestones []Milestone) []Milestone {
	out := make([]Milestone, len(milestones))
	copy(out, milestones)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (t Template) ID() uuid.UUID                { return t.id }
func (t Template) ComponentType() comptype.Type { return t.componentType }
func (t Template) Name() string                 { return t.name }
func (t Template) Version() int                 { return t.version }
func (t Template) Milestones() []Milestone      { return t.milestones }
func (t Template) CreatedAt() time.Time         { return t.createdAt }
func (t Template) IsZero() bool                 { return t.id == uuid.Nil && len(t.milestones) == 0 }

// Validate enforces the weight invariant and milestone uniqueness. A template
// failing validation must never be persisted or used for calculation.
func (t Template) Validate() error {
	if len(t.milestones) == 0 {
		return fmt.Errorf("template %q: no milestones", t.name)
	}
	sum := 0
	seen := make(map[string]struct{}, len(t.milestones))
	for _, m := range t.milestones {
		if m.Name == "" {
			return fmt.Errorf("template %q: milestone with empty name", t.name)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("template %q: duplicate milestone %q", t.name, m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.Weight < 0 {
			return fmt.Errorf("template %q: milestone %q has negative weight", t.name, m.Name)
		}
		sum += m.Weight
	}
	if sum != 100 {
		return fmt.Errorf("template %q: milestone weights sum to %d, want 100", t.name, sum)
	}
	return nil
}

// Milestone returns the named milestone definition.
func (t Template) Milestone(name string) (Milestone, bool) {
	for _, m := range t.milestones {
		if m.Name == name {
			return m, true
		}
	}
	return Milestone{}, false
}

func (t Template) HasMilestone(name string) bool {
	_, ok := t.Milestone(name)
	return ok
}
