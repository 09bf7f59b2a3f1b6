package template

import "github.com/shopspring/decimal"

// State is the current milestone-state map of one component: milestone name to
// progress value in [0, 100]. Discrete milestones hold 0 or 100. The map is a
// cache derived from the milestone event ledger, never the other way around.
type State map[string]float64

const complete = 100.0

// Completion derives the weighted percent complete from the template and a
// state map. It is a pure function so it can run on every write: it never
// touches the ledger. Result carries two decimal places, rounded half-up.
func (t Template) Completion(state State) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	total := decimal.Zero
	for _, m := range t.milestones {
		v := state[m.Name]
		if v <= 0 {
			continue
		}
		if v > complete {
			v = complete
		}
		if !m.Partial && v < complete {
			// A discrete milestone contributes nothing until complete.
			continue
		}
		contribution := decimal.NewFromInt(int64(m.Weight)).
			Mul(decimal.NewFromFloat(v)).
			Div(hundred)
		total = total.Add(contribution)
	}
	percent := total.Round(2)
	if percent.GreaterThan(hundred) {
		return hundred
	}
	return percent
}

// Satisfied reports whether the named milestone counts as done for ordering
// purposes. Partial milestones must reach 100 to satisfy a prerequisite.
func (t Template) Satisfied(name string, state State) bool {
	return state[name] >= complete
}

// ViolatedPrerequisites returns the names of lower-order milestones not yet
// satisfied when completing name. Field crews legitimately work out of order,
// so callers flag rather than reject these.
func (t Template) ViolatedPrerequisites(name string, state State) []string {
	target, ok := t.Milestone(name)
	if !ok {
		return nil
	}
	var violated []string
	for _, m := range t.milestones {
		if m.Order >= target.Order || m.Name == name {
			continue
		}
		if !t.Satisfied(m.Name, state) {
			violated = append(violated, m.Name)
		}
	}
	return violated
}
