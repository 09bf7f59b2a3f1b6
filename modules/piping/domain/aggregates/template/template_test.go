package template

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
)

func spoolMilestones() []Milestone {
	return []Milestone{
		{Name: "Receive", Weight: 5, Order: 1},
		{Name: "Erect", Weight: 40, Order: 2},
		{Name: "Connect", Weight: 40, Order: 3},
		{Name: "Punch", Weight: 5, Order: 4},
		{Name: "Test", Weight: 5, Order: 5},
		{Name: "Restore", Weight: 5, Order: 6},
	}
}

func TestNew_WeightInvariant(t *testing.T) {
	_, err := New(comptype.Spool, "spool-std", 1, spoolMilestones())
	require.NoError(t, err)

	bad := spoolMilestones()
	bad[0].Weight = 10
	_, err = New(comptype.Spool, "spool-bad", 1, bad)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sum to 105")

	_, err = New(comptype.Spool, "empty", 1, nil)
	require.Error(t, err)

	dup := spoolMilestones()
	dup[1].Name = "Receive"
	_, err = New(comptype.Spool, "dup", 1, dup)
	require.Error(t, err)
}

func TestCompletion_DiscreteWeights(t *testing.T) {
	tpl, err := New(comptype.Spool, "spool-std", 1, spoolMilestones())
	require.NoError(t, err)

	state := State{"Receive": 100, "Erect": 100}
	require.Equal(t, "45", tpl.Completion(state).String())

	state["Connect"] = 100
	state["Punch"] = 100
	state["Test"] = 100
	state["Restore"] = 100
	require.Equal(t, "100", tpl.Completion(state).String())

	require.Equal(t, "0", tpl.Completion(State{}).String())
}

func TestCompletion_PartialMilestone(t *testing.T) {
	tpl, err := New(comptype.Spool, "spool-fab", 2, []Milestone{
		{Name: "Fabricate", Weight: 16, Partial: true, Order: 1},
		{Name: "Receive", Weight: 4, Order: 2},
		{Name: "Erect", Weight: 40, Order: 3},
		{Name: "Connect", Weight: 40, Order: 4},
	})
	require.NoError(t, err)

	// A 16%-weight partial milestone at 50% contributes exactly 8 points,
	// regardless of other milestone states.
	require.Equal(t, "8", tpl.Completion(State{"Fabricate": 50}).String())
	require.Equal(t, "48", tpl.Completion(State{"Fabricate": 50, "Erect": 100}).String())

	// Discrete milestones contribute nothing until complete.
	require.Equal(t, "0", tpl.Completion(State{"Erect": 50}).String())
}

func TestCompletion_RoundsHalfUpToTwoDecimals(t *testing.T) {
	tpl, err := New(comptype.Footage, "footage-std", 1, []Milestone{
		{Name: "Install", Weight: 3, Partial: true, Order: 1},
		{Name: "Test", Weight: 97, Order: 2},
	})
	require.NoError(t, err)

	// 3 * 12.45% = 0.3735 -> 0.37; 3 * 12.5% = 0.375 -> 0.38 (half-up).
	require.Equal(t, "0.37", tpl.Completion(State{"Install": 12.45}).String())
	require.Equal(t, "0.38", tpl.Completion(State{"Install": 12.5}).String())
}

func TestCompletion_MonotonicUnderDiscreteCompletion(t *testing.T) {
	tpl, err := New(comptype.Spool, "spool-std", 1, spoolMilestones())
	require.NoError(t, err)

	state := State{}
	prev := tpl.Completion(state)
	for _, m := range tpl.Milestones() {
		state[m.Name] = 100
		next := tpl.Completion(state)
		require.True(t, next.GreaterThanOrEqual(prev),
			"completing %s decreased percent: %s -> %s", m.Name, prev, next)
		prev = next
	}
}

func TestViolatedPrerequisites(t *testing.T) {
	tpl, err := New(comptype.Spool, "spool-std", 1, spoolMilestones())
	require.NoError(t, err)

	violated := tpl.ViolatedPrerequisites("Connect", State{"Receive": 100})
	require.Equal(t, []string{"Erect"}, violated)

	require.Nil(t, tpl.ViolatedPrerequisites("Receive", State{}))
	require.Nil(t, tpl.ViolatedPrerequisites("Connect", State{"Receive": 100, "Erect": 100}))
	require.Nil(t, tpl.ViolatedPrerequisites("Nope", State{}))
}

func TestSatisfied(t *testing.T) {
	tpl, err := New(comptype.Spool, "spool-std", 1, spoolMilestones())
	require.NoError(t, err)

	require.False(t, tpl.Satisfied("Erect", State{"Erect": 50}))
	require.True(t, tpl.Satisfied("Erect", State{"Erect": 100}))
}
