package comptype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify_FirstMatchWins(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		keyword string
		want    Type
		ok      bool
	}{
		{"Pipe Spool", Spool, true},
		{"GATE VALVE 6in", Valve, true},
		{"field weld", Weld, true},
		{"Pipe support", Support, true},
		{"carbon steel pipe", Footage, true},
		{"90 elbow", Fitting, true},
		{"Field-Weld", Weld, true},
		{"stainless steel", "", false},
		{"unknown thing", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			got, ok := Classify(tt.keyword, rules)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestType_Class(t *testing.T) {
	require.Equal(t, ClassExact, Spool.Class())
	require.Equal(t, ClassExact, Weld.Class())
	require.Equal(t, ClassGrouped, Support.Class())
	require.Equal(t, ClassGrouped, Misc.Class())
}

func TestExcluded(t *testing.T) {
	excluded := []string{"gasket", "bolt"}
	require.True(t, Excluded("Spiral Gasket", excluded))
	require.True(t, Excluded("BOLT SET", excluded))
	require.False(t, Excluded("valve", excluded))
	require.False(t, Excluded("", excluded))
}
