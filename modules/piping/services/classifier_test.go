package services_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/modules/piping/services"
	"github.com/pipetrak/pipetrak/pkg/configuration"
)

func TestClassifier_KeywordMapping(t *testing.T) {
	c := services.NewClassifier(testImportConf())

	cases := map[string]comptype.Type{
		"Field Weld":     comptype.Weld,
		"SHOP WELD":      comptype.Weld,
		"Gate Valve":     comptype.Valve,
		"Pipe Spool":     comptype.Spool,
		"pipe":           comptype.Footage,
		"90 Elbow":       comptype.Fitting,
		"Spring Hanger":  comptype.Support,
		"WN Flange":      comptype.Flange,
		"Level Gauge???": comptype.Misc,
	}
	for keyword, want := range cases {
		cls := c.Classify(keyword)
		require.False(t, cls.Excluded, keyword)
		require.False(t, cls.Rejected, keyword)
		require.Equal(t, want, cls.Type, keyword)
	}
}

func TestClassifier_ExclusionWinsOverRules(t *testing.T) {
	c := services.NewClassifier(testImportConf())

	// "Gasket" is excluded even though nothing else matches, and exclusion
	// is checked before rules so "Bolt Set" never classifies.
	require.True(t, c.Classify("Spiral Wound Gasket").Excluded)
	require.True(t, c.Classify("BOLT SET").Excluded)
}

func TestClassifier_RejectPolicy(t *testing.T) {
	conf := testImportConf()
	conf.UnmatchedPolicy = configuration.UnmatchedReject
	c := services.NewClassifier(conf)

	cls := c.Classify("Level Gauge")
	require.True(t, cls.Rejected)
	require.False(t, cls.Excluded)

	// Recognized keywords are unaffected by the policy.
	require.Equal(t, comptype.Weld, c.Classify("Field Weld").Type)
}
