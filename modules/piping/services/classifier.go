package services

import (
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/pkg/configuration"
)

// Classifier maps free-text type keywords from takeoff rows onto component
// types, applying the configured exclusion list and unmatched policy.
type Classifier struct {
	rules    []comptype.Rule
	excluded []string
	policy   string
}

func NewClassifier(conf configuration.ImportOptions) *Classifier {
	return &Classifier{
		rules:    comptype.DefaultRules(),
		excluded: conf.ExcludedKeywords,
		policy:   conf.UnmatchedPolicy,
	}
}

// Classification is the outcome for one keyword. Exactly one of the flags is
// meaningful: excluded rows are dropped with a skip reason, rejected rows
// become validation errors.
type Classification struct {
	Type     comptype.Type
	Excluded bool
	Rejected bool
}

func (c *Classifier) Classify(keyword string) Classification {
	if comptype.Excluded(keyword, c.excluded) {
		return Classification{Excluded: true}
	}
	if t, ok := comptype.Classify(keyword, c.rules); ok {
		return Classification{Type: t}
	}
	if c.policy == configuration.UnmatchedReject {
		return Classification{Rejected: true}
	}
	return Classification{Type: comptype.Misc}
}
