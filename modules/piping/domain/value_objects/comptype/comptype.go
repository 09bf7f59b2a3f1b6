// Package comptype enumerates trackable piping component types and maps the
// free-text type keywords found in takeoff sheets onto them.
package comptype

import "strings"

// Type is a component classification. It decides the identity class used for
// deduplication and which progress template applies.
type Type string

const (
	Spool      Type = "spool"
	Valve      Type = "valve"
	Weld       Type = "field_weld"
	Instrument Type = "instrument"
	Support    Type = "support"
	Fitting    Type = "fitting"
	Flange     Type = "flange"
	Footage    Type = "footage"
	Misc       Type = "misc"
)

// IdentityClass determines how a component of a given type is identified.
type IdentityClass string

const (
	// ClassExact components carry one natural key (spool number, valve tag,
	// weld number). Repeats are conflicts.
	ClassExact IdentityClass = "exact"
	// ClassGrouped components are commodity items identified by
	// (drawing, commodity code, size) plus a sequence number.
	ClassGrouped IdentityClass = "grouped"
)

func (t Type) Class() IdentityClass {
	switch t {
	case Spool, Valve, Weld, Instrument:
		return ClassExact
	default:
		return ClassGrouped
	}
}

func (t Type) Valid() bool {
	switch t {
	case Spool, Valve, Weld, Instrument, Support, Fitting, Flange, Footage, Misc:
		return true
	}
	return false
}

// Rule maps a keyword to a type. Matching is ordered: the first rule whose
// keyword occurs as a whole word in the row's type text wins.
type Rule struct {
	Keyword string
	Type    Type
}

// DefaultRules covers the type vocabulary of the takeoff sheets we ingest.
// More specific keywords come first so "field weld" never matches "field".
func DefaultRules() []Rule {
	return []Rule{
		{"spool", Spool},
		{"valve", Valve},
		{"weld", Weld},
		{"instrument", Instrument},
		{"support", Support},
		{"hanger", Support},
		{"fitting", Fitting},
		{"elbow", Fitting},
		{"tee", Fitting},
		{"reducer", Fitting},
		{"flange", Flange},
		{"pipe", Footage},
		{"footage", Footage},
	}
}

// Classify resolves a free-text type keyword against ordered rules,
// case-insensitively. Keywords match on word boundaries: "steel" never
// triggers the "tee" rule. The second return value is false when nothing
// matched.
func Classify(keyword string, rules []Rule) (Type, bool) {
	words := tokenize(keyword)
	if len(words) == 0 {
		return "", false
	}
	for _, rule := range rules {
		if containsPhrase(words, tokenize(rule.Keyword)) {
			return rule.Type, true
		}
	}
	return "", false
}

// Excluded reports whether the keyword matches one of the excluded categories
// (consumables like gaskets that takeoffs list but the field does not track).
func Excluded(keyword string, excluded []string) bool {
	words := tokenize(keyword)
	if len(words) == 0 {
		return false
	}
	for _, e := range excluded {
		if phrase := tokenize(e); containsPhrase(words, phrase) {
			return true
		}
	}
	return false
}

// tokenize lowercases and splits on every non-alphanumeric rune, so "Field-Weld"
// and "field weld" produce the same words.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// containsPhrase reports whether phrase occurs as a contiguous run of words.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
