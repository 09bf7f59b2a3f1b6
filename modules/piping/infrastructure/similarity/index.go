// Package similarity finds near-duplicate drawing numbers before operator
// typos fragment the dataset. It indexes letter trigrams of normalized
// numbers, so lookup cost scales with posting-list size instead of comparing
// the candidate against every drawing pairwise.
package similarity

import (
	"sort"

	"github.com/google/uuid"
)

type Entry struct {
	ID    uuid.UUID
	Value string
}

type Match struct {
	ID    uuid.UUID
	Value string
	Score float64
}

// Index is an immutable trigram index over the active drawing numbers of one
// project. Built once per validation pass and discarded with it.
type Index struct {
	entries  []Entry
	sets     [][]string
	postings map[string][]int
}

func NewIndex(entries []Entry) *Index {
	ix := &Index{
		entries:  entries,
		sets:     make([][]string, len(entries)),
		postings: make(map[string][]int),
	}
	for i, e := range entries {
		grams := trigrams(e.Value)
		ix.sets[i] = grams
		for _, g := range grams {
			ix.postings[g] = append(ix.postings[g], i)
		}
	}
	return ix
}

func (ix *Index) Len() int { return len(ix.entries) }

// Search returns entries scoring at least threshold against candidate, best
// first, ties broken by value ascending, capped at limit. exclude skips the
// candidate's own row when it is already persisted.
func (ix *Index) Search(candidate string, threshold float64, limit int, exclude uuid.UUID) []Match {
	if candidate == "" || limit <= 0 {
		return nil
	}
	grams := trigrams(candidate)
	if len(grams) == 0 {
		return nil
	}

	// Count shared trigrams per entry; only entries sharing at least one
	// trigram with the candidate can score above zero.
	overlap := make(map[int]int)
	for _, g := range grams {
		for _, i := range ix.postings[g] {
			overlap[i]++
		}
	}

	matches := make([]Match, 0, len(overlap))
	for i, shared := range overlap {
		e := ix.entries[i]
		if exclude != uuid.Nil && e.ID == exclude {
			continue
		}
		score := dice(shared, len(grams), len(ix.sets[i]))
		if e.Value == candidate {
			score = 1.0
		}
		if score >= threshold {
			matches = append(matches, Match{ID: e.ID, Value: e.Value, Score: score})
		}
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].Value < matches[b].Value
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// dice is the Sørensen–Dice coefficient over trigram sets.
func dice(shared, lenA, lenB int) float64 {
	if lenA+lenB == 0 {
		return 0
	}
	return 2 * float64(shared) / float64(lenA+lenB)
}

// trigrams returns the distinct padded letter trigrams of s. Padding keeps
// short identifiers comparable, the pg_trgm way.
func trigrams(s string) []string {
	if s == "" {
		return nil
	}
	padded := "  " + s + " "
	seen := make(map[string]struct{})
	out := make([]string, 0, len(padded))
	for i := 0; i+3 <= len(padded); i++ {
		g := padded[i : i+3]
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
