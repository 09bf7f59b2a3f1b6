// Package docid canonicalizes free-text document and code identifiers so that
// cosmetic variants of the same number compare equal.
package docid

import "strings"

func isSeparator(r byte) bool {
	switch r {
	case '-', '_', '.', '/', '\\', ' ', '\t':
		return true
	}
	return false
}

func isDigit(r byte) bool { return r >= '0' && r <= '9' }

// Normalize maps a raw identifier to its canonical form: trims, uppercases,
// collapses separator runs to a single "-", joins digit runs that a lone
// separator split apart, and strips leading zeros from purely numeric
// segments. Mixed alphanumeric segments are preserved verbatim. Empty or
// all-separator input normalizes to the empty string.
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	// Collapse separator runs and trim separators at both ends.
	var b strings.Builder
	b.Grow(len(s))
	sepRun := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSeparator(c) {
			if b.Len() > 0 {
				sepRun++
			}
			continue
		}
		if sepRun > 0 {
			// A single separator between two digits is an artifact of
			// formatting ("0-0-1" means "001") and is dropped. A compound
			// run ("250 . 07") is a deliberate segment boundary and stays.
			last := b.String()[b.Len()-1]
			if sepRun > 1 || !isDigit(last) || !isDigit(c) {
				b.WriteByte('-')
			}
			sepRun = 0
		}
		b.WriteByte(c)
	}

	segments := strings.Split(b.String(), "-")
	for i, seg := range segments {
		segments[i] = stripLeadingZeros(seg)
	}
	return strings.Join(segments, "-")
}

// stripLeadingZeros reduces purely numeric segments: "0001" -> "1", "000" -> "0".
// Segments containing any non-digit are returned unchanged.
func stripLeadingZeros(seg string) string {
	if seg == "" {
		return seg
	}
	for i := 0; i < len(seg); i++ {
		if !isDigit(seg[i]) {
			return seg
		}
	}
	trimmed := strings.TrimLeft(seg, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
