package repo

import (
	"fmt"
	"strings"
)

// FormatLimitOffset returns a LIMIT/OFFSET clause, omitting parts that are not set.
func FormatLimitOffset(limit, offset int) string {
	if limit > 0 && offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	if limit > 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	if offset > 0 {
		return fmt.Sprintf("OFFSET %d", offset)
	}
	return ""
}

// BatchPlaceholders builds "($1,$2),($3,$4),..." for a multi-row VALUES insert
// with fields columns per row, starting at placeholder number start.
func BatchPlaceholders(rows, fields, start int) string {
	var sb strings.Builder
	n := start
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(")
		for f := 0; f < fields; f++ {
			if f > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "$%d", n)
			n++
		}
		sb.WriteString(")")
	}
	return sb.String()
}

// AdvisoryLockKey derives a stable signed 64-bit key for pg_advisory_xact_lock
// from a namespace and a textual identifier. FNV-1a, same on every run.
func AdvisoryLockKey(namespace, id string) int64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	var h uint64 = offset64
	for _, s := range []string{namespace, "\x00", id} {
		for i := 0; i < len(s); i++ {
			h ^= uint64(s[i])
			h *= prime64
		}
	}
	return int64(h)
}
