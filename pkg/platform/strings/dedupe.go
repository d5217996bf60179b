// Package strings holds the identifier normalization helpers shared by the
// reconciler, the lock layer and config parsing.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every value, drops blanks and keeps the first exact
// occurrence of each remaining value. Order is preserved.
//
//	DedupeAndTrim([]string{" kafka-1:9092", "kafka-1:9092", "", "kafka-2:9092"})
//	// []string{"kafka-1:9092", "kafka-2:9092"}
func DedupeAndTrim(values []string) []string {
	return dedupe(values, identity)
}

// DedupeFold is DedupeAndTrim with case-insensitive comparison. The first
// spelling seen wins, so callers control precedence through input order.
//
//	DedupeFold([]string{"Lorraine@x.com", " lorraine@X.com", "doc@x.com"})
//	// []string{"Lorraine@x.com", "doc@x.com"}
func DedupeFold(values []string) []string {
	return dedupe(values, strings.ToLower)
}

// Fold normalizes s for case-insensitive comparison and map keys.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func identity(s string) string { return s }

func dedupe(values []string, key func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := key(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
