package bluetooth

import (
	"strings"

	"stereoguard/internal/domain"
)

// NormalizeName trims and lowercases a device name for comparison.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MatchName scores candidate against query. Contains works in either direction.
func MatchName(query string, candidate string) domain.MatchQuality {
	q, c := NormalizeName(query), NormalizeName(candidate)
	if q == "" || c == "" {
		return domain.MatchNone
	}
	if q == c {
		return domain.MatchExact
	}
	if strings.Contains(q, c) || strings.Contains(c, q) {
		return domain.MatchContains
	}
	return domain.MatchNone
}
