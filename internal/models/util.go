package models

import (
	"math"
	"strings"
	"time"
)

// ParseTimestampPtr parses an RFC 3339 timestamp. Blank or malformed input
// yields nil.
func ParseTimestampPtr(raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &t
}

// ClampPct clamps a percentage to [0, 100].
func ClampPct(v float64) float64 {
	return math.Max(0, math.Min(v, 100))
}
