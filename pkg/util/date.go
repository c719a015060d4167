package util

import (
	"fmt"
	"strings"
	"time"
)

// ParseDate accepts YYYY-MM-DD or YYYYMMDD and returns midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{time.DateOnly, "20060102"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
}

// ParseDates parses a comma separated list of dates.
func ParseDates(s string) ([]time.Time, error) {
	parts := SplitList(s)
	out := make([]time.Time, 0, len(parts))
	for _, p := range parts {
		t, err := ParseDate(p)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
