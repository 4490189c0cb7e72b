// Package builtin registers the compiled-in processor, condition, and
// modifier plugins via init(), the Go-idiomatic rendering of the original
// tool's directory-of-files plugin discovery: what used to be a directory of
// Python modules becomes a directory of Go packages, each registering itself
// on import.
package builtin

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mii-cds/cdstoolbox/internal/plugin"
)

func init() {
	plugin.RegisterCondition("notequals", notEquals)
	plugin.RegisterCondition("equals", equals)
	plugin.RegisterCondition("daterange", dateRange)
}

// notEquals reports whether value differs from param. The atom-dispatch
// loop in condexpr already handles the ","/"+"/parens composition, so this
// plugin only ever sees a single atom string as param.
func notEquals(param, value string) (bool, error) {
	return strings.TrimSpace(value) != param, nil
}

func equals(param, value string) (bool, error) {
	return strings.TrimSpace(value) == param, nil
}

// dateRange reports whether value, parsed as an RFC3339 or date-only
// timestamp, falls within the inclusive range named by param, formatted
// "start:end" with each bound as YYYY-MM-DD.
func dateRange(param, value string) (bool, error) {
	bounds := strings.SplitN(param, ":", 2)
	if len(bounds) != 2 {
		return false, fmt.Errorf("daterange: param must be \"start:end\", got %q", param)
	}
	start, err := time.Parse("2006-01-02", bounds[0])
	if err != nil {
		return false, fmt.Errorf("daterange: invalid start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", bounds[1])
	if err != nil {
		return false, fmt.Errorf("daterange: invalid end date: %w", err)
	}
	v, err := parseFlexibleDate(value)
	if err != nil {
		return false, fmt.Errorf("daterange: invalid value: %w", err)
	}
	return !v.Before(start) && !v.After(end), nil
}

func parseFlexibleDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

// digitsOnly mirrors the original FirstNCharModifier's validation of its
// parameter before use by firstNChars in modifiers.go.
func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	_, err := strconv.Atoi(s)
	return err == nil
}
