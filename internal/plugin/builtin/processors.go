package builtin

import (
	"strings"

	"github.com/mii-cds/cdstoolbox/internal/plugin"
	"github.com/mii-cds/cdstoolbox/internal/sentinel"
)

func init() {
	plugin.RegisterProcessor("process_name", []string{"family", "given"}, processName)
	plugin.RegisterProcessor("concat", nil, concat)
	plugin.RegisterProcessor("coalesce", nil, coalesce)
}

// processName takes (family, given) and joins them given-first with a
// space, skipping either side if it is absent. Matches spec.md's worked
// example S1.
func processName(args ...string) (any, error) {
	var parts []string
	for i := len(args) - 1; i >= 0; i-- {
		if a := args[i]; !sentinel.IsAbsent(a) {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " "), nil
}

// concat joins every non-absent argument with a single space.
func concat(args ...string) (any, error) {
	var parts []string
	for _, a := range args {
		if !sentinel.IsAbsent(a) {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " "), nil
}

// coalesce returns the first non-absent argument, or the sentinel if all
// arguments are absent.
func coalesce(args ...string) (any, error) {
	for _, a := range args {
		if !sentinel.IsAbsent(a) {
			return a, nil
		}
	}
	return sentinel.Value, nil
}
