// Package flatten turns a mapping.Resource's nested field tree into a flat,
// dotted-path row suitable for tabular export, and provides a bounded
// worker pool to apply that transform concurrently across many resources.
package flatten

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/mii-cds/cdstoolbox/internal/mapping"
)

// Row is a flattened resource: dotted field path to scalar string value.
type Row map[string]string

// Flatten walks resource's field tree depth-first, joining map keys and
// list indices with "." to produce one flat row. Nested maps/lists never
// appear as values themselves; only their leaves do.
func Flatten(resource mapping.Resource) Row {
	out := Row{}
	walk("", resource.Fields(), out)
	return out
}

func walk(prefix string, node any, out Row) {
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(joinPath(prefix, k), v[k], out)
		}
	case []any:
		for i, item := range v {
			walk(joinPath(prefix, strconv.Itoa(i)), item, out)
		}
	case string:
		out[prefix] = v
	case nil:
		return
	default:
		out[prefix] = fmt.Sprintf("%v", v)
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}
