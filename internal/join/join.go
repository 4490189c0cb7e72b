// Package join executes ordered join specifications over loaded tables to
// produce a single wide row stream, per the mapping engine's join planner.
package join

import (
	"fmt"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
)

// Kind is a join kind.
type Kind string

const (
	Inner Kind = "inner"
	Left  Kind = "left"
	Right Kind = "right"
	Outer Kind = "outer"
)

// Spec names exactly two tables, a key field per table, and a join kind.
type Spec struct {
	LeftTable  string `json:"leftTable" yaml:"leftTable"`
	LeftKey    string `json:"leftKey" yaml:"leftKey"`
	RightTable string `json:"rightTable" yaml:"rightTable"`
	RightKey   string `json:"rightKey" yaml:"rightKey"`
	Kind       Kind   `json:"kind" yaml:"kind"`
}

// Table is the loaded form of one table: an ordered list of column/value rows.
type Table struct {
	Rows []map[string]string
}

// Row is one row of the accumulated joined table. Values holds the final,
// prefixed/deduplicated column set; Unprefixed additionally maps each
// column's base name (without its "table." prefix) to the same value, so the
// mapping engine can resolve a column reference without knowing which table
// it came from.
type Row struct {
	Values     map[string]string
	Unprefixed map[string]string
}

// Resolve looks up name against the row's final columns, falling back to the
// unprefixed view. The bool result is false only when name is not a column of
// this joined row at all (an unknown column reference), as distinct from a
// column whose resolved value is merely absent/sentinel.
func (r Row) Resolve(name string) (string, bool) {
	if v, ok := r.Values[name]; ok {
		return v, true
	}
	if v, ok := r.Unprefixed[name]; ok {
		return v, true
	}
	return "", false
}

// RowSet is the accumulated, joined table produced by Plan.
type RowSet struct {
	Rows []Row
}

// Plan executes specs in order over tables, per §4.5: prefix every column
// with its source table except designated join keys, merge left-to-right,
// and dedup _x/_y residues preferring the left operand. If specs is empty,
// the result is a prefixed copy of the first entry of usedTables.
func Plan(tables map[string]*Table, usedTables []string, specs []Spec) (*RowSet, error) {
	if len(specs) == 0 {
		if len(usedTables) == 0 {
			return &RowSet{}, nil
		}
		name := usedTables[0]
		t, ok := tables[name]
		if !ok {
			return nil, cdserr.Wrap(cdserr.UnknownTable, cdserr.ScopeMapping, name, "table not loaded", nil)
		}
		rows := make([]Row, 0, len(t.Rows))
		for _, r := range t.Rows {
			rows = append(rows, newRow(prefixRow(name, r, nil)))
		}
		return &RowSet{Rows: rows}, nil
	}

	joinKeys := collectJoinKeys(specs)

	var accumulated *RowSet
	for _, s := range specs {
		leftTable, ok := tables[s.LeftTable]
		if !ok {
			return nil, cdserr.Wrap(cdserr.UnknownTable, cdserr.ScopeMapping, s.LeftTable, "table not loaded", nil)
		}
		rightTable, ok := tables[s.RightTable]
		if !ok {
			return nil, cdserr.Wrap(cdserr.UnknownTable, cdserr.ScopeMapping, s.RightTable, "table not loaded", nil)
		}

		rightRows := prefixRows(s.RightTable, rightTable.Rows, joinKeys[s.RightTable])

		if accumulated == nil {
			leftRows := prefixRows(s.LeftTable, leftTable.Rows, joinKeys[s.LeftTable])
			accumulated = mergeRows(leftRows, s.LeftKey, rightRows, s.RightKey, s.Kind)
			continue
		}
		accumulated = mergeRows(accumulated.Rows, s.LeftKey, rightRows, s.RightKey, s.Kind)
	}
	return accumulated, nil
}

func collectJoinKeys(specs []Spec) map[string]map[string]bool {
	keys := map[string]map[string]bool{}
	add := func(table, key string) {
		if keys[table] == nil {
			keys[table] = map[string]bool{}
		}
		keys[table][key] = true
	}
	for _, s := range specs {
		add(s.LeftTable, s.LeftKey)
		add(s.RightTable, s.RightKey)
	}
	return keys
}

func prefixRow(table string, row map[string]string, exempt map[string]bool) map[string]string {
	out := make(map[string]string, len(row))
	for col, val := range row {
		if exempt[col] {
			out[col] = val
			continue
		}
		out[fmt.Sprintf("%s.%s", table, col)] = val
	}
	return out
}

func prefixRows(table string, rows []map[string]string, exempt map[string]bool) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, newRow(prefixRow(table, r, exempt)))
	}
	return out
}

func newRow(values map[string]string) Row {
	unprefixed := make(map[string]string, len(values))
	for k, v := range values {
		if idx := lastDot(k); idx >= 0 {
			base := k[idx+1:]
			unprefixed[base] = v
		}
	}
	return Row{Values: values, Unprefixed: unprefixed}
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// mergeRows performs a hash join of kind between left and right on their
// respective (already-prefix-exempt) key columns, then dedups any _x/_y
// residue produced when the two sides share a column name.
func mergeRows(left []Row, leftKey string, right []Row, rightKey string, kind Kind) *RowSet {
	rightByKey := map[string][]Row{}
	for _, r := range right {
		if v, ok := r.Values[rightKey]; ok {
			rightByKey[v] = append(rightByKey[v], r)
		}
	}

	var out []Row
	matchedRight := map[int]bool{}
	rightIndex := map[string][]int{}
	for i, r := range right {
		if v, ok := r.Values[rightKey]; ok {
			rightIndex[v] = append(rightIndex[v], i)
		}
	}

	for _, l := range left {
		key, ok := l.Values[leftKey]
		matches := rightByKey[key]
		if ok && len(matches) > 0 {
			for _, idxs := range rightIndex[key] {
				matchedRight[idxs] = true
			}
			for _, r := range matches {
				out = append(out, combine(l, r))
			}
			continue
		}
		if kind == Left || kind == Outer {
			out = append(out, combine(l, Row{}))
		}
	}

	if kind == Right || kind == Outer {
		for i, r := range right {
			if !matchedRight[i] {
				out = append(out, combine(Row{}, r))
			}
		}
	}

	return &RowSet{Rows: out}
}

func combine(left, right Row) Row {
	values := make(map[string]string, len(left.Values)+len(right.Values))
	xKeys := map[string]bool{}
	for k, v := range left.Values {
		if _, dup := right.Values[k]; dup {
			values[k+"_x"] = v
			xKeys[k] = true
			continue
		}
		values[k] = v
	}
	for k, v := range right.Values {
		if xKeys[k] {
			values[k+"_y"] = v
			continue
		}
		if _, dup := left.Values[k]; !dup {
			values[k] = v
		}
	}
	for k := range xKeys {
		values[k] = values[k+"_x"]
		delete(values, k+"_x")
		delete(values, k+"_y")
	}
	return newRow(values)
}
