// Package merge reduces fan-out results into a single aggregated table by
// summing a count column grouped by a key variable. Malformed rows and
// errored endpoints are skipped, never fatal: the merge is a pure function
// over whatever well-formed data the fan-out collected.
package merge

import (
	"sort"
	"strconv"

	"github.com/VODAN-Development/2025-fieldlab7/sparql"
)

// countVar is the binding variable holding the per-row count
const countVar = "count"

// Row is one aggregated row: a group key and its summed count
type Row struct {
	Key   string `json:"key"`
	Total int64  `json:"total"`
}

// Table is the merged result: one row per distinct observed group key.
// Rows are sorted by key, which makes the table independent of endpoint
// iteration order. A key never seen contributes no row, not a zero row.
type Table struct {
	GroupVar string `json:"group_var"`
	Rows     []Row  `json:"rows"`
}

// Empty reports whether no key contributed any valid count
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Get returns the total for a key
func (t Table) Get(key string) (int64, bool) {
	for _, row := range t.Rows {
		if row.Key == key {
			return row.Total, true
		}
	}
	return 0, false
}

// CountsByGroup merges per-endpoint count results. For every endpoint whose
// outcome is a well-formed success, every binding row carrying both the group
// variable and an integer-parsable count contributes to the running total for
// its key. String keys match exactly; no normalization or case folding.
func CountsByGroup(results map[string]sparql.Outcome, groupVar string) Table {
	combined := make(map[string]int64)

	for _, outcome := range results {
		if outcome.IsError() || outcome.Result == nil {
			continue
		}

		for _, row := range outcome.Result.BindingRows() {
			keyTerm, ok := row[groupVar]
			if !ok {
				continue
			}
			countTerm, ok := row[countVar]
			if !ok {
				continue
			}

			count, err := strconv.ParseInt(countTerm.Value, 10, 64)
			if err != nil {
				continue
			}

			combined[keyTerm.Value] += count
		}
	}

	rows := make([]Row, 0, len(combined))
	for key, total := range combined {
		rows = append(rows, Row{Key: key, Total: total})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })

	return Table{GroupVar: groupVar, Rows: rows}
}
