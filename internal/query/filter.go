// Package query derives read-only views over a snapshot of records.
//
// Nothing here mutates its input; every function returns a new slice.
package query

import (
	"strings"

	"github.com/jobops/jobops/internal/types"
)

// Filter narrows a list by free text and status.
type Filter struct {
	// Query matches company or role, case-insensitively, as a substring.
	Query string
	// Status keeps only records in this status. Empty means all.
	Status types.Status
}

// Match reports whether j passes the filter.
func (f Filter) Match(j types.JobApplication) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	q := strings.ToLower(f.Query)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(j.Company), q) ||
		strings.Contains(strings.ToLower(j.Role), q)
}

// Apply returns the records that pass the filter, in input order.
func (f Filter) Apply(jobs []types.JobApplication) []types.JobApplication {
	out := make([]types.JobApplication, 0, len(jobs))
	for _, j := range jobs {
		if f.Match(j) {
			out = append(out, j)
		}
	}
	return out
}
