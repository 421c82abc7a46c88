package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jobops/jobops/internal/types"
)

// Direction is a sort order. None leaves input order untouched.
type Direction string

const (
	None Direction = ""
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// CustomFieldPrefix selects a custom field value as the sort key, as in
// "customFields.referral".
const CustomFieldPrefix = "customFields."

// Sort orders records by a single field.
type Sort struct {
	Key string
	Dir Direction
}

// Toggle returns the next sort state after the user selects key. Selecting
// a new key starts ascending; selecting the current key cycles
// asc, desc, then back to unsorted.
func (s Sort) Toggle(key string) Sort {
	if key != s.Key || s.Dir == None {
		return Sort{Key: key, Dir: Asc}
	}
	if s.Dir == Asc {
		return Sort{Key: key, Dir: Desc}
	}
	return Sort{Key: key}
}

// ParseSort builds a Sort from a key and a direction name. An empty key
// yields the unsorted state.
func ParseSort(key, dir string) (Sort, error) {
	if key == "" {
		return Sort{}, nil
	}
	if !ValidKey(key) {
		return Sort{}, fmt.Errorf("unknown sort key %q", key)
	}
	switch Direction(strings.ToLower(dir)) {
	case "", Asc:
		return Sort{Key: key, Dir: Asc}, nil
	case Desc:
		return Sort{Key: key, Dir: Desc}, nil
	}
	return Sort{}, fmt.Errorf("unknown sort direction %q", dir)
}

var fieldGetters = map[string]func(types.JobApplication) string{
	"id":             func(j types.JobApplication) string { return j.ID },
	"company":        func(j types.JobApplication) string { return j.Company },
	"role":           func(j types.JobApplication) string { return j.Role },
	"status":         func(j types.JobApplication) string { return string(j.Status) },
	"dateApplied":    func(j types.JobApplication) string { return j.DateApplied },
	"lastUpdated":    func(j types.JobApplication) string { return j.LastUpdated },
	"link":           func(j types.JobApplication) string { return j.Link },
	"notes":          func(j types.JobApplication) string { return j.Notes },
	"nextAction":     func(j types.JobApplication) string { return j.NextAction },
	"nextActionDate": func(j types.JobApplication) string { return j.NextActionDate },
	"salary":         func(j types.JobApplication) string { return j.Salary },
	"location":       func(j types.JobApplication) string { return j.Location },
	"contacts":       func(j types.JobApplication) string { return j.Contacts },
}

// ValidKey reports whether key names a sortable field.
func ValidKey(key string) bool {
	if id, ok := strings.CutPrefix(key, CustomFieldPrefix); ok {
		return id != ""
	}
	_, ok := fieldGetters[key]
	return ok
}

// Value returns the raw string value of key on j. Missing values are "".
func Value(j types.JobApplication, key string) string {
	if id, ok := strings.CutPrefix(key, CustomFieldPrefix); ok {
		return j.CustomFields[id]
	}
	if get, ok := fieldGetters[key]; ok {
		return get(j)
	}
	return ""
}

// Apply returns a stably sorted copy of jobs. Values compare byte-wise.
func (s Sort) Apply(jobs []types.JobApplication) []types.JobApplication {
	out := slices.Clone(jobs)
	if s.Dir == None || s.Key == "" {
		return out
	}
	slices.SortStableFunc(out, func(a, b types.JobApplication) int {
		c := strings.Compare(Value(a, s.Key), Value(b, s.Key))
		if s.Dir == Desc {
			return -c
		}
		return c
	})
	return out
}

// View is the filter then sort pipeline the list and API use.
func View(jobs []types.JobApplication, f Filter, s Sort) []types.JobApplication {
	return s.Apply(f.Apply(jobs))
}
