package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobops/jobops/internal/dates"
	"github.com/jobops/jobops/internal/fields"
	"github.com/jobops/jobops/internal/types"
)

// resolveJob finds a record by exact id, unique id prefix, or unique
// company name (case-insensitive).
func resolveJob(jobs []types.JobApplication, ref string) (types.JobApplication, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return types.JobApplication{}, fmt.Errorf("no application given")
	}
	for _, j := range jobs {
		if j.ID == ref {
			return j, nil
		}
	}

	pick := func(match func(types.JobApplication) bool) (types.JobApplication, int) {
		var found types.JobApplication
		n := 0
		for _, j := range jobs {
			if match(j) {
				found = j
				n++
			}
		}
		return found, n
	}

	if j, n := pick(func(j types.JobApplication) bool { return strings.HasPrefix(j.ID, ref) }); n == 1 {
		return j, nil
	}
	j, n := pick(func(j types.JobApplication) bool { return strings.EqualFold(j.Company, ref) })
	switch n {
	case 1:
		return j, nil
	case 0:
		return types.JobApplication{}, fmt.Errorf("no application matches %q", ref)
	}
	return types.JobApplication{}, fmt.Errorf("%q matches %d applications; use the id", ref, n)
}

// resolveCustomFields maps label-or-id keys to definition ids.
func resolveCustomFields(ctx context.Context, reg *fields.Registry, in map[string]string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		def, ok := reg.Lookup(ctx, k)
		if !ok {
			return nil, fmt.Errorf("unknown custom field %q (see 'jobops fields list')", k)
		}
		out[def.ID] = v
	}
	return out, nil
}

// naturalDate normalizes a date flag value. Empty stays empty.
func naturalDate(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return dates.ParseNatural(s, now())
}

// shortID is the id prefix shown in tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
