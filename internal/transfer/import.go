package transfer

import (
	"fmt"
	"slices"

	"github.com/jobops/jobops/internal/types"
)

// Creator adds records. *store.Store implements it.
type Creator interface {
	Create(in types.NewJob) (types.JobApplication, error)
}

// ImportOptions contains configuration for an import.
type ImportOptions struct {
	DryRun bool // Validate without creating anything
}

// ImportResult contains statistics about an import.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []string
}

// Import creates every record through c, so each gets a fresh id and
// lastUpdated and goes through the usual sync path. dateApplied and the
// optional fields are kept. Records that fail validation are skipped and
// reported; they do not stop the import.
//
// Records are created last-to-first so the collection keeps the file order.
// Errors are reported in file order.
func Import(c Creator, jobs []types.JobApplication, opts ImportOptions) ImportResult {
	var res ImportResult
	for i := len(jobs) - 1; i >= 0; i-- {
		j := jobs[i]
		in := types.NewJob{
			Company:        j.Company,
			Role:           j.Role,
			Status:         j.Status,
			DateApplied:    j.DateApplied,
			Link:           j.Link,
			Notes:          j.Notes,
			NextAction:     j.NextAction,
			NextActionDate: j.NextActionDate,
			Salary:         j.Salary,
			Location:       j.Location,
			Contacts:       j.Contacts,
			CustomFields:   j.CustomFields,
		}

		if opts.DryRun {
			probe := types.JobApplication{ID: "dry-run", Company: in.Company, Role: in.Role, Status: in.Status}
			if probe.Status == "" {
				probe.Status = types.StatusApplied
			}
			if err := probe.Validate(); err != nil {
				res.Skipped++
				res.Errors = append(res.Errors, fmt.Sprintf("record %d (%s): %v", i+1, j.Company, err))
				continue
			}
			res.Imported++
			continue
		}

		if _, err := c.Create(in); err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("record %d (%s): %v", i+1, j.Company, err))
			continue
		}
		res.Imported++
	}
	slices.Reverse(res.Errors)
	return res
}
