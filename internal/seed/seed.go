// Package seed provides the demo pipeline shown on a fresh install.
package seed

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jobops/jobops/internal/dates"
	"github.com/jobops/jobops/internal/types"
)

//go:embed demo.yaml
var demoYAML []byte

type entry struct {
	Company          string       `yaml:"company"`
	Role             string       `yaml:"role"`
	Status           types.Status `yaml:"status"`
	AppliedDaysAgo   int          `yaml:"applied_days_ago"`
	UpdatedDaysAgo   int          `yaml:"updated_days_ago"`
	Link             string       `yaml:"link"`
	Notes            string       `yaml:"notes"`
	NextAction       string       `yaml:"next_action"`
	NextActionInDays *int         `yaml:"next_action_in_days"`
	Salary           string       `yaml:"salary"`
	Location         string       `yaml:"location"`
	Contacts         string       `yaml:"contacts"`
}

// Parse resolves a seed document against now.
func Parse(data []byte, now time.Time) ([]types.JobApplication, error) {
	var doc struct {
		Jobs []entry `yaml:"jobs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}

	jobs := make([]types.JobApplication, 0, len(doc.Jobs))
	for i, e := range doc.Jobs {
		j := types.JobApplication{
			ID:           uuid.NewString(),
			Company:      e.Company,
			Role:         e.Role,
			Status:       e.Status,
			DateApplied:  dates.Format(now.AddDate(0, 0, -e.AppliedDaysAgo)),
			LastUpdated:  dates.Format(now.AddDate(0, 0, -e.UpdatedDaysAgo)),
			Link:         e.Link,
			Notes:        strings.TrimSpace(e.Notes),
			NextAction:   e.NextAction,
			Salary:       e.Salary,
			Location:     e.Location,
			Contacts:     e.Contacts,
			CustomFields: map[string]string{},
		}
		if e.NextActionInDays != nil {
			j.NextActionDate = dates.Format(now.AddDate(0, 0, *e.NextActionInDays))
		}
		if err := j.Validate(); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Demo returns the embedded demo pipeline relative to now.
func Demo(now time.Time) []types.JobApplication {
	jobs, err := Parse(demoYAML, now)
	if err != nil {
		// The embedded document is fixed at build time.
		panic(err)
	}
	return jobs
}
