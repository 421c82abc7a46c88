// Package types defines the records tracked by jobops.
package types

import (
	"fmt"
	"strings"
)

// Status is the pipeline stage of an application.
type Status string

const (
	StatusApplied   Status = "Applied"
	StatusInterview Status = "Interview"
	StatusOffer     Status = "Offer"
	StatusRejected  Status = "Rejected"
	StatusArchived  Status = "Archived"
)

// AllStatuses returns every valid status in pipeline order.
func AllStatuses() []Status {
	return []Status{StatusApplied, StatusInterview, StatusOffer, StatusRejected, StatusArchived}
}

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusApplied, StatusInterview, StatusOffer, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// Terminal reports whether s ends the active pipeline.
func (s Status) Terminal() bool {
	return s == StatusOffer || s == StatusRejected || s == StatusArchived
}

// ParseStatus resolves a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses() {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// JobApplication is the single persisted record.
// Field names on the wire match the remote mirror's column headers.
type JobApplication struct {
	// ===== Identity =====
	ID string `json:"id" yaml:"id" toml:"id"`

	// ===== Required =====
	Company string `json:"company" yaml:"company" toml:"company"`
	Role    string `json:"role" yaml:"role" toml:"role"`
	Status  Status `json:"status" yaml:"status" toml:"status"`

	// ===== Dates (YYYY-MM-DD) =====
	DateApplied string `json:"dateApplied" yaml:"dateApplied" toml:"dateApplied"`
	LastUpdated string `json:"lastUpdated" yaml:"lastUpdated" toml:"lastUpdated"`

	// ===== Optional =====
	Link           string `json:"link,omitempty" yaml:"link,omitempty" toml:"link,omitempty"`
	Notes          string `json:"notes,omitempty" yaml:"notes,omitempty" toml:"notes,omitempty"` // Markdown
	NextAction     string `json:"nextAction,omitempty" yaml:"nextAction,omitempty" toml:"nextAction,omitempty"`
	NextActionDate string `json:"nextActionDate,omitempty" yaml:"nextActionDate,omitempty" toml:"nextActionDate,omitempty"`
	Salary         string `json:"salary,omitempty" yaml:"salary,omitempty" toml:"salary,omitempty"`
	Location       string `json:"location,omitempty" yaml:"location,omitempty" toml:"location,omitempty"`
	Contacts       string `json:"contacts,omitempty" yaml:"contacts,omitempty" toml:"contacts,omitempty"`

	// ===== User-defined =====
	CustomFields map[string]string `json:"customFields" yaml:"customFields" toml:"customFields"`
}

// Validate checks the invariants every stored record must hold.
func (j *JobApplication) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(j.Company) == "" {
		return fmt.Errorf("%w: company", ErrMissingField)
	}
	if strings.TrimSpace(j.Role) == "" {
		return fmt.Errorf("%w: role", ErrMissingField)
	}
	if !j.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, j.Status)
	}
	return nil
}

// Clone returns a deep copy; CustomFields is never shared between copies.
func (j JobApplication) Clone() JobApplication {
	out := j
	out.CustomFields = make(map[string]string, len(j.CustomFields))
	for k, v := range j.CustomFields {
		out.CustomFields[k] = v
	}
	return out
}

// NewJob is the input to a create. Zero values take the defaults.
type NewJob struct {
	Company        string            `json:"company"`
	Role           string            `json:"role"`
	Status         Status            `json:"status,omitempty"`
	DateApplied    string            `json:"dateApplied,omitempty"`
	Link           string            `json:"link,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	NextAction     string            `json:"nextAction,omitempty"`
	NextActionDate string            `json:"nextActionDate,omitempty"`
	Salary         string            `json:"salary,omitempty"`
	Location       string            `json:"location,omitempty"`
	Contacts       string            `json:"contacts,omitempty"`
	CustomFields   map[string]string `json:"customFields,omitempty"`
}

// Patch is a partial update. Nil fields are left unchanged; a non-nil
// CustomFields replaces the whole map.
type Patch struct {
	Company        *string           `json:"company,omitempty"`
	Role           *string           `json:"role,omitempty"`
	Status         *Status           `json:"status,omitempty"`
	DateApplied    *string           `json:"dateApplied,omitempty"`
	Link           *string           `json:"link,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
	NextAction     *string           `json:"nextAction,omitempty"`
	NextActionDate *string           `json:"nextActionDate,omitempty"`
	Salary         *string           `json:"salary,omitempty"`
	Location       *string           `json:"location,omitempty"`
	Contacts       *string           `json:"contacts,omitempty"`
	CustomFields   map[string]string `json:"customFields,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Company == nil && p.Role == nil && p.Status == nil && p.DateApplied == nil &&
		p.Link == nil && p.Notes == nil && p.NextAction == nil && p.NextActionDate == nil &&
		p.Salary == nil && p.Location == nil && p.Contacts == nil && p.CustomFields == nil
}

// Apply merges the patch into j. LastUpdated is not touched here.
func (p Patch) Apply(j *JobApplication) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&j.Company, p.Company)
	set(&j.Role, p.Role)
	if p.Status != nil {
		j.Status = *p.Status
	}
	set(&j.DateApplied, p.DateApplied)
	set(&j.Link, p.Link)
	set(&j.Notes, p.Notes)
	set(&j.NextAction, p.NextAction)
	set(&j.NextActionDate, p.NextActionDate)
	set(&j.Salary, p.Salary)
	set(&j.Location, p.Location)
	set(&j.Contacts, p.Contacts)
	if p.CustomFields != nil {
		j.CustomFields = make(map[string]string, len(p.CustomFields))
		for k, v := range p.CustomFields {
			j.CustomFields[k] = v
		}
	}
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// StatusPtr returns a pointer to s, for building patches.
func StatusPtr(s Status) *Status { return &s }
