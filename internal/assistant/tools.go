package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jobops/jobops/internal/dates"
	"github.com/jobops/jobops/internal/types"
)

// Tool names.
const (
	ToolAddJob       = "addJob"
	ToolUpdateStatus = "updateStatus"
)

// DefaultAddedNote is stored on records the assistant creates without notes.
const DefaultAddedNote = "Added via assistant"

var statusHint = "One of Applied, Interview, Offer, Rejected, Archived"

// Tools are the tool declarations sent with every chat request.
var Tools = []ToolSpec{
	{
		Name:        ToolAddJob,
		Description: "Add a new job application to the tracker.",
		Properties: map[string]any{
			"company":     map[string]any{"type": "string", "description": "Company name"},
			"role":        map[string]any{"type": "string", "description": "Job role or title"},
			"status":      map[string]any{"type": "string", "description": "Current status. " + statusHint},
			"link":        map[string]any{"type": "string", "description": "Link to the job description"},
			"notes":       map[string]any{"type": "string", "description": "Initial notes or details"},
			"dateApplied": map[string]any{"type": "string", "description": "When the user applied, YYYY-MM-DD or a phrase like 'yesterday'. Defaults to today"},
		},
		Required: []string{"company", "role"},
	},
	{
		Name:        ToolUpdateStatus,
		Description: "Update the status of an existing job application, found by company name.",
		Properties: map[string]any{
			"companyName": map[string]any{"type": "string", "description": "Name of the company to update (partial match)"},
			"newStatus":   map[string]any{"type": "string", "description": "New status. " + statusHint},
			"notes":       map[string]any{"type": "string", "description": "Optional note to append about the update"},
		},
		Required: []string{"companyName", "newStatus"},
	},
}

// AddJobArgs is the input of the addJob tool.
type AddJobArgs struct {
	Company     string `json:"company"`
	Role        string `json:"role"`
	Status      string `json:"status,omitempty"`
	Link        string `json:"link,omitempty"`
	Notes       string `json:"notes,omitempty"`
	DateApplied string `json:"dateApplied,omitempty"`
}

// UpdateStatusArgs is the input of the updateStatus tool.
type UpdateStatusArgs struct {
	CompanyName string `json:"companyName"`
	NewStatus   string `json:"newStatus"`
	Notes       string `json:"notes,omitempty"`
}

// MatchCompany returns the first record, in collection order, whose company
// contains name case-insensitively. There is no ranking: "Go" matches
// "Google" if Google comes first. An empty name matches nothing.
func MatchCompany(jobs []types.JobApplication, name string) (types.JobApplication, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return types.JobApplication{}, false
	}
	for _, j := range jobs {
		if strings.Contains(strings.ToLower(j.Company), needle) {
			return j, true
		}
	}
	return types.JobApplication{}, false
}

// AppendUpdateNote adds an update entry to existing Markdown notes.
func AppendUpdateNote(notes, note string) string {
	if note == "" {
		return notes
	}
	return notes + "\n\n**Update:** " + note
}

// runTool executes one tool call against the store and returns the reply
// shown to the user.
func (a *Assistant) runTool(call ToolCall) string {
	switch call.Name {
	case ToolAddJob:
		var args AddJobArgs
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return fmt.Sprintf("I couldn't read the details for that new application: %v", err)
		}
		return a.addJob(args)
	case ToolUpdateStatus:
		var args UpdateStatusArgs
		if err := json.Unmarshal(call.Input, &args); err != nil {
			return fmt.Sprintf("I couldn't read that status update: %v", err)
		}
		return a.updateStatus(args)
	}
	return fmt.Sprintf("I tried to use an unknown tool %q.", call.Name)
}

func (a *Assistant) addJob(args AddJobArgs) string {
	in := types.NewJob{
		Company: args.Company,
		Role:    args.Role,
		Status:  types.StatusApplied,
		Link:    args.Link,
		Notes:   args.Notes,
	}
	if in.Notes == "" {
		in.Notes = DefaultAddedNote
	}
	if args.Status != "" {
		st, err := types.ParseStatus(args.Status)
		if err != nil {
			return fmt.Sprintf("I couldn't add **%s**: %q is not a valid status.", args.Company, args.Status)
		}
		in.Status = st
	}
	now := a.now()
	in.DateApplied = dates.Today(now)
	if args.DateApplied != "" {
		if d, err := dates.ParseNatural(args.DateApplied, now); err == nil {
			in.DateApplied = d
		}
	}

	if _, err := a.store.Create(in); err != nil {
		return fmt.Sprintf("I couldn't add that application: %v", err)
	}
	return fmt.Sprintf("I've created the application for **%s** as %s.", args.Company, args.Role)
}

func (a *Assistant) updateStatus(args UpdateStatusArgs) string {
	st, err := types.ParseStatus(args.NewStatus)
	if err != nil {
		return fmt.Sprintf("I couldn't update that application: %q is not a valid status.", args.NewStatus)
	}
	job, ok := MatchCompany(a.store.Jobs(), args.CompanyName)
	if !ok {
		return fmt.Sprintf("I couldn't find a job matching %q.", args.CompanyName)
	}

	patch := types.Patch{Status: &st}
	if args.Notes != "" {
		patch.Notes = types.String(AppendUpdateNote(job.Notes, args.Notes))
	}
	if _, err := a.store.Update(job.ID, patch); err != nil {
		return fmt.Sprintf("I couldn't update **%s**: %v", job.Company, err)
	}
	return fmt.Sprintf("Status updated for **%s** to %s.", job.Company, st)
}
