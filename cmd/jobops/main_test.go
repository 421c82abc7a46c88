package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobops/jobops/internal/types"
)

func TestResolveJob(t *testing.T) {
	jobs := []types.JobApplication{
		{ID: "3f2a9c10-aaaa", Company: "Acme"},
		{ID: "3f2b0000-bbbb", Company: "Globex"},
		{ID: "9e1d0000-cccc", Company: "Globex"},
	}

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"3f2a9c10-aaaa", "3f2a9c10-aaaa", false},
		{"3f2a", "3f2a9c10-aaaa", false},
		{"acme", "3f2a9c10-aaaa", false},
		{"3f2", "", true},    // ambiguous prefix, no company match
		{"globex", "", true}, // two companies
		{"initech", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := resolveJob(jobs, tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Errorf("resolveJob(%q) = %s, want error", tt.ref, got.ID)
			}
			continue
		}
		if err != nil || got.ID != tt.want {
			t.Errorf("resolveJob(%q) = %s, %v; want %s", tt.ref, got.ID, err, tt.want)
		}
	}
}

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "x", Run: func(*cobra.Command, []string) {}}
	addRecordFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() failed: %v", err)
	}
	return cmd
}

func TestPatchFromFlags_OnlyChanged(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.Local) }
	defer func() { now = time.Now }()

	cmd := newFlagCmd(t, "--status", "interview", "--notes", "", "--next-date", "tomorrow")
	p, err := patchFromFlags(cmd)
	if err != nil {
		t.Fatalf("patchFromFlags() failed: %v", err)
	}
	if p.Status == nil || *p.Status != types.StatusInterview {
		t.Errorf("Status = %v, want Interview", p.Status)
	}
	if p.Notes == nil || *p.Notes != "" {
		t.Errorf("Notes = %v, want explicit empty", p.Notes)
	}
	if p.NextActionDate == nil || *p.NextActionDate != "2024-05-11" {
		t.Errorf("NextActionDate = %v, want 2024-05-11", p.NextActionDate)
	}
	if p.Company != nil || p.Role != nil || p.DateApplied != nil {
		t.Error("unchanged flags should leave fields nil")
	}

	if _, err := patchFromFlags(newFlagCmd(t, "--status", "ghosted")); err == nil {
		t.Error("patchFromFlags() should reject an unknown status")
	}
}

func TestNewJobFromFlags(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.Local) }
	defer func() { now = time.Now }()

	in, err := newJobFromFlags(newFlagCmd(t, "--company", " Acme ", "--role", "Dev", "--date", "yesterday"))
	if err != nil {
		t.Fatalf("newJobFromFlags() failed: %v", err)
	}
	if in.Company != "Acme" || in.Role != "Dev" {
		t.Errorf("got %+v", in)
	}
	if in.DateApplied != "2024-05-09" {
		t.Errorf("DateApplied = %q, want 2024-05-09", in.DateApplied)
	}
	if in.Status != "" {
		t.Errorf("Status = %q, want empty so the store defaults it", in.Status)
	}
}
