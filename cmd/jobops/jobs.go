package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jobops/jobops/internal/query"
	"github.com/jobops/jobops/internal/types"
	"github.com/jobops/jobops/internal/ui"
)

var addCmd = &cobra.Command{
	Use:     "add",
	GroupID: "records",
	Short:   "Add an application",
	Long: `Add a job application.

Company and role are required. Status defaults to Applied and the applied
date to today. Dates accept YYYY-MM-DD or phrases like "yesterday" or
"next friday".

With no flags on a terminal, an interactive form is shown.

Examples:
  jobops add --company Acme --role "Backend Engineer"
  jobops add --company Globex --role SRE --status Interview --date "3 days ago"
  jobops add --company Initech --role Dev --field Referral=Kim`,
	Run: func(cmd *cobra.Command, args []string) {
		in, err := newJobFromFlags(cmd)
		if err != nil {
			fatalf("%v", err)
		}
		if cmd.Flags().NFlag() == 0 && ui.IsInteractive() {
			if in, err = ui.PromptNewJob(in, now()); err != nil {
				if errors.Is(err, ui.ErrAborted) {
					return
				}
				fatalf("%v", err)
			}
		}

		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		custom, _ := cmd.Flags().GetStringToString("field")
		if in.CustomFields, err = resolveCustomFields(cmd.Context(), a.fields, custom); err != nil {
			a.fatalf("%v", err)
		}

		job, err := a.store.Create(in)
		if err != nil {
			a.fatalf("%v", err)
		}
		if jsonOutput {
			printJSON(job)
			return
		}
		fmt.Printf("%s Added %s at %s %s\n", ui.RenderPass("✓"), job.Role, ui.RenderAccent(job.Company), ui.RenderMuted("("+shortID(job.ID)+")"))
	},
}

var updateCmd = &cobra.Command{
	Use:     "update <id|company>",
	GroupID: "records",
	Short:   "Update an application",
	Long: `Update fields of an application. Only the flags given are changed.

The application can be named by id, id prefix, or exact company name.

Examples:
  jobops update acme --status Interview --next-action "Prep system design" --next-date "next tuesday"
  jobops update 3f2a --notes "Recruiter call went well"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		job, err := resolveJob(a.store.Jobs(), args[0])
		if err != nil {
			a.fatalf("%v", err)
		}
		patch, err := patchFromFlags(cmd)
		if err != nil {
			a.fatalf("%v", err)
		}
		if custom, _ := cmd.Flags().GetStringToString("field"); len(custom) > 0 {
			resolved, err := resolveCustomFields(cmd.Context(), a.fields, custom)
			if err != nil {
				a.fatalf("%v", err)
			}
			merged := job.Clone().CustomFields
			for k, v := range resolved {
				if v == "" {
					delete(merged, k)
				} else {
					merged[k] = v
				}
			}
			patch.CustomFields = merged
		}
		if patch.Empty() {
			a.fatalf("nothing to update; pass at least one field flag")
		}

		updated, err := a.store.Update(job.ID, patch)
		if err != nil {
			a.fatalf("%v", err)
		}
		if jsonOutput {
			printJSON(updated)
			return
		}
		fmt.Printf("%s Updated %s (%s)\n", ui.RenderPass("✓"), ui.RenderAccent(updated.Company), ui.RenderStatus(updated.Status))
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id|company>",
	Aliases: []string{"rm"},
	GroupID: "records",
	Short:   "Delete an application",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		job, err := resolveJob(a.store.Jobs(), args[0])
		if err != nil {
			a.fatalf("%v", err)
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			if !ui.IsInteractive() {
				a.fatalf("refusing to delete without --yes when not on a terminal")
			}
			ok, err := ui.Confirm(fmt.Sprintf("Delete %s at %s?", job.Role, job.Company))
			if err != nil {
				a.fatalf("%v", err)
			}
			if !ok {
				return
			}
		}
		if err := a.store.Delete(job.ID); err != nil {
			a.fatalf("%v", err)
		}
		fmt.Printf("%s Deleted %s\n", ui.RenderPass("✓"), job.Company)
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	GroupID: "records",
	Short:   "List applications",
	Long: `List applications, newest first.

Sort keys are record fields (company, role, status, dateApplied, lastUpdated,
...) or customFields.<id>. Applications untouched for more than 14 days are
marked stale.

Examples:
  jobops list --status Interview
  jobops list --search eng --sort company
  jobops list --sort lastUpdated --dir desc --json`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		search, _ := cmd.Flags().GetString("search")
		statusName, _ := cmd.Flags().GetString("status")
		sortKey, _ := cmd.Flags().GetString("sort")
		dir, _ := cmd.Flags().GetString("dir")
		staleOnly, _ := cmd.Flags().GetBool("stale")

		f := query.Filter{Query: search}
		if statusName != "" {
			st, err := types.ParseStatus(statusName)
			if err != nil {
				a.fatalf("%v", err)
			}
			f.Status = st
		}
		srt, err := query.ParseSort(sortKey, dir)
		if err != nil {
			a.fatalf("%v", err)
		}

		t := now()
		jobs := query.View(a.store.Jobs(), f, srt)
		if staleOnly {
			kept := jobs[:0]
			for _, j := range jobs {
				if query.IsStale(j, t) {
					kept = append(kept, j)
				}
			}
			jobs = kept
		}

		if jsonOutput {
			printJSON(jobs)
			return
		}
		if len(jobs) == 0 {
			fmt.Println(ui.RenderMuted("No applications found."))
			return
		}

		rows := make([][]string, 0, len(jobs))
		for _, j := range jobs {
			updated := j.LastUpdated
			if query.IsStale(j, t) {
				updated += " " + ui.RenderWarn("stale")
			}
			rows = append(rows, []string{
				shortID(j.ID),
				ui.Truncate(j.Company, 24),
				ui.Truncate(j.Role, 28),
				ui.RenderStatus(j.Status),
				j.DateApplied,
				updated,
				ui.Truncate(j.NextAction, 24),
			})
		}
		fmt.Println(ui.Table([]string{"ID", "Company", "Role", "Status", "Applied", "Updated", "Next"}, rows))
		fmt.Printf("%d of %d applications\n", len(jobs), a.store.Len())
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id|company>",
	GroupID: "records",
	Short:   "Show one application in full",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		job, err := resolveJob(a.store.Jobs(), args[0])
		if err != nil {
			a.fatalf("%v", err)
		}
		if jsonOutput {
			printJSON(job)
			return
		}

		fmt.Printf("\n%s  %s\n", ui.RenderAccent(job.Company), ui.RenderStatus(job.Status))
		fmt.Printf("%s\n\n", job.Role)
		line := func(label, value string) {
			if value != "" {
				fmt.Printf("  %-14s %s\n", label+":", value)
			}
		}
		line("ID", job.ID)
		line("Applied", job.DateApplied)
		line("Updated", job.LastUpdated)
		line("Link", job.Link)
		line("Location", job.Location)
		line("Salary", job.Salary)
		line("Contacts", job.Contacts)
		if job.NextAction != "" {
			next := job.NextAction
			if job.NextActionDate != "" {
				next += " (" + job.NextActionDate + ")"
				if query.IsOverdue(job.NextActionDate, now()) {
					next += " " + ui.RenderFail("overdue")
				}
			}
			line("Next", next)
		}

		if len(job.CustomFields) > 0 {
			labels := map[string]string{}
			for _, d := range a.fields.List(cmd.Context()) {
				labels[d.ID] = d.Label
			}
			keys := make([]string, 0, len(job.CustomFields))
			for k := range job.CustomFields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				label := labels[k]
				if label == "" {
					label = k
				}
				line(label, job.CustomFields[k])
			}
		}
		if job.Notes != "" {
			fmt.Printf("\n%s\n", indent(job.Notes, "  "))
		}
		fmt.Println()
	},
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().String("company", "", "Company name")
	cmd.Flags().String("role", "", "Role title")
	cmd.Flags().String("status", "", "Status: Applied, Interview, Offer, Rejected, Archived")
	cmd.Flags().String("date", "", "Date applied (YYYY-MM-DD or natural language)")
	cmd.Flags().String("link", "", "Job posting URL")
	cmd.Flags().String("notes", "", "Notes (markdown)")
	cmd.Flags().String("next-action", "", "Next follow-up step")
	cmd.Flags().String("next-date", "", "Date of the next step")
	cmd.Flags().String("salary", "", "Salary range")
	cmd.Flags().String("location", "", "Location")
	cmd.Flags().String("contacts", "", "Contacts")
	cmd.Flags().StringToString("field", nil, "Custom field value as label=value (repeatable)")
}

func newJobFromFlags(cmd *cobra.Command) (types.NewJob, error) {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(v)
	}
	in := types.NewJob{
		Company:    get("company"),
		Role:       get("role"),
		Link:       get("link"),
		Notes:      get("notes"),
		NextAction: get("next-action"),
		Salary:     get("salary"),
		Location:   get("location"),
		Contacts:   get("contacts"),
	}
	if s := get("status"); s != "" {
		st, err := types.ParseStatus(s)
		if err != nil {
			return in, err
		}
		in.Status = st
	}
	var err error
	if in.DateApplied, err = naturalDate(get("date")); err != nil {
		return in, err
	}
	if in.NextActionDate, err = naturalDate(get("next-date")); err != nil {
		return in, err
	}
	return in, nil
}

func patchFromFlags(cmd *cobra.Command) (types.Patch, error) {
	var p types.Patch
	str := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return types.String(strings.TrimSpace(v))
	}
	date := func(name string) (*string, error) {
		v := str(name)
		if v == nil || *v == "" {
			return v, nil
		}
		d, err := naturalDate(*v)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}

	p.Company = str("company")
	p.Role = str("role")
	p.Link = str("link")
	p.Notes = str("notes")
	p.NextAction = str("next-action")
	p.Salary = str("salary")
	p.Location = str("location")
	p.Contacts = str("contacts")
	if s := str("status"); s != nil {
		st, err := types.ParseStatus(*s)
		if err != nil {
			return p, err
		}
		p.Status = &st
	}
	var err error
	if p.DateApplied, err = date("date"); err != nil {
		return p, err
	}
	if p.NextActionDate, err = date("next-date"); err != nil {
		return p, err
	}
	return p, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("failed to encode JSON: %v", err)
	}
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func init() {
	addRecordFlags(addCmd)
	addRecordFlags(updateCmd)
	deleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking")
	listCmd.Flags().StringP("search", "s", "", "Match company or role")
	listCmd.Flags().String("status", "", "Only this status")
	listCmd.Flags().String("sort", "", "Sort key")
	listCmd.Flags().String("dir", "asc", "Sort direction: asc or desc")
	listCmd.Flags().Bool("stale", false, "Only stale applications")

	rootCmd.AddCommand(addCmd, updateCmd, deleteCmd, listCmd, showCmd)
}
