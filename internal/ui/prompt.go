package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/jobops/jobops/internal/dates"
	"github.com/jobops/jobops/internal/types"
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("aborted")

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func required(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

func dateValidator(now time.Time) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		_, err := dates.ParseNatural(s, now)
		return err
	}
}

// PromptNewJob asks for a new application. Values already set in in are
// used as defaults. Dates accept natural language ("yesterday").
func PromptNewJob(in types.NewJob, now time.Time) (types.NewJob, error) {
	status := string(in.Status)
	if status == "" {
		status = string(types.StatusApplied)
	}
	dateApplied := in.DateApplied
	if dateApplied == "" {
		dateApplied = dates.Today(now)
	}

	options := make([]huh.Option[string], 0, len(types.AllStatuses()))
	for _, s := range types.AllStatuses() {
		options = append(options, huh.NewOption(string(s), string(s)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Company").Value(&in.Company).Validate(required("company")),
			huh.NewInput().Title("Role").Value(&in.Role).Validate(required("role")),
			huh.NewSelect[string]().Title("Status").Options(options...).Value(&status),
			huh.NewInput().Title("Date applied").Value(&dateApplied).Validate(dateValidator(now)),
		),
		huh.NewGroup(
			huh.NewInput().Title("Link").Value(&in.Link),
			huh.NewInput().Title("Location").Value(&in.Location),
			huh.NewInput().Title("Salary").Value(&in.Salary),
			huh.NewInput().Title("Next action").Value(&in.NextAction),
			huh.NewInput().Title("Next action date").Value(&in.NextActionDate).Validate(dateValidator(now)),
			huh.NewText().Title("Notes").Value(&in.Notes),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return types.NewJob{}, ErrAborted
		}
		return types.NewJob{}, fmt.Errorf("failed to run form: %w", err)
	}

	in.Status = types.Status(status)
	var err error
	if in.DateApplied, err = normalizeDate(dateApplied, now); err != nil {
		return types.NewJob{}, err
	}
	if in.NextActionDate, err = normalizeDate(in.NextActionDate, now); err != nil {
		return types.NewJob{}, err
	}
	return in, nil
}

// Confirm asks a yes/no question.
func Confirm(question string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

func normalizeDate(s string, now time.Time) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return dates.ParseNatural(s, now)
}
