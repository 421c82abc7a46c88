package query

import (
	"slices"
	"strings"
	"time"

	"github.com/jobops/jobops/internal/dates"
	"github.com/jobops/jobops/internal/store"
	"github.com/jobops/jobops/internal/types"
)

// StaleAfterDays is the number of idle days a pipeline record may sit before
// it is flagged.
const StaleAfterDays = 14

// IsStale reports whether an open application has not been touched for more
// than StaleAfterDays whole days. Offers and closed records are never stale,
// and a missing or unreadable lastUpdated never is either.
func IsStale(j types.JobApplication, now time.Time) bool {
	switch j.Status {
	case types.StatusRejected, types.StatusArchived, types.StatusOffer:
		return false
	}
	days, ok := dates.DaysSince(j.LastUpdated, now)
	if !ok {
		return false
	}
	if days < 0 {
		days = -days
	}
	return days > StaleAfterDays
}

// RecentWindowDays bounds RecentApplications.
const RecentWindowDays = 7

// RecentApplications returns records applied to within the last week.
func RecentApplications(jobs []types.JobApplication, now time.Time) []types.JobApplication {
	var out []types.JobApplication
	for _, j := range jobs {
		if d, ok := dates.DaysSince(j.DateApplied, now); ok && d < RecentWindowDays {
			out = append(out, j)
		}
	}
	return out
}

// VelocityWeeks is the number of weekly buckets Velocity reports.
const VelocityWeeks = 6

// Bucket is one labelled count in a chart series.
type Bucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Velocity counts applications per week over the last six weeks, oldest
// bucket first. Each bucket is labelled with the date that ends it
// ("Jan 2"); the last bucket ends today.
func Velocity(jobs []types.JobApplication, now time.Time) []Bucket {
	out := make([]Bucket, VelocityWeeks)
	for i := range out {
		weeksAgo := VelocityWeeks - 1 - i
		out[i].Name = now.AddDate(0, 0, -7*weeksAgo).Format("Jan 2")
	}
	for _, j := range jobs {
		d, ok := dates.DaysSince(j.DateApplied, now)
		if !ok || d < 0 {
			continue
		}
		weeksAgo := d / 7
		if weeksAgo >= VelocityWeeks {
			continue
		}
		out[VelocityWeeks-1-weeksAgo].Value++
	}
	return out
}

// Breakdown is the status distribution chart series. Applied is derived as
// everything not in a later stage, so Archived records count toward it.
func Breakdown(st store.Stats) []Bucket {
	return []Bucket{
		{Name: string(types.StatusApplied), Value: st.Total - st.Interview - st.Offer - st.Rejected},
		{Name: string(types.StatusInterview), Value: st.Interview},
		{Name: string(types.StatusOffer), Value: st.Offer},
		{Name: string(types.StatusRejected), Value: st.Rejected},
	}
}

// Upcoming returns open records with a next action due today or later,
// soonest first.
func Upcoming(jobs []types.JobApplication, now time.Time) []types.JobApplication {
	today := dates.Today(now)
	var out []types.JobApplication
	for _, j := range jobs {
		if j.NextAction == "" || j.NextActionDate == "" || j.NextActionDate < today {
			continue
		}
		if j.Status == types.StatusArchived || j.Status == types.StatusRejected {
			continue
		}
		out = append(out, j)
	}
	slices.SortStableFunc(out, func(a, b types.JobApplication) int {
		return strings.Compare(a.NextActionDate, b.NextActionDate)
	})
	return out
}

// IsOverdue reports whether a record date lies before today.
func IsOverdue(date string, now time.Time) bool {
	return date != "" && date < dates.Today(now)
}

// History returns records ordered by lastUpdated, most recent first.
func History(jobs []types.JobApplication) []types.JobApplication {
	out := slices.Clone(jobs)
	slices.SortStableFunc(out, func(a, b types.JobApplication) int {
		return strings.Compare(b.LastUpdated, a.LastUpdated)
	})
	return out
}

// BoardStatuses are the kanban columns, left to right.
var BoardStatuses = []types.Status{
	types.StatusApplied,
	types.StatusInterview,
	types.StatusOffer,
	types.StatusRejected,
}

// Column is one kanban lane.
type Column struct {
	Status types.Status           `json:"status"`
	Jobs   []types.JobApplication `json:"jobs"`
}

// Board groups records into kanban columns. Archived records have no lane.
func Board(jobs []types.JobApplication) []Column {
	cols := make([]Column, len(BoardStatuses))
	for i, st := range BoardStatuses {
		cols[i] = Column{Status: st, Jobs: []types.JobApplication{}}
		for _, j := range jobs {
			if j.Status == st {
				cols[i].Jobs = append(cols[i].Jobs, j)
			}
		}
	}
	return cols
}

// Insights bundles the dashboard figures for one point in time.
type Insights struct {
	Stats     store.Stats            `json:"stats"`
	Breakdown []Bucket               `json:"breakdown"`
	Recent    int                    `json:"recentApplications"`
	Velocity  []Bucket               `json:"velocity"`
	Upcoming  []types.JobApplication `json:"upcoming"`
	Stale     []types.JobApplication `json:"stale"`
}

// Compute builds Insights over jobs.
func Compute(jobs []types.JobApplication, now time.Time) Insights {
	st := store.ComputeStats(jobs)
	in := Insights{
		Stats:     st,
		Breakdown: Breakdown(st),
		Recent:    len(RecentApplications(jobs, now)),
		Velocity:  Velocity(jobs, now),
		Upcoming:  Upcoming(jobs, now),
		Stale:     []types.JobApplication{},
	}
	if in.Upcoming == nil {
		in.Upcoming = []types.JobApplication{}
	}
	for _, j := range jobs {
		if IsStale(j, now) {
			in.Stale = append(in.Stale, j)
		}
	}
	return in
}
