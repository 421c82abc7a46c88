package seed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobops/jobops/internal/types"
)

func TestDemo(t *testing.T) {
	now := time.Date(2024, 6, 20, 12, 0, 0, 0, time.Local)
	jobs := Demo(now)
	require.NotEmpty(t, jobs)

	seen := map[string]bool{}
	statuses := map[types.Status]bool{}
	for _, j := range jobs {
		require.NoError(t, j.Validate())
		assert.False(t, seen[j.ID])
		seen[j.ID] = true
		statuses[j.Status] = true
		assert.NotNil(t, j.CustomFields)
	}
	for _, st := range types.AllStatuses() {
		assert.True(t, statuses[st], "demo data lacks %s", st)
	}

	assert.Equal(t, "Stripe", jobs[0].Company)
	assert.Equal(t, "2024-06-08", jobs[0].DateApplied)
	assert.Equal(t, "2024-06-23", jobs[0].NextActionDate)
	assert.Empty(t, jobs[1].NextActionDate)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("jobs:\n  - company: X\n    status: Applied\n"), time.Now())
	assert.ErrorIs(t, err, types.ErrMissingField)

	_, err = Parse([]byte("jobs: ["), time.Now())
	assert.Error(t, err)
}
