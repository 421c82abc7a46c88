package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenter_NotifyAndDismiss(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	a := c.Successf("Job saved")
	b := c.Errorf("Sync failed")

	active := c.Active()
	require.Len(t, active, 2)
	assert.Equal(t, a.ID, active[0].ID)
	assert.Equal(t, Error, active[1].Kind)

	assert.True(t, c.Dismiss(a.ID))
	assert.False(t, c.Dismiss(a.ID))
	active = c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)
}

func TestCenter_AutoDismiss(t *testing.T) {
	c := New(20 * time.Millisecond)
	defer c.Close()

	c.Infof("Using local data")
	require.Len(t, c.Active(), 1)

	assert.Eventually(t, func() bool {
		return len(c.Active()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCenter_DefaultTTL(t *testing.T) {
	c := New(0)
	defer c.Close()
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestCenter_Subscribe(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	var mu sync.Mutex
	var got []string
	unsub := c.Subscribe(func(n Notification) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n.Message)
	})

	c.Infof("one")
	unsub()
	c.Infof("two")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one"}, got)
}

func TestCenter_ClosedDropsNotifications(t *testing.T) {
	c := New(time.Minute)
	c.Close()
	c.Infof("late")
	assert.Empty(t, c.Active())
}
