// Package notify holds short-lived user-facing notifications.
//
// A notification lives until it is dismissed or its TTL elapses. Subscribers
// receive every new notification as it is raised; the serve process uses
// this to push them over the websocket feed, and CLI commands print them.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a notification stays active.
const DefaultTTL = 4 * time.Second

// Kind is the severity of a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

// Notification is one transient message.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier raises notifications. Center implements it.
type Notifier interface {
	Notify(kind Kind, msg string) Notification
}

// Center tracks active notifications and fans new ones out to subscribers.
// The zero value is not usable; call New.
type Center struct {
	mu     sync.Mutex
	ttl    time.Duration
	active []Notification
	timers map[string]*time.Timer
	subs   map[int]func(Notification)
	nextID int
	closed bool
}

// New creates a Center. A ttl of zero or less uses DefaultTTL.
func New(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
		subs:   make(map[int]func(Notification)),
	}
}

// Notify raises a notification and schedules its dismissal.
func (c *Center) Notify(kind Kind, msg string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   msg,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return n
	}
	c.active = append(c.active, n)
	c.timers[n.ID] = time.AfterFunc(c.ttl, func() { c.Dismiss(n.ID) })
	subs := make([]func(Notification), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
	return n
}

// Successf formats and raises a success notification.
func (c *Center) Successf(format string, args ...any) Notification {
	return c.Notify(Success, fmt.Sprintf(format, args...))
}

// Errorf formats and raises an error notification.
func (c *Center) Errorf(format string, args ...any) Notification {
	return c.Notify(Error, fmt.Sprintf(format, args...))
}

// Infof formats and raises an info notification.
func (c *Center) Infof(format string, args ...any) Notification {
	return c.Notify(Info, fmt.Sprintf(format, args...))
}

// Dismiss removes a notification early. It reports whether id was active.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, n := range c.active {
		if n.ID == id {
			c.active = append(c.active[:i:i], c.active[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns the live notifications, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.active))
	copy(out, c.active)
	return out
}

// Subscribe registers fn for every later notification. fn runs on the
// goroutine that raised the notification and must not block. The returned
// func unsubscribes.
func (c *Center) Subscribe(fn func(Notification)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Close stops pending dismissal timers and drops further notifications.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}
