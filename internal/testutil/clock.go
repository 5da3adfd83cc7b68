package testutil

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"jch-go/internal/history"
)

// StubClock is a history.Clock that only moves when told to. Safe for
// concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ history.Clock = (*StubClock)(nil)

// FixedClock returns a StubClock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return &StubClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
}

// ClockAt returns a StubClock set to a record timestamp such as
// "2024-01-01_00-00-00".
func ClockAt(t testing.TB, timestamp string) *StubClock {
	t.Helper()
	now, err := history.ParseTimestamp(timestamp)
	if err != nil {
		t.Fatalf("ParseTimestamp(%q) error = %v", timestamp, err)
	}
	return &StubClock{now: now}
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator hands out object handle IDs "id-1", "id-2", ...
type StubIDGenerator struct {
	mu   sync.Mutex
	next int
}

var _ history.IDGenerator = (*StubIDGenerator)(nil)

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%d", g.next)
}
