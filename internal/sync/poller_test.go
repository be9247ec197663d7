package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/source"
)

// countingSource counts how many times it was polled.
type countingSource struct {
	name  string
	calls atomic.Int32
}

func (c *countingSource) Type() source.SourceType { return source.SourceTypeICSFile }

func (c *countingSource) Name() string { return c.name }

func (c *countingSource) ValidateConnection(_ context.Context) (string, error) {
	return c.name, nil
}

func (c *countingSource) ListEvents(
	_ context.Context, start, _ time.Time,
) ([]model.ExternalEvent, error) {
	c.calls.Add(1)
	return []model.ExternalEvent{
		{UID: c.name + "-ev", Calendar: c.name, Title: c.name, Start: start},
	}, nil
}

func TestRefreshAllReachesEverySource(t *testing.T) {
	p := New(30)
	a := &countingSource{name: "home"}
	b := &countingSource{name: "work"}

	// Intervals long enough that the ticker never fires during the test;
	// every poll after the first comes from an explicit refresh.
	p.RegisterSource(a, model.CalendarConfig{ID: "cal-a", PollIntervalSec: 3600})
	p.RegisterSource(b, model.CalendarConfig{ID: "cal-b", PollIntervalSec: 3600})

	require.NotNil(t, p.Start())
	defer p.Stop()

	waitForCalls := func(n int32) {
		t.Helper()
		assert.Eventually(t, func() bool {
			return a.calls.Load() >= n && b.calls.Load() >= n
		}, 2*time.Second, 10*time.Millisecond,
			"expected both sources to reach %d polls (home=%d, work=%d)",
			n, a.calls.Load(), b.calls.Load())
	}

	// Registration triggers an initial poll of each source.
	waitForCalls(1)

	// Each refresh must reach every source, not just whichever
	// goroutine drains a trigger first.
	p.RefreshAll()
	waitForCalls(2)

	p.RefreshAll()
	waitForCalls(3)
}

func TestGetStatusesSortedBySourceID(t *testing.T) {
	p := New(30)
	p.RegisterSource(&countingSource{name: "work"}, model.CalendarConfig{ID: "cal-b"})
	p.RegisterSource(&countingSource{name: "home"}, model.CalendarConfig{ID: "cal-a"})

	statuses := p.GetStatuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "cal-a", statuses[0].SourceID)
	assert.Equal(t, "cal-b", statuses[1].SourceID)
}
