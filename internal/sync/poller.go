package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/source"
)

// SyncState represents the current state of a source poll.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the poll state for a single calendar source.
type SyncStatus struct {
	SourceID   string
	SourceType source.SourceType
	Name       string
	State      SyncState
	LastSync   time.Time
	Error      error
}

// EventsMsg is a tea.Msg carrying the merged event snapshot across all
// sources after one of them finished a poll.
type EventsMsg struct {
	Events   []model.ExternalEvent
	SourceID string
	Error    error
	Auth     *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when a source returns an
// authentication error.
type AuthErrorMsg struct {
	SourceID   string
	SourceType source.SourceType
	Message    string
}

// fetchTimeout is the maximum time allowed for a single poll.
const fetchTimeout = 30 * time.Second

// sourceEntry holds a registered source, its configuration, and the
// channel that requests an immediate poll of that source alone.
type sourceEntry struct {
	src     source.Source
	cfg     model.CalendarConfig
	trigger chan struct{}
}

// Poller orchestrates background polling of calendar sources. Each
// source keeps its own interval; whenever any of them completes, the
// per-source snapshots are merged and delivered as one EventsMsg so
// the consumer always sees a consistent whole.
type Poller struct {
	horizonDays int

	mu        gosync.Mutex
	sources   []sourceEntry
	statuses  map[string]*SyncStatus
	snapshots map[string][]model.ExternalEvent
	resultCh  chan EventsMsg
	stopCh    chan struct{}
	running   bool
}

// New creates a Poller that fetches events from a week back up to
// horizonDays ahead of each poll's start time.
func New(horizonDays int) *Poller {
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &Poller{
		horizonDays: horizonDays,
		statuses:    make(map[string]*SyncStatus),
		snapshots:   make(map[string][]model.ExternalEvent),
		resultCh:    make(chan EventsMsg, 16),
		stopCh:      make(chan struct{}),
	}
}

// RegisterSource adds a source adapter and its configuration.
func (p *Poller) RegisterSource(src source.Source, cfg model.CalendarConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sources = append(p.sources, sourceEntry{
		src:     src,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
	})
	p.statuses[cfg.ID] = &SyncStatus{
		SourceID:   cfg.ID,
		SourceType: src.Type(),
		Name:       src.Name(),
		State:      SyncIdle,
	}
}

// Start launches one polling goroutine per source and returns a
// tea.Cmd that waits for the first merged result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	sources := make([]sourceEntry, len(p.sources))
	copy(sources, p.sources)
	p.mu.Unlock()

	for _, entry := range sources {
		go p.pollSource(entry)
	}

	return p.waitForResult()
}

// Stop halts all polling goroutines.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// RefreshAll triggers an immediate poll of every registered source.
func (p *Poller) RefreshAll() tea.Cmd {
	p.mu.Lock()
	sources := make([]sourceEntry, len(p.sources))
	copy(sources, p.sources)
	p.mu.Unlock()

	for _, entry := range sources {
		select {
		case entry.trigger <- struct{}{}:
		default:
			// A refresh for this source is already pending.
		}
	}

	return nil
}

// GetStatuses returns the current poll status of every source.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].SourceID < statuses[j].SourceID
	})
	return statuses
}

// pollSource runs the polling loop for a single source.
func (p *Poller) pollSource(entry sourceEntry) {
	interval := time.Duration(entry.cfg.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 300 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial fetch immediately.
	p.fetch(entry)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.fetch(entry)
		case <-entry.trigger:
			p.fetch(entry)
		}
	}
}

// fetch performs one poll of a source, stores its snapshot, and sends
// the merged result of all sources on the result channel.
func (p *Poller) fetch(entry sourceEntry) {
	id := entry.cfg.ID
	p.setStatus(id, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	now := time.Now()
	start := now.AddDate(0, 0, -7)
	end := now.AddDate(0, 0, p.horizonDays)

	events, err := entry.src.ListEvents(ctx, start, end)
	if err != nil {
		p.setStatus(id, SyncError, err)

		if source.IsAuthError(err) {
			p.sendResult(EventsMsg{
				SourceID: id,
				Error:    err,
				Auth: &AuthErrorMsg{
					SourceID:   id,
					SourceType: entry.src.Type(),
					Message: fmt.Sprintf(
						"%s: authentication expired, reconfigure the account",
						entry.src.Name(),
					),
				},
			})
			return
		}

		p.sendResult(EventsMsg{SourceID: id, Error: err})
		return
	}

	p.mu.Lock()
	p.snapshots[id] = events
	p.mu.Unlock()

	p.setStatus(id, SyncIdle, nil)
	p.sendResult(EventsMsg{
		Events:   p.merged(),
		SourceID: id,
	})
}

// merged flattens the per-source snapshots into one slice, ordered by
// source id so repeated merges are stable.
func (p *Poller) merged() []model.ExternalEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.snapshots))
	for id := range p.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var merged []model.ExternalEvent
	for _, id := range ids {
		merged = append(merged, p.snapshots[id]...)
	}
	return merged
}

// setStatus updates the poll status for a source.
func (p *Poller) setStatus(id string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[id]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a message on the result channel without blocking.
func (p *Poller) sendResult(msg EventsMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if the channel is full; a later poll will resend.
	}
}

// waitForResult returns a tea.Cmd that waits for the next result.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next merged
// snapshot. Call it after processing an EventsMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
