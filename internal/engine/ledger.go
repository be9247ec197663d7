package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/store"
)

// ledgerKey identifies one occurrence of one task.
type ledgerKey struct {
	taskID string
	date   string
}

// Ledger owns the in-memory view of the completion and exception
// records and keeps it consistent with the store. Mutations apply
// optimistically: the local view changes before the store confirms, and
// rolls back if the write fails.
//
// Operations on the same (task, date) key are serialized so rapid
// repeated toggles cannot lose updates; operations on different keys
// proceed independently. Each key carries a monotonic sequence number
// so a rollback never clobbers state a newer operation has written.
type Ledger struct {
	store  store.Store
	logger *slog.Logger

	mu        sync.Mutex
	completed map[ledgerKey]bool
	excluded  map[ledgerKey]bool
	seq       map[ledgerKey]uint64

	keyMu sync.Mutex
	keys  map[ledgerKey]*sync.Mutex
}

// NewLedger loads both ledgers from the store into memory.
func NewLedger(ctx context.Context, s store.Store, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Ledger{
		store:     s,
		logger:    logger,
		completed: make(map[ledgerKey]bool),
		excluded:  make(map[ledgerKey]bool),
		seq:       make(map[ledgerKey]uint64),
		keys:      make(map[ledgerKey]*sync.Mutex),
	}

	completions, err := s.ListCompletions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading completion ledger: %w", err)
	}
	for _, r := range completions {
		l.completed[ledgerKey{r.TaskID, r.Date}] = true
	}

	exceptions, err := s.ListExceptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading exception ledger: %w", err)
	}
	for _, r := range exceptions {
		l.excluded[ledgerKey{r.TaskID, r.Date}] = true
	}

	return l, nil
}

// lockKey serializes operations on a single (task, date) key.
func (l *Ledger) lockKey(k ledgerKey) func() {
	l.keyMu.Lock()
	m, ok := l.keys[k]
	if !ok {
		m = &sync.Mutex{}
		l.keys[k] = m
	}
	l.keyMu.Unlock()

	m.Lock()
	return m.Unlock
}

// apply mutates the in-memory view and returns the operation's sequence
// number for rollback matching.
func (l *Ledger) apply(k ledgerKey, fn func()) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
	l.seq[k]++
	return l.seq[k]
}

// rollback undoes an optimistic apply, but only if no newer operation
// has touched the key since.
func (l *Ledger) rollback(k ledgerKey, seq uint64, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seq[k] != seq {
		return
	}
	fn()
	l.seq[k]++
}

// MarkComplete records one occurrence as done. Idempotent: marking a
// completed occurrence again is a no-op.
func (l *Ledger) MarkComplete(ctx context.Context, taskID, date string) error {
	k := ledgerKey{taskID, date}
	unlock := l.lockKey(k)
	defer unlock()

	l.mu.Lock()
	if l.completed[k] {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	seq := l.apply(k, func() { l.completed[k] = true })

	if _, err := l.store.InsertCompletion(ctx, taskID, date); err != nil {
		l.rollback(k, seq, func() { delete(l.completed, k) })
		if store.IsNotFound(err) {
			// The task is gone; nothing to complete, nothing to report.
			return nil
		}
		return &PersistenceError{Op: "marking complete", TaskID: taskID, Date: date, Err: err}
	}
	return nil
}

// UnmarkComplete removes the completion record for one occurrence.
// Idempotent: unmarking an uncompleted occurrence is a no-op.
func (l *Ledger) UnmarkComplete(ctx context.Context, taskID, date string) error {
	k := ledgerKey{taskID, date}
	unlock := l.lockKey(k)
	defer unlock()

	l.mu.Lock()
	if !l.completed[k] {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	seq := l.apply(k, func() { delete(l.completed, k) })

	if err := l.store.DeleteCompletion(ctx, taskID, date); err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		l.rollback(k, seq, func() { l.completed[k] = true })
		return &PersistenceError{Op: "unmarking complete", TaskID: taskID, Date: date, Err: err}
	}
	return nil
}

// Toggle dispatches to MarkComplete or UnmarkComplete.
func (l *Ledger) Toggle(ctx context.Context, taskID, date string, completed bool) error {
	if completed {
		return l.MarkComplete(ctx, taskID, date)
	}
	return l.UnmarkComplete(ctx, taskID, date)
}

// Exclude permanently suppresses one occurrence. Idempotent; there is
// no inverse operation.
func (l *Ledger) Exclude(ctx context.Context, taskID, date string) error {
	k := ledgerKey{taskID, date}
	unlock := l.lockKey(k)
	defer unlock()

	l.mu.Lock()
	if l.excluded[k] {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	seq := l.apply(k, func() { l.excluded[k] = true })

	if _, err := l.store.InsertException(ctx, taskID, date); err != nil {
		l.rollback(k, seq, func() { delete(l.excluded, k) })
		if store.IsNotFound(err) {
			return nil
		}
		return &PersistenceError{Op: "excluding occurrence", TaskID: taskID, Date: date, Err: err}
	}
	return nil
}

// Forget drops every in-memory record for a task. Called after a series
// delete, whose store-side cascade already removed the rows.
func (l *Ledger) Forget(taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.completed {
		if k.taskID == taskID {
			delete(l.completed, k)
		}
	}
	for k := range l.excluded {
		if k.taskID == taskID {
			delete(l.excluded, k)
		}
	}
}

// HistoryFor returns the completion history of a task, oldest first.
// Each record is materialized with an instance identity by consumers so
// historical entries never collide with the live task.
func (l *Ledger) HistoryFor(ctx context.Context, taskID string) ([]model.CompletionRecord, error) {
	records, err := l.store.CompletionsFor(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading history for task %s: %w", taskID, err)
	}
	return records, nil
}

// Snapshot returns an immutable point-in-time index of both ledgers
// for O(1) membership tests during range resolution.
func (l *Ledger) Snapshot() *Index {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := &Index{
		completed: make(map[ledgerKey]bool, len(l.completed)),
		excluded:  make(map[ledgerKey]bool, len(l.excluded)),
	}
	for k := range l.completed {
		idx.completed[k] = true
	}
	for k := range l.excluded {
		idx.excluded[k] = true
	}
	return idx
}

// Index is a point-in-time bucket lookup over both ledgers.
type Index struct {
	completed map[ledgerKey]bool
	excluded  map[ledgerKey]bool
}

// Completed reports whether the occurrence is marked done.
func (ix *Index) Completed(taskID, date string) bool {
	return ix.completed[ledgerKey{taskID, date}]
}

// Excluded reports whether the occurrence is permanently suppressed.
func (ix *Index) Excluded(taskID, date string) bool {
	return ix.excluded[ledgerKey{taskID, date}]
}
