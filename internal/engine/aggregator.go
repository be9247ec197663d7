package engine

import (
	"log/slog"
	"sort"
	"time"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/recur"
)

// View selects which occurrence states the aggregated index shows.
type View int

const (
	// ViewActive shows due occurrences, open one-off tasks, and
	// external events.
	ViewActive View = iota
	// ViewHistory shows completed occurrences and completed one-off
	// tasks.
	ViewHistory
)

// Aggregator builds the unified, day-indexed agenda from tasks,
// ledger state, and read-only external events.
type Aggregator struct {
	cache  *recur.Cache
	logger *slog.Logger
}

// NewAggregator creates an Aggregator using the given expansion cache.
func NewAggregator(cache *recur.Cache, logger *slog.Logger) *Aggregator {
	if cache == nil {
		cache = recur.NewCache(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{cache: cache, logger: logger}
}

// BuildDayIndex merges resolved recurring occurrences, non-recurring
// tasks, and external events for every day in [start, end] into a map
// keyed by canonical date string. Lookup after construction is O(1)
// per date.
//
// Within a day, untimed items sort before timed ones, timed items sort
// ascending by time, and ties keep their input order. A task the
// generator cannot expand is logged and skipped; it never fails the
// whole range.
func (a *Aggregator) BuildDayIndex(
	tasks []model.Task,
	start, end time.Time,
	events []model.ExternalEvent,
	idx *Index,
	view View,
) map[string][]model.AgendaItem {
	start = model.Midnight(start)
	end = model.Midnight(end)
	out := make(map[string][]model.AgendaItem)

	for i := range tasks {
		task := tasks[i]

		if task.Recurring() {
			days, err := a.cache.Expand(task, start, end)
			if err != nil {
				a.logger.Warn("skipping task with invalid recurrence",
					"task_id", task.ID, "error", err)
				continue
			}
			for _, day := range days {
				date := model.DateKey(day)
				if idx.Excluded(task.ID, date) {
					continue
				}
				completed := idx.Completed(task.ID, date)
				if (view == ViewActive) == completed {
					continue
				}
				out[date] = append(out[date], model.AgendaItem{
					Kind:      model.ItemOccurrence,
					ID:        model.InstanceID(task.ID, date),
					Title:     task.Title,
					Date:      date,
					Time:      task.AnchorTime,
					Completed: completed,
					Urgency:   task.Urgency,
					Task:      &tasks[i],
				})
			}
			continue
		}

		// One-off tasks are placed directly on their anchor date.
		if task.AnchorDate == nil {
			continue
		}
		anchor := model.Midnight(*task.AnchorDate)
		if anchor.Before(start) || anchor.After(end) {
			continue
		}
		if (view == ViewActive) == task.Completed {
			continue
		}
		date := model.DateKey(anchor)
		out[date] = append(out[date], model.AgendaItem{
			Kind:      model.ItemTask,
			ID:        model.StableID(task.ID),
			Title:     task.Title,
			Date:      date,
			Time:      task.AnchorTime,
			Completed: task.Completed,
			Urgency:   task.Urgency,
			Task:      &tasks[i],
		})
	}

	if view == ViewActive {
		for i := range events {
			ev := events[i]
			day := model.Midnight(ev.Start)
			if day.Before(start) || day.After(end) {
				continue
			}
			date := model.DateKey(day)
			out[date] = append(out[date], model.AgendaItem{
				Kind:  model.ItemEvent,
				ID:    model.StableID(ev.UID),
				Title: ev.Title,
				Date:  date,
				Time:  ev.Clock(),
				Event: &events[i],
			})
		}
	}

	for date := range out {
		sortDay(out[date])
	}
	return out
}

// sortDay orders a day's items: untimed first, then ascending by time,
// stable on ties. The same ordering applies to calendar cells and
// single-day lists.
func sortDay(items []model.AgendaItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].Timed(), items[j].Timed()
		if ti != tj {
			return !ti
		}
		if !ti {
			return false
		}
		return items[i].Time < items[j].Time
	})
}
