package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskcal/internal/model"
)

// agendaLoadedMsg carries a freshly built day index for the visible range.
type agendaLoadedMsg struct {
	index map[string][]model.AgendaItem
	err   error
}

// actionDoneMsg reports the outcome of a mutating engine operation.
type actionDoneMsg struct {
	op  string
	err error
}

// commandTimeout bounds every engine call issued from the UI.
const commandTimeout = 10 * time.Second

// loadAgenda rebuilds the day index for the agenda's current range and
// view.
func (m Model) loadAgenda() tea.Cmd {
	eng := m.engine
	start, end := m.agendaView.Range()
	history := m.agendaView.History()

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		var (
			index map[string][]model.AgendaItem
			err   error
		)
		if history {
			index, err = eng.GetHistoryForRange(ctx, start, end)
		} else {
			index, err = eng.GetOccurrencesForRange(ctx, start, end)
		}
		return agendaLoadedMsg{index: index, err: err}
	}
}

// toggleItem flips the completion state of the selected occurrence or
// one-off task.
func (m Model) toggleItem(item model.AgendaItem) tea.Cmd {
	eng := m.engine
	taskID := item.Task.ID
	date := item.Date
	completed := !item.Completed

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		err := eng.ToggleCompletion(ctx, taskID, date, completed)
		return actionDoneMsg{op: "toggling completion", err: err}
	}
}

// deleteOccurrence removes a single occurrence of a recurring task.
func (m Model) deleteOccurrence(taskID, date string) tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		err := eng.DeleteOccurrence(ctx, taskID, date)
		return actionDoneMsg{op: "deleting occurrence", err: err}
	}
}

// deleteSeries removes a task and all its records.
func (m Model) deleteSeries(taskID string) tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		err := eng.DeleteSeries(ctx, taskID)
		return actionDoneMsg{op: "deleting series", err: err}
	}
}

// createTask persists a task submitted from the form.
func (m Model) createTask(task model.Task) tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		_, err := eng.CreateTask(ctx, task)
		return actionDoneMsg{op: "creating task", err: err}
	}
}

// updateTask persists edits to an existing task.
func (m Model) updateTask(task model.Task) tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		err := eng.UpdateTask(ctx, task)
		return actionDoneMsg{op: "updating task", err: err}
	}
}
