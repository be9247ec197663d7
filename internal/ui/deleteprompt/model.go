package deleteprompt

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/theme"
)

// Choice is the outcome of the deletion prompt.
type Choice int

const (
	ChoiceCancel Choice = iota
	ChoiceOccurrence
	ChoiceSeries
)

// DecidedMsg is dispatched when the user picks a deletion scope.
type DecidedMsg struct {
	Choice Choice
	TaskID string
	Date   string
}

// Model asks whether a recurring task's deletion applies to one
// occurrence or the whole series. One-off tasks never come through
// here; they are deleted directly.
type Model struct {
	form   *huh.Form
	choice *Choice
	taskID string
	date   string
	title  string
	width  int
	height int
}

// New creates a deletion prompt model.
func New(width, height int) Model {
	return Model{
		choice: new(Choice),
		width:  width,
		height: height,
	}
}

// Start initializes the prompt for one occurrence of a recurring task.
func (m *Model) Start(item model.AgendaItem) tea.Cmd {
	m.taskID = item.Task.ID
	m.date = item.Date
	m.title = item.Title
	*m.choice = ChoiceCancel

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Choice]().
				Title(fmt.Sprintf("Delete %q?", m.title)).
				Description("This task repeats.").
				Options(
					huh.NewOption(
						fmt.Sprintf("Only the %s occurrence", m.date),
						ChoiceOccurrence,
					),
					huh.NewOption("The entire series", ChoiceSeries),
					huh.NewOption("Cancel", ChoiceCancel),
				).
				Value(m.choice),
		),
	).WithWidth(m.formWidth())

	return m.form.Init()
}

// Update handles messages for the prompt.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		choice := *m.choice
		taskID, date := m.taskID, m.date
		return m, func() tea.Msg {
			return DecidedMsg{Choice: choice, TaskID: taskID, Date: date}
		}
	}
	if m.form.State == huh.StateAborted {
		taskID, date := m.taskID, m.date
		return m, func() tea.Msg {
			return DecidedMsg{Choice: ChoiceCancel, TaskID: taskID, Date: date}
		}
	}

	return m, cmd
}

// View renders the prompt.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return theme.PanelStyle.Render(m.form.View())
}

// SetSize updates the prompt dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}
