package taskform

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/theme"
)

// TaskCreatedMsg is dispatched when a new task is created via the form.
type TaskCreatedMsg struct {
	Task model.Task
}

// TaskUpdatedMsg is dispatched when an existing task is updated via the form.
type TaskUpdatedMsg struct {
	Task model.Task
}

// TaskFormCancelMsg is dispatched when the user cancels the form.
type TaskFormCancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title      string
	recurrence string
	anchorDate string
	anchorTime string
	urgency    int
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	editMode bool
	editing  model.Task
	width    int
	height   int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{recurrence: string(model.RecurrenceNone)},
		width:  width,
		height: height,
	}
}

// StartCreate initializes the form for creating a new task anchored on
// the given date.
func (m *Model) StartCreate(anchor time.Time) tea.Cmd {
	m.editMode = false
	m.editing = model.Task{}
	m.fb.title = ""
	m.fb.recurrence = string(model.RecurrenceNone)
	m.fb.anchorDate = model.DateKey(anchor)
	m.fb.anchorTime = ""
	m.fb.urgency = 0
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form for editing an existing task.
func (m *Model) StartEdit(task model.Task) tea.Cmd {
	m.editMode = true
	m.editing = task
	m.fb.title = task.Title
	m.fb.recurrence = string(task.Recurrence)
	if task.AnchorDate != nil {
		m.fb.anchorDate = model.DateKey(*task.AnchorDate)
	} else {
		m.fb.anchorDate = ""
	}
	m.fb.anchorTime = task.AnchorTime
	m.fb.urgency = task.Urgency
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return TaskFormCancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Task"
	if m.editMode {
		titleText = "Edit Task"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("What needs doing?").
			Value(&m.fb.title).
			Validate(validateRequired("Title")),
		huh.NewSelect[string]().
			Title("Repeats").
			Options(
				huh.NewOption("Never", string(model.RecurrenceNone)),
				huh.NewOption("Daily", string(model.RecurrenceDaily)),
				huh.NewOption("Weekly", string(model.RecurrenceWeekly)),
				huh.NewOption("Monthly", string(model.RecurrenceMonthly)),
				huh.NewOption("Yearly", string(model.RecurrenceYearly)),
			).
			Value(&m.fb.recurrence),
		huh.NewInput().
			Title("Date").
			Placeholder("YYYY-MM-DD (optional for one-off tasks)").
			Value(&m.fb.anchorDate).
			Validate(m.validateAnchorDate),
		huh.NewInput().
			Title("Time").
			Placeholder("HH:MM (optional)").
			Value(&m.fb.anchorTime).
			Validate(validateOptionalClock),
		huh.NewSelect[int]().
			Title("Urgency").
			Options(
				huh.NewOption("None", 0),
				huh.NewOption("Low", 1),
				huh.NewOption("Medium", 2),
				huh.NewOption("High", 3),
			).
			Value(&m.fb.urgency),
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	task := m.editing
	task.Title = m.fb.title
	task.Recurrence = model.Recurrence(m.fb.recurrence)
	task.AnchorTime = strings.TrimSpace(m.fb.anchorTime)
	task.Urgency = m.fb.urgency

	task.AnchorDate = nil
	if date := strings.TrimSpace(m.fb.anchorDate); date != "" {
		if t, err := model.ParseDate(date); err == nil {
			task.AnchorDate = &t
		}
	}

	if m.editMode {
		return func() tea.Msg { return TaskUpdatedMsg{Task: task} }
	}
	return func() tea.Msg { return TaskCreatedMsg{Task: task} }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

// validateAnchorDate requires a date whenever the recurrence field
// currently names a repeating pattern.
func (m *Model) validateAnchorDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		if m.fb.recurrence != string(model.RecurrenceNone) {
			return fmt.Errorf("repeating tasks need a start date")
		}
		return nil
	}
	if _, err := model.ParseDate(s); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalClock(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !model.ValidClock(s) {
		return fmt.Errorf("invalid time format, use HH:MM")
	}
	return nil
}
