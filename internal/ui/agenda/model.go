package agenda

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskcal/internal/keys"
	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/theme"
)

// Model is the scrolling day-by-day agenda view. It renders a window
// of consecutive days and keeps a cursor on one actionable item; the
// root model reads the selection when a key acts on it.
type Model struct {
	keys   *keys.KeyMap
	width  int
	height int

	start   time.Time
	numDays int
	index   map[string][]model.AgendaItem
	history bool

	cursorDay  int
	cursorItem int
	topDay     int
}

// New creates an agenda model starting at today with the given window.
func New(k *keys.KeyMap, numDays, width, height int) Model {
	if numDays <= 0 {
		numDays = 14
	}
	return Model{
		keys:    k,
		width:   width,
		height:  height,
		start:   model.Midnight(time.Now()),
		numDays: numDays,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Range returns the first and last day currently shown.
func (m Model) Range() (time.Time, time.Time) {
	return m.start, m.start.AddDate(0, 0, m.numDays-1)
}

// History reports whether the view shows completed items.
func (m Model) History() bool {
	return m.history
}

// SetHistory switches between the active agenda and the history view.
func (m *Model) SetHistory(history bool) {
	if m.history != history {
		m.history = history
		m.resetCursor()
	}
}

// SetIndex replaces the day index backing the view, keeping the cursor
// on a valid item.
func (m *Model) SetIndex(index map[string][]model.AgendaItem) {
	m.index = index
	m.clampCursor()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Selected returns the item under the cursor, if any.
func (m Model) Selected() (model.AgendaItem, bool) {
	items := m.itemsOn(m.cursorDay)
	if m.cursorItem < 0 || m.cursorItem >= len(items) {
		return model.AgendaItem{}, false
	}
	return items[m.cursorItem], true
}

// SelectedDate returns the date under the cursor regardless of whether
// it has items. New tasks default their anchor to it.
func (m Model) SelectedDate() time.Time {
	return m.start.AddDate(0, 0, m.cursorDay)
}

// Update handles navigation within the agenda window.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Down):
		m.moveItem(1)
	case key.Matches(keyMsg, m.keys.Up):
		m.moveItem(-1)
	case key.Matches(keyMsg, m.keys.NextDay):
		m.shiftWindow(1)
	case key.Matches(keyMsg, m.keys.PrevDay):
		m.shiftWindow(-1)
	case key.Matches(keyMsg, m.keys.NextWeek):
		m.shiftWindow(7)
	case key.Matches(keyMsg, m.keys.PrevWeek):
		m.shiftWindow(-7)
	case key.Matches(keyMsg, m.keys.Today):
		m.start = model.Midnight(time.Now())
		m.resetCursor()
		return m, m.rangeChanged()
	default:
		return m, nil
	}

	if !key.Matches(keyMsg, m.keys.Down) && !key.Matches(keyMsg, m.keys.Up) {
		return m, m.rangeChanged()
	}
	return m, nil
}

// RangeChangedMsg is sent when the visible window moved and the index
// needs to be rebuilt for the new range.
type RangeChangedMsg struct {
	Start time.Time
	End   time.Time
}

func (m Model) rangeChanged() tea.Cmd {
	start, end := m.Range()
	return func() tea.Msg {
		return RangeChangedMsg{Start: start, End: end}
	}
}

// View renders the visible days.
func (m Model) View() string {
	var b strings.Builder
	today := model.DateKey(time.Now())

	linesLeft := m.height
	for offset := m.topDay; offset < m.numDays && linesLeft > 1; offset++ {
		day := m.start.AddDate(0, 0, offset)
		items := m.itemsOn(offset)

		heading := day.Format("Monday, Jan 2")
		if model.DateKey(day) == today {
			heading = theme.TodayHeadingStyle.Render(heading)
		} else {
			heading = theme.DayHeadingStyle.Render(heading)
		}
		b.WriteString(heading + "\n")
		linesLeft--

		if len(items) == 0 {
			b.WriteString(theme.HelpStyle.Render("  nothing scheduled") + "\n")
			linesLeft--
			continue
		}

		for i, item := range items {
			if linesLeft <= 1 {
				break
			}
			selected := offset == m.cursorDay && i == m.cursorItem
			b.WriteString(m.renderItem(item, selected) + "\n")
			linesLeft--
		}
	}

	return lipgloss.NewStyle().Width(m.width).Render(b.String())
}

// renderItem draws one agenda line: marker, time column, title, badge.
func (m Model) renderItem(item model.AgendaItem, selected bool) string {
	var marker string
	switch {
	case item.Kind == model.ItemEvent:
		marker = "◆"
	case item.Completed:
		marker = "✓"
	default:
		marker = "○"
	}

	clock := "     "
	if item.Timed() {
		clock = theme.TimeStyle.Render(item.Time)
	}

	title := item.Title
	if item.Completed {
		title = theme.CompletedStyle.Render(title)
	} else if item.Kind == model.ItemEvent {
		title = theme.EventStyle.Render(title)
	} else if item.Urgency > 0 {
		title = theme.UrgencyStyle(item.Urgency).Render(title)
	}

	badge := ""
	if item.Kind == model.ItemEvent && item.Event != nil {
		badge = " " + theme.CalendarLabelStyle(item.Event.Calendar).
			Render("["+item.Event.Calendar+"]")
	}

	line := fmt.Sprintf("%s %s %s%s", marker, clock, title, badge)
	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// moveItem advances the cursor by one item, crossing day boundaries.
func (m *Model) moveItem(delta int) {
	day := m.cursorDay
	item := m.cursorItem + delta

	for {
		items := m.itemsOn(day)
		if item >= 0 && item < len(items) {
			m.cursorDay = day
			m.cursorItem = item
			m.scrollIntoView()
			return
		}

		if item < 0 {
			day--
			if day < 0 {
				return
			}
			item = len(m.itemsOn(day)) - 1
		} else {
			day++
			if day >= m.numDays {
				return
			}
			item = 0
		}
	}
}

// shiftWindow moves the whole window by days and re-anchors the cursor.
func (m *Model) shiftWindow(days int) {
	m.start = m.start.AddDate(0, 0, days)
	m.resetCursor()
}

func (m *Model) resetCursor() {
	m.cursorDay = 0
	m.cursorItem = 0
	m.topDay = 0
	m.clampCursor()
}

// clampCursor lands the cursor on the first item at or after its day.
func (m *Model) clampCursor() {
	items := m.itemsOn(m.cursorDay)
	if m.cursorItem < len(items) {
		if m.cursorItem < 0 {
			m.cursorItem = 0
		}
		return
	}
	if len(items) > 0 {
		m.cursorItem = len(items) - 1
		return
	}
	for day := 0; day < m.numDays; day++ {
		if len(m.itemsOn(day)) > 0 {
			m.cursorDay = day
			m.cursorItem = 0
			m.scrollIntoView()
			return
		}
	}
	m.cursorDay = 0
	m.cursorItem = 0
}

// scrollIntoView keeps the cursor's day within the rendered window.
func (m *Model) scrollIntoView() {
	if m.cursorDay < m.topDay {
		m.topDay = m.cursorDay
	}
	// Rough lower bound: assume three lines per day on average.
	visibleDays := m.height / 3
	if visibleDays < 1 {
		visibleDays = 1
	}
	if m.cursorDay >= m.topDay+visibleDays {
		m.topDay = m.cursorDay - visibleDays + 1
	}
}

func (m Model) itemsOn(dayOffset int) []model.AgendaItem {
	if m.index == nil || dayOffset < 0 || dayOffset >= m.numDays {
		return nil
	}
	day := m.start.AddDate(0, 0, dayOffset)
	return m.index[model.DateKey(day)]
}
