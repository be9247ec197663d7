package app

import (
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskcal/internal/engine"
	"github.com/nhle/taskcal/internal/keys"
	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/notify"
	appsync "github.com/nhle/taskcal/internal/sync"
	"github.com/nhle/taskcal/internal/ui"
	"github.com/nhle/taskcal/internal/ui/agenda"
	"github.com/nhle/taskcal/internal/ui/deleteprompt"
	helpview "github.com/nhle/taskcal/internal/ui/help"
	"github.com/nhle/taskcal/internal/ui/taskform"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewAgenda ViewState = iota
	ViewHelp
	ViewTaskCreate
	ViewTaskEdit
	ViewDeletePrompt
)

// Model is the root Bubble Tea model that manages view routing, layout,
// and access to the occurrence engine.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	engine       *engine.Engine
	keys         *keys.KeyMap
	logger       *slog.Logger

	agendaView agenda.Model
	helpView   helpview.Model
	formView   taskform.Model
	promptView deleteprompt.Model

	poller     *appsync.Poller
	reminderCh chan notify.ReminderMsg

	ready         bool
	statusMessage string
}

// New creates the root application model.
func New(
	eng *engine.Engine,
	poller *appsync.Poller,
	reminderCh chan notify.ReminderMsg,
	cfg *model.AppConfig,
	logger *slog.Logger,
) Model {
	k := keys.DefaultKeyMap()
	rangeDays := 14
	if cfg != nil && cfg.Display.RangeDays > 0 {
		rangeDays = cfg.Display.RangeDays
	}
	if logger == nil {
		logger = slog.Default()
	}

	return Model{
		currentView: ViewAgenda,
		engine:      eng,
		keys:        k,
		logger:      logger,
		agendaView:  agenda.New(k, rangeDays, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		formView:    taskform.New(80, 24),
		promptView:  deleteprompt.New(80, 24),
		poller:      poller,
		reminderCh:  reminderCh,
	}
}

// Init loads the initial agenda and starts background polling.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadAgenda()}
	if m.poller != nil {
		cmds = append(cmds, m.poller.Start())
	}
	if m.reminderCh != nil {
		cmds = append(cmds, m.waitForReminder())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.agendaView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.formView.SetSize(contentWidth, contentHeight)
		m.promptView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case appsync.EventsMsg:
		if msg.Auth != nil {
			m.statusMessage = msg.Auth.Message
		} else if msg.Error != nil {
			m.statusMessage = fmt.Sprintf("calendar sync failed: %v", msg.Error)
		} else {
			m.statusMessage = ""
			m.engine.SetEvents(msg.Events)
		}
		return m, tea.Batch(m.loadAgenda(), m.poller.WaitForNextResult())

	case notify.ReminderMsg:
		m.statusMessage = msg.Message
		return m, m.waitForReminder()

	case agenda.RangeChangedMsg:
		return m, m.loadAgenda()

	case agendaLoadedMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("loading agenda: %v", msg.err)
			return m, nil
		}
		m.agendaView.SetIndex(msg.index)
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("%s: %v", msg.op, msg.err)
			return m, nil
		}
		return m, m.loadAgenda()

	case taskform.TaskCreatedMsg:
		m.currentView = ViewAgenda
		return m, m.createTask(msg.Task)

	case taskform.TaskUpdatedMsg:
		m.currentView = ViewAgenda
		return m, m.updateTask(msg.Task)

	case taskform.TaskFormCancelMsg:
		m.currentView = ViewAgenda
		return m, nil

	case deleteprompt.DecidedMsg:
		m.currentView = ViewAgenda
		switch msg.Choice {
		case deleteprompt.ChoiceOccurrence:
			return m, m.deleteOccurrence(msg.TaskID, msg.Date)
		case deleteprompt.ChoiceSeries:
			return m, m.deleteSeries(msg.TaskID)
		default:
			return m, nil
		}

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that act regardless of the inner view
// state. Form views keep full key ownership except for ctrl+c.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.shutdown()
		return tea.Quit, true
	}

	formActive := m.currentView == ViewTaskCreate ||
		m.currentView == ViewTaskEdit ||
		m.currentView == ViewDeletePrompt
	if formActive {
		return nil, false
	}

	switch msg.String() {
	case "q":
		if m.currentView == ViewAgenda {
			m.shutdown()
			return tea.Quit, true
		}

	case "esc":
		if m.currentView != ViewAgenda {
			m.currentView = ViewAgenda
			return nil, true
		}

	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case "v":
		if m.currentView == ViewAgenda {
			m.agendaView.SetHistory(!m.agendaView.History())
			return m.loadAgenda(), true
		}

	case "r":
		if m.currentView == ViewAgenda && m.poller != nil {
			m.poller.RefreshAll()
			m.statusMessage = "refreshing calendars"
			return nil, true
		}

	case "n":
		if m.currentView == ViewAgenda {
			m.previousView = m.currentView
			m.currentView = ViewTaskCreate
			return m.formView.StartCreate(m.agendaView.SelectedDate()), true
		}

	case "e":
		if m.currentView == ViewAgenda {
			item, ok := m.agendaView.Selected()
			if ok && item.Kind != model.ItemEvent && item.Task != nil {
				m.previousView = m.currentView
				m.currentView = ViewTaskEdit
				return m.formView.StartEdit(*item.Task), true
			}
			return nil, true
		}

	case " ", "x":
		if m.currentView == ViewAgenda {
			item, ok := m.agendaView.Selected()
			if ok && item.Kind != model.ItemEvent {
				return m.toggleItem(item), true
			}
			return nil, true
		}

	case "d":
		if m.currentView == ViewAgenda {
			item, ok := m.agendaView.Selected()
			if !ok || item.Kind == model.ItemEvent || item.Task == nil {
				return nil, true
			}
			if engine.DeletionMode(*item.Task) == engine.DeleteDirect {
				return m.deleteSeries(item.Task.ID), true
			}
			m.previousView = m.currentView
			m.currentView = ViewDeletePrompt
			return m.promptView.Start(item), true
		}
	}

	return nil, false
}

// shutdown stops background machinery before quitting.
func (m *Model) shutdown() {
	if m.poller != nil {
		m.poller.Stop()
	}
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewAgenda:
		m.agendaView, cmd = m.agendaView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewTaskCreate, ViewTaskEdit:
		m.formView, cmd = m.formView.Update(msg)
	case ViewDeletePrompt:
		m.promptView, cmd = m.promptView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "Taskcal"
	if m.agendaView.History() {
		title = "Taskcal [history]"
	}
	header := m.layout.RenderHeader(title, m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewAgenda:
		return m.agendaView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewTaskCreate, ViewTaskEdit:
		return m.formView.View()
	case ViewDeletePrompt:
		return m.promptView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the combined poll state.
func (m Model) syncStatus() string {
	if m.poller == nil {
		return "no calendars"
	}

	statuses := m.poller.GetStatuses()
	if len(statuses) == 0 {
		return "no calendars"
	}

	running := 0
	errCount := 0
	var lastSync time.Time
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			errCount++
		}
		if s.LastSync.After(lastSync) {
			lastSync = s.LastSync
		}
	}

	if running > 0 {
		return fmt.Sprintf("syncing (%d)", running)
	}
	if errCount > 0 {
		return fmt.Sprintf("%d calendar(s) unreachable", errCount)
	}
	if lastSync.IsZero() {
		return "idle"
	}
	return "synced " + lastSync.Format("15:04")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.statusMessage != "" && m.currentView == ViewAgenda {
		return m.statusMessage
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewTaskCreate, ViewTaskEdit:
		return "enter submit | esc cancel"
	case ViewDeletePrompt:
		return "enter confirm | esc cancel"
	default:
		return "q quit | ? help | n new | space done | d delete | v history | t today"
	}
}

// waitForReminder returns a tea.Cmd that blocks on the reminder
// channel and feeds fired reminders into the program.
func (m Model) waitForReminder() tea.Cmd {
	ch := m.reminderCh
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
