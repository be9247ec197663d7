package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nhle/taskcal/internal/engine"
)

// ReminderMsg is delivered to the sink when the daily reminder fires
// and at least one occurrence is still due today.
type ReminderMsg struct {
	Date    string
	DueNow  int
	Message string
}

// Reminder fires once a day at a configured local time and reports how
// many occurrences are still due. It is quiet on days where everything
// is already done.
type Reminder struct {
	engine *engine.Engine
	cron   *cron.Cron
	logger *slog.Logger
	sink   func(ReminderMsg)
}

// NewReminder creates a reminder scheduler. The sink receives every
// fired reminder; the TUI feeds it into the program as a message.
func NewReminder(
	eng *engine.Engine,
	loc *time.Location,
	logger *slog.Logger,
	sink func(ReminderMsg),
) *Reminder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reminder{
		engine: eng,
		cron:   cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		logger: logger,
		sink:   sink,
	}
}

// Schedule registers the daily job at the given HH:MM time string.
func (r *Reminder) Schedule(timeStr string) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return r.cron.AddFunc(spec, r.fire)
}

// Start begins running scheduled jobs.
func (r *Reminder) Start() {
	r.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish.
func (r *Reminder) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// fire counts today's due occurrences and notifies the sink when any
// remain.
func (r *Reminder) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	today := time.Now()
	due, err := r.engine.CountDueOn(ctx, today)
	if err != nil {
		r.logger.Error("counting due occurrences for reminder", "error", err)
		return
	}
	if due == 0 {
		return
	}

	msg := ReminderMsg{
		Date:    today.Format("2006-01-02"),
		DueNow:  due,
		Message: fmt.Sprintf("%d task(s) still due today", due),
	}
	r.logger.Info("daily reminder", "date", msg.Date, "due", due)
	if r.sink != nil {
		r.sink(msg)
	}
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
