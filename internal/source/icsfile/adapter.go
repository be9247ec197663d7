package icsfile

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/emersion/go-ical"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/source"
)

// Adapter implements source.Source for a local iCalendar file, the
// usual export format of every calendar application. The file is
// re-read on each listing so edits show up on the next poll.
type Adapter struct {
	name string
	path string
}

// NewAdapter creates a local .ics file source adapter.
func NewAdapter(name, path string) *Adapter {
	return &Adapter{name: name, path: path}
}

// Type returns the source type identifier for local files.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeICSFile
}

// Name returns the configured display name of this file.
func (a *Adapter) Name() string {
	return a.name
}

// ValidateConnection checks that the file exists and parses.
func (a *Adapter) ValidateConnection(_ context.Context) (string, error) {
	calendars, err := a.read()
	if err != nil {
		return "", fmt.Errorf("validating calendar file: %w", err)
	}

	total := 0
	for _, cal := range calendars {
		total += len(cal.Events())
	}
	return fmt.Sprintf("%s: %d event(s)", a.path, total), nil
}

// ListEvents parses the file and returns the events inside [start, end].
func (a *Adapter) ListEvents(
	_ context.Context,
	start, end time.Time,
) ([]model.ExternalEvent, error) {
	calendars, err := a.read()
	if err != nil {
		return nil, err
	}

	var events []model.ExternalEvent
	for _, cal := range calendars {
		events = append(events,
			source.EventsFromCalendar(cal, a.name, start, end)...)
	}
	return events, nil
}

// read decodes every calendar object in the file. Exports may
// concatenate one VCALENDAR per original calendar.
func (a *Adapter) read() ([]*ical.Calendar, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("opening calendar file %s: %w", a.path, err)
	}
	defer f.Close()

	calendars, err := source.DecodeCalendars(ical.NewDecoder(f))
	if err != nil {
		return nil, fmt.Errorf("parsing calendar file %s: %w", a.path, err)
	}
	return calendars, nil
}
