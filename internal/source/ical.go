package source

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/nhle/taskcal/internal/model"
)

// EventsFromCalendar maps every VEVENT in a parsed calendar to external
// events falling inside [start, end], expanding RRULEs and honoring
// EXDATEs. Components that cannot be interpreted are skipped rather
// than failing the whole calendar.
func EventsFromCalendar(
	cal *ical.Calendar,
	calendarName string,
	start, end time.Time,
) []model.ExternalEvent {
	start = model.Midnight(start)
	rangeEnd := model.Midnight(end).AddDate(0, 0, 1)
	now := time.Now()

	var events []model.ExternalEvent
	for _, ev := range cal.Events() {
		dtstartProp := ev.Props.Get(ical.PropDateTimeStart)
		if dtstartProp == nil {
			continue
		}

		dtstart, err := ev.Props.DateTime(ical.PropDateTimeStart, time.UTC)
		if err != nil {
			continue
		}
		allDay := dtstartProp.ValueType() == ical.ValueDate

		uid, _ := ev.Props.Text(ical.PropUID)
		summary, _ := ev.Props.Text(ical.PropSummary)
		location, _ := ev.Props.Text(ical.PropLocation)
		if summary == "" {
			summary = "(untitled event)"
		}

		for _, occ := range expandOccurrences(ev, dtstart, start, rangeEnd) {
			events = append(events, model.ExternalEvent{
				UID:       uid,
				Calendar:  calendarName,
				Title:     summary,
				Start:     occ,
				AllDay:    allDay,
				Location:  location,
				FetchedAt: now,
			})
		}
	}
	return events
}

// expandOccurrences returns the start times of an event inside
// [start, rangeEnd). A plain event contributes its DTSTART; a
// recurring one is expanded through its RRULE with EXDATEs removed.
func expandOccurrences(
	ev ical.Event,
	dtstart, start, rangeEnd time.Time,
) []time.Time {
	rruleProp := ev.Props.Get(ical.PropRecurrenceRule)
	if rruleProp == nil || rruleProp.Value == "" {
		if dtstart.Before(start) || !dtstart.Before(rangeEnd) {
			return nil
		}
		return []time.Time{dtstart}
	}

	rule, err := rrule.StrToRRule(rruleProp.Value)
	if err != nil {
		// A malformed rule still leaves a usable base event.
		if dtstart.Before(start) || !dtstart.Before(rangeEnd) {
			return nil
		}
		return []time.Time{dtstart}
	}
	rule.DTStart(dtstart)

	excluded := exceptionDates(ev)
	occurrences := rule.Between(start, rangeEnd.Add(-time.Second), true)

	kept := occurrences[:0]
	for _, occ := range occurrences {
		if excluded[model.DateKey(occ)] {
			continue
		}
		kept = append(kept, occ)
	}
	return kept
}

// exceptionDates collects EXDATE values as a date-keyed set. Matching
// at day granularity is enough for agenda display.
func exceptionDates(ev ical.Event) map[string]bool {
	prop := ev.Props.Get(ical.PropExceptionDates)
	if prop == nil || prop.Value == "" {
		return nil
	}

	layouts := []string{"20060102T150405Z", "20060102T150405", "20060102"}
	excluded := make(map[string]bool)
	for _, raw := range strings.Split(prop.Value, ",") {
		raw = strings.TrimSpace(raw)
		for _, layout := range layouts {
			if t, err := time.Parse(layout, raw); err == nil {
				excluded[model.DateKey(t)] = true
				break
			}
		}
	}
	return excluded
}

// DecodeCalendars reads every calendar object concatenated in a
// stream. CalDAV multistatus responses and invite attachments both
// deliver one calendar per object, but local files may hold several.
func DecodeCalendars(dec *ical.Decoder) ([]*ical.Calendar, error) {
	var calendars []*ical.Calendar
	for {
		cal, err := dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return calendars, nil
			}
			return calendars, err
		}
		calendars = append(calendars, cal)
	}
}
