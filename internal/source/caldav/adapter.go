package caldav

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cyp0633/libcaldora/davclient"
	"github.com/emersion/go-ical"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/source"
)

// Adapter implements source.Source for a CalDAV account. Calendar
// collections are discovered once on first use and cached for the
// lifetime of the adapter.
type Adapter struct {
	client   *Client
	name     string
	location string
	username string
	password string

	calendars []davclient.CalendarInfo
}

// NewAdapter creates a CalDAV source adapter for one account.
func NewAdapter(name, location, username, password string) *Adapter {
	return &Adapter{
		client:   NewClient(location, username, password),
		name:     name,
		location: location,
		username: username,
		password: password,
	}
}

// Type returns the source type identifier for CalDAV.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeCalDAV
}

// Name returns the configured display name of this account.
func (a *Adapter) Name() string {
	return a.name
}

// ValidateConnection runs calendar discovery against the account and
// returns a summary of what was found.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	calendars, err := a.discover(ctx)
	if err != nil {
		return "", fmt.Errorf("validating caldav connection: %w", err)
	}

	names := make([]string, 0, len(calendars))
	for _, cal := range calendars {
		names = append(names, cal.Name)
	}
	return fmt.Sprintf(
		"%d calendar(s): %s", len(calendars), strings.Join(names, ", "),
	), nil
}

// ListEvents queries every discovered calendar collection for VEVENTs
// overlapping [start, end] and parses the returned objects. A calendar
// that fails to parse is skipped; a calendar that fails to fetch fails
// the whole listing so the poller can surface it.
func (a *Adapter) ListEvents(
	ctx context.Context,
	start, end time.Time,
) ([]model.ExternalEvent, error) {
	calendars, err := a.discover(ctx)
	if err != nil {
		return nil, err
	}

	var events []model.ExternalEvent
	for _, cal := range calendars {
		payloads, err := a.client.CalendarQuery(ctx, cal.URI, start, end)
		if err != nil {
			return nil, fmt.Errorf("querying calendar %s: %w", cal.Name, err)
		}

		calendarName := cal.Name
		if calendarName == "" {
			calendarName = a.name
		}

		for _, payload := range payloads {
			parsed, err := ical.NewDecoder(strings.NewReader(payload)).Decode()
			if err != nil {
				continue
			}
			events = append(events,
				source.EventsFromCalendar(parsed, calendarName, start, end)...)
		}
	}
	return events, nil
}

// discover finds the account's calendar collections, translating
// credential failures into AuthError.
func (a *Adapter) discover(ctx context.Context) ([]davclient.CalendarInfo, error) {
	if a.calendars != nil {
		return a.calendars, nil
	}

	calendars, err := davclient.FindCalendars(
		ctx, a.location, a.username, a.password,
	)
	if err != nil {
		if strings.Contains(err.Error(), "401") ||
			strings.Contains(strings.ToLower(err.Error()), "unauthorized") {
			return nil, &source.AuthError{
				SourceType: source.SourceTypeCalDAV,
				Message: fmt.Sprintf(
					"discovery failed for %s: %v", a.username, err,
				),
			}
		}
		return nil, fmt.Errorf("discovering calendars at %s: %w", a.location, err)
	}
	if len(calendars) == 0 {
		return nil, fmt.Errorf("no calendars found at %s", a.location)
	}

	a.calendars = calendars
	return calendars, nil
}
