package model

import "time"

// ExternalEvent is a read-only calendar entry fetched from an external
// provider. The engine only displays these; it never resolves or
// mutates them.
type ExternalEvent struct {
	// UID is the provider-side identifier (iCalendar UID).
	UID string `json:"uid"`

	// Calendar is the user-visible name of the source calendar.
	Calendar string `json:"calendar"`

	// Title is the event summary.
	Title string `json:"title"`

	// Start is the event start. For all-day events it is midnight.
	Start time.Time `json:"start"`

	// AllDay marks date-only events, which sort before timed items.
	AllDay bool `json:"all_day"`

	// Location is the optional event location text.
	Location string `json:"location,omitempty"`

	// FetchedAt is when the event was last retrieved from its source.
	FetchedAt time.Time `json:"fetched_at"`
}

// Date returns the canonical date key of the event's day.
func (e ExternalEvent) Date() string {
	return DateKey(e.Start)
}

// Clock returns the "HH:MM" start time, or "" for all-day events.
func (e ExternalEvent) Clock() string {
	if e.AllDay {
		return ""
	}
	return e.Start.Format("15:04")
}
