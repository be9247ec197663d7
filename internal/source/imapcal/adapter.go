package imapcal

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/source"
)

// Lookback for mailbox scans. Invites for upcoming events are almost
// always delivered within this window.
const inviteLookback = 60 * 24 * time.Hour

// Adapter implements source.Source for meeting invites delivered over
// IMAP. It scans the mailbox for text/calendar parts and .ics
// attachments and surfaces the events they announce.
type Adapter struct {
	client *IMAPClient
	name   string
}

// NewAdapter creates an IMAP invite source adapter.
func NewAdapter(
	name, host, port, username, password string,
	useTLS bool, mailbox string,
) *Adapter {
	return &Adapter{
		client: NewIMAPClient(host, port, username, password, useTLS, mailbox),
		name:   name,
	}
}

// Type returns the source type identifier for IMAP.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeIMAP
}

// Name returns the configured display name of this account.
func (a *Adapter) Name() string {
	return a.name
}

// ValidateConnection verifies IMAP credentials by connecting,
// authenticating, and selecting the mailbox.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	mailbox, err := a.client.SelectMailbox(ctx)
	if err != nil {
		return "", fmt.Errorf("validating imap connection: %w", err)
	}
	return fmt.Sprintf("connected, scanning %s", mailbox), nil
}

// ListEvents scans recent mail for calendar invites and returns the
// announced events inside [start, end]. When the same event UID
// appears in several messages, the most recently received invite wins;
// meeting updates supersede the original.
func (a *Adapter) ListEvents(
	ctx context.Context,
	start, end time.Time,
) ([]model.ExternalEvent, error) {
	since := time.Now().Add(-inviteLookback)
	invites, err := a.client.FetchInvites(ctx, since, 200)
	if err != nil {
		return nil, fmt.Errorf("scanning mailbox for invites: %w", err)
	}

	type versioned struct {
		events   []model.ExternalEvent
		received time.Time
	}
	latest := make(map[string]versioned)
	order := make([]string, 0, len(invites))

	for _, invite := range invites {
		cal, err := ical.NewDecoder(bytes.NewReader(invite.Raw)).Decode()
		if err != nil {
			continue
		}

		events := source.EventsFromCalendar(cal, a.name, start, end)
		if len(events) == 0 {
			continue
		}

		uid := events[0].UID
		if uid == "" {
			uid = fmt.Sprintf("imap-%d", invite.UID)
		}

		prev, seen := latest[uid]
		if seen && !invite.Received.After(prev.received) {
			continue
		}
		if !seen {
			order = append(order, uid)
		}
		latest[uid] = versioned{events: events, received: invite.Received}
	}

	var out []model.ExternalEvent
	for _, uid := range order {
		out = append(out, latest[uid].events...)
	}
	return out, nil
}
