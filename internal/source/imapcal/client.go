package imapcal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/taskcal/internal/source"
)

// Invite is one calendar payload extracted from a mailbox message,
// either an inline text/calendar part or an .ics attachment.
type Invite struct {
	UID      uint32
	Subject  string
	Received time.Time
	Raw      []byte
}

// IMAPClient wraps go-imap v2 for scanning a mailbox for calendar
// invites.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	mailbox  string
}

// NewIMAPClient creates a new IMAP client configuration. An empty
// mailbox defaults to INBOX.
func NewIMAPClient(
	host, port, username, password string, tls bool, mailbox string,
) *IMAPClient {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		mailbox:  mailbox,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout on the returned client.
func (c *IMAPClient) Connect(
	_ context.Context,
) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			SourceType: source.SourceTypeIMAP,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// SelectMailbox connects and selects the configured mailbox, returning
// the mailbox name on success. Used for connection validation.
func (c *IMAPClient) SelectMailbox(ctx context.Context) (string, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		return "", fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}
	return c.mailbox, nil
}

// FetchInvites scans the mailbox for messages received since the given
// time and extracts every calendar payload they carry. Messages
// without calendar parts are skipped silently.
func (c *IMAPClient) FetchInvites(
	ctx context.Context, since time.Time, limit int,
) ([]Invite, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	criteria := &imap.SearchCriteria{
		Since: since,
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Take the most recent messages when over the limit.
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	uidSet := imap.UIDSetNum(uids...)

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var invites []Invite
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		rawBody := buf.FindBodySection(bodySection)
		if rawBody == nil {
			continue
		}

		subject := ""
		received := time.Time{}
		if buf.Envelope != nil {
			subject = buf.Envelope.Subject
			received = buf.Envelope.Date
		}

		for _, payload := range extractCalendarParts(rawBody) {
			invites = append(invites, Invite{
				UID:      uint32(buf.UID),
				Subject:  subject,
				Received: received,
				Raw:      payload,
			})
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return invites, fmt.Errorf("fetching invites: %w", err)
	}

	return invites, nil
}

// extractCalendarParts parses a raw RFC 2822 message with go-message
// and returns every text/calendar inline part and .ics attachment.
func extractCalendarParts(raw []byte) [][]byte {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	defer mr.Close()

	var payloads [][]byte
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if !strings.HasPrefix(contentType, "text/calendar") {
				continue
			}
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			payloads = append(payloads, body)

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			isCalendar := strings.HasPrefix(contentType, "text/calendar") ||
				strings.HasPrefix(contentType, "application/ics") ||
				strings.HasSuffix(strings.ToLower(filename), ".ics")
			if !isCalendar {
				continue
			}
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			payloads = append(payloads, body)
		}
	}

	return payloads
}
