package caldav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/nhle/taskcal/internal/source"
)

const caldavTimeLayout = "20060102T150405Z"

// Client is a thin HTTP client for the CalDAV REPORT interface. It
// handles Basic authentication, calendar-query construction, and
// multistatus parsing, returning raw iCalendar payloads.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a new CalDAV client. The baseURL should be the
// root URL of the server (e.g., https://cal.example.com); calendar
// paths discovered later are resolved against it.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CalendarQuery issues a REPORT calendar-query against one calendar
// collection and returns the calendar-data payload of every matching
// VEVENT object.
func (c *Client) CalendarQuery(
	ctx context.Context,
	calendarPath string,
	start, end time.Time,
) ([]string, error) {
	body := buildCalendarQuery(start, end)

	req, err := http.NewRequestWithContext(
		ctx, "REPORT", c.resolve(calendarPath), bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("creating REPORT request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing REPORT %s: %w", calendarPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden {
		return nil, &source.AuthError{
			SourceType: source.SourceTypeCalDAV,
			Message: fmt.Sprintf(
				"server rejected credentials for %s (%d)",
				c.username, resp.StatusCode,
			),
		}
	}
	if resp.StatusCode != http.StatusMultiStatus {
		return nil, fmt.Errorf(
			"unexpected status %d from REPORT %s",
			resp.StatusCode, calendarPath,
		)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading multistatus body: %w", err)
	}

	return parseMultistatus(raw)
}

// resolve joins a discovered calendar path (absolute URL or
// server-relative path) with the configured base URL.
func (c *Client) resolve(calendarPath string) string {
	if strings.HasPrefix(calendarPath, "http://") ||
		strings.HasPrefix(calendarPath, "https://") {
		return calendarPath
	}
	return c.baseURL + "/" + strings.TrimLeft(calendarPath, "/")
}

// buildCalendarQuery renders the calendar-query REPORT body limiting
// results to VEVENTs overlapping [start, end).
func buildCalendarQuery(start, end time.Time) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	query := doc.CreateElement("c:calendar-query")
	query.CreateAttr("xmlns:d", "DAV:")
	query.CreateAttr("xmlns:c", "urn:ietf:params:xml:ns:caldav")

	prop := query.CreateElement("d:prop")
	prop.CreateElement("d:getetag")
	prop.CreateElement("c:calendar-data")

	filter := query.CreateElement("c:filter")
	calFilter := filter.CreateElement("c:comp-filter")
	calFilter.CreateAttr("name", "VCALENDAR")
	eventFilter := calFilter.CreateElement("c:comp-filter")
	eventFilter.CreateAttr("name", "VEVENT")

	timeRange := eventFilter.CreateElement("c:time-range")
	timeRange.CreateAttr("start", start.UTC().Format(caldavTimeLayout))
	timeRange.CreateAttr("end", end.UTC().Format(caldavTimeLayout))

	out, _ := doc.WriteToBytes()
	return out
}

// parseMultistatus extracts every calendar-data text node from a
// multistatus response. Namespace prefixes vary between servers, so
// elements are matched by local name.
func parseMultistatus(raw []byte) ([]string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("parsing multistatus response: %w", err)
	}

	var payloads []string
	collectCalendarData(doc.Root(), &payloads)
	return payloads, nil
}

func collectCalendarData(el *etree.Element, payloads *[]string) {
	if el == nil {
		return
	}
	if el.Tag == "calendar-data" {
		if text := strings.TrimSpace(el.Text()); text != "" {
			*payloads = append(*payloads, text)
		}
		return
	}
	for _, child := range el.ChildElements() {
		collectCalendarData(child, payloads)
	}
}
