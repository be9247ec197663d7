package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/taskcal/internal/model"
)

// AuthError indicates that authentication has failed or expired for a
// calendar source. It is returned by source clients when the server
// rejects the configured credentials.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the kind of external calendar integration.
type SourceType string

const (
	SourceTypeCalDAV  SourceType = "caldav"
	SourceTypeIMAP    SourceType = "imap"
	SourceTypeICSFile SourceType = "ics"
)

// Source defines the contract that every calendar integration must
// implement. Sources are strictly read-only: events they return are
// merged into the agenda for display but never resolved, completed,
// or written back.
type Source interface {
	// Type returns the source type identifier.
	Type() SourceType

	// Name returns the configured display name for this source. It
	// becomes the Calendar field of every event the source returns.
	Name() string

	// ValidateConnection verifies credentials and connectivity.
	// Returns a human-readable status message on success.
	ValidateConnection(ctx context.Context) (string, error)

	// ListEvents retrieves the events overlapping [start, end], both
	// bounds taken as whole days.
	ListEvents(
		ctx context.Context,
		start, end time.Time,
	) ([]model.ExternalEvent, error)
}
