package app

import (
	"log/slog"
	"strconv"

	"github.com/nhle/taskcal/internal/credential"
	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/source"
	"github.com/nhle/taskcal/internal/source/caldav"
	"github.com/nhle/taskcal/internal/source/icsfile"
	"github.com/nhle/taskcal/internal/source/imapcal"
	appsync "github.com/nhle/taskcal/internal/sync"
)

// RegisterSources builds an adapter for every enabled calendar in the
// configuration and registers it with the poller. Calendars whose
// credentials are missing are skipped with a log line rather than
// failing startup. Returns the number registered.
func RegisterSources(
	poller *appsync.Poller,
	cfg *model.AppConfig,
	logger *slog.Logger,
) int {
	if cfg == nil {
		return 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	registered := 0
	for _, cal := range cfg.Calendars {
		if !cal.Enabled {
			continue
		}

		var src source.Source
		switch source.SourceType(cal.Type) {
		case source.SourceTypeCalDAV:
			src = createCalDAVAdapter(cal, logger)
		case source.SourceTypeIMAP:
			src = createIMAPAdapter(cal, logger)
		case source.SourceTypeICSFile:
			src = createICSAdapter(cal, logger)
		default:
			logger.Warn("unknown calendar type",
				"calendar", cal.Name, "type", cal.Type)
		}
		if src == nil {
			continue
		}

		poller.RegisterSource(src, cal)
		registered++
	}
	return registered
}

// createCalDAVAdapter builds a CalDAV adapter from a calendar
// configuration, loading the password from the system keyring.
func createCalDAVAdapter(
	cal model.CalendarConfig, logger *slog.Logger,
) source.Source {
	url := cal.Config["url"]
	username := cal.Config["username"]
	if url == "" || username == "" {
		logger.Warn("skipping caldav calendar: url and username required",
			"calendar", cal.Name)
		return nil
	}

	password, err := credential.Get(credential.KeyFor(cal.Type, cal.ID))
	if err != nil {
		logger.Warn("skipping caldav calendar: credential not found",
			"calendar", cal.Name, "id", cal.ID, "error", err)
		return nil
	}

	return caldav.NewAdapter(cal.Name, url, username, password)
}

// createIMAPAdapter builds an IMAP invite adapter from a calendar
// configuration, loading the password from the system keyring.
func createIMAPAdapter(
	cal model.CalendarConfig, logger *slog.Logger,
) source.Source {
	host := cal.Config["host"]
	username := cal.Config["username"]
	if host == "" || username == "" {
		logger.Warn("skipping imap calendar: host and username required",
			"calendar", cal.Name)
		return nil
	}

	port := cal.Config["port"]
	if port == "" {
		port = "993"
	}
	useTLS := true
	if raw := cal.Config["tls"]; raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			useTLS = parsed
		}
	}

	password, err := credential.Get(credential.KeyFor(cal.Type, cal.ID))
	if err != nil {
		logger.Warn("skipping imap calendar: credential not found",
			"calendar", cal.Name, "id", cal.ID, "error", err)
		return nil
	}

	return imapcal.NewAdapter(
		cal.Name, host, port, username, password,
		useTLS, cal.Config["mailbox"],
	)
}

// createICSAdapter builds a local-file adapter from a calendar
// configuration.
func createICSAdapter(
	cal model.CalendarConfig, logger *slog.Logger,
) source.Source {
	path := cal.Config["path"]
	if path == "" {
		logger.Warn("skipping ics calendar: path required",
			"calendar", cal.Name)
		return nil
	}
	return icsfile.NewAdapter(cal.Name, path)
}
