package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskcal/internal/app"
	"github.com/nhle/taskcal/internal/credential"
	"github.com/nhle/taskcal/internal/engine"
	"github.com/nhle/taskcal/internal/model"
	"github.com/nhle/taskcal/internal/notify"
	"github.com/nhle/taskcal/internal/store"
	appsync "github.com/nhle/taskcal/internal/sync"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(),
		"path to the configuration file")
	setCredential := flag.String("set-credential", "",
		"store the secret for the given calendar id in the system keyring and exit")
	deleteCredential := flag.String("delete-credential", "",
		"remove the stored secret for the given calendar id and exit")
	flag.Parse()

	var err error
	switch {
	case *setCredential != "":
		err = runSetCredential(*configPath, *setCredential, os.Stdin)
	case *deleteCredential != "":
		err = runDeleteCredential(*configPath, *deleteCredential)
	default:
		err = run(*configPath)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "taskcal:", err)
		os.Exit(1)
	}
}

// runSetCredential stores the secret for a configured calendar, read
// from r, under the key the source registration loads it from.
func runSetCredential(configPath, calendarID string, r io.Reader) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	key, err := credentialKeyFromConfig(cfg, calendarID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "secret for %s: ", calendarID)
	secret, err := readSecret(r)
	if err != nil {
		return err
	}
	if err := credential.Set(key, secret); err != nil {
		return err
	}

	fmt.Println("credential stored for", calendarID)
	return nil
}

// runDeleteCredential removes the stored secret for a configured
// calendar from the system keyring.
func runDeleteCredential(configPath, calendarID string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	key, err := credentialKeyFromConfig(cfg, calendarID)
	if err != nil {
		return err
	}
	if err := credential.Delete(key); err != nil {
		return err
	}

	fmt.Println("credential removed for", calendarID)
	return nil
}

// credentialKeyFromConfig resolves a calendar id to its keyring key.
func credentialKeyFromConfig(cfg *model.AppConfig, calendarID string) (string, error) {
	for _, cal := range cfg.Calendars {
		if cal.ID == calendarID {
			return credential.KeyFor(cal.Type, cal.ID), nil
		}
	}
	return "", fmt.Errorf("no calendar %q in the configuration", calendarID)
}

// readSecret reads a single line from r and trims surrounding
// whitespace. An empty secret is rejected.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading secret: %w", err)
	}

	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", errors.New("empty secret")
	}
	return secret, nil
}

func run(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog := openLogger()
	defer closeLog()

	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	eng, err := engine.New(context.Background(), s, logger)
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	poller := appsync.New(cfg.Display.RangeDays)
	registered := app.RegisterSources(poller, cfg, logger)
	logger.Info("calendar sources registered", "count", registered)

	reminderCh := make(chan notify.ReminderMsg, 4)
	reminder := notify.NewReminder(eng, time.Local, logger, func(msg notify.ReminderMsg) {
		select {
		case reminderCh <- msg:
		default:
		}
	})
	if cfg.Reminder.Enabled {
		if _, err := reminder.Schedule(cfg.Reminder.At); err != nil {
			logger.Warn("invalid reminder time, reminders disabled",
				"at", cfg.Reminder.At, "error", err)
		} else {
			reminder.Start()
			defer reminder.Stop()
		}
	}

	program := tea.NewProgram(
		app.New(eng, poller, reminderCh, cfg, logger),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// openLogger writes structured logs to a state file; the terminal
// belongs to the TUI. Logging is best-effort: when the file cannot be
// created, logs are discarded.
func openLogger() (*slog.Logger, func()) {
	home, err := os.UserHomeDir()
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}

	dir := filepath.Join(home, ".local", "state", "taskcal")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}

	f, err := os.OpenFile(
		filepath.Join(dir, "taskcal.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644,
	)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}
	}

	logger := slog.New(slog.NewTextHandler(f, nil))
	return logger, func() { _ = f.Close() }
}
