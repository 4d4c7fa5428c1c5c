// Package config loads runtime configuration from the environment, with an
// optional dotenv file layered underneath.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Source selects the external calendar backend.
const (
	SourceNone   = "none"
	SourceGoogle = "google"
	SourceCalDAV = "caldav"
)

// Config is the full runtime configuration. Every field has a usable
// default except the credentials of the selected calendar source.
type Config struct {
	// DataDir is the root of the on-disk session collection.
	DataDir string
	// LegacyDBPath points at the pre-collection SQLite database; a missing
	// file simply skips the import.
	LegacyDBPath string

	Source      string
	CalendarIDs []string

	// Sync window relative to now, and the interval between passes.
	WindowPast   time.Duration
	WindowFuture time.Duration
	SyncInterval time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenFile    string

	CalDAVEndpoint string
	CalDAVUsername string
	CalDAVPassword string
}

// Load reads configuration from the environment. When envFile is non-empty
// it is loaded first without overriding variables already set; a missing
// file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Source:             strings.ToLower(getenv("HYPRNOTE_SOURCE", SourceNone)),
		GoogleClientID:     os.Getenv("HYPRNOTE_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("HYPRNOTE_GOOGLE_CLIENT_SECRET"),
		GoogleTokenFile:    os.Getenv("HYPRNOTE_GOOGLE_TOKEN_FILE"),
		CalDAVEndpoint:     os.Getenv("HYPRNOTE_CALDAV_ENDPOINT"),
		CalDAVUsername:     os.Getenv("HYPRNOTE_CALDAV_USERNAME"),
		CalDAVPassword:     os.Getenv("HYPRNOTE_CALDAV_PASSWORD"),
	}

	dataDir := os.Getenv("HYPRNOTE_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve home dir: %w", err)
		}
		dataDir = filepath.Join(home, ".hyprnote")
	}
	cfg.DataDir = dataDir
	cfg.LegacyDBPath = getenv("HYPRNOTE_LEGACY_DB", filepath.Join(dataDir, "db.sqlite"))

	if raw := os.Getenv("HYPRNOTE_CALENDAR_IDS"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.CalendarIDs = append(cfg.CalendarIDs, id)
			}
		}
	}

	var err error
	if cfg.WindowPast, err = getDuration("HYPRNOTE_WINDOW_PAST", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.WindowFuture, err = getDuration("HYPRNOTE_WINDOW_FUTURE", 60*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SyncInterval, err = getDuration("HYPRNOTE_SYNC_INTERVAL", 5*time.Minute); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Source {
	case SourceNone:
	case SourceGoogle:
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" || c.GoogleTokenFile == "" {
			return fmt.Errorf("config: source %q needs HYPRNOTE_GOOGLE_CLIENT_ID, HYPRNOTE_GOOGLE_CLIENT_SECRET and HYPRNOTE_GOOGLE_TOKEN_FILE", c.Source)
		}
	case SourceCalDAV:
		if c.CalDAVEndpoint == "" || c.CalDAVUsername == "" || c.CalDAVPassword == "" {
			return fmt.Errorf("config: source %q needs HYPRNOTE_CALDAV_ENDPOINT, HYPRNOTE_CALDAV_USERNAME and HYPRNOTE_CALDAV_PASSWORD", c.Source)
		}
	default:
		return fmt.Errorf("config: unknown source %q", c.Source)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return d, nil
}
