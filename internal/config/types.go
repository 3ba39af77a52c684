package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults applied when a field is omitted.
const (
	DefaultLogLevel     = "info"
	DefaultSendInterval = time.Second
	DefaultPollTimeout  = 10 * time.Second
	DefaultBusyTimeout  = 5 * time.Second
)

// Config is the runtime settings file. It never holds connection tokens;
// those live in the connection store.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Relay    RelayConfig    `json:"relay"`
	Telegram TelegramConfig `json:"telegram"`
	Storage  StorageConfig  `json:"storage"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RelayConfig tunes the sender worker.
//
// send_interval "0s" disables pacing; omitted means DefaultSendInterval.
type RelayConfig struct {
	SendInterval       string `json:"send_interval,omitempty"`
	CollapseOverwrites bool   `json:"collapse_overwrites,omitempty"`
}

type TelegramConfig struct {
	// PollTimeout is the long polling timeout used while pairing.
	PollTimeout string `json:"poll_timeout,omitempty"`
	// APIURL overrides the Bot API base URL (self-hosted bot API server).
	APIURL string `json:"api_url,omitempty"`
}

// StorageConfig selects the connection store driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "busy_timeout": "5s" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`       // file|sqlite
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// Default returns the settings used when no settings file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: DefaultLogLevel, Console: true},
		Storage: StorageConfig{Driver: "file"},
	}
}

func (c RelayConfig) Interval() (time.Duration, error) {
	if strings.TrimSpace(c.SendInterval) == "" {
		return DefaultSendInterval, nil
	}
	return ParseDurationField("relay.send_interval", c.SendInterval)
}

func (c TelegramConfig) Timeout() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.poll_timeout", c.PollTimeout, DefaultPollTimeout)
}

func (c StorageConfig) Busy() (time.Duration, error) {
	return ParseDurationOrDefault("storage.busy_timeout", c.BusyTimeout, DefaultBusyTimeout)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if _, err := c.Relay.Interval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Telegram.Timeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Storage.Busy(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}
