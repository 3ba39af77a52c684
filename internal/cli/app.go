package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"teleecho/internal/config"
	"teleecho/internal/pairing"
	"teleecho/internal/storage"
	logx "teleecho/pkg/logx"
	"teleecho/pkg/systemd"
)

const (
	defaultFileName   = ".teleecho.conf"
	defaultSQLiteName = ".teleecho.db"
)

// app holds what every command needs once flags are parsed.
type app struct {
	v         *viper.Viper
	newClient ClientFactory
	stdin     io.Reader
	notifier  *systemd.Notifier
	pairOpts  []pairing.Option

	settings *config.Manager
	logs     *logx.Service
	log      logx.Logger
	store    storage.Store
}

// setup loads settings, starts logging and opens the connection store.
func (a *app) setup() error {
	a.settings = config.NewManager(a.v.GetString("settings"))
	cfg, err := a.settings.Load()
	if err != nil {
		return fmt.Errorf("while loading settings: %w", err)
	}

	a.logs, a.log = logx.New(a.logConfig(cfg))

	busy, _ := cfg.Storage.Busy()
	path, err := a.storePath(cfg.Storage.Driver)
	if err != nil {
		return err
	}
	a.store, err = storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        path,
		BusyTimeout: busy,
	}, a.log)
	if err != nil {
		return fmt.Errorf("while opening config file: %w", err)
	}
	a.log.Debug("connection store opened", logx.String("path", path), logx.String("driver", cfg.Storage.Driver))
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing connection store", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}

// logConfig maps settings to the logger, honoring --log-level.
func (a *app) logConfig(cfg *config.Config) logx.Config {
	level := cfg.Logging.Level
	if override := strings.TrimSpace(a.v.GetString("log-level")); override != "" {
		level = override
	}
	return logx.Config{
		Level:   level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func (a *app) storePath(driver string) (string, error) {
	if p := strings.TrimSpace(a.v.GetString("config")); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("error while retrieving home directory")
	}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return filepath.Join(home, defaultSQLiteName), nil
	default:
		return filepath.Join(home, defaultFileName), nil
	}
}
