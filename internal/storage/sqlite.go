package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "teleecho/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const defaultBusyTimeout = 5 * time.Second

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	// Tokens live here.
	_ = os.Chmod(path, fileMode)
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) List(ctx context.Context) ([]Connection, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name, token, chat_id FROM connections ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		var c Connection
		if err := rows.Scan(&c.Name, &c.Token, &c.ChatID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Lookup(ctx context.Context, name string) (Connection, error) {
	if s == nil || s.db == nil {
		return Connection{}, ErrDisabled
	}
	if name == "" {
		conns, err := s.List(ctx)
		if err != nil {
			return Connection{}, err
		}
		return pick(conns, "")
	}
	var c Connection
	err := s.db.QueryRowContext(ctx,
		`SELECT name, token, chat_id FROM connections WHERE name = ?`, name,
	).Scan(&c.Name, &c.Token, &c.ChatID)
	if errors.Is(err, sql.ErrNoRows) {
		return Connection{}, ErrNotFound
	}
	if err != nil {
		return Connection{}, err
	}
	return c, nil
}

func (s *sqliteStore) Add(ctx context.Context, c Connection) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if err := c.validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO connections(name, token, chat_id, created_at) VALUES(?,?,?,?)
		 ON CONFLICT(name) DO NOTHING`,
		c.Name, c.Token, c.ChatID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, c.Name)
	}
	s.log.Debug("connection added", logx.String("name", c.Name))
	return nil
}

func (s *sqliteStore) Remove(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	s.log.Debug("connection removed", logx.String("name", name))
	return nil
}
