package storage

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

var (
	ErrDisabled  = errors.New("storage disabled")
	ErrNotFound  = errors.New("connection not found")
	ErrExists    = errors.New("connection already exists")
	ErrAmbiguous = errors.New("more than one connection stored, name one")
)

// Config configures storage.
//
// Driver values:
//   - "file" (default): document at Path, format picked by extension
//   - "sqlite": SQLite database file at Path
//
// "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Connection pairs a bot token with the chat that receives relayed output.
type Connection struct {
	Name   string `json:"name" toml:"name" yaml:"name"`
	Token  string `json:"token" toml:"token" yaml:"token"`
	ChatID int64  `json:"chat_id" toml:"chat_id" yaml:"chat_id"`
}

// NormalizeName trims name and replaces inner whitespace runs with '-'.
func NormalizeName(name string) string {
	return strings.Join(strings.FieldsFunc(name, unicode.IsSpace), "-")
}

func (c Connection) validate() error {
	switch {
	case c.Name == "":
		return errors.New("connection name is empty")
	case c.Name != NormalizeName(c.Name):
		return errors.New("connection name must not contain whitespace")
	case strings.TrimSpace(c.Token) == "":
		return errors.New("connection token is empty")
	}
	return nil
}

// pick resolves name against conns. An empty name selects the only entry.
func pick(conns []Connection, name string) (Connection, error) {
	if name == "" {
		switch len(conns) {
		case 0:
			return Connection{}, ErrNotFound
		case 1:
			return conns[0], nil
		default:
			return Connection{}, ErrAmbiguous
		}
	}
	for _, c := range conns {
		if c.Name == name {
			return c, nil
		}
	}
	return Connection{}, ErrNotFound
}
