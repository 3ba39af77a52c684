package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	yaml "go.yaml.in/yaml/v3"

	logx "teleecho/pkg/logx"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// fileStore keeps every connection in one document that is read on each call
// and replaced through a temp file + rename on each write.
type fileStore struct {
	path  string
	codec codec
	log   logx.Logger
	mu    sync.Mutex
}

// document is the TOML/YAML layout and the JSON object layout.
type document struct {
	Connections []Connection `json:"connections" toml:"connections" yaml:"connections"`
}

type codec interface {
	decode(data []byte) ([]Connection, error)
	encode(conns []Connection) ([]byte, error)
}

func codecFor(path string) (codec, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".conf", "":
		return jsonCodec{}, nil
	case ".toml":
		return tomlCodec{}, nil
	case ".yaml", ".yml":
		return yamlCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported connection file extension %q", ext)
	}
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage path is required for file driver")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve connection file: %w", err)
	}
	c, err := codecFor(abs)
	if err != nil {
		return nil, err
	}
	s := &fileStore{path: filepath.Clean(abs), codec: c, log: log}
	// Fail early on a file that cannot be parsed.
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) List(ctx context.Context) ([]Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *fileStore) Lookup(ctx context.Context, name string) (Connection, error) {
	conns, err := s.List(ctx)
	if err != nil {
		return Connection{}, err
	}
	return pick(conns, name)
}

func (s *fileStore) Add(ctx context.Context, c Connection) error {
	if err := c.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, err := s.read()
	if err != nil {
		return err
	}
	for _, have := range conns {
		if have.Name == c.Name {
			return fmt.Errorf("%w: %s", ErrExists, c.Name)
		}
	}
	if err := s.write(append(conns, c)); err != nil {
		return err
	}
	s.log.Debug("connection added", logx.String("name", c.Name))
	return nil
}

func (s *fileStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, err := s.read()
	if err != nil {
		return err
	}
	kept := conns[:0]
	for _, c := range conns {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(conns) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := s.write(kept); err != nil {
		return err
	}
	s.log.Debug("connection removed", logx.String("name", name))
	return nil
}

func (s *fileStore) read() ([]Connection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read connection file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	conns, err := s.codec.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode connection file %s: %w", s.path, err)
	}
	return conns, nil
}

func (s *fileStore) write(conns []Connection) error {
	data, err := s.codec.encode(conns)
	if err != nil {
		return fmt.Errorf("encode connection file: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create connection directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp connection file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp connection file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp connection file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp connection file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace connection file: %w", err)
	}
	cleanup = false
	return nil
}

// jsonCodec writes the legacy tuple layout [[name, token, chat_id], ...] and
// reads it as well as a list of objects or a {"connections": [...]} document.
type jsonCodec struct{}

func (jsonCodec) decode(data []byte) ([]Connection, error) {
	data = bytes.TrimSpace(data)
	if data[0] == '{' {
		var doc document
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
		return doc.Connections, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]Connection, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '{' {
			var c Connection
			if err := json.Unmarshal(item, &c); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			out = append(out, c)
			continue
		}
		c, err := decodeTuple(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeTuple(item json.RawMessage) (Connection, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return Connection{}, err
	}
	if len(fields) != 3 {
		return Connection{}, fmt.Errorf("want [name, token, chat_id], got %d fields", len(fields))
	}
	var c Connection
	if err := json.Unmarshal(fields[0], &c.Name); err != nil {
		return Connection{}, fmt.Errorf("name: %w", err)
	}
	if err := json.Unmarshal(fields[1], &c.Token); err != nil {
		return Connection{}, fmt.Errorf("token: %w", err)
	}
	if err := json.Unmarshal(fields[2], &c.ChatID); err != nil {
		return Connection{}, fmt.Errorf("chat_id: %w", err)
	}
	return c, nil
}

func (jsonCodec) encode(conns []Connection) ([]byte, error) {
	tuples := make([][3]any, 0, len(conns))
	for _, c := range conns {
		tuples = append(tuples, [3]any{c.Name, c.Token, c.ChatID})
	}
	return json.Marshal(tuples)
}

type tomlCodec struct{}

func (tomlCodec) decode(data []byte) ([]Connection, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Connections, nil
}

func (tomlCodec) encode(conns []Connection) ([]byte, error) {
	return toml.Marshal(document{Connections: conns})
}

type yamlCodec struct{}

func (yamlCodec) decode(data []byte) ([]Connection, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Connections, nil
}

func (yamlCodec) encode(conns []Connection) ([]byte, error) {
	return yaml.Marshal(document{Connections: conns})
}
