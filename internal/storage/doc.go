// Package storage keeps the named connections of teleecho: a bot token plus
// the chat id it was paired with.
//
// Two drivers exist:
//   - "file": a single JSON, TOML or YAML document, rewritten atomically
//   - "sqlite": a SQLite database (pure Go driver)
package storage
