// Package logx configures teleecho's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller) on stderr,
//     since stdout is usually part of a pipe
//   - File output JSON-structured
//   - Level and sinks swappable at runtime (settings hot reload)
package logx
