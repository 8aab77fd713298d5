// Package logx configures tempo's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Hot paths cheap (rate-limited sampling for per-dispatch debug spam)
package logx
