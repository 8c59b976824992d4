// Package logger wraps zap to offer:
//   - a global sugared logger with a colored console encoder,
//   - an optional plain-text file sink teed next to stdout,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and the leveled helpers used across the server (InfoKV, WarnKV, ...).
//
// Components receive a context and pull the logger from it, so every log line
// carries the name and fields of the scope that produced it.
package logger
