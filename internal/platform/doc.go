package platform

// Package platform contains OS integration and external tooling glue:
// filesystem helpers (writable destinations, partial file cleanup, locating
// the produced file), playlist URL helpers and listing via the ytdlp library,
// and text helpers for user visible messages.
