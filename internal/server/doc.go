// Package server exposes the download queue over HTTP. Job events are
// streamed to browsers with Server-Sent Events on /events.
package server
