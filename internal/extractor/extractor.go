package extractor

import (
	"context"
	"time"

	"github.com/ytget/ytqueue/internal/model"
)

// Progress is one transfer tick
type Progress struct {
	// Stream is the 0-based index of the stream being transferred. Merged
	// formats fetch video and audio one after the other, each counting
	// from zero.
	Stream int

	Done  int64
	Total int64 // model.UnknownTotal when the backend cannot tell
	Speed int64 // bytes per second, 0 when unknown
	ETA   time.Duration

	// PostProcessing is set once the transfer is done and the backend is
	// merging or converting
	PostProcessing bool
}

// ProgressFunc receives transfer progress
type ProgressFunc func(Progress)

// CancelCheck reports whether the caller asked the transfer to stop
type CancelCheck func() bool

// ResolveOptions carries per-submission settings forwarded to the backend
type ResolveOptions struct {
	CookieFile string
}

// Request describes one transfer
type Request struct {
	JobID          string
	Stream         model.StreamDescriptor
	Quality        model.Quality
	DestinationDir string
	CookieFile     string
}

// Result is what a transfer left on disk
type Result struct {
	// Path of the finished file, empty unless the transfer succeeded
	Path string

	// Partial lists files and directories to remove when the job is cancelled or fails
	Partial []string
}

// Extractor resolves URLs into downloadable items and transfers them.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Resolve(ctx context.Context, url string, opts ResolveOptions) (*model.Resolution, error)

	// Download blocks until the transfer finishes, fails, or is cancelled.
	// It calls progress from the calling goroutine or a goroutine of its own,
	// and returns an error matching model.ErrCancelled when it stopped because
	// cancel returned true or ctx was cancelled.
	Download(ctx context.Context, req Request, progress ProgressFunc, cancel CancelCheck) (Result, error)
}
