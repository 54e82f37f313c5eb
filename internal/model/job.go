package model

import (
	"fmt"
	"strings"
	"time"
)

// UnknownTotal marks a byte total the extractor could not determine
const UnknownTotal int64 = -1

// Stage is what a running job is busy with
type Stage string

const (
	StageDownloading    Stage = "downloading"
	StagePostProcessing Stage = "post_processing"
)

// Progress is the transfer progress of a job. Merged formats transfer
// several streams; the byte counters add them up and Part is the 1-based
// stream being transferred.
type Progress struct {
	Fraction   float64 // 0.0 to 1.0
	BytesDone  int64
	BytesTotal int64 // UnknownTotal if unknown
	Speed      int64 // bytes per second, 0 if unknown
	ETA        time.Duration
	Stage      Stage
	Part       int
}

// TotalKnown reports whether BytesTotal carries a real value
func (p Progress) TotalKnown() bool {
	return p.BytesTotal >= 0
}

// Percent returns the fraction as an integer percentage
func (p Progress) Percent() int {
	return int(p.Fraction * 100)
}

// JobError is the error recorded on a failed job
type JobError struct {
	Kind    ErrorKind
	Message string
}

// JobSnapshot is an immutable copy of a job's state
type JobSnapshot struct {
	ID             string
	SourceURL      string
	Title          string
	PlaylistTitle  string
	PlaylistIndex  int // 1-based, 0 for single videos
	Quality        Quality
	DestinationDir string
	Status         JobStatus
	Progress       Progress
	Error          *JobError
	OutputPath     string
	CreatedAt      time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
}

// ErrorMessage returns the failure message or "" when the job did not fail
func (s JobSnapshot) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return s.Error.Message
}

// GetDisplayTitle returns title, filename, or URL in order of preference
func (s JobSnapshot) GetDisplayTitle() string {
	if s.Title != "" && !strings.HasPrefix(s.Title, "http") {
		return s.Title
	}

	if s.OutputPath != "" {
		// Support both / and \ separators
		parts := strings.FieldsFunc(s.OutputPath, func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			filename := parts[len(parts)-1]
			if idx := strings.LastIndex(filename, "."); idx > 0 {
				filename = filename[:idx]
			}
			return filename
		}
	}

	return s.SourceURL
}

// Elapsed returns how long the job has been (or was) running
func (s JobSnapshot) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if !s.FinishedAt.IsZero() {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// String implements fmt.Stringer for log lines
func (s JobSnapshot) String() string {
	return fmt.Sprintf("%s [%s %d%%] %s", s.ID, s.Status, s.Progress.Percent(), s.GetDisplayTitle())
}

// String implements fmt.Stringer
func (s Stage) String() string {
	return string(s)
}
