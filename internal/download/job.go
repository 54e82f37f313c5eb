package download

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ytget/ytqueue/internal/model"
)

// job is the registry record. Every field except cancelRequested is guarded
// by Service.mu.
type job struct {
	id             string
	sourceURL      string
	title          string
	playlistTitle  string
	playlistIndex  int
	quality        model.Quality
	destinationDir string
	cookieFile     string
	stream         model.StreamDescriptor

	status     model.JobStatus
	progress   model.Progress
	parts      parts
	err        *model.JobError
	outputPath string
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	// set by claim, valid while the job is running
	ctx    context.Context
	cancel context.CancelFunc

	cancelRequested atomic.Bool
}

func (j *job) snapshot() model.JobSnapshot {
	s := model.JobSnapshot{
		ID:             j.id,
		SourceURL:      j.sourceURL,
		Title:          j.title,
		PlaylistTitle:  j.playlistTitle,
		PlaylistIndex:  j.playlistIndex,
		Quality:        j.quality,
		DestinationDir: j.destinationDir,
		Status:         j.status,
		Progress:       j.progress,
		OutputPath:     j.outputPath,
		CreatedAt:      j.createdAt,
		StartedAt:      j.startedAt,
		FinishedAt:     j.finishedAt,
	}
	if j.err != nil {
		e := *j.err
		s.Error = &e
	}
	return s
}

// retry copies the submission parameters into a fresh pending job
func (j *job) retry(id string, now time.Time) *job {
	return &job{
		id:             id,
		sourceURL:      j.sourceURL,
		title:          j.title,
		playlistTitle:  j.playlistTitle,
		playlistIndex:  j.playlistIndex,
		quality:        j.quality,
		destinationDir: j.destinationDir,
		cookieFile:     j.cookieFile,
		stream:         j.stream,
		status:         model.StatusPending,
		progress:       model.Progress{BytesTotal: model.UnknownTotal},
		parts:          newParts(),
		createdAt:      now,
	}
}
