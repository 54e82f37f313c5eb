package extractor

import (
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/stretchr/testify/assert"

	"github.com/ytget/ytqueue/internal/model"
)

func newFixedTracker(now time.Time) *progressTracker {
	tr := newProgressTracker()
	tr.now = func() time.Time { return now }
	return tr
}

func TestProgressTracker_SpeedAndTotal(t *testing.T) {
	now := time.Now()
	tr := newFixedTracker(now)

	p := tr.update(ytdlp.ProgressUpdate{
		Status:          ytdlp.ProgressStatusDownloading,
		Filename:        "/tmp/v.f137.mp4",
		DownloadedBytes: 4000,
		TotalBytes:      10000,
		Started:         now.Add(-2 * time.Second),
	})

	assert.Equal(t, 0, p.Stream)
	assert.Equal(t, int64(4000), p.Done)
	assert.Equal(t, int64(10000), p.Total)
	assert.Equal(t, int64(2000), p.Speed)
	assert.False(t, p.PostProcessing)
}

func TestProgressTracker_UnknownTotal(t *testing.T) {
	tr := newFixedTracker(time.Now())

	p := tr.update(ytdlp.ProgressUpdate{Filename: "a.mp4", DownloadedBytes: 10})
	assert.Equal(t, model.UnknownTotal, p.Total)
	assert.Zero(t, p.Speed)
}

func TestProgressTracker_StreamPerFilename(t *testing.T) {
	tr := newFixedTracker(time.Now())

	video := tr.update(ytdlp.ProgressUpdate{Filename: "x.f137.mp4", DownloadedBytes: 900, TotalBytes: 1000})
	again := tr.update(ytdlp.ProgressUpdate{Filename: "x.f137.mp4", DownloadedBytes: 1000, TotalBytes: 1000})
	audio := tr.update(ytdlp.ProgressUpdate{Filename: "x.f140.m4a", DownloadedBytes: 10, TotalBytes: 100})

	assert.Equal(t, 0, video.Stream)
	assert.Equal(t, 0, again.Stream)
	assert.Equal(t, 1, audio.Stream)
}

func TestProgressTracker_PostProcessing(t *testing.T) {
	tr := newFixedTracker(time.Now())

	tr.update(ytdlp.ProgressUpdate{Filename: "x.f137.mp4", DownloadedBytes: 1000, TotalBytes: 1000})
	tr.update(ytdlp.ProgressUpdate{Filename: "x.f140.m4a", DownloadedBytes: 100, TotalBytes: 100})
	p := tr.update(ytdlp.ProgressUpdate{Status: ytdlp.ProgressStatusPostProcessing, Filename: "x.mp4"})

	assert.True(t, p.PostProcessing)
	assert.Equal(t, 1, p.Stream)
	assert.Zero(t, p.Speed)
	assert.Zero(t, p.ETA)
}
