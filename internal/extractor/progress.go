package extractor

import (
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/ytget/ytqueue/internal/model"
)

// progressTracker turns go-ytdlp updates into Progress values. Each new
// filename yt-dlp reports is a new stream, so merged formats count video and
// audio separately.
type progressTracker struct {
	mu      sync.Mutex
	streams map[string]int
	last    int
	now     func() time.Time
}

func newProgressTracker() *progressTracker {
	return &progressTracker{
		streams: make(map[string]int),
		now:     time.Now,
	}
}

func (t *progressTracker) update(u ytdlp.ProgressUpdate) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u.Status == ytdlp.ProgressStatusPostProcessing {
		return Progress{
			Stream:         t.last,
			Done:           int64(u.DownloadedBytes),
			Total:          model.UnknownTotal,
			PostProcessing: true,
		}
	}

	if u.Filename != "" {
		index, seen := t.streams[u.Filename]
		if !seen {
			index = len(t.streams)
			t.streams[u.Filename] = index
		}
		t.last = index
	}

	p := Progress{
		Stream: t.last,
		Done:   int64(u.DownloadedBytes),
		Total:  model.UnknownTotal,
	}
	if u.TotalBytes > 0 {
		p.Total = int64(u.TotalBytes)
	}

	// Average speed since the stream started
	if !u.Started.IsZero() {
		elapsed := t.now().Sub(u.Started)
		if elapsed.Seconds() > 0 {
			p.Speed = int64(float64(u.DownloadedBytes) / elapsed.Seconds())
		}
	}
	if eta := u.ETA(); eta > 0 {
		p.ETA = eta
	}
	return p
}
