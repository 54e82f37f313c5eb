package download

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ytget/ytqueue/internal/extractor"
	"github.com/ytget/ytqueue/internal/extractor/extractortest"
	"github.com/ytget/ytqueue/internal/model"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(t *testing.T, fake *extractortest.Fake) *Service {
	t.Helper()
	svc := NewService(fake, Options{Logger: quietLogger()})
	t.Cleanup(svc.Close)
	return svc
}

func startPool(t *testing.T, svc *Service, fake *extractortest.Fake, size int, opts PoolOptions) *Pool {
	t.Helper()
	opts.Logger = quietLogger()
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 10 * time.Millisecond
	}
	pool := NewPool(svc, fake, size, opts)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(pool.Stop)
	return pool
}

func submit(t *testing.T, svc *Service, url string, quality model.Quality, dir string) []string {
	t.Helper()
	res, err := svc.Submit(context.Background(), SubmitRequest{URL: url, Quality: quality, DestinationDir: dir})
	require.NoError(t, err)
	return res.JobIDs
}

func waitTerminal(t *testing.T, svc *Service, ids ...string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, svc.WaitTerminal(ctx, ids...))
}

func waitStatus(t *testing.T, svc *Service, id string, status model.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, ok := svc.Get(id)
		return ok && snap.Status == status
	}, 5*time.Second, 2*time.Millisecond, "job %s never reached %s", id, status)
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// recorder collects every event it receives
type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) OnProgress(ev model.Event)     { r.add(ev) }
func (r *recorder) OnStatusChange(ev model.Event) { r.add(ev) }

func (r *recorder) add(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// statuses returns the status sequence of one job
func (r *recorder) statuses(id string) []model.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.JobStatus
	for _, ev := range r.events {
		if ev.JobID == id && ev.Type == model.EventStatus {
			out = append(out, ev.Status)
		}
	}
	return out
}

func (r *recorder) progress(id string) []model.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Progress
	for _, ev := range r.events {
		if ev.JobID == id && ev.Type == model.EventProgress {
			out = append(out, ev.Progress)
		}
	}
	return out
}

func (r *recorder) all() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// eventually waits for the recorder to see a status event
func (r *recorder) waitFor(t *testing.T, id string, status model.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, s := range r.statuses(id) {
			if s == status {
				return true
			}
		}
		return false
	}, 5*time.Second, 2*time.Millisecond)
}

func resultWithPath(path string) extractor.Result {
	return extractor.Result{Path: path}
}
