package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/ytqueue/internal/extractor"
	"github.com/ytget/ytqueue/internal/extractor/extractortest"
	"github.com/ytget/ytqueue/internal/model"
)

// runCLI executes the root command against fake with output captured
func runCLI(ctx context.Context, t *testing.T, fake *extractortest.Fake, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := runCLITo(ctx, t, fake, &out, args...)
	return out.String(), err
}

func runCLITo(ctx context.Context, t *testing.T, fake *extractortest.Fake, out io.Writer, args ...string) error {
	t.Helper()
	a := &app{
		version: "1.2.3",
		newExtractor: func(*app) (extractor.Extractor, error) {
			return fake, nil
		},
	}
	cmd := newRootCmd(a)
	var errOut bytes.Buffer
	cmd.SetOut(out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	return cmd.ExecuteContext(ctx)
}

// slowWriter delays every write so job events lag behind the queue
type slowWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	delay time.Duration
}

func (w *slowWriter) Write(p []byte) (int, error) {
	time.Sleep(w.delay)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *slowWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func isolate(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	return t.TempDir()
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := runCLI(context.Background(), t, extractortest.New(), "version")
	require.NoError(t, err)
	assert.Equal(t, "ytqueue 1.2.3\n", out)
}

func TestGet_DownloadsAll(t *testing.T) {
	dir := isolate(t)
	fake := extractortest.New()
	fake.Default = extractortest.Script{Ticks: 4, Total: 4096}
	url := "https://example.test/playlist?list=PL"
	fake.AddResolution(url, extractortest.Playlist(url, "Mix", 3))

	out, err := runCLI(context.Background(), t, fake, "get", url, "https://example.test/watch?v=solo",
		"--dir", dir, "--parallel", "2", "--quality", "480p")
	require.NoError(t, err)

	assert.Contains(t, out, "4 completed")
	assert.Contains(t, out, "Mix #1")
	assert.Contains(t, out, "99%")
	assert.LessOrEqual(t, fake.MaxRunning(), 2)

	matches, err := filepath.Glob(filepath.Join(dir, "*.mp4"))
	require.NoError(t, err)
	assert.Len(t, matches, 4)

	for _, req := range fake.Requests() {
		assert.Equal(t, model.Quality480p, req.Quality)
		assert.Equal(t, dir, req.DestinationDir)
	}
}

func TestGet_ReportsFailures(t *testing.T) {
	dir := isolate(t)
	fake := extractortest.New()
	url := "https://example.test/playlist?list=PL"
	fake.AddResolution(url, extractortest.Playlist(url, "Mix", 3, 2))
	fake.SetScript(extractortest.StreamURL("v03"), extractortest.Script{
		Err: model.Errorf(model.KindExtraction, "video is private"),
	})

	out, err := runCLI(context.Background(), t, fake, "get", url, "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 downloads did not complete")
	assert.Contains(t, out, "#2: video unavailable")
	assert.Contains(t, out, "video is private")
	assert.Contains(t, out, "1 completed")
	assert.Contains(t, out, "1 failed")
}

func TestGet_SlowOutputKeepsFinalEvents(t *testing.T) {
	dir := isolate(t)
	fake := extractortest.New()
	url := "https://example.test/watch?v=locked"
	fake.SetScript(url, extractortest.Script{
		Err: model.Errorf(model.KindExtraction, "video is private"),
	})

	out := &slowWriter{delay: 20 * time.Millisecond}
	err := runCLITo(context.Background(), t, fake, out, "get", url, "--dir", dir)
	require.Error(t, err)

	text := out.String()
	failedAt := strings.Index(text, "video is private")
	require.GreaterOrEqual(t, failedAt, 0, "missing failure line in %q", text)
	assert.Greater(t, strings.Index(text, "1 failed"), failedAt, "summary must follow the job events")
}

func TestGet_RejectedSubmission(t *testing.T) {
	dir := isolate(t)
	fake := extractortest.New()
	fake.FailResolve("https://example.test/gone", model.Errorf(model.KindExtraction, "gone"))

	_, err := runCLI(context.Background(), t, fake, "get", "https://example.test/gone", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 downloads did not complete")
}

func TestGet_InvalidArguments(t *testing.T) {
	dir := isolate(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no urls", []string{"get"}},
		{"bad quality", []string{"get", "https://example.test/v", "--quality", "8k", "--dir", dir}},
		{"unknown flag", []string{"get", "https://example.test/v", "--speed", "fast"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := extractortest.New()
			_, err := runCLI(context.Background(), t, fake, tt.args...)
			assert.Error(t, err)
			assert.Zero(t, fake.DownloadCalls())
		})
	}
}

func TestGet_InterruptCancelsAll(t *testing.T) {
	dir := isolate(t)
	fake := extractortest.New()
	fake.Default = extractortest.Script{Block: true, TickDelay: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := runCLI(ctx, t, fake, "get", "https://example.test/a", "https://example.test/b",
			"--dir", dir, "--parallel", "1")
		done <- outcome{out, err}
	}()

	require.Eventually(t, func() bool {
		return fake.Running() == 1 && fake.ResolveCalls() == 2
	}, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()

	var res outcome
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("get did not return after interrupt")
	}
	require.Error(t, res.err)
	assert.Contains(t, res.out, "Interrupted, cancelling 2 jobs")
	assert.Contains(t, res.out, "2 cancelled")
	assert.Equal(t, 1, fake.DownloadCalls())

	matches, _ := filepath.Glob(filepath.Join(dir, "*"))
	assert.Empty(t, matches, "partial files are removed")
}

func TestRenderer_ProgressSteps(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)
	job := model.JobSnapshot{ID: "a", Title: "Clip"}

	for _, fraction := range []float64{0.01, 0.05, 0.12, 0.15, 0.5, 0.55, 1} {
		r.OnProgress(model.Event{
			Type:     model.EventProgress,
			JobID:    "a",
			Progress: model.Progress{Fraction: fraction, BytesDone: int64(fraction * 2048), BytesTotal: 2048},
			Job:      job,
		})
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "1%")
	assert.Contains(t, lines[1], "12%")
	assert.Contains(t, lines[2], "50%")
	assert.Contains(t, lines[3], "100%")
	assert.Contains(t, lines[3], "2.0 KB")
}

func TestRenderer_SpeedETAAndProcessing(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf)
	job := model.JobSnapshot{ID: "a", Title: "Clip"}

	r.OnProgress(model.Event{
		Type:  model.EventProgress,
		JobID: "a",
		Progress: model.Progress{
			Fraction:   0.5,
			BytesDone:  1024,
			BytesTotal: 2048,
			Speed:      2048,
			ETA:        75 * time.Second,
			Stage:      model.StageDownloading,
			Part:       2,
		},
		Job: job,
	})
	for i := 0; i < 3; i++ {
		r.OnProgress(model.Event{
			Type:     model.EventProgress,
			JobID:    "a",
			Progress: model.Progress{Fraction: 0.99, Stage: model.StagePostProcessing},
			Job:      job,
		})
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "2.0 KB/s")
	assert.Contains(t, lines[0], "ETA 1:15")
	assert.Contains(t, lines[0], "part 2")
	assert.Contains(t, lines[1], "processing")
	assert.Contains(t, lines[1], "Clip")
}

func TestRenderer_StatusLines(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newRenderer(&bytes.Buffer{})
	r.now = func() time.Time { return now }

	failed := model.JobSnapshot{
		Title:  "Broken",
		Status: model.StatusFailed,
		Error:  &model.JobError{Kind: model.KindNetwork, Message: "HTTP Error 403"},
	}
	assert.Contains(t, r.statusLine(failed), "HTTP Error 403")

	done := model.JobSnapshot{
		Title:      "Fine",
		Status:     model.StatusCompleted,
		OutputPath: "/tmp/Fine.mp4",
		StartedAt:  now.Add(-90 * time.Second),
		FinishedAt: now,
	}
	line := r.statusLine(done)
	assert.Contains(t, line, "/tmp/Fine.mp4")
	assert.Contains(t, line, "Fine")

	assert.Contains(t, r.statusLine(model.JobSnapshot{Title: "Wait", Status: model.StatusPending}), "queued")
}

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		input    string
		width    int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer title", 8, "a longe…"},
		{"anything", 0, "anything"},
	}

	for _, tt := range tests {
		if got := truncateTitle(tt.input, tt.width); got != tt.expected {
			t.Errorf("truncateTitle(%q, %d): expected %q, got %q", tt.input, tt.width, tt.expected, got)
		}
	}
}
