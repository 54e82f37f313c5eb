package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/ytqueue/internal/download"
	"github.com/ytget/ytqueue/internal/extractor/extractortest"
	"github.com/ytget/ytqueue/internal/model"
)

type testEnv struct {
	svc  *download.Service
	fake *extractortest.Fake
	dir  string
	http *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	fake := extractortest.New()
	svc := download.NewService(fake, download.Options{Logger: logger})
	dir := t.TempDir()
	srv := New(svc, Defaults{Quality: model.Quality720p, DestinationDir: dir}, logger)
	ts := httptest.NewServer(NewRouter(srv))

	t.Cleanup(func() {
		ts.Close()
		svc.Close()
	})
	return &testEnv{svc: svc, fake: fake, dir: dir, http: ts}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.http.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSubmitAndGet(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/jobs", submitRequest{URL: "https://example.test/watch?v=1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	sub := decode[submitResponse](t, resp)
	require.Len(t, sub.JobIDs, 1)
	assert.Empty(t, sub.Failed)
	assert.Empty(t, sub.Error)

	resp = env.do(t, http.MethodGet, "/jobs/"+sub.JobIDs[0], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Equal(t, "pending", raw["status"])
	assert.Equal(t, "720p", raw["quality"])
	assert.Equal(t, env.dir, raw["destination_dir"])
	progress := raw["progress"].(map[string]any)
	assert.Nil(t, progress["bytes_total"], "unknown total renders as null")
	assert.Nil(t, raw["error"])
}

func TestSubmit_PartialPlaylist(t *testing.T) {
	env := newTestEnv(t)
	url := "https://example.test/playlist?list=PL"
	env.fake.AddResolution(url, extractortest.Playlist(url, "Mix", 4, 3))

	resp := env.do(t, http.MethodPost, "/jobs", submitRequest{URL: url, Quality: "audio"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	sub := decode[submitResponse](t, resp)
	assert.Len(t, sub.JobIDs, 3)
	require.Len(t, sub.Failed, 1)
	assert.Equal(t, 3, sub.Failed[0].Index)
	assert.Equal(t, "Mix", sub.PlaylistTitle)
	assert.Equal(t, "1 of 4 entries failed", sub.Error)
}

func TestSubmit_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.fake.FailResolve("https://example.test/gone", model.Errorf(model.KindExtraction, "video unavailable"))

	tests := []struct {
		name   string
		body   any
		status int
		kind   model.ErrorKind
	}{
		{"bad URL", submitRequest{URL: "nope"}, http.StatusBadRequest, model.KindInvalidInput},
		{"bad quality", submitRequest{URL: "https://example.test/v", Quality: "8k"}, http.StatusBadRequest, model.KindInvalidInput},
		{"bad body", "not an object", http.StatusBadRequest, model.KindInvalidInput},
		{"resolve failure", submitRequest{URL: "https://example.test/gone"}, http.StatusBadGateway, model.KindExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/jobs", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			errResp := decode[errorResponse](t, resp)
			assert.Equal(t, tt.kind, errResp.Kind)
			assert.NotEmpty(t, errResp.Error)
		})
	}
	assert.Empty(t, env.svc.ListJobs())
}

func TestListJobs_StatusFilter(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.svc.Submit(context.Background(), download.SubmitRequest{URL: "https://example.test/a", DestinationDir: env.dir})
	require.NoError(t, err)
	_, err = env.svc.Submit(context.Background(), download.SubmitRequest{URL: "https://example.test/b", DestinationDir: env.dir})
	require.NoError(t, err)
	env.svc.Cancel(a.JobIDs[0])

	all := decode[[]jobResponse](t, env.do(t, http.MethodGet, "/jobs", nil))
	assert.Len(t, all, 2)

	cancelled := decode[[]jobResponse](t, env.do(t, http.MethodGet, "/jobs?status=cancelled", nil))
	require.Len(t, cancelled, 1)
	assert.Equal(t, a.JobIDs[0], cancelled[0].ID)

	both := decode[[]jobResponse](t, env.do(t, http.MethodGet, "/jobs?status=pending,cancelled", nil))
	assert.Len(t, both, 2)

	resp := env.do(t, http.MethodGet, "/jobs?status=sleeping", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelRemoveResubmit(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.Submit(context.Background(), download.SubmitRequest{URL: "https://example.test/a", DestinationDir: env.dir})
	require.NoError(t, err)
	id := res.JobIDs[0]

	resp := env.do(t, http.MethodDelete, "/jobs/"+id, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/jobs/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusCancelled, decode[jobResponse](t, resp).Status)

	resp = env.do(t, http.MethodPost, "/jobs/"+id+"/resubmit", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	newID := decode[map[string]string](t, resp)["job_id"]
	assert.NotEqual(t, id, newID)

	resp = env.do(t, http.MethodDelete, "/jobs/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/jobs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodDelete, "/jobs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/jobs/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/jobs/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[map[string]int](t, resp)["cancelled"])

	resp = env.do(t, http.MethodDelete, "/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[map[string]int](t, resp)["removed"])
	assert.Empty(t, env.svc.ListJobs())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Submit(context.Background(), download.SubmitRequest{URL: "https://example.test/a", DestinationDir: env.dir})
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[statsResponse](t, resp)
	assert.Equal(t, "ok", stats.Status)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Total)
}

func TestEvents_Stream(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.http.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}

	name, data := readEvent()
	require.Equal(t, "snapshot", name)
	assert.Equal(t, "[]", data)

	res, err := env.svc.Submit(context.Background(), download.SubmitRequest{URL: "https://example.test/a", DestinationDir: env.dir})
	require.NoError(t, err)

	name, data = readEvent()
	require.Equal(t, "status", name)
	var ev eventResponse
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, res.JobIDs[0], ev.JobID)
	assert.Equal(t, model.StatusPending, ev.Job.Status)

	env.svc.Cancel(res.JobIDs[0])
	name, data = readEvent()
	require.Equal(t, "status", name)
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, model.StatusCancelled, ev.Job.Status)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{download.ErrNotFound, http.StatusNotFound},
		{model.Errorf(model.KindInvalidState, "%w: x", download.ErrNotFound), http.StatusNotFound},
		{model.Errorf(model.KindInvalidInput, "bad"), http.StatusBadRequest},
		{model.Errorf(model.KindInvalidState, "busy"), http.StatusConflict},
		{model.Errorf(model.KindExtraction, "nope"), http.StatusBadGateway},
		{model.Errorf(model.KindCancelled, "stop"), http.StatusServiceUnavailable},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForError(tt.err); got != tt.status {
			t.Errorf("statusForError(%v): expected %d, got %d", tt.err, tt.status, got)
		}
	}
}

func TestRun_Shutdown(t *testing.T) {
	env := newTestEnv(t)
	srv := New(env.svc, Defaults{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRequestLogger_UsesLogrus(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	fake := extractortest.New()
	svc := download.NewService(fake, download.Options{Logger: logger})
	defer svc.Close()
	ts := httptest.NewServer(NewRouter(New(svc, Defaults{DestinationDir: t.TempDir()}, logger)))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "Request served" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	var served *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "Request served" {
			served = e
		}
	}
	require.NotNil(t, served)
	assert.Equal(t, http.MethodGet, served.Data["method"])
	assert.Equal(t, "/healthz", served.Data["path"])
	assert.Equal(t, http.StatusOK, served.Data["status"])
	assert.NotEmpty(t, served.Data["request_id"])
}

func TestToJobResponse_ProgressDetails(t *testing.T) {
	resp := toJobResponse(model.JobSnapshot{
		ID:     "a",
		Status: model.StatusRunning,
		Progress: model.Progress{
			Fraction:   0.4,
			BytesDone:  400,
			BytesTotal: 1000,
			Speed:      2048,
			ETA:        90 * time.Second,
			Stage:      model.StageDownloading,
			Part:       2,
		},
	})

	assert.Equal(t, int64(2048), resp.Progress.Speed)
	assert.Equal(t, 90, resp.Progress.ETASeconds)
	assert.Equal(t, "downloading", resp.Progress.Stage)
	assert.Equal(t, 2, resp.Progress.Part)
	require.NotNil(t, resp.Progress.BytesTotal)
	assert.Equal(t, int64(1000), *resp.Progress.BytesTotal)
}
