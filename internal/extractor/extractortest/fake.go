// Package extractortest provides a scripted Extractor for tests.
package extractortest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ytget/ytqueue/internal/extractor"
	"github.com/ytget/ytqueue/internal/model"
)

// Script controls how the fake transfers one stream
type Script struct {
	// Ticks is the number of progress callbacks before completion
	Ticks int

	// TickDelay is the pause before every tick
	TickDelay time.Duration

	// Total is the reported byte total; 0 reports model.UnknownTotal
	Total int64

	// Updates are sent as-is before the ticks
	Updates []extractor.Progress

	// Block keeps the transfer running until cancel is requested
	Block bool

	// Err fails the transfer. With FailTimes > 0 only the first FailTimes
	// attempts fail.
	Err       error
	FailTimes int

	// Unavailable lists qualities that fail with a format error
	Unavailable []model.Quality

	// Panic makes Download panic
	Panic bool
}

// Fake is a thread-safe scripted extractor.Extractor
type Fake struct {
	mu          sync.Mutex
	resolutions map[string]*model.Resolution
	resolveErrs map[string]error
	scripts     map[string]Script
	attempts    map[string]int
	requests    []extractor.Request

	// Default is used for streams without a script
	Default Script

	// ResolveDelay delays every Resolve call
	ResolveDelay time.Duration

	running       atomic.Int32
	maxRunning    atomic.Int32
	resolving     atomic.Int32
	maxResolving  atomic.Int32
	resolveCalls  atomic.Int32
	downloadCalls atomic.Int32
}

var _ extractor.Extractor = (*Fake)(nil)

// New creates an empty fake
func New() *Fake {
	return &Fake{
		resolutions: make(map[string]*model.Resolution),
		resolveErrs: make(map[string]error),
		scripts:     make(map[string]Script),
		attempts:    make(map[string]int),
	}
}

// AddResolution registers the resolution returned for url
func (f *Fake) AddResolution(url string, res *model.Resolution) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolutions[url] = res
	return f
}

// FailResolve makes Resolve(url) return err
func (f *Fake) FailResolve(url string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveErrs[url] = err
	return f
}

// SetScript registers the transfer script for a stream URL
func (f *Fake) SetScript(streamURL string, s Script) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[streamURL] = s
	return f
}

// Playlist builds a playlist resolution with n entries. Entries whose 1-based
// index is in failed become entry failures.
func Playlist(url, title string, n int, failed ...int) *model.Resolution {
	skip := make(map[int]bool, len(failed))
	for _, i := range failed {
		skip[i] = true
	}
	res := &model.Resolution{Kind: model.KindPlaylist, Title: title, URL: url}
	for i := 1; i <= n; i++ {
		if skip[i] {
			res.Failures = append(res.Failures, model.EntryError{Index: i, Message: "video unavailable"})
			continue
		}
		id := fmt.Sprintf("v%02d", i)
		res.Items = append(res.Items, model.ResolvedItem{
			Title:  fmt.Sprintf("%s #%d", title, i),
			Stream: model.StreamDescriptor{ID: id, URL: StreamURL(id)},
		})
	}
	return res
}

// StreamURL returns the stream URL Playlist uses for id
func StreamURL(id string) string {
	return "https://example.test/watch?v=" + id
}

// Resolve returns the registered resolution, or a single video for unknown URLs
func (f *Fake) Resolve(ctx context.Context, url string, _ extractor.ResolveOptions) (*model.Resolution, error) {
	f.resolveCalls.Add(1)
	n := f.resolving.Add(1)
	defer f.resolving.Add(-1)
	storeMax(&f.maxResolving, n)

	if f.ResolveDelay > 0 {
		select {
		case <-time.After(f.ResolveDelay):
		case <-ctx.Done():
			return nil, model.Wrap(model.KindCancelled, ctx.Err(), "resolve cancelled")
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.resolveErrs[url]; ok {
		return nil, err
	}
	if res, ok := f.resolutions[url]; ok {
		out := *res
		out.Items = append([]model.ResolvedItem(nil), res.Items...)
		out.Failures = append([]model.EntryError(nil), res.Failures...)
		return &out, nil
	}
	return &model.Resolution{
		Kind:  model.KindVideo,
		Title: "video " + url,
		URL:   url,
		Items: []model.ResolvedItem{{
			Title:  "video " + url,
			Stream: model.StreamDescriptor{ID: filepath.Base(url), URL: url},
		}},
	}, nil
}

// Download plays the script for req.Stream.URL. It writes a .part file while
// running and renames it on success.
func (f *Fake) Download(ctx context.Context, req extractor.Request, progress extractor.ProgressFunc, cancel extractor.CancelCheck) (extractor.Result, error) {
	f.downloadCalls.Add(1)
	n := f.running.Add(1)
	defer f.running.Add(-1)
	storeMax(&f.maxRunning, n)

	f.mu.Lock()
	script, ok := f.scripts[req.Stream.URL]
	if !ok {
		script = f.Default
	}
	f.attempts[req.Stream.URL]++
	attempt := f.attempts[req.Stream.URL]
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if script.Panic {
		panic("extractortest: scripted panic")
	}
	for _, q := range script.Unavailable {
		if q == req.Quality {
			return extractor.Result{}, model.Errorf(model.KindFormatUnavailable, "no %s stream for %s", q, req.Stream.URL)
		}
	}
	if script.Err != nil && (script.FailTimes == 0 || attempt <= script.FailTimes) {
		return extractor.Result{}, script.Err
	}

	name := req.JobID
	if name == "" {
		name = req.Stream.ID
	}
	final := filepath.Join(req.DestinationDir, name+".mp4")
	part := final + ".part"
	result := extractor.Result{Partial: []string{part}}
	if err := os.WriteFile(part, []byte("partial"), 0o644); err != nil {
		return result, model.Wrap(model.KindIO, err, "write partial file")
	}

	total := script.Total
	if total == 0 {
		total = model.UnknownTotal
	}
	stopped := func() bool {
		return ctx.Err() != nil || (cancel != nil && cancel())
	}

	for _, u := range script.Updates {
		if stopped() {
			return result, model.Errorf(model.KindCancelled, "download cancelled")
		}
		if progress != nil {
			progress(u)
		}
	}

	for i := 1; i <= script.Ticks || script.Block; i++ {
		if stopped() {
			return result, model.Errorf(model.KindCancelled, "download cancelled")
		}
		delay := script.TickDelay
		if delay <= 0 {
			delay = time.Millisecond
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return result, model.Errorf(model.KindCancelled, "download cancelled")
		}
		if progress != nil {
			done := int64(i) * 1024
			if total > 0 && script.Ticks > 0 {
				done = total * int64(min(i, script.Ticks)) / int64(script.Ticks)
			}
			progress(extractor.Progress{Done: done, Total: total})
		}
	}
	if stopped() {
		return result, model.Errorf(model.KindCancelled, "download cancelled")
	}

	if err := os.Rename(part, final); err != nil {
		return result, model.Wrap(model.KindIO, err, "finalize file")
	}
	return extractor.Result{Path: final}, nil
}

// MaxRunning returns the highest number of concurrent Download calls seen
func (f *Fake) MaxRunning() int {
	return int(f.maxRunning.Load())
}

// Running returns the number of Download calls in progress
func (f *Fake) Running() int {
	return int(f.running.Load())
}

// MaxResolving returns the highest number of concurrent Resolve calls seen
func (f *Fake) MaxResolving() int {
	return int(f.maxResolving.Load())
}

// ResolveCalls returns the number of Resolve calls
func (f *Fake) ResolveCalls() int {
	return int(f.resolveCalls.Load())
}

// DownloadCalls returns the number of Download calls
func (f *Fake) DownloadCalls() int {
	return int(f.downloadCalls.Load())
}

// Attempts returns how many times streamURL was downloaded
func (f *Fake) Attempts(streamURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[streamURL]
}

// Requests returns a copy of all download requests in call order
func (f *Fake) Requests() []extractor.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]extractor.Request(nil), f.requests...)
}

// ErrBoom is a generic scripted failure
var ErrBoom = errors.New("boom")

func storeMax(v *atomic.Int32, n int32) {
	for {
		cur := v.Load()
		if n <= cur || v.CompareAndSwap(cur, n) {
			return
		}
	}
}
