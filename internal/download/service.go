package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/ytget/ytqueue/internal/extractor"
	"github.com/ytget/ytqueue/internal/model"
	"github.com/ytget/ytqueue/internal/platform"
)

// Queue defaults
const (
	DefaultMaxResolving = 2
	taskIDPrefix        = "task-"
)

// ErrNotFound is wrapped by errors about unknown job ids
var ErrNotFound = errors.New("job not found")

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("service closed")

// Options configures a Service
type Options struct {
	// MaxResolving bounds concurrent Resolve calls made by Submit
	MaxResolving int64

	Logger logrus.FieldLogger

	// Now is the clock, time.Now when nil
	Now func() time.Time
}

// SubmitRequest is one user submission
type SubmitRequest struct {
	URL            string
	Quality        model.Quality
	DestinationDir string
	CookieFile     string
}

// SubmitResult lists the jobs created by a submission
type SubmitResult struct {
	JobIDs        []string
	Failed        []model.EntryError
	PlaylistTitle string
}

// Stats counts jobs per state group
type Stats struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
	Total     int
}

// Service owns the job registry. All mutation goes through its methods.
type Service struct {
	ext        extractor.Extractor
	log        logrus.FieldLogger
	now        func() time.Time
	resolveSem *semaphore.Weighted

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	pending []*job
	wake    chan struct{} // closed when work is added
	changed chan struct{} // closed on every status transition
	subs    map[int]*mailbox
	nextSub int
	closed  bool
}

// NewService creates a new download service
func NewService(ext extractor.Extractor, opts Options) *Service {
	if opts.MaxResolving < 1 {
		opts.MaxResolving = DefaultMaxResolving
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		ext:        ext,
		log:        opts.Logger,
		now:        opts.Now,
		resolveSem: semaphore.NewWeighted(opts.MaxResolving),
		jobs:       make(map[string]*job),
		wake:       make(chan struct{}),
		changed:    make(chan struct{}),
		subs:       make(map[int]*mailbox),
	}
}

// Submit validates a request, resolves it and enqueues one job per resolved
// item. Nothing is enqueued when validation or the whole resolution fails.
// When only some playlist entries fail, the result is returned together with
// an extraction error describing the failures.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	rawURL := strings.TrimSpace(req.URL)
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	quality := req.Quality
	if quality == "" {
		quality = model.DefaultQuality
	}
	if !quality.IsValid() {
		return nil, model.Errorf(model.KindInvalidInput, "unsupported quality %q", req.Quality)
	}

	dir := strings.TrimSpace(req.DestinationDir)
	if err := platform.EnsureWritableDir(dir); err != nil {
		return nil, model.Wrap(model.KindInvalidInput, err, "destination directory is not usable")
	}

	cookieFile := strings.TrimSpace(req.CookieFile)
	if cookieFile != "" {
		if _, err := os.Stat(cookieFile); err != nil {
			s.log.WithError(err).WithField("cookie_file", cookieFile).Warn("Cookie file not found, continuing without it")
			cookieFile = ""
		}
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, model.Wrap(model.KindInvalidState, ErrClosed, "")
	}

	if err := s.resolveSem.Acquire(ctx, 1); err != nil {
		return nil, model.Wrap(model.KindCancelled, err, "submit cancelled")
	}
	res, err := s.ext.Resolve(ctx, rawURL, extractor.ResolveOptions{CookieFile: cookieFile})
	s.resolveSem.Release(1)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, model.Wrap(model.KindCancelled, ctx.Err(), "submit cancelled")
		case model.KindOf(err) == model.KindExtraction:
			return nil, err
		default:
			return nil, model.Wrap(model.KindExtraction, err, "failed to resolve "+rawURL)
		}
	}

	result := &SubmitResult{
		JobIDs: make([]string, 0, len(res.Items)),
		Failed: res.Failures,
	}
	if res.IsPlaylist() {
		result.PlaylistTitle = res.Title
	}

	indexes := itemIndexes(res)
	now := s.now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, model.Wrap(model.KindInvalidState, ErrClosed, "")
	}
	for i, item := range res.Items {
		j := &job{
			id:             s.newIDLocked(),
			sourceURL:      item.Stream.URL,
			title:          item.Title,
			quality:        quality,
			destinationDir: dir,
			cookieFile:     cookieFile,
			stream:         item.Stream,
			status:         model.StatusPending,
			progress:       model.Progress{BytesTotal: model.UnknownTotal},
			parts:          newParts(),
			createdAt:      now,
		}
		if res.IsPlaylist() {
			j.playlistTitle = res.Title
			j.playlistIndex = indexes[i]
		} else {
			j.sourceURL = rawURL
		}
		s.enqueueLocked(j)
		result.JobIDs = append(result.JobIDs, j.id)
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"url":    rawURL,
		"jobs":   len(result.JobIDs),
		"failed": len(res.Failures),
	}).Info("Submission accepted")

	if res.HasFailures() {
		return result, model.Errorf(model.KindExtraction, "%d of %d entries failed", len(res.Failures), res.Total())
	}
	return result, nil
}

// Get returns a snapshot of one job
func (s *Service) Get(id string) (model.JobSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return model.JobSnapshot{}, false
	}
	return j.snapshot(), true
}

// ListJobs returns snapshots in submission order
func (s *Service) ListJobs(filters ...Filter) []model.JobSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.JobSnapshot, 0, len(s.order))
	for _, id := range s.order {
		snap := s.jobs[id].snapshot()
		if matches(snap, filters) {
			out = append(out, snap)
		}
	}
	return out
}

// Stats counts jobs by state
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	for _, j := range s.jobs {
		switch j.status {
		case model.StatusPending:
			st.Pending++
		case model.StatusRunning, model.StatusPausedForCancel:
			st.Running++
		case model.StatusCompleted:
			st.Completed++
		case model.StatusFailed:
			st.Failed++
		case model.StatusCancelled:
			st.Cancelled++
		}
	}
	st.Total = len(s.jobs)
	return st
}

// Cancel stops a job. A pending job is cancelled at once and never runs; a
// running job is flagged and its worker finishes it as cancelled. Unknown and
// terminal jobs are left alone.
func (s *Service) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	return s.cancelLocked(j)
}

// CancelAll cancels every job that is not terminal
func (s *Service) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range s.order {
		if s.cancelLocked(s.jobs[id]) {
			n++
		}
	}
	if n > 0 {
		s.log.WithField("count", n).Info("Cancelled all jobs")
	}
	return n
}

// RemoveTerminal evicts a finished job
func (s *Service) RemoveTerminal(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return model.Errorf(model.KindInvalidState, "%w: %s", ErrNotFound, id)
	}
	if !j.status.IsTerminal() {
		return model.Errorf(model.KindInvalidState, "job %s is %s, only finished jobs can be removed", id, j.status)
	}
	s.removeLocked(j)
	return nil
}

// ClearTerminal evicts every finished job and returns how many were removed
func (s *Service) ClearTerminal() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finished []*job
	for _, id := range s.order {
		if j := s.jobs[id]; j.status.IsTerminal() {
			finished = append(finished, j)
		}
	}
	for _, j := range finished {
		s.removeLocked(j)
	}
	return len(finished)
}

// Resubmit enqueues a failed or cancelled job again as a new job with the
// same parameters. The original stays in the registry.
func (s *Service) Resubmit(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return "", model.Errorf(model.KindInvalidState, "%w: %s", ErrNotFound, id)
	}
	if j.status != model.StatusFailed && j.status != model.StatusCancelled {
		return "", model.Errorf(model.KindInvalidState, "job %s is %s, only failed or cancelled jobs can be resubmitted", id, j.status)
	}
	if s.closed {
		return "", model.Wrap(model.KindInvalidState, ErrClosed, "")
	}

	next := j.retry(s.newIDLocked(), s.now())
	s.enqueueLocked(next)
	s.log.WithFields(logrus.Fields{"job": next.id, "previous": id}).Info("Job resubmitted")
	return next.id, nil
}

// Subscribe registers sub. Events are delivered in order per job on a
// goroutine dedicated to sub. The returned func unsubscribes after delivering
// the events already queued, so it must not be called from sub itself.
func (s *Service) Subscribe(sub Subscriber) func() {
	m := newMailbox(sub, s.log)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		m.close(false)
		return func() {}
	}
	key := s.nextSub
	s.nextSub++
	s.subs[key] = m
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, key)
			s.mu.Unlock()
			m.close(true)
			<-m.done
		})
	}
}

// WaitTerminal blocks until every listed job is terminal or evicted
func (s *Service) WaitTerminal(ctx context.Context, ids ...string) error {
	for {
		s.mu.Lock()
		done := true
		for _, id := range ids {
			if j, ok := s.jobs[id]; ok && !j.status.IsTerminal() {
				done = false
				break
			}
		}
		changed := s.changed
		s.mu.Unlock()

		if done {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close rejects further submissions and flushes subscriber mailboxes.
// It does not stop a Pool.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = make(map[int]*mailbox)
	s.mu.Unlock()

	for _, m := range subs {
		m.close(true)
	}
	for _, m := range subs {
		<-m.done
	}
}

// claim pops the oldest pending job and marks it running in one step. When
// nothing is pending it returns the channel that is closed on new work.
func (s *Service) claim(parent context.Context) (*job, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil, s.wake
	}
	j := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]

	j.ctx, j.cancel = context.WithCancel(parent)
	s.transitionLocked(j, model.StatusRunning)
	return j, nil
}

// updateProgress records a progress tick. Streams of a merged format are
// summed, the byte count never moves backwards and unchanged progress is not
// republished. A running job stays below a full fraction.
func (s *Service) updateProgress(j *job, u extractor.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.status != model.StatusRunning {
		return
	}

	p := j.progress
	if u.PostProcessing {
		p.Stage = model.StagePostProcessing
		p.Speed = 0
		p.ETA = 0
	} else {
		done, total := j.parts.add(u)
		p.Stage = model.StageDownloading
		p.Part = j.parts.part()
		p.Speed = max(u.Speed, 0)
		p.ETA = max(u.ETA, 0)
		if done > p.BytesDone {
			p.BytesDone = done
		}
		if total >= 0 {
			p.BytesTotal = max(total, p.BytesDone)
		}
		if p.BytesTotal > 0 {
			fraction := min(float64(p.BytesDone)/float64(p.BytesTotal), maxRunningFraction)
			if fraction > p.Fraction {
				p.Fraction = fraction
			}
		}
	}
	if p == j.progress {
		return
	}
	j.progress = p
	s.publishLocked(model.Event{
		Type:     model.EventProgress,
		JobID:    j.id,
		Status:   j.status,
		Progress: p,
		Job:      j.snapshot(),
	})
}

func (s *Service) finish(j *job, result extractor.Result, err error) model.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.cancel != nil {
		j.cancel()
		j.cancel = nil
	}
	j.progress.Speed = 0
	j.progress.ETA = 0

	switch {
	case j.cancelRequested.Load() || model.IsCancelled(err):
		s.transitionLocked(j, model.StatusCancelled)
	case err != nil:
		kind := model.KindOf(err)
		if kind == "" {
			kind = model.KindExtraction
		}
		j.err = &model.JobError{
			Kind:    kind,
			Message: platform.TruncateText(platform.SanitizeText(err.Error()), platform.MaxMessageLength),
		}
		s.transitionLocked(j, model.StatusFailed)
	default:
		j.outputPath = result.Path
		j.progress.Fraction = 1
		if j.progress.TotalKnown() && j.progress.BytesDone < j.progress.BytesTotal {
			j.progress.BytesDone = j.progress.BytesTotal
		}
		s.transitionLocked(j, model.StatusCompleted)
	}
	return j.status
}

func (s *Service) cancelLocked(j *job) bool {
	switch j.status {
	case model.StatusPending:
		j.cancelRequested.Store(true)
		s.pending = slices.DeleteFunc(s.pending, func(p *job) bool { return p == j })
		s.transitionLocked(j, model.StatusCancelled)
		return true
	case model.StatusRunning:
		j.cancelRequested.Store(true)
		s.transitionLocked(j, model.StatusPausedForCancel)
		if j.cancel != nil {
			j.cancel()
		}
		return true
	}
	return false
}

func (s *Service) enqueueLocked(j *job) {
	s.jobs[j.id] = j
	s.order = append(s.order, j.id)
	s.pending = append(s.pending, j)
	s.publishLocked(model.Event{Type: model.EventStatus, JobID: j.id, Status: j.status, Progress: j.progress, Job: j.snapshot()})

	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *Service) removeLocked(j *job) {
	delete(s.jobs, j.id)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == j.id })
	s.publishLocked(model.Event{Type: model.EventRemoved, JobID: j.id, Status: j.status, Progress: j.progress, Job: j.snapshot()})
}

// transitionLocked moves j along the state machine and publishes the change.
// Disallowed transitions are logged and ignored.
func (s *Service) transitionLocked(j *job, next model.JobStatus) bool {
	if !j.status.CanTransition(next) {
		s.log.WithFields(logrus.Fields{"job": j.id, "from": j.status, "to": next}).Warn("Ignoring invalid transition")
		return false
	}

	j.status = next
	now := s.now()
	switch {
	case next == model.StatusRunning:
		j.startedAt = now
	case next.IsTerminal():
		j.finishedAt = now
	}

	s.log.WithFields(logrus.Fields{"job": j.id, "status": next}).Debug("Job status changed")
	s.publishLocked(model.Event{Type: model.EventStatus, JobID: j.id, Status: next, Progress: j.progress, Job: j.snapshot()})

	close(s.changed)
	s.changed = make(chan struct{})
	return true
}

func (s *Service) publishLocked(ev model.Event) {
	for _, m := range s.subs {
		m.push(ev)
	}
}

func (s *Service) newIDLocked() string {
	for {
		id := generateTaskID()
		if _, exists := s.jobs[id]; !exists {
			return id
		}
	}
}

// validateURL accepts absolute http and https URLs
func validateURL(raw string) error {
	if raw == "" {
		return model.Errorf(model.KindInvalidInput, "URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return model.Wrap(model.KindInvalidInput, err, "invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.Errorf(model.KindInvalidInput, "unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return model.Errorf(model.KindInvalidInput, "URL has no host: %s", raw)
	}
	return nil
}

// itemIndexes returns the 1-based playlist position of every resolved item.
// Failed entries keep their own positions.
func itemIndexes(res *model.Resolution) []int {
	failed := make(map[int]bool, len(res.Failures))
	for _, f := range res.Failures {
		failed[f.Index] = true
	}
	out := make([]int, 0, len(res.Items))
	for pos := 1; len(out) < len(res.Items); pos++ {
		if !failed[pos] {
			out = append(out, pos)
		}
	}
	return out
}

// generateTaskID generates a unique task ID
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s%d", taskIDPrefix, time.Now().UnixNano())
	}
	return taskIDPrefix + id.String()
}
