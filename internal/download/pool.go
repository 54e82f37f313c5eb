package download

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/ytqueue/internal/extractor"
	"github.com/ytget/ytqueue/internal/model"
	"github.com/ytget/ytqueue/internal/platform"
)

// Pool defaults
const (
	DefaultPoolSize     = 3
	DefaultRetries      = 1
	DefaultRetryBackoff = 2 * time.Second
)

// PoolOptions configures a Pool
type PoolOptions struct {
	// Retries is how many times a network failure is retried
	Retries int

	// RetryBackoff is the pause before a retry
	RetryBackoff time.Duration

	// KeepPartial leaves partial files of cancelled and failed jobs on disk
	KeepPartial bool

	Logger logrus.FieldLogger
}

// DefaultPoolOptions returns the options used by the command line front ends
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		Retries:      DefaultRetries,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// Pool runs a fixed number of workers that drain the Service's pending jobs
type Pool struct {
	svc  *Service
	ext  extractor.Extractor
	size int
	opts PoolOptions
	log  logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewPool creates a pool of size workers. size below 1 is raised to 1.
func NewPool(svc *Service, ext extractor.Extractor, size int, opts PoolOptions) *Pool {
	if size < 1 {
		size = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Logger == nil {
		opts.Logger = svc.log
	}
	return &Pool{
		svc:  svc,
		ext:  ext,
		size: size,
		opts: opts,
		log:  opts.Logger,
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.group != nil {
		return model.Errorf(model.KindInvalidState, "pool already started")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)
	for slot := 0; slot < p.size; slot++ {
		p.group.Go(func() error {
			p.worker(ctx, slot)
			return nil
		})
	}
	p.log.WithField("workers", p.size).Info("Download pool started")
	return nil
}

// Stop cancels the workers and waits for them. Jobs that were running end
// cancelled; pending jobs stay pending.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = p.Wait()
}

// Wait blocks until every worker has returned
func (p *Pool) Wait() error {
	p.mu.Lock()
	group := p.group
	p.mu.Unlock()

	if group == nil {
		return nil
	}
	return group.Wait()
}

func (p *Pool) worker(ctx context.Context, slot int) {
	log := p.log.WithField("worker", slot)
	for {
		if ctx.Err() != nil {
			return
		}

		j, wake := p.svc.claim(ctx)
		if j == nil {
			select {
			case <-wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		p.run(j, log)
	}
}

// run executes one claimed job and records its outcome
func (p *Pool) run(j *job, log logrus.FieldLogger) {
	log = log.WithFields(logrus.Fields{"job": j.id, "url": j.stream.URL})

	var (
		result extractor.Result
		err    error
	)
	if j.cancelRequested.Load() {
		err = model.Errorf(model.KindCancelled, "cancelled before start")
	} else {
		log.Info("Starting download")
		result, err = p.downloadWithRetry(j, log)
	}
	if err != nil && !model.IsCancelled(err) && j.ctx.Err() != nil {
		err = model.Wrap(model.KindCancelled, err, "download interrupted")
	}

	cancelled := j.cancelRequested.Load() || model.IsCancelled(err)
	if cancelled || err != nil {
		p.cleanup(result, cancelled, log)
	}

	status := p.svc.finish(j, result, err)
	if status == model.StatusCancelled && !cancelled && result.Path != "" {
		// cancel arrived after the transfer finished
		p.cleanup(result, true, log)
	}

	entry := log.WithField("status", status)
	switch status {
	case model.StatusFailed:
		entry.WithError(err).Warn("Download failed")
	case model.StatusCompleted:
		entry.WithField("path", result.Path).Info("Download completed")
	default:
		entry.Info("Download finished")
	}
}

// downloadWithRetry attempts download with retry logic. Only network errors
// are retried.
func (p *Pool) downloadWithRetry(j *job, log logrus.FieldLogger) (extractor.Result, error) {
	req := extractor.Request{
		JobID:          j.id,
		Stream:         j.stream,
		Quality:        j.quality,
		DestinationDir: j.destinationDir,
		CookieFile:     j.cookieFile,
	}
	progress := func(u extractor.Progress) {
		p.svc.updateProgress(j, u)
	}
	cancelled := j.cancelRequested.Load

	var (
		partial []string
		lastErr error
	)
	for attempt := 0; attempt <= p.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.opts.RetryBackoff):
			case <-j.ctx.Done():
				return extractor.Result{Partial: partial}, model.Wrap(model.KindCancelled, j.ctx.Err(), "retry cancelled")
			}
			log.WithField("attempt", attempt+1).Info("Retrying download")
		}
		if cancelled() {
			return extractor.Result{Partial: partial}, model.Errorf(model.KindCancelled, "download cancelled")
		}

		res, err := p.safeDownload(j.ctx, req, progress, cancelled)
		partial = appendUnique(partial, res.Partial...)
		if err == nil {
			res.Partial = partial
			return res, nil
		}

		lastErr = err
		if model.IsCancelled(err) || j.ctx.Err() != nil || !errors.Is(err, model.ErrNetwork) {
			break
		}
		log.WithError(err).WithField("attempt", attempt+1).Warn("Download attempt failed")
	}
	return extractor.Result{Partial: partial}, lastErr
}

// safeDownload converts an extractor panic into a failure
func (p *Pool) safeDownload(ctx context.Context, req extractor.Request, progress extractor.ProgressFunc, cancel extractor.CancelCheck) (res extractor.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.Errorf(model.KindExtraction, "extractor panic: %v", r)
		}
	}()
	return p.ext.Download(ctx, req, progress, cancel)
}

// cleanup removes what a cancelled or failed transfer left behind. A
// cancelled job also loses its finished file.
func (p *Pool) cleanup(result extractor.Result, cancelled bool, log logrus.FieldLogger) {
	var paths []string
	if !p.opts.KeepPartial {
		paths = append(paths, result.Partial...)
	}
	if cancelled && result.Path != "" {
		paths = append(paths, result.Path)
	}
	if len(paths) == 0 {
		return
	}

	removed, err := platform.RemovePartialFiles(paths)
	if err != nil {
		log.WithError(err).Warn("Failed to remove partial files")
		return
	}
	if removed > 0 {
		log.WithField("removed", removed).Debug("Removed partial files")
	}
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, existing := range list {
			if existing == it {
				found = true
				break
			}
		}
		if !found {
			list = append(list, it)
		}
	}
	return list
}
