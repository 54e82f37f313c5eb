package cli

import (
	"context"

	"github.com/ytget/ytqueue/internal/download"
	"github.com/ytget/ytqueue/internal/extractor"
)

// queue is a Service with its worker pool
type queue struct {
	svc  *download.Service
	pool *download.Pool
}

// startQueue builds the extractor, the service and the pool and starts the workers
func (a *app) startQueue(ctx context.Context, parallel int) (*queue, error) {
	ext, err := a.newExtractor(a)
	if err != nil {
		return nil, err
	}
	return a.startQueueWith(ctx, ext, parallel)
}

func (a *app) startQueueWith(ctx context.Context, ext extractor.Extractor, parallel int) (*queue, error) {
	svc := download.NewService(ext, download.Options{Logger: a.log})
	pool := download.NewPool(svc, ext, parallel, download.PoolOptions{
		Retries:      a.settings.GetRetries(),
		RetryBackoff: download.DefaultRetryBackoff,
		KeepPartial:  a.settings.GetKeepPartial(),
		Logger:       a.log,
	})
	if err := pool.Start(ctx); err != nil {
		svc.Close()
		return nil, err
	}

	a.log.WithField("workers", pool.Size()).Debug("Queue started")
	return &queue{svc: svc, pool: pool}, nil
}

// shutdown stops the workers and flushes subscribers
func (q *queue) shutdown() {
	q.pool.Stop()
	q.svc.Close()
}
