package download

// Package download implements the download queue: a Service that owns the job
// registry and admits submissions, and a Pool of workers that drains the
// pending FIFO through an extractor.Extractor. It tracks the job lifecycle,
// bounds concurrency, and propagates progress to subscribers.
