package download

import (
	"context"

	"github.com/ytget/ytqueue/internal/model"
)

// Manager is the queue API used by the HTTP and CLI front ends
type Manager interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	Get(id string) (model.JobSnapshot, bool)
	ListJobs(filters ...Filter) []model.JobSnapshot
	Stats() Stats

	// Cancel stops a pending or running job. It reports whether the job was affected.
	Cancel(id string) bool

	// CancelAll cancels every job that is not terminal and returns how many were affected
	CancelAll() int

	// RemoveTerminal evicts a finished job from the registry
	RemoveTerminal(id string) error

	// ClearTerminal evicts every finished job
	ClearTerminal() int

	// Resubmit enqueues a failed or cancelled job again under a new id
	Resubmit(id string) (string, error)

	// Subscribe registers a listener and returns a function that removes it
	Subscribe(sub Subscriber) func()
}

// Subscriber receives job events on a goroutine owned by the Service
type Subscriber interface {
	OnProgress(ev model.Event)
	OnStatusChange(ev model.Event)
}

// SubscriberFuncs adapts plain functions to Subscriber. Nil fields are skipped.
type SubscriberFuncs struct {
	Progress func(model.Event)
	Status   func(model.Event)
}

// OnProgress implements Subscriber
func (f SubscriberFuncs) OnProgress(ev model.Event) {
	if f.Progress != nil {
		f.Progress(ev)
	}
}

// OnStatusChange implements Subscriber
func (f SubscriberFuncs) OnStatusChange(ev model.Event) {
	if f.Status != nil {
		f.Status(ev)
	}
}

var _ Manager = (*Service)(nil)
