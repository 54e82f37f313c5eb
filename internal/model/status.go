package model

// JobStatus represents the lifecycle state of a download job
type JobStatus string

const (
	// StatusPending means the job is queued and waits for a free worker slot
	StatusPending JobStatus = "pending"

	// StatusRunning means a worker claimed the job and the transfer is in progress
	StatusRunning JobStatus = "running"

	// StatusPausedForCancel means cancel was requested for a running job and
	// the worker has not acknowledged it yet
	StatusPausedForCancel JobStatus = "paused_for_cancel"

	// StatusCancelled means the job was cancelled before or during the transfer
	StatusCancelled JobStatus = "cancelled"

	// StatusFailed means the transfer failed with an error
	StatusFailed JobStatus = "failed"

	// StatusCompleted means the file was downloaded successfully
	StatusCompleted JobStatus = "completed"
)

// allowedTransitions lists every legal edge of the job state machine.
// Terminal states have no outgoing edges.
var allowedTransitions = map[JobStatus][]JobStatus{
	StatusPending:         {StatusRunning, StatusCancelled},
	StatusRunning:         {StatusPausedForCancel, StatusCompleted, StatusFailed, StatusCancelled},
	StatusPausedForCancel: {StatusCancelled},
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsActive returns true if a worker currently owns the job
func (s JobStatus) IsActive() bool {
	return s == StatusRunning || s == StatusPausedForCancel
}

// IsTerminal returns true if the job can no longer change state
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// IsValid reports whether s is one of the known statuses
func (s JobStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPausedForCancel, StatusCancelled, StatusFailed, StatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving from s to next
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, to := range allowedTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// ParseStatus converts a wire name into a JobStatus
func ParseStatus(raw string) (JobStatus, bool) {
	s := JobStatus(raw)
	return s, s.IsValid()
}
