package download

import "github.com/ytget/ytqueue/internal/model"

// Filter selects jobs in ListJobs
type Filter func(model.JobSnapshot) bool

// WithStatus keeps jobs in any of the given states
func WithStatus(statuses ...model.JobStatus) Filter {
	return func(s model.JobSnapshot) bool {
		for _, status := range statuses {
			if s.Status == status {
				return true
			}
		}
		return false
	}
}

// Terminal keeps completed, failed and cancelled jobs
func Terminal() Filter {
	return func(s model.JobSnapshot) bool {
		return s.Status.IsTerminal()
	}
}

// Active keeps jobs that occupy a worker
func Active() Filter {
	return func(s model.JobSnapshot) bool {
		return s.Status.IsActive()
	}
}

// WithIDs keeps the listed jobs
func WithIDs(ids ...string) Filter {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(s model.JobSnapshot) bool {
		_, ok := set[s.ID]
		return ok
	}
}

func matches(s model.JobSnapshot, filters []Filter) bool {
	for _, f := range filters {
		if f != nil && !f(s) {
			return false
		}
	}
	return true
}
