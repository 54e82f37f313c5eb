package model

// EventType distinguishes progress ticks from status changes
type EventType string

const (
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"
	EventRemoved  EventType = "removed"
)

// Event is delivered to subscribers whenever a job changes
type Event struct {
	Type     EventType
	JobID    string
	Status   JobStatus
	Progress Progress
	Job      JobSnapshot
}
