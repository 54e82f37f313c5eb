package download

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ytget/ytqueue/internal/model"
)

// mailbox buffers events for one subscriber and delivers them on its own
// goroutine. Queued progress events of the same job are merged so a slow
// subscriber only sees the latest one; status events are always kept.
type mailbox struct {
	sub Subscriber
	log logrus.FieldLogger

	mu       sync.Mutex
	queue    []model.Event
	progress map[string]int // job id -> queue index of a mergeable progress event
	closed   bool
	signal   chan struct{}
	done     chan struct{}
}

func newMailbox(sub Subscriber, log logrus.FieldLogger) *mailbox {
	m := &mailbox{
		sub:      sub,
		log:      log,
		progress: make(map[string]int),
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go m.run()
	return m
}

// push never blocks and never calls the subscriber
func (m *mailbox) push(ev model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	if ev.Type == model.EventProgress {
		if i, ok := m.progress[ev.JobID]; ok {
			m.queue[i] = ev
			return
		}
		m.progress[ev.JobID] = len(m.queue)
	} else {
		// later progress must queue behind this event
		delete(m.progress, ev.JobID)
	}
	m.queue = append(m.queue, ev)

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) run() {
	defer close(m.done)
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.mu.Unlock()
			<-m.signal
			m.mu.Lock()
		}
		if m.closed && len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		batch := m.queue
		m.queue = nil
		clear(m.progress)
		m.mu.Unlock()

		for _, ev := range batch {
			m.deliver(ev)
		}
	}
}

func (m *mailbox) deliver(ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithFields(logrus.Fields{"job": ev.JobID, "panic": r}).Error("subscriber panicked")
		}
	}()
	if ev.Type == model.EventProgress {
		m.sub.OnProgress(ev)
		return
	}
	m.sub.OnStatusChange(ev)
}

// close stops the mailbox. With drain the queued events are still delivered.
func (m *mailbox) close(drain bool) {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		if !drain {
			m.queue = nil
		}
	}
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}
