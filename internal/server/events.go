package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ytget/ytqueue/internal/download"
	"github.com/ytget/ytqueue/internal/model"
)

// eventBuffer is the per-connection backlog between the queue and the socket
const eventBuffer = 64

// handleEvents streams job events. The first message is a snapshot of all
// jobs; then every status change, progress tick and removal follows.
func (s *Server) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		ctx := r.Context()
		events := make(chan model.Event, eventBuffer)
		stop := make(chan struct{})
		forward := func(ev model.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			case <-stop:
			}
		}
		unsubscribe := s.Manager.Subscribe(download.SubscriberFuncs{Progress: forward, Status: forward})
		defer unsubscribe()
		// unblock forward before unsubscribe drains the mailbox
		defer close(stop)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if err := writeSSE(w, "snapshot", toJobResponses(s.Manager.ListJobs())); err != nil {
			return
		}
		flusher.Flush()

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
			case ev := <-events:
				payload := eventResponse{Type: ev.Type, JobID: ev.JobID, Job: toJobResponse(ev.Job)}
				if err := writeSSE(w, string(ev.Type), payload); err != nil {
					s.Log.WithError(err).Debug("event stream closed")
					return
				}
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func logEncodeError(err error) {
	logrus.WithError(err).Error("Failed to encode JSON response")
}
