package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ytget/ytqueue/internal/download"
	"github.com/ytget/ytqueue/internal/model"
)

const maxRequestBody = 1 << 20

func (s *Server) handleSubmit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			s.Log.WithError(err).Debug("decoding submit request")
			respondWithError(w, model.Errorf(model.KindInvalidInput, "invalid request body: %v", err))
			return
		}

		quality, err := model.ParseQuality(firstNonEmpty(req.Quality, s.Defaults.Quality.String()))
		if err != nil {
			respondWithError(w, err)
			return
		}

		res, err := s.Manager.Submit(r.Context(), download.SubmitRequest{
			URL:            req.URL,
			Quality:        quality,
			DestinationDir: firstNonEmpty(req.DestinationDir, s.Defaults.DestinationDir),
			CookieFile:     firstNonEmpty(req.CookieFile, s.Defaults.CookieFile),
		})
		if res == nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusAccepted, toSubmitResponse(res, err))
	}
}

func (s *Server) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filters []download.Filter
		if raw := r.URL.Query().Get("status"); raw != "" {
			var statuses []model.JobStatus
			for _, part := range strings.Split(raw, ",") {
				status, ok := model.ParseStatus(part)
				if !ok {
					respondWithError(w, model.Errorf(model.KindInvalidInput, "unknown status %q", part))
					return
				}
				statuses = append(statuses, status)
			}
			filters = append(filters, download.WithStatus(statuses...))
		}
		respondWithJSON(w, http.StatusOK, toJobResponses(s.Manager.ListJobs(filters...)))
	}
}

func (s *Server) handleGetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := s.Manager.Get(chi.URLParam(r, "jobID"))
		if !ok {
			respondWithError(w, download.ErrNotFound)
			return
		}
		respondWithJSON(w, http.StatusOK, toJobResponse(snap))
	}
}

func (s *Server) handleCancelJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		if _, ok := s.Manager.Get(id); !ok {
			respondWithError(w, download.ErrNotFound)
			return
		}
		s.Manager.Cancel(id)

		snap, ok := s.Manager.Get(id)
		if !ok {
			respondWithJSON(w, http.StatusNoContent, nil)
			return
		}
		respondWithJSON(w, http.StatusOK, toJobResponse(snap))
	}
}

func (s *Server) handleCancelAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]int{"cancelled": s.Manager.CancelAll()})
	}
}

func (s *Server) handleRemoveJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Manager.RemoveTerminal(chi.URLParam(r, "jobID")); err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusNoContent, nil)
	}
}

func (s *Server) handleClearTerminal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]int{"removed": s.Manager.ClearTerminal()})
	}
}

func (s *Server) handleResubmitJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.Manager.Resubmit(chi.URLParam(r, "jobID"))
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, map[string]string{"job_id": id})
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, toStatsResponse(s.Manager.Stats()))
	}
}

// statusForError maps queue errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, download.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, model.ErrExtraction), errors.Is(err, model.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondWithJSON(w, statusForError(err), errorResponse{Error: err.Error(), Kind: model.KindOf(err)})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	if payload == nil {
		w.WriteHeader(code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logEncodeError(err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
