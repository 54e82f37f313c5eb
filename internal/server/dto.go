package server

import (
	"time"

	"github.com/ytget/ytqueue/internal/download"
	"github.com/ytget/ytqueue/internal/model"
)

type submitRequest struct {
	URL            string `json:"url"`
	Quality        string `json:"quality,omitempty"`
	DestinationDir string `json:"destination_dir,omitempty"`
	CookieFile     string `json:"cookie_file,omitempty"`
}

type entryErrorResponse struct {
	Index   int    `json:"index"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message"`
}

type submitResponse struct {
	JobIDs        []string             `json:"job_ids"`
	Failed        []entryErrorResponse `json:"failed"`
	PlaylistTitle string               `json:"playlist_title,omitempty"`
	Error         string               `json:"error,omitempty"`
}

type progressResponse struct {
	Fraction   float64 `json:"fraction"`
	BytesDone  int64   `json:"bytes_done"`
	BytesTotal *int64  `json:"bytes_total"`
	Speed      int64   `json:"speed"`
	ETASeconds int     `json:"eta_seconds"`
	Stage      string  `json:"stage,omitempty"`
	Part       int     `json:"part,omitempty"`
}

type jobErrorResponse struct {
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

type jobResponse struct {
	ID             string            `json:"id"`
	SourceURL      string            `json:"source_url"`
	Title          string            `json:"title"`
	DisplayTitle   string            `json:"display_title"`
	PlaylistTitle  string            `json:"playlist_title,omitempty"`
	PlaylistIndex  int               `json:"playlist_index,omitempty"`
	Quality        model.Quality     `json:"quality"`
	DestinationDir string            `json:"destination_dir"`
	Status         model.JobStatus   `json:"status"`
	Progress       progressResponse  `json:"progress"`
	Error          *jobErrorResponse `json:"error"`
	OutputPath     string            `json:"output_path,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
}

type eventResponse struct {
	Type  model.EventType `json:"type"`
	JobID string          `json:"job_id"`
	Job   jobResponse     `json:"job"`
}

type statsResponse struct {
	Status    string `json:"status"`
	Pending   int    `json:"pending"`
	Running   int    `json:"running"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Cancelled int    `json:"cancelled"`
	Total     int    `json:"total"`
}

type errorResponse struct {
	Error string          `json:"error"`
	Kind  model.ErrorKind `json:"kind,omitempty"`
}

func toJobResponse(s model.JobSnapshot) jobResponse {
	resp := jobResponse{
		ID:             s.ID,
		SourceURL:      s.SourceURL,
		Title:          s.Title,
		DisplayTitle:   s.GetDisplayTitle(),
		PlaylistTitle:  s.PlaylistTitle,
		PlaylistIndex:  s.PlaylistIndex,
		Quality:        s.Quality,
		DestinationDir: s.DestinationDir,
		Status:         s.Status,
		Progress: progressResponse{
			Fraction:   s.Progress.Fraction,
			BytesDone:  s.Progress.BytesDone,
			Speed:      s.Progress.Speed,
			ETASeconds: int(s.Progress.ETA.Seconds()),
			Stage:      s.Progress.Stage.String(),
			Part:       s.Progress.Part,
		},
		OutputPath: s.OutputPath,
		CreatedAt:  s.CreatedAt,
	}
	if s.Progress.TotalKnown() {
		total := s.Progress.BytesTotal
		resp.Progress.BytesTotal = &total
	}
	if s.Error != nil {
		resp.Error = &jobErrorResponse{Kind: s.Error.Kind, Message: s.Error.Message}
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		resp.StartedAt = &started
	}
	if !s.FinishedAt.IsZero() {
		finished := s.FinishedAt
		resp.FinishedAt = &finished
	}
	return resp
}

func toJobResponses(snaps []model.JobSnapshot) []jobResponse {
	out := make([]jobResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toJobResponse(s))
	}
	return out
}

func toSubmitResponse(res *download.SubmitResult, err error) submitResponse {
	resp := submitResponse{
		JobIDs:        res.JobIDs,
		Failed:        make([]entryErrorResponse, 0, len(res.Failed)),
		PlaylistTitle: res.PlaylistTitle,
	}
	if resp.JobIDs == nil {
		resp.JobIDs = []string{}
	}
	for _, f := range res.Failed {
		resp.Failed = append(resp.Failed, entryErrorResponse{Index: f.Index, URL: f.URL, Message: f.Message})
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func toStatsResponse(st download.Stats) statsResponse {
	return statsResponse{
		Status:    "ok",
		Pending:   st.Pending,
		Running:   st.Running,
		Completed: st.Completed,
		Failed:    st.Failed,
		Cancelled: st.Cancelled,
		Total:     st.Total,
	}
}
