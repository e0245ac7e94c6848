package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/server/internal/media"
	"github.com/clipforge/clipforge/server/internal/pipeline"
)

type Handler struct {
	service *Service
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type videoInfoRequest struct {
	URL string `json:"url"`
}

type videoInfoResponse struct {
	Success   bool   `json:"success"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	Uploader  string `json:"uploader"`
}

func (h *Handler) VideoInfo(w http.ResponseWriter, r *http.Request) {
	var req videoInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	meta, err := h.service.Metadata(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, videoInfoResponse{
		Success:   true,
		Title:     meta.Title,
		Duration:  meta.Duration,
		Thumbnail: meta.Thumbnail,
		Uploader:  meta.Uploader,
	})
}

type startTrimRequest struct {
	URL       string  `json:"url"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Quality   string  `json:"quality"`
	Filename  string  `json:"filename"`
}

type startTrimResponse struct {
	TaskID string `json:"task_id"`
}

func (h *Handler) StartTrim(w http.ResponseWriter, r *http.Request) {
	var req startTrimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Quality == "" {
		req.Quality = string(media.QualityBest)
	}
	if req.Filename == "" {
		req.Filename = "trimmed_video"
	}

	id, err := h.service.StartTrim(pipeline.Request{
		URL:      strings.TrimSpace(req.URL),
		Start:    req.StartTime,
		End:      req.EndTime,
		Quality:  media.Quality(req.Quality),
		Filename: req.Filename,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, startTrimResponse{TaskID: id})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.service.Artifact(id)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, ErrNotReady) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", t.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+t.FileName+`"`)
	http.ServeFile(w, r, t.FilePath)
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	h.service.Cleanup(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Version(r.Context())
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": strings.TrimSpace(v)})
}
