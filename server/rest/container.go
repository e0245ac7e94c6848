package rest

import (
	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/server/internal/pipeline"
)

type ContainerArgs struct {
	Pipeline *pipeline.Pipeline
}

// ApplyRouter mounts the collaborator API onto a chi subrouter.
func ApplyRouter(args *ContainerArgs) func(chi.Router) {
	h := &Handler{service: NewService(args.Pipeline)}

	return func(r chi.Router) {
		r.Post("/get-video-info", h.VideoInfo)
		r.Post("/start-trim", h.StartTrim)
		r.Get("/progress/{id}", h.ProgressSSE)
		r.Get("/progress/ws/{id}", h.ProgressWS)
		r.Get("/download/{id}", h.Download)
		r.Post("/cleanup/{id}", h.Cleanup)
		r.Get("/health", h.Health)
		r.Get("/version", h.Version)
	}
}
