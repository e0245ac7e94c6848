package rest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/clipforge/clipforge/server/config"
	"github.com/clipforge/clipforge/server/internal/media"
	"github.com/clipforge/clipforge/server/internal/pipeline"
	"github.com/clipforge/clipforge/server/internal/registry"
)

var (
	ErrTaskNotFound = errors.New("Task not found")
	ErrNotReady     = errors.New("File not ready")
)

// Service is the thin collaborator over the core: it owns no orchestration
// logic, only translation between HTTP-shaped requests and the pipeline.
type Service struct {
	pipeline *pipeline.Pipeline
}

func NewService(p *pipeline.Pipeline) *Service {
	return &Service{pipeline: p}
}

func (s *Service) Metadata(ctx context.Context, url string) (*media.Metadata, error) {
	return s.pipeline.GetMetadata(ctx, url)
}

func (s *Service) StartTrim(req pipeline.Request) (string, error) {
	return s.pipeline.StartTrim(req)
}

// Snapshot returns the task's current state by value.
func (s *Service) Snapshot(id string) (registry.Task, bool) {
	return s.pipeline.Registry().Get(id)
}

// Artifact returns the completed task whose file is ready for download.
func (s *Service) Artifact(id string) (registry.Task, error) {
	t, ok := s.pipeline.Registry().Get(id)
	if !ok {
		return registry.Task{}, ErrTaskNotFound
	}

	if t.Status != registry.StatusDone {
		return registry.Task{}, ErrNotReady
	}

	if t.FilePath == "" {
		return registry.Task{}, ErrTaskNotFound
	}
	if _, err := os.Stat(t.FilePath); err != nil {
		return registry.Task{}, ErrTaskNotFound
	}

	return t, nil
}

// Cleanup removes the task entry and its working directory. It is
// idempotent: cleaning an unknown id is an acknowledged no-op.
func (s *Service) Cleanup(id string) {
	t, ok := s.pipeline.Registry().Remove(id)
	if !ok {
		return
	}

	if t.WorkDir != "" {
		if err := os.RemoveAll(t.WorkDir); err != nil {
			slog.Error("failed to remove work dir",
				slog.String("id", id),
				slog.String("dir", t.WorkDir),
				slog.Any("err", err),
			)
			return
		}
	}

	slog.Info("cleaned up task", slog.String("id", id))
}

// Version reports the installed extractor version.
func (s *Service) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	cmd := exec.CommandContext(ctx, config.Instance().Paths.DownloaderPath, "--version")

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.New("requesting extractor version took too long")
		}
		return "", err
	}

	return string(out), nil
}
