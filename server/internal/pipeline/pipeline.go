// Package pipeline coordinates a trim request end to end: resolve the
// video through the primary extractor across spoofed client identities,
// fall back to mirror-provided direct streams when the extractor is fully
// blocked, drive the transcode, and track everything through the task
// registry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/clipforge/clipforge/server/internal/media"
	"github.com/clipforge/clipforge/server/internal/mirror"
	"github.com/clipforge/clipforge/server/internal/progress"
	"github.com/clipforge/clipforge/server/internal/registry"
	"github.com/clipforge/clipforge/server/internal/retry"
	"github.com/clipforge/clipforge/server/internal/tool"
)

// Validation errors are surfaced verbatim to the collaborator, hence the
// display casing.
var (
	ErrInvalidURL       = errors.New("Invalid YouTube URL")
	ErrInvalidTimeRange = errors.New("Invalid time parameters")
	ErrUnknownDuration  = errors.New("Could not determine video duration")
)

const genericFailure = "Failed to trim video. Check video availability."

const progressTemplate = "%(progress._percent_str)s|%(progress._speed_str)s|%(progress._eta_str)s|%(progress._total_bytes_str)s|%(progress._downloaded_bytes_str)s"

// Options are the pipeline's tunables, normally filled from config.
type Options struct {
	DownloaderPath   string
	FFmpegPath       string
	WorkRoot         string
	MetadataTimeout  time.Duration
	DownloadTimeout  time.Duration
	TranscodeTimeout time.Duration
	Concurrency      int64
}

func (o *Options) defaults() {
	if o.DownloaderPath == "" {
		o.DownloaderPath = "yt-dlp"
	}
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.MetadataTimeout <= 0 {
		o.MetadataTimeout = 30 * time.Second
	}
	if o.DownloadTimeout <= 0 {
		o.DownloadTimeout = 10 * time.Minute
	}
	if o.TranscodeTimeout <= 0 {
		o.TranscodeTimeout = 10 * time.Minute
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 2
	}
}

type Pipeline struct {
	runner  tool.Runner
	retrier *retry.Orchestrator
	mirrors *mirror.Resolver
	reg     *registry.Registry
	sem     *semaphore.Weighted
	opts    Options
}

func New(
	runner tool.Runner,
	retrier *retry.Orchestrator,
	mirrors *mirror.Resolver,
	reg *registry.Registry,
	opts Options,
) *Pipeline {
	opts.defaults()

	return &Pipeline{
		runner:  runner,
		retrier: retrier,
		mirrors: mirrors,
		reg:     reg,
		sem:     semaphore.NewWeighted(opts.Concurrency),
		opts:    opts,
	}
}

// Registry exposes the task store to the collaborator for polling and
// cleanup.
func (p *Pipeline) Registry() *registry.Registry { return p.reg }

// Request is one trim request. Filename is the desired basename, before
// sanitization and without extension.
type Request struct {
	URL      string
	Start    float64
	End      float64
	Quality  media.Quality
	Filename string
}

// StartTrim validates the request synchronously and, if it is acceptable,
// registers a task and launches its worker. The returned id is ready for
// progress polling immediately.
func (p *Pipeline) StartTrim(req Request) (string, error) {
	if req.URL == "" || !media.ValidURL(req.URL) {
		return "", ErrInvalidURL
	}
	if req.Start < 0 || req.End <= req.Start {
		return "", ErrInvalidTimeRange
	}
	if _, err := media.ParseQuality(string(req.Quality)); err != nil {
		return "", err
	}

	req.Filename = media.SanitizeFilename(req.Filename)
	if req.Filename == "" {
		req.Filename = "trimmed_video"
	}

	dir, err := os.MkdirTemp(p.opts.WorkRoot, "clipforge-*")
	if err != nil {
		return "", fmt.Errorf("failed to allocate work dir: %w", err)
	}

	id := uuid.NewString()

	p.reg.Create(registry.Task{
		ID:      id,
		Status:  registry.StatusStarting,
		Phase:   "Starting download...",
		WorkDir: dir,
	})

	slog.Info("accepted trim request",
		slog.String("id", id),
		slog.String("url", req.URL),
		slog.Float64("start", req.Start),
		slog.Float64("end", req.End),
		slog.String("quality", string(req.Quality)),
	)

	go p.run(id, req, dir)

	return id, nil
}

// run is the task's dedicated worker. It never lets a failure escape:
// anything thrown inside orchestration becomes a terminal task error.
func (p *Pipeline) run(id string, req Request, dir string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("trim worker panicked",
				slog.String("id", id),
				slog.Any("panic", rec),
			)
			p.fail(id, genericFailure)
		}
	}()

	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		p.fail(id, genericFailure)
		return
	}
	defer p.sem.Release(1)

	outPath := filepath.Join(dir, req.Filename+"."+req.Quality.Ext())

	p.reg.Mutate(id, func(t *registry.Task) {
		t.Status = registry.StatusDownloading
		t.Phase = "Downloading..."
	})

	err := p.primary(id, req, dir, outPath)

	switch {
	case err == nil:
		p.finalize(id, req, dir, outPath)

	case errors.Is(err, retry.ErrExhausted):
		slog.Warn("primary extractor exhausted, trying mirror fallback",
			slog.String("id", id),
			slog.String("url", req.URL),
		)
		if ferr := p.fallback(id, req, outPath); ferr != nil {
			slog.Error("mirror fallback failed",
				slog.String("id", id),
				slog.Any("err", ferr),
			)
			p.fail(id, failureMessage(ferr))
			return
		}
		p.finalize(id, req, dir, outPath)

	default:
		p.fail(id, failureMessage(err))
	}
}

// primary drives the extractor's own trim (download-sections) through the
// retry orchestrator, feeding live output into the progress parser.
func (p *Pipeline) primary(id string, req Request, dir, outPath string) error {
	args := []string{
		"-f", req.Quality.FormatExpr(),
		"--download-sections", fmt.Sprintf("*%s-%s", formatSeconds(req.Start), formatSeconds(req.End)),
		"--concurrent-fragments", "16",
		"--fragment-retries", "5",
		"--retries", "5",
		"--socket-timeout", "30",
		"--no-warnings",
		"--no-playlist",
		"--no-check-certificates",
		"--newline",
		"--no-colors",
		"--progress-template", progressTemplate,
	}

	if req.Quality.IsAudio() {
		args = append(args,
			"-x",
			"--audio-format", "mp3",
			"--audio-quality", "0",
			"--postprocessor-args", "ffmpeg:-b:a 192k",
		)
	} else {
		args = append(args,
			"--merge-output-format", "mp4",
			"--postprocessor-args", "ffmpeg:-c copy -movflags +faststart",
		)
	}

	args = append(args, "-o", outPath)

	parser := progress.NewParser(clipDuration(req))

	_, err := p.retrier.Resolve(context.Background(), retry.Attempt{
		Bin:      p.opts.DownloaderPath,
		Args:     args,
		URL:      req.URL,
		Dir:      dir,
		Timeout:  p.opts.DownloadTimeout,
		Describe: "trim download",
		OnLine: func(line []byte) {
			p.applyProgress(id, parser, line)
		},
		OnStrategySwitch: func(name string) {
			slog.Info("switching client strategy",
				slog.String("id", id),
				slog.String("strategy", name),
			)
			// a fresh attempt starts its progress over
			p.reg.Mutate(id, func(t *registry.Task) {
				t.Progress = 0
				t.Speed = ""
				t.ETA = ""
				t.Size = ""
				t.Downloaded = ""
				t.Phase = "Retrying with a different client..."
			})
		},
	})

	return err
}

// fallback resolves direct stream URLs from the mirrors and trims them
// with the transcoder, stream-copying video where possible. Timeouts here
// are terminal: there is no third tier to fall through to.
func (p *Pipeline) fallback(id string, req Request, outPath string) error {
	videoID, err := media.VideoID(req.URL)
	if err != nil {
		return err
	}

	p.reg.Mutate(id, func(t *registry.Task) {
		t.Status = registry.StatusProcessing
		t.Progress = 0
		t.Speed = ""
		t.ETA = ""
		t.Phase = "Resolving alternate sources..."
	})

	streams, err := p.mirrors.ResolveStreams(context.Background(), videoID)
	if err != nil {
		return err
	}

	sel := mirror.SelectBestStreams(streams, req.Quality)
	if sel.Audio == nil && sel.Video == nil {
		return errors.New("mirrors returned no usable streams")
	}
	if !req.Quality.IsAudio() && sel.Video == nil {
		return fmt.Errorf("no video stream within the %s quality ceiling", req.Quality)
	}

	args := transcodeArgs(req, sel, outPath)
	parser := progress.NewParser(clipDuration(req))

	p.reg.Mutate(id, func(t *registry.Task) {
		t.Phase = "Processing..."
	})

	res, err := p.runner.Run(context.Background(), tool.Command{
		Bin:     p.opts.FFmpegPath,
		Args:    args,
		Timeout: p.opts.TranscodeTimeout,
	}, func(line []byte) {
		p.applyProgress(id, parser, line)
	})

	if errors.Is(err, tool.ErrTimeout) {
		return errors.New("Processing timeout. Try smaller duration or lower quality.")
	}
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errors.New(retry.Summarize(res.Output))
	}

	return nil
}

// transcodeArgs builds the direct-trim invocation. Video is stream-copied;
// audio is re-encoded only where the target container requires it.
func transcodeArgs(req Request, sel mirror.Selection, outPath string) []string {
	var (
		start = formatSeconds(req.Start)
		dur   = formatSeconds(req.End - req.Start)
	)

	if req.Quality.IsAudio() {
		return []string{
			"-y",
			"-ss", start,
			"-i", sel.Audio.URL,
			"-t", dur,
			"-vn",
			"-c:a", "libmp3lame",
			"-b:a", "192k",
			outPath,
		}
	}

	if sel.Audio == nil {
		// degrade to video-only output
		return []string{
			"-y",
			"-ss", start,
			"-i", sel.Video.URL,
			"-t", dur,
			"-an",
			"-c:v", "copy",
			"-movflags", "+faststart",
			outPath,
		}
	}

	// mp4-family audio remuxes into mp4 as-is, anything else has to be
	// re-encoded for the container
	audioCodec := "aac"
	if sel.Audio.M4A() {
		audioCodec = "copy"
	}

	return []string{
		"-y",
		"-ss", start,
		"-i", sel.Video.URL,
		"-ss", start,
		"-i", sel.Audio.URL,
		"-t", dur,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", audioCodec,
		"-movflags", "+faststart",
		outPath,
	}
}

func (p *Pipeline) applyProgress(id string, parser *progress.Parser, line []byte) {
	ev, ok := parser.ParseLine(string(line))
	if !ok {
		slog.Debug("tool output", slog.String("id", id), slog.String("line", string(line)))
		return
	}

	p.reg.Mutate(id, func(t *registry.Task) {
		switch ev.Kind {
		case progress.KindMerge:
			t.Phase = ev.Phase
			t.Progress = max(t.Progress, ev.Percent)

		case progress.KindTranscode:
			t.Progress = ev.Percent
			t.Speed = ev.Speed
			t.Phase = ev.Phase

		default:
			t.Progress = ev.Percent
			t.Phase = ev.Phase
			if ev.Detailed {
				t.Speed = ev.Speed
				t.ETA = ev.ETA
				t.Size = ev.Size
				t.Downloaded = ev.Downloaded
			}
		}
	})
}

// finalize locates the produced artifact and records the terminal state.
// A reported success without a usable file is itself a terminal error.
func (p *Pipeline) finalize(id string, req Request, dir, outPath string) {
	path, size, err := locateArtifact(dir, req.Filename, outPath)
	if err != nil {
		slog.Error("artifact missing after reported success",
			slog.String("id", id),
			slog.String("dir", dir),
			slog.Any("err", err),
		)
		p.fail(id, "Failed to create output file")
		return
	}

	fileName := req.Filename + "." + req.Quality.Ext()

	p.reg.Mutate(id, func(t *registry.Task) {
		t.Status = registry.StatusDone
		t.Progress = 100
		t.Phase = "Complete!"
		t.FilePath = path
		t.FileName = fileName
		t.FileSize = size
		t.MimeType = req.Quality.MimeType()
	})

	slog.Info("trim complete",
		slog.String("id", id),
		slog.String("file", fileName),
		slog.String("size", humanize.Bytes(uint64(size))),
	)
}

func (p *Pipeline) fail(id, msg string) {
	if msg == "" {
		msg = genericFailure
	}

	if ok := p.reg.Mutate(id, func(t *registry.Task) {
		t.Status = registry.StatusError
		t.Error = msg
		t.Phase = "Failed"
	}); !ok {
		// task was cleaned up or swept while the worker was running
		slog.Warn("discarding result for removed task", slog.String("id", id))
	}
}

func failureMessage(err error) string {
	var term *retry.TerminalError
	if errors.As(err, &term) && term.Message != "" {
		return term.Message
	}
	if err != nil && err.Error() != "" {
		return media.TrimEllipsis(err.Error(), 200)
	}
	return genericFailure
}

func clipDuration(req Request) time.Duration {
	return time.Duration((req.End - req.Start) * float64(time.Second))
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
