package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/clipforge/clipforge/server/internal/media"
	"github.com/clipforge/clipforge/server/internal/retry"
)

// extractorInfo mirrors the fields of the extractor's JSON dump we care
// about.
type extractorInfo struct {
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
	Uploader  string  `json:"uploader"`
}

// GetMetadata resolves title, duration, thumbnail and uploader for a
// video. The primary extractor is tried across the strategy table; the
// mirrors cover for it when it is blocked or reports no duration. An
// unresolvable duration is an error, not a guess.
func (p *Pipeline) GetMetadata(ctx context.Context, url string) (*media.Metadata, error) {
	if url == "" || !media.ValidURL(url) {
		return nil, ErrInvalidURL
	}

	meta, err := p.primaryMetadata(ctx, url)
	if err != nil {
		slog.Warn("primary metadata resolution failed",
			slog.String("url", url),
			slog.Any("err", err),
		)
		meta = nil
	}

	if meta == nil || meta.Duration <= 0 {
		if fallback := p.mirrorMetadata(ctx, url); fallback != nil {
			if meta == nil {
				meta = fallback
			} else if fallback.Duration > 0 {
				meta.Duration = fallback.Duration
			}
		}
	}

	if meta == nil {
		if err != nil {
			return nil, err
		}
		return nil, errors.New(genericFailure)
	}

	if meta.Duration <= 0 {
		return nil, ErrUnknownDuration
	}

	meta.Title = media.SanitizeFilename(meta.Title)
	if meta.Title == "" {
		meta.Title = "Video"
	}
	if meta.Uploader == "" {
		meta.Uploader = "Unknown"
	}

	return meta, nil
}

func (p *Pipeline) primaryMetadata(ctx context.Context, url string) (*media.Metadata, error) {
	res, err := p.retrier.Resolve(ctx, retry.Attempt{
		Bin: p.opts.DownloaderPath,
		Args: []string{
			"--dump-json",
			"--no-warnings",
			"--no-playlist",
		},
		URL:      url,
		Timeout:  p.opts.MetadataTimeout,
		Describe: "metadata",
	})
	if err != nil {
		return nil, err
	}

	info, err := decodeInfo(res.Output)
	if err != nil {
		return nil, err
	}

	return &media.Metadata{
		Title:     info.Title,
		Duration:  int(info.Duration),
		Thumbnail: info.Thumbnail,
		Uploader:  info.Uploader,
	}, nil
}

func (p *Pipeline) mirrorMetadata(ctx context.Context, url string) *media.Metadata {
	videoID, err := media.VideoID(url)
	if err != nil {
		return nil
	}

	meta, err := p.mirrors.ResolveMetadata(ctx, videoID)
	if err != nil {
		return nil
	}
	return meta
}

// decodeInfo pulls the JSON document out of captured output. Capture is
// combined stdout/stderr, so the dump is located by line rather than
// decoded from the start of the stream.
func decodeInfo(output string) (*extractorInfo, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}

		var info extractorInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			continue
		}
		if info.Title != "" {
			return &info, nil
		}
	}

	return nil, errors.New("no metadata document in extractor output")
}
