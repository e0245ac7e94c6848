// Package mirror queries alternate proxy API endpoints for video metadata
// and direct stream URLs. It is the fallback of last resort once every
// client strategy against the primary extractor has been exhausted.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipforge/clipforge/server/internal/media"
)

// ErrExhausted is returned when no mirror produced a usable payload.
var ErrExhausted = errors.New("no mirror returned a usable payload")

const callTimeout = 20 * time.Second

// streamsPayload is the Piped-style response shape the mirrors share.
type streamsPayload struct {
	Error        string          `json:"error"`
	Title        string          `json:"title"`
	Duration     int             `json:"duration"`
	Uploader     string          `json:"uploader"`
	ThumbnailURL string          `json:"thumbnailUrl"`
	AudioStreams []audioPayload  `json:"audioStreams"`
	VideoStreams []videoPayload  `json:"videoStreams"`
}

type audioPayload struct {
	URL      string `json:"url"`
	Bitrate  int    `json:"bitrate"`
	MimeType string `json:"mimeType"`
	Format   string `json:"format"`
}

type videoPayload struct {
	URL      string `json:"url"`
	Height   int    `json:"height"`
	FPS      int    `json:"fps"`
	MimeType string `json:"mimeType"`
}

type Resolver struct {
	client    *http.Client
	endpoints []string
}

func NewResolver(endpoints []string) *Resolver {
	return &Resolver{
		client:    &http.Client{Timeout: callTimeout},
		endpoints: endpoints,
	}
}

// ResolveMetadata queries each mirror in order and returns metadata from
// the first well-formed payload.
func (r *Resolver) ResolveMetadata(ctx context.Context, videoID string) (*media.Metadata, error) {
	p, err := r.fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}

	return &media.Metadata{
		Title:     p.Title,
		Duration:  p.Duration,
		Thumbnail: p.ThumbnailURL,
		Uploader:  p.Uploader,
	}, nil
}

// ResolveStreams queries each mirror in order and returns the candidate
// stream lists from the first well-formed payload.
func (r *Resolver) ResolveStreams(ctx context.Context, videoID string) (*Candidates, error) {
	p, err := r.fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}

	c := &Candidates{}
	for _, a := range p.AudioStreams {
		c.Audio = append(c.Audio, AudioStream(a))
	}
	for _, v := range p.VideoStreams {
		c.Video = append(c.Video, VideoStream(v))
	}
	return c, nil
}

func (r *Resolver) fetch(ctx context.Context, videoID string) (*streamsPayload, error) {
	for _, base := range r.endpoints {
		p, err := r.fetchOne(ctx, base, videoID)
		if err != nil {
			slog.Warn("mirror call failed",
				slog.String("mirror", base),
				slog.String("video_id", videoID),
				slog.Any("err", err),
			)
			continue
		}

		if p.Error != "" {
			slog.Warn("mirror reported error",
				slog.String("mirror", base),
				slog.String("video_id", videoID),
				slog.String("err", p.Error),
			)
			continue
		}

		if p.Title == "" {
			// malformed payload, not a match
			continue
		}

		slog.Info("mirror resolved video",
			slog.String("mirror", base),
			slog.String("video_id", videoID),
		)
		return p, nil
	}

	return nil, ErrExhausted
}

func (r *Resolver) fetchOne(ctx context.Context, base, videoID string) (*streamsPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/streams/%s", base, videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var p streamsPayload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}

	return &p, nil
}
