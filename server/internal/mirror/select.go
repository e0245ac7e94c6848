package mirror

import (
	"strings"

	"github.com/clipforge/clipforge/server/internal/media"
)

// AudioStream is one audio candidate advertised by a mirror.
type AudioStream struct {
	URL      string
	Bitrate  int
	MimeType string
	Format   string
}

// M4A reports whether the stream is already in an mp4-family container,
// so it can be stream-copied into an mp4 output without re-encoding.
func (a AudioStream) M4A() bool {
	return strings.Contains(strings.ToUpper(a.Format), "M4A") ||
		strings.Contains(a.MimeType, "mp4")
}

// VideoStream is one video candidate advertised by a mirror.
type VideoStream struct {
	URL      string
	Height   int
	FPS      int
	MimeType string
}

// Candidates holds the raw stream lists a mirror returned.
type Candidates struct {
	Audio []AudioStream
	Video []VideoStream
}

// Selection is the chosen pair. Video is nil for audio-only requests and
// when no candidate fits under the quality ceiling; Audio may be nil when
// the mirror exposes none, in which case output degrades to video-only.
type Selection struct {
	Video *VideoStream
	Audio *AudioStream
}

// Empirical tie-breaker favoring broadly-compatible containers at
// equal-or-better quality. Only the relative ordering matters.
const containerBonus = 1000

// SelectBestStreams scores the candidates against the requested quality.
// It is a pure function of its inputs.
func SelectBestStreams(c *Candidates, quality media.Quality) Selection {
	var sel Selection

	bestAudio := -1
	for i, a := range c.Audio {
		if bestAudio < 0 || audioScore(a) > audioScore(c.Audio[bestAudio]) {
			bestAudio = i
		}
	}
	if bestAudio >= 0 {
		sel.Audio = &c.Audio[bestAudio]
	}

	if quality.IsAudio() {
		return sel
	}

	ceiling := quality.MaxHeight()
	bestVideo := -1
	for i, v := range c.Video {
		if ceiling > 0 && v.Height > ceiling {
			continue
		}
		if bestVideo < 0 || videoScore(v) > videoScore(c.Video[bestVideo]) {
			bestVideo = i
		}
	}
	if bestVideo >= 0 {
		sel.Video = &c.Video[bestVideo]
	}

	return sel
}

func audioScore(a AudioStream) int {
	// bitrates arrive in bits per second; scoring in kbps keeps the
	// container bonus above any realistic bitrate spread
	score := a.Bitrate / 1000
	if a.M4A() {
		score += containerBonus
	}
	return score
}

func videoScore(v VideoStream) int {
	score := v.Height*100 + v.FPS
	if strings.Contains(v.MimeType, "mp4") {
		score += containerBonus
	}
	return score
}
