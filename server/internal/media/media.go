package media

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Quality is the requested output ceiling. It maps to a yt-dlp format
// expression and, for the mirror fallback, to a max stream height.
type Quality string

const (
	QualityBest  Quality = "best"
	Quality1080  Quality = "1080"
	Quality720   Quality = "720"
	Quality480   Quality = "480"
	QualityAudio Quality = "audio"
)

var ErrUnknownQuality = errors.New("Invalid quality")

func ParseQuality(s string) (Quality, error) {
	switch q := Quality(s); q {
	case QualityBest, Quality1080, Quality720, Quality480, QualityAudio:
		return q, nil
	default:
		return "", ErrUnknownQuality
	}
}

// IsAudio reports whether the request is audio-only.
func (q Quality) IsAudio() bool { return q == QualityAudio }

// MaxHeight returns the stream height ceiling, 0 meaning unconstrained.
func (q Quality) MaxHeight() int {
	switch q {
	case Quality1080:
		return 1080
	case Quality720:
		return 720
	case Quality480:
		return 480
	default:
		return 0
	}
}

// FormatExpr returns the yt-dlp -f selector for this quality.
func (q Quality) FormatExpr() string {
	switch q {
	case Quality1080, Quality720, Quality480:
		h := q.MaxHeight()
		return fmt.Sprintf(
			"bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]/bestvideo[height<=%d]+bestaudio/best",
			h, h,
		)
	case QualityAudio:
		return "bestaudio[ext=m4a]/bestaudio"
	default:
		return "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio/best"
	}
}

func (q Quality) Ext() string {
	if q.IsAudio() {
		return "mp3"
	}
	return "mp4"
}

func (q Quality) MimeType() string {
	if q.IsAudio() {
		return "audio/mpeg"
	}
	return "video/mp4"
}

// Metadata is the resolved description of a remote video.
type Metadata struct {
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	Uploader  string `json:"uploader"`
}

var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtu\.be`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/live`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/shorts`),
}

// ValidURL reports whether url points at a supported video service.
func ValidURL(url string) bool {
	for _, p := range urlPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`/live/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`/embed/([A-Za-z0-9_-]{6,})`),
}

// VideoID extracts the service-side video identifier used by mirror APIs.
func VideoID(url string) (string, error) {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("no video id in url %q", url)
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename truncates to 100 characters and replaces characters
// that are unsafe on common filesystems with underscores.
func SanitizeFilename(name string) string {
	if len(name) > 100 {
		name = name[:100]
	}
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// SecondsToHMS renders a duration in seconds as HH:MM:SS.
func SecondsToHMS(sec int) string {
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

// TrimEllipsis shortens a free-form message for display and logs.
func TrimEllipsis(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
