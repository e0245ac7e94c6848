// Package progress turns the heterogeneous textual output of the external
// tools into typed progress events. The extractor reports through a
// pipe-delimited progress template or classic "[download]" lines, the
// transcoder through its stats line; both rewrite lines in place with
// carriage returns, so callers feed this parser CR/LF-segmented lines.
package progress

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind classifies the source shape of an event.
type Kind int

const (
	KindDownload Kind = iota
	KindTranscode
	KindMerge
)

// Event is one parsed progress update. String fields are free-form display
// values and may be empty. Detailed is set when the source line carried
// the full field set, so consumers know empty strings are authoritative
// rather than merely absent.
type Event struct {
	Kind       Kind
	Percent    float64
	Speed      string
	ETA        string
	Size       string
	Downloaded string
	Phase      string
	Detailed   bool
}

const (
	// the transcoder reports media time, not bytes, so its percentage
	// is scaled to leave headroom for the finalization phase
	transcodePercentCap = 90
	mergePercentFloor   = 95

	// sentinel the progress template emits for unknown fields
	notAvailable = "NA"
)

var (
	trailingPercentRe = regexp.MustCompile(`(\d+\.?\d*)%`)
	mediaTimeRe       = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)
	speedRe           = regexp.MustCompile(`speed=\s*(\S+)`)
)

var mergeMarkers = []string{"[Merger]", "[ExtractAudio]", "[ffmpeg]", "[VideoConvertor]"}

// Parser is stateful only in that transcode lines report elapsed media
// time and need the target clip duration to compute a percentage.
type Parser struct {
	target time.Duration
}

func NewParser(targetDuration time.Duration) *Parser {
	return &Parser{target: targetDuration}
}

// ParseLine inspects one output line. ok is false for lines that carry no
// progress information; those are informational only.
func (p *Parser) ParseLine(line string) (ev Event, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}

	if strings.Contains(line, "|") && strings.Contains(line, "%") {
		return p.parseTemplate(line)
	}

	if strings.Contains(line, "time=") && strings.Contains(line, "speed=") {
		return p.parseTranscode(line)
	}

	if strings.Contains(line, "[download]") && strings.Contains(line, "%") {
		return p.parseClassic(line)
	}

	for _, marker := range mergeMarkers {
		if strings.Contains(line, marker) {
			return Event{
				Kind:    KindMerge,
				Percent: mergePercentFloor,
				Phase:   "Merging & processing...",
			}, true
		}
	}

	return Event{}, false
}

// parseTemplate handles the pipe-delimited progress template:
// " 12.3%| 1.10MiB/s|00:35|10.00MiB| 1.23MiB"
func (p *Parser) parseTemplate(line string) (Event, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < 5 {
		return Event{}, false
	}

	pct, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(parts[0]), "%"), 64)
	if err != nil {
		return Event{}, false
	}

	return Event{
		Kind:       KindDownload,
		Percent:    min(pct, 100),
		Speed:      normalizeField(parts[1]),
		ETA:        normalizeField(parts[2]),
		Size:       normalizeField(parts[3]),
		Downloaded: normalizeField(parts[4]),
		Phase:      "Downloading...",
		Detailed:   true,
	}, true
}

// parseTranscode handles the transcoder stats line:
// "frame= 300 fps= 25 ... time=00:00:12.04 bitrate= ... speed=1.01x"
func (p *Parser) parseTranscode(line string) (Event, bool) {
	m := mediaTimeRe.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.ParseFloat(m[3], 64)
	elapsed := float64(hours*3600+minutes*60) + seconds

	ev := Event{
		Kind:  KindTranscode,
		Phase: "Processing...",
	}

	if p.target > 0 {
		pct := elapsed / p.target.Seconds() * transcodePercentCap
		ev.Percent = min(pct, transcodePercentCap)
	}

	if sm := speedRe.FindStringSubmatch(line); sm != nil {
		ev.Speed = sm[1]
	}

	return ev, true
}

// parseClassic handles "[download]  42.1% of 10.00MiB at 1.1MiB/s" lines.
// Only the percentage is trusted in this shape.
func (p *Parser) parseClassic(line string) (Event, bool) {
	m := trailingPercentRe.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}

	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Event{}, false
	}

	return Event{
		Kind:    KindDownload,
		Percent: min(pct, 100),
		Phase:   "Downloading...",
	}, true
}

func normalizeField(s string) string {
	s = strings.TrimSpace(s)
	if s == notAvailable {
		return ""
	}
	return s
}
