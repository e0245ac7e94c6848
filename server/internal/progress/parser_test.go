package progress

import (
	"testing"
	"time"
)

func TestParseTemplateLine(t *testing.T) {
	p := NewParser(30 * time.Second)

	ev, ok := p.ParseLine(" 12.3%| 1.10MiB/s|00:35|10.00MiB| 1.23MiB")
	if !ok {
		t.Fatal("template line not recognized")
	}

	if ev.Kind != KindDownload {
		t.Errorf("Kind = %v, expected KindDownload", ev.Kind)
	}
	if ev.Percent != 12.3 {
		t.Errorf("Percent = %v, expected 12.3", ev.Percent)
	}
	if ev.Speed != "1.10MiB/s" || ev.ETA != "00:35" || ev.Size != "10.00MiB" || ev.Downloaded != "1.23MiB" {
		t.Errorf("unexpected fields: %+v", ev)
	}
	if !ev.Detailed {
		t.Error("template shape must be detailed")
	}
}

func TestParseTemplateNormalizesNA(t *testing.T) {
	p := NewParser(0)

	ev, ok := p.ParseLine("50.0%|NA|NA|NA|NA")
	if !ok {
		t.Fatal("template line not recognized")
	}

	if ev.Speed != "" || ev.ETA != "" || ev.Size != "" || ev.Downloaded != "" {
		t.Errorf("NA fields must normalize to empty: %+v", ev)
	}
}

func TestParseTemplateCapsAtHundred(t *testing.T) {
	p := NewParser(0)

	ev, ok := p.ParseLine("104.2%|NA|NA|NA|NA")
	if !ok || ev.Percent != 100 {
		t.Errorf("Percent = %v, expected cap at 100", ev.Percent)
	}
}

func TestParseTranscodeLine(t *testing.T) {
	p := NewParser(30 * time.Second)

	ev, ok := p.ParseLine("frame=  300 fps= 25 q=-1.0 size=    2048kB time=00:00:15.00 bitrate=1117.5kbits/s speed=1.01x")
	if !ok {
		t.Fatal("transcode line not recognized")
	}

	if ev.Kind != KindTranscode {
		t.Errorf("Kind = %v, expected KindTranscode", ev.Kind)
	}
	// 15s of a 30s clip, scaled under the 90% cap
	if ev.Percent != 45 {
		t.Errorf("Percent = %v, expected 45", ev.Percent)
	}
	if ev.Speed != "1.01x" {
		t.Errorf("Speed = %q, expected 1.01x", ev.Speed)
	}
}

func TestParseTranscodeCapsAtNinety(t *testing.T) {
	p := NewParser(10 * time.Second)

	ev, ok := p.ParseLine("frame=1 time=00:01:00.00 bitrate=1k speed=2x")
	if !ok {
		t.Fatal("transcode line not recognized")
	}
	if ev.Percent != 90 {
		t.Errorf("Percent = %v, expected cap at 90", ev.Percent)
	}
}

func TestParseTranscodeHours(t *testing.T) {
	p := NewParser(2 * time.Hour)

	ev, ok := p.ParseLine("frame=1 time=01:00:00.00 bitrate=1k speed=1x")
	if !ok {
		t.Fatal("transcode line not recognized")
	}
	if ev.Percent != 45 {
		t.Errorf("Percent = %v, expected 45", ev.Percent)
	}
}

func TestParseClassicDownloadLine(t *testing.T) {
	p := NewParser(0)

	ev, ok := p.ParseLine("[download]  42.1% of 10.00MiB at 1.10MiB/s ETA 00:05")
	if !ok {
		t.Fatal("classic line not recognized")
	}

	if ev.Percent != 42.1 {
		t.Errorf("Percent = %v, expected 42.1", ev.Percent)
	}
	if ev.Detailed {
		t.Error("classic shape carries the percentage only")
	}
	if ev.Speed != "" {
		t.Errorf("Speed = %q, expected empty", ev.Speed)
	}
}

func TestParseMergeMarkers(t *testing.T) {
	p := NewParser(0)

	for _, line := range []string{
		`[Merger] Merging formats into "clip.mp4"`,
		"[ExtractAudio] Destination: clip.mp3",
		"[ffmpeg] Correcting container",
	} {
		ev, ok := p.ParseLine(line)
		if !ok {
			t.Fatalf("merge marker not recognized: %s", line)
		}
		if ev.Kind != KindMerge || ev.Percent != 95 {
			t.Errorf("line %q: got %+v, expected merge at 95", line, ev)
		}
	}
}

func TestParseIgnoresInformationalLines(t *testing.T) {
	p := NewParser(time.Minute)

	for _, line := range []string{
		"",
		"[youtube] dQw4w9WgXcQ: Downloading webpage",
		"WARNING: unable to verify",
		"Deleting original file clip.f137.mp4",
	} {
		if _, ok := p.ParseLine(line); ok {
			t.Errorf("line %q should not be a progress event", line)
		}
	}
}

func TestParseTemplatePriorityOverClassic(t *testing.T) {
	// a template line that also mentions [download] must parse positionally
	p := NewParser(0)

	ev, ok := p.ParseLine("7.0%|1MiB/s|00:10|NA|NA")
	if !ok || !ev.Detailed {
		t.Fatalf("expected detailed template parse, got %+v", ev)
	}
}
