package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/server/internal/mirror"
	"github.com/clipforge/clipforge/server/internal/tool"
)

func TestGetMetadataPrimary(t *testing.T) {
	runner := &scriptedRunner{}
	runner.handle = func(n int, cmd tool.Command, onLine func([]byte)) (*tool.Result, error) {
		return &tool.Result{
			ExitCode: 0,
			Output: "WARNING: something noisy on stderr\n" +
				`{"title": "A Great Clip", "duration": 212.0, "thumbnail": "https://i.ytimg.com/t.jpg", "uploader": "Some Channel"}`,
		}, nil
	}

	p := newTestPipeline(t, runner, nil)

	meta, err := p.GetMetadata(context.Background(), testURL)
	require.NoError(t, err)

	assert.Equal(t, "A Great Clip", meta.Title)
	assert.Equal(t, 212, meta.Duration)
	assert.Equal(t, "https://i.ytimg.com/t.jpg", meta.Thumbnail)
	assert.Equal(t, "Some Channel", meta.Uploader)
	assert.Equal(t, 1, runner.callCount())
}

func TestGetMetadataRejectsInvalidURL(t *testing.T) {
	p := newTestPipeline(t, &scriptedRunner{
		handle: func(n int, cmd tool.Command, onLine func([]byte)) (*tool.Result, error) {
			t.Fatal("no tool must run for an invalid url")
			return nil, nil
		},
	}, nil)

	_, err := p.GetMetadata(context.Background(), "https://vimeo.com/12345")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

// A live stream dumps duration 0; with no mirror able to do better the
// request fails rather than inventing a duration.
func TestGetMetadataUnknownDuration(t *testing.T) {
	runner := &scriptedRunner{}
	runner.handle = func(n int, cmd tool.Command, onLine func([]byte)) (*tool.Result, error) {
		return &tool.Result{
			ExitCode: 0,
			Output:   `{"title": "Live Stream", "duration": 0}`,
		}, nil
	}

	p := newTestPipeline(t, runner, nil)

	_, err := p.GetMetadata(context.Background(), testURL)
	assert.ErrorIs(t, err, ErrUnknownDuration)
}

// The mirrors supply the duration when the extractor reports none, while
// the extractor's richer fields are kept.
func TestGetMetadataMirrorFillsDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title": "Mirror Title", "duration": 184, "uploader": "Mirror Channel"}`))
	}))
	defer srv.Close()

	runner := &scriptedRunner{}
	runner.handle = func(n int, cmd tool.Command, onLine func([]byte)) (*tool.Result, error) {
		return &tool.Result{
			ExitCode: 0,
			Output:   `{"title": "Primary Title", "duration": 0, "uploader": "Primary Channel"}`,
		}, nil
	}

	p := newTestPipeline(t, runner, mirror.NewResolver([]string{srv.URL}))

	meta, err := p.GetMetadata(context.Background(), testURL)
	require.NoError(t, err)

	assert.Equal(t, "Primary Title", meta.Title)
	assert.Equal(t, 184, meta.Duration)
	assert.Equal(t, "Primary Channel", meta.Uploader)
}

// With the extractor fully blocked the mirrors answer alone.
func TestGetMetadataMirrorFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title": "Mirror Title", "duration": 184, "thumbnailUrl": "https://m/t.jpg", "uploader": "Mirror Channel"}`))
	}))
	defer srv.Close()

	runner := &scriptedRunner{}
	runner.handle = func(n int, cmd tool.Command, onLine func([]byte)) (*tool.Result, error) {
		return &tool.Result{
			ExitCode: 1,
			Output:   "ERROR: Sign in to confirm you're not a bot",
		}, nil
	}

	p := newTestPipeline(t, runner, mirror.NewResolver([]string{srv.URL}))

	meta, err := p.GetMetadata(context.Background(), testURL)
	require.NoError(t, err)

	assert.Equal(t, "Mirror Title", meta.Title)
	assert.Equal(t, 184, meta.Duration)
	assert.Equal(t, "Mirror Channel", meta.Uploader)
}

func TestGetMetadataTitleSanitized(t *testing.T) {
	runner := &scriptedRunner{}
	runner.handle = func(n int, cmd tool.Command, onLine func([]byte)) (*tool.Result, error) {
		return &tool.Result{
			ExitCode: 0,
			Output:   `{"title": "a/b: \"c\"?", "duration": 10}`,
		}, nil
	}

	p := newTestPipeline(t, runner, nil)

	meta, err := p.GetMetadata(context.Background(), testURL)
	require.NoError(t, err)

	assert.NotContains(t, meta.Title, "/")
	assert.NotContains(t, meta.Title, ":")
	assert.NotContains(t, meta.Title, "?")
	assert.Equal(t, "Unknown", meta.Uploader)
}

func TestDecodeInfo(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		title   string
		wantErr bool
	}{
		{
			name:   "plain dump",
			output: `{"title": "T", "duration": 5}`,
			title:  "T",
		},
		{
			name: "dump after warnings",
			output: "WARNING: player client blocked\nWARNING: retrying\n" +
				`{"title": "T", "duration": 5}`,
			title: "T",
		},
		{
			name:    "no json at all",
			output:  "ERROR: Unsupported URL",
			wantErr: true,
		},
		{
			name:    "json without title",
			output:  `{"duration": 5}`,
			wantErr: true,
		},
		{
			name:    "malformed braces line skipped",
			output:  "{not json}\n" + `{"title": "T", "duration": 5}`,
			title:   "T",
			wantErr: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			info, err := decodeInfo(test.output)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.title, info.Title)
		})
	}
}
