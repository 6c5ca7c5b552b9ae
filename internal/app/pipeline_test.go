package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/relaxr-go/internal/domain"
)

func newTestPipeline(t *testing.T, tr domain.Transcoder, prompter domain.SavePrompter) (*Pipeline, string) {
	t.Helper()
	tempDir := t.TempDir()
	return NewPipeline(tr, prompter, tempDir, "/music", nil), tempDir
}

func runInput(t *testing.T, src *fakeSource, dest string) PipelineInput {
	t.Helper()
	stream, err := src.OpenAudioStream(context.Background(), nil)
	require.NoError(t, err)
	return PipelineInput{
		Job:         domain.NewJob("https://youtu.be/dQw4w9WgXcQ"),
		Stream:      stream.Body,
		TotalBytes:  stream.TotalBytes,
		MimeType:    stream.MimeType,
		Metadata:    src.meta,
		Destination: dest,
	}
}

func TestResolveDestination(t *testing.T) {
	meta := domain.NewVideoMetadata("Song", "Artist", 0)

	t.Run("preferred directory skips prompt", func(t *testing.T) {
		prompter := &fakePrompter{path: "/elsewhere/x.mp3"}
		p, _ := newTestPipeline(t, &fakeTranscoder{}, prompter)

		dest, err := p.ResolveDestination(context.Background(), meta, JobOptions{SaveDir: "/music"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/music", "Song.mp3"), dest)
		assert.Equal(t, 0, prompter.calls)
	})

	t.Run("explicit path skips prompt", func(t *testing.T) {
		prompter := &fakePrompter{path: "/elsewhere/x.mp3"}
		p, _ := newTestPipeline(t, &fakeTranscoder{}, prompter)

		dest, err := p.ResolveDestination(context.Background(), meta, JobOptions{SavePath: "/tmp/chosen.mp3"})
		require.NoError(t, err)
		assert.Equal(t, "/tmp/chosen.mp3", dest)
		assert.Equal(t, 0, prompter.calls)
	})

	t.Run("prompt suggests music dir", func(t *testing.T) {
		prompter := &fakePrompter{path: "/picked/Song.mp3"}
		p, _ := newTestPipeline(t, &fakeTranscoder{}, prompter)

		dest, err := p.ResolveDestination(context.Background(), meta, JobOptions{})
		require.NoError(t, err)
		assert.Equal(t, "/picked/Song.mp3", dest)
		assert.Equal(t, filepath.Join("/music", "Song.mp3"), prompter.suggested)
	})

	t.Run("cancelled prompt", func(t *testing.T) {
		p, _ := newTestPipeline(t, &fakeTranscoder{}, &fakePrompter{cancel: true})

		_, err := p.ResolveDestination(context.Background(), meta, JobOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUserCancelled)
		assert.Equal(t, domain.MsgSaveCancelled, domain.MessageOf(err))
	})

	t.Run("empty prompt result", func(t *testing.T) {
		p, _ := newTestPipeline(t, &fakeTranscoder{}, &fakePrompter{path: ""})

		_, err := p.ResolveDestination(context.Background(), meta, JobOptions{})
		assert.ErrorIs(t, err, domain.ErrUserCancelled)
	})

	t.Run("no prompter", func(t *testing.T) {
		p, _ := newTestPipeline(t, &fakeTranscoder{}, nil)

		_, err := p.ResolveDestination(context.Background(), meta, JobOptions{})
		assert.ErrorIs(t, err, domain.ErrUserCancelled)
	})

	t.Run("prompter failure", func(t *testing.T) {
		p, _ := newTestPipeline(t, &fakeTranscoder{}, &fakePrompter{err: errors.New("no display")})

		_, err := p.ResolveDestination(context.Background(), meta, JobOptions{})
		assert.ErrorIs(t, err, domain.ErrUnknown)
	})
}

func TestPipelineRunSuccess(t *testing.T) {
	tr := &fakeTranscoder{}
	p, tempDir := newTestPipeline(t, tr, nil)
	outDir := t.TempDir()
	dest := filepath.Join(outDir, "Song.mp3")

	src := newFakeSource("Song", "Artist", 200*1024)
	rec := &recorder{}

	result, err := p.Run(context.Background(), runInput(t, src, dest), rec.record)
	require.NoError(t, err)

	assert.Equal(t, dest, result.FinalPath)
	assert.Equal(t, "Song.mp3", result.FinalFileName)
	assert.FileExists(t, dest)
	assert.Empty(t, dirEntries(tempDir), "staging file must be removed")

	req := tr.lastRequest()
	assert.Equal(t, dest, req.Output)
	assert.Equal(t, domain.Tags{Title: "Song", Artist: "Artist"}, req.Tags)
	assert.True(t, strings.HasSuffix(req.Input, "_temp.m4a"))

	values := rec.snapshot()
	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress must not decrease")
	}
	for _, v := range values[:len(values)-1] {
		assert.Less(t, v, 100)
	}
	assert.Equal(t, 100, values[len(values)-1])
}

func TestPipelineRunConversionFailure(t *testing.T) {
	tr := &fakeTranscoder{err: errors.New("Invalid data found when processing input")}
	p, tempDir := newTestPipeline(t, tr, nil)
	dest := filepath.Join(t.TempDir(), "Song.mp3")

	rec := &recorder{}
	_, err := p.Run(context.Background(), runInput(t, newFakeSource("Song", "A", 4096), dest), rec.record)
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrConversionFailed)
	assert.True(t, strings.HasPrefix(domain.MessageOf(err), "Conversion error: "))
	assert.Contains(t, domain.MessageOf(err), "Invalid data found")
	assert.Empty(t, dirEntries(tempDir), "staging file must be removed")
	assert.NoFileExists(t, dest, "partial output must be removed")
	assert.NotContains(t, rec.snapshot(), 100)
}

func TestPipelineRunKeepsPreexistingDestinationOnFailure(t *testing.T) {
	tr := &fakeTranscoder{err: errors.New("boom")}
	p, _ := newTestPipeline(t, tr, nil)
	dest := filepath.Join(t.TempDir(), "Song.mp3")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	_, err := p.Run(context.Background(), runInput(t, newFakeSource("Song", "A", 4096), dest), nil)
	require.Error(t, err)
	assert.FileExists(t, dest)
}

func TestPipelineRunDownloadFailure(t *testing.T) {
	tr := &fakeTranscoder{}
	p, tempDir := newTestPipeline(t, tr, nil)
	dest := filepath.Join(t.TempDir(), "Song.mp3")

	src := newFakeSource("Song", "A", 8192)
	src.readErr = errors.New("connection reset by peer")

	_, err := p.Run(context.Background(), runInput(t, src, dest), nil)
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrDownloadFailed)
	assert.Equal(t, "Download error: connection reset by peer", domain.MessageOf(err))
	assert.Empty(t, dirEntries(tempDir))
	assert.Equal(t, 0, tr.calls(), "transcoder must not run after a download failure")
}

func TestPipelineRunWriteFailure(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(tempFile, nil, 0644))

	p := NewPipeline(&fakeTranscoder{}, nil, tempFile, "", nil)
	_, err := p.Run(context.Background(), runInput(t, newFakeSource("Song", "A", 1024), "/tmp/x.mp3"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWriteFailed)
	assert.True(t, strings.HasPrefix(domain.MessageOf(err), "File write error: "))
}

// failingWriter passes the first limit bytes to w and then fails
type failingWriter struct {
	w     io.WriteCloser
	limit int
	err   error
}

func (f *failingWriter) Write(b []byte) (int, error) {
	if f.limit <= 0 {
		return 0, f.err
	}
	if len(b) > f.limit {
		b = b[:f.limit]
	}
	n, err := f.w.Write(b)
	f.limit -= n
	return n, err
}

func (f *failingWriter) Close() error {
	return f.w.Close()
}

func TestPipelineRunWriteFailureMidStream(t *testing.T) {
	tr := &fakeTranscoder{}
	p, tempDir := newTestPipeline(t, tr, nil)

	var stagedPath string
	p.openStaging = func(path string) (io.WriteCloser, error) {
		stagedPath = path
		file, err := createStagingFile(path)
		if err != nil {
			return nil, err
		}
		return &failingWriter{w: file, limit: copyBufferSize, err: errors.New("no space left on device")}, nil
	}

	rec := &recorder{}
	dest := filepath.Join(t.TempDir(), "Song.mp3")
	_, err := p.Run(context.Background(), runInput(t, newFakeSource("Song", "A", 4*copyBufferSize), dest), rec.record)
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrWriteFailed)
	assert.Equal(t, "File write error: no space left on device", domain.MessageOf(err))
	require.NotEmpty(t, stagedPath)
	assert.NoFileExists(t, stagedPath)
	assert.Empty(t, dirEntries(tempDir))
	assert.NoFileExists(t, dest)
	assert.Equal(t, 0, tr.calls())

	values := rec.snapshot()
	require.NotEmpty(t, values, "progress for the first written chunk")
	assert.LessOrEqual(t, values[len(values)-1], DownloadPhaseMax)
	assert.NotContains(t, values, ProgressDone)
}

func TestPipelineRunCancelledContext(t *testing.T) {
	p, tempDir := newTestPipeline(t, &fakeTranscoder{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, runInput(t, newFakeSource("Song", "A", 1024), filepath.Join(t.TempDir(), "x.mp3")), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDownloadFailed)
	assert.Empty(t, dirEntries(tempDir))
}

func TestProgressReporterDownloadPhase(t *testing.T) {
	rec := &recorder{}
	r := newProgressReporter(rec.record)

	const total = 1000
	for received := int64(0); received <= total; received += 5 {
		r.downloaded(received, total)
	}

	values := rec.snapshot()
	require.NotEmpty(t, values)
	assert.Equal(t, 50, values[len(values)-1])
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1])
	}
	for _, v := range values {
		assert.LessOrEqual(t, v, DownloadPhaseMax)
	}
}

func TestProgressReporterUnknownTotal(t *testing.T) {
	rec := &recorder{}
	r := newProgressReporter(rec.record)

	r.downloaded(1024, 0)
	r.downloaded(4096, -1)
	assert.Empty(t, rec.snapshot())
}

func TestProgressReporterConversionPhase(t *testing.T) {
	rec := &recorder{}
	r := newProgressReporter(rec.record)

	r.downloaded(100, 100)
	r.converted(0)
	r.converted(0.5)
	r.converted(0.4)
	r.converted(1)
	r.converted(1.5)
	r.done()
	r.done()

	assert.Equal(t, []int{50, 74, 99, 100}, rec.snapshot())
}

func TestStagingFileName(t *testing.T) {
	now := time.Unix(1700000000, 0)

	name := stagingFileName("0123456789abcdef", "audio/mp4; codecs=\"mp4a.40.2\"", now)
	assert.Equal(t, "1700000000000000000_01234567_temp.m4a", name)

	assert.True(t, strings.HasSuffix(stagingFileName("id", "audio/webm; codecs=\"opus\"", now), "_id_temp.webm"))
	assert.True(t, strings.HasSuffix(stagingFileName("id", "", now), "_temp.m4a"))
}
