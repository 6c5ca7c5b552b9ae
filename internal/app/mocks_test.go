package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/relaxr-go/internal/domain"
)

// mockRepo implements domain.JobRepository for testing. It stores copies so
// tests can read jobs while the service mutates its own.
type mockRepo struct {
	mu      sync.Mutex
	jobs    map[string]domain.Job
	history map[string][]domain.JobStatus
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		jobs:    make(map[string]domain.Job),
		history: make(map[string][]domain.JobStatus),
	}
}

func (m *mockRepo) Create(job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	m.history[job.ID] = []domain.JobStatus{job.Status}
	return nil
}

func (m *mockRepo) Update(job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	if h := m.history[job.ID]; len(h) == 0 || h[len(h)-1] != job.Status {
		m.history[job.ID] = append(h, job.Status)
	}
	return nil
}

// statuses returns the distinct statuses a job was stored with, in order
func (m *mockRepo) statuses(id string) []domain.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.JobStatus(nil), m.history[id]...)
}

func (m *mockRepo) FindByID(id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		return &j, nil
	}
	return nil, errors.New("job not found")
}

func (m *mockRepo) FindAll(filters map[string]interface{}) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, j := range m.jobs {
		if status, ok := filters["status"]; ok && string(j.Status) != status {
			continue
		}
		job := j
		out = append(out, &job)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (m *mockRepo) CountByStatus(status domain.JobStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, j := range m.jobs {
		if j.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) GetStats() (*domain.JobStats, error) {
	stats := &domain.JobStats{}
	stats.Pending, _ = m.CountByStatus(domain.StatusPending)
	stats.Downloading, _ = m.CountByStatus(domain.StatusDownloading)
	stats.Completed, _ = m.CountByStatus(domain.StatusCompleted)
	stats.Failed, _ = m.CountByStatus(domain.StatusError)
	stats.Total = stats.Pending + stats.Downloading + stats.Completed + stats.Failed
	return stats, nil
}

// fakeSource implements domain.VideoSource with canned data
type fakeSource struct {
	meta       domain.VideoMetadata
	data       []byte
	total      int64
	resolveErr error
	streamErr  error
	readErr    error

	mu       sync.Mutex
	resolved int
	opened   int
}

func newFakeSource(title, author string, size int) *fakeSource {
	return &fakeSource{
		meta:  domain.NewVideoMetadata(title, author, 3*time.Minute),
		data:  bytes.Repeat([]byte{0xAB}, size),
		total: int64(size),
	}
}

func (f *fakeSource) Resolve(ctx context.Context, url string) (*domain.ResolvedVideo, error) {
	f.mu.Lock()
	f.resolved++
	f.mu.Unlock()
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return &domain.ResolvedVideo{ID: "dQw4w9WgXcQ", URL: url, Metadata: f.meta}, nil
}

func (f *fakeSource) OpenAudioStream(ctx context.Context, video *domain.ResolvedVideo) (*domain.AudioStream, error) {
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	var body io.Reader = bytes.NewReader(f.data)
	if f.readErr != nil {
		body = io.MultiReader(bytes.NewReader(f.data[:len(f.data)/2]), &errReader{err: f.readErr})
	}
	return &domain.AudioStream{Body: io.NopCloser(body), TotalBytes: f.total, MimeType: "audio/mp4"}, nil
}

func (f *fakeSource) openedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

type errReader struct {
	err error
}

func (r *errReader) Read([]byte) (int, error) {
	return 0, r.err
}

// fakeTranscoder copies the input to the output and reports progress in
// quarters. With err set it writes a partial output and fails.
type fakeTranscoder struct {
	err   error
	block chan struct{}

	mu       sync.Mutex
	requests []domain.ConvertRequest
}

func (t *fakeTranscoder) Convert(ctx context.Context, req domain.ConvertRequest, onProgress domain.ConvertProgressFunc) error {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()

	if t.block != nil {
		select {
		case <-t.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	data, err := os.ReadFile(req.Input)
	if err != nil {
		return err
	}
	if t.err != nil {
		os.WriteFile(req.Output, data[:len(data)/2], 0644)
		return t.err
	}
	for _, f := range []float64{0.25, 0.5, 0.75, 1} {
		onProgress(f)
	}
	return os.WriteFile(req.Output, data, 0644)
}

func (t *fakeTranscoder) lastRequest() domain.ConvertRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests[len(t.requests)-1]
}

func (t *fakeTranscoder) calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// fakePrompter returns a fixed path or cancels
type fakePrompter struct {
	path      string
	cancel    bool
	err       error
	suggested string
	calls     int
}

func (p *fakePrompter) PromptSavePath(ctx context.Context, suggested string) (string, error) {
	p.calls++
	p.suggested = suggested
	if p.err != nil {
		return "", p.err
	}
	if p.cancel {
		return "", domain.ErrUserCancelled
	}
	return p.path, nil
}

// recorder collects progress values
type recorder struct {
	mu     sync.Mutex
	values []int
}

func (r *recorder) record(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.values...)
}

func dirEntries(dir string) []string {
	entries, _ := os.ReadDir(dir)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
