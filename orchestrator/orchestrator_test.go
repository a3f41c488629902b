package orchestrator

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/automeet/cache"
	"github.com/kbukum/automeet/component"
	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/textgen"
	"github.com/kbukum/automeet/transcript"
	"github.com/kbukum/automeet/transcription"
	"github.com/kbukum/automeet/transcription/mock"
)

type fakeTranscriber struct {
	calls atomic.Int64
	mu    sync.Mutex
	err   error
	seen  []transcription.Request
}

func (f *fakeTranscriber) Name() string                      { return "fake" }
func (f *fakeTranscriber) IsAvailable(context.Context) bool { return true }

func (f *fakeTranscriber) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeTranscriber) Transcribe(_ context.Context, req transcription.Request) (*transcript.Result, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, req)
	if f.err != nil {
		return nil, f.err
	}
	r := transcript.New("", []transcript.Utterance{
		{Speaker: transcript.Ptr("Speaker A"), Text: "hello"},
		{Speaker: transcript.Ptr("Speaker B"), Text: "call " + string(rune('0'+n))},
	})
	return &r, nil
}

func (f *fakeTranscriber) lastRequest() transcription.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[len(f.seen)-1]
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []textgen.Request
}

func (g *fakeGenerator) Name() string                      { return "fake-llm" }
func (g *fakeGenerator) IsAvailable(context.Context) bool { return true }

func (g *fakeGenerator) Generate(_ context.Context, req textgen.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return "reply " + string(rune('0'+len(g.requests))), nil
}

func testConfig() Config {
	return Config{
		RateLimits: map[string]RateLimit{
			"fake":     {Capacity: 100, RefillRate: 100},
			"fake-llm": {Capacity: 100, RefillRate: 100},
			"mock":     {Capacity: 100, RefillRate: 100},
		},
		Workers:     2,
		StopTimeout: 5 * time.Second,
	}
}

func writeAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestCache(t *testing.T) *cache.Cache[transcript.Result] {
	t.Helper()
	c, err := cache.New[transcript.Result](time.Hour, cache.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func newTestOrchestrator(t *testing.T, deps Deps, cfg Config) *Orchestrator {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	o, err := New(deps, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestNew_RequiresTranscriber(t *testing.T) {
	_, err := New(Deps{Logger: logger.Nop()}, testConfig())
	if !errors.HasCode(err, errors.ErrCodeConfigInvalid) {
		t.Fatalf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimits["fake"] = RateLimit{Capacity: 0, RefillRate: 1}
	_, err := New(Deps{Transcriber: &fakeTranscriber{}, Logger: logger.Nop()}, cfg)
	if !errors.HasCode(err, errors.ErrCodeConfigInvalid) {
		t.Fatalf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestTranscribe_CacheHitSkipsProvider(t *testing.T) {
	ft := &fakeTranscriber{}
	c := newTestCache(t)
	o := newTestOrchestrator(t, Deps{Transcriber: ft, Cache: c}, testConfig())
	path := writeAudio(t, "meeting.wav")
	req := TranscribeRequest{Request: transcription.Request{AudioPath: path}}

	first, err := o.Transcribe(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Transcribe(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if ft.calls.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", ft.calls.Load())
	}
	if first.Text != second.Text {
		t.Errorf("cached text %q differs from original %q", second.Text, first.Text)
	}
	if second.AudioFile != path {
		t.Errorf("expected audio file %q, got %q", path, second.AudioFile)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 cache entry, got %d", c.Len())
	}
}

func TestTranscribe_FailureLeavesCacheEmpty(t *testing.T) {
	ft := &fakeTranscriber{}
	ft.setErr(stderrors.New("upstream 503"))
	c := newTestCache(t)
	o := newTestOrchestrator(t, Deps{Transcriber: ft, Cache: c}, testConfig())
	req := TranscribeRequest{Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")}}

	_, err := o.Transcribe(context.Background(), req)
	if !errors.HasCode(err, errors.ErrCodeProvider) {
		t.Fatalf("expected PROVIDER_ERROR, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed call must not populate the cache, got %d entries", c.Len())
	}

	ft.setErr(nil)
	if _, err := o.Transcribe(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if ft.calls.Load() != 2 || c.Len() != 1 {
		t.Errorf("expected retry to call provider and cache, calls=%d entries=%d", ft.calls.Load(), c.Len())
	}
}

func TestTranscribe_ProviderAppErrorPassesThrough(t *testing.T) {
	ft := &fakeTranscriber{}
	ft.setErr(errors.RateLimited("fake"))
	o := newTestOrchestrator(t, Deps{Transcriber: ft}, testConfig())

	_, err := o.Transcribe(context.Background(), TranscribeRequest{
		Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")},
	})
	if !errors.HasCode(err, errors.ErrCodeRateLimited) {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
}

func TestTranscribe_ForceReruns(t *testing.T) {
	ft := &fakeTranscriber{}
	c := newTestCache(t)
	o := newTestOrchestrator(t, Deps{Transcriber: ft, Cache: c}, testConfig())
	req := TranscribeRequest{Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")}}

	first, _ := o.Transcribe(context.Background(), req)
	req.Force = true
	forced, err := o.Transcribe(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if ft.calls.Load() != 2 {
		t.Fatalf("expected forced re-run, got %d calls", ft.calls.Load())
	}
	if forced.Text == first.Text {
		t.Error("expected a fresh result")
	}

	req.Force = false
	cached, _ := o.Transcribe(context.Background(), req)
	if cached.Text != forced.Text {
		t.Errorf("expected cache to hold the forced result, got %q", cached.Text)
	}
}

func TestTranscribe_SettingsChangeCacheKey(t *testing.T) {
	ft := &fakeTranscriber{}
	o := newTestOrchestrator(t, Deps{Transcriber: ft, Cache: newTestCache(t)}, testConfig())
	path := writeAudio(t, "a.wav")

	_, _ = o.Transcribe(context.Background(), TranscribeRequest{Request: transcription.Request{AudioPath: path, Language: "pt"}})
	_, _ = o.Transcribe(context.Background(), TranscribeRequest{Request: transcription.Request{AudioPath: path, Language: "en"}})
	_, _ = o.Transcribe(context.Background(), TranscribeRequest{Request: transcription.Request{AudioPath: path, SpeakerLabels: true}})
	if ft.calls.Load() != 3 {
		t.Errorf("expected 3 provider calls for 3 settings, got %d", ft.calls.Load())
	}
}

func TestTranscribe_DefaultLanguage(t *testing.T) {
	ft := &fakeTranscriber{}
	o := newTestOrchestrator(t, Deps{Transcriber: ft}, testConfig())

	res, err := o.Transcribe(context.Background(), TranscribeRequest{
		Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := ft.lastRequest().Language; got != "pt" {
		t.Errorf("expected default language pt, got %q", got)
	}
	if res.Language != "pt" {
		t.Errorf("expected result language pt, got %q", res.Language)
	}
}

func TestTranscribe_InvalidInput(t *testing.T) {
	ft := &fakeTranscriber{}
	o := newTestOrchestrator(t, Deps{Transcriber: ft}, testConfig())
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	_ = os.WriteFile(txt, []byte("x"), 0o644)

	tests := []struct {
		name string
		req  transcription.Request
		code errors.ErrorCode
	}{
		{"missing path", transcription.Request{}, errors.ErrCodeInvalidInput},
		{"negative speakers", transcription.Request{AudioPath: writeAudio(t, "a.wav"), SpeakersExpected: -1}, errors.ErrCodeInvalidInput},
		{"unsupported extension", transcription.Request{AudioPath: txt}, errors.ErrCodeInvalidInput},
		{"missing file", transcription.Request{AudioPath: filepath.Join(dir, "gone.wav")}, errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Transcribe(context.Background(), TranscribeRequest{Request: tt.req})
			if !errors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
	if ft.calls.Load() != 0 {
		t.Errorf("invalid requests must not reach the provider, got %d calls", ft.calls.Load())
	}
}

func TestTranscribe_RateLimitWaitCancelled(t *testing.T) {
	ft := &fakeTranscriber{}
	cfg := testConfig()
	cfg.RateLimits["fake"] = RateLimit{Capacity: 1, RefillRate: 0.001}
	o := newTestOrchestrator(t, Deps{Transcriber: ft}, cfg)
	req := TranscribeRequest{Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")}}

	if _, err := o.Transcribe(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := o.Transcribe(ctx, req)
	if !errors.HasCode(err, errors.ErrCodeCancelled) {
		t.Fatalf("expected CANCELLED while waiting for a token, got %v", err)
	}
	if ft.calls.Load() != 1 {
		t.Errorf("cancelled wait must not reach the provider, got %d calls", ft.calls.Load())
	}
}

func TestTranscribe_SharedLimiterAcrossRequests(t *testing.T) {
	ft := &fakeTranscriber{}
	cfg := testConfig()
	cfg.RateLimits["fake"] = RateLimit{Capacity: 2, RefillRate: 0.001}
	o := newTestOrchestrator(t, Deps{Transcriber: ft}, cfg)

	l, ok := o.Limiters().Lookup("fake")
	if !ok {
		t.Fatal("expected limiter for provider fake")
	}
	_, _ = o.Transcribe(context.Background(), TranscribeRequest{Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")}})
	_, _ = o.Transcribe(context.Background(), TranscribeRequest{Request: transcription.Request{AudioPath: writeAudio(t, "b.wav")}})
	if l.TryConsume(1) {
		t.Error("expected both calls to draw from the same bucket")
	}
}

func waitForJob(t *testing.T, o *Orchestrator, id string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := o.Job(id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.Done() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return Job{}
}

func TestSubmit_JobLifecycle(t *testing.T) {
	ft := &fakeTranscriber{}
	o := newTestOrchestrator(t, Deps{Transcriber: ft, Cache: newTestCache(t)}, testConfig())
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer o.Stop(context.Background())

	job, err := o.Submit(context.Background(), TranscribeRequest{
		Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if job.ID == "" || job.Status != JobQueued {
		t.Fatalf("unexpected queued job %+v", job)
	}
	if job.Request.Language != "pt" {
		t.Errorf("expected submitted request to carry default language, got %q", job.Request.Language)
	}

	done := waitForJob(t, o, job.ID)
	if done.Status != JobSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", done.Status, done.Error)
	}
	if done.Result == nil || done.Result.Text == "" {
		t.Error("expected job result")
	}
	if done.StartedAt == nil || done.FinishedAt == nil {
		t.Error("expected start and finish timestamps")
	}

	jobs := o.Jobs()
	if len(jobs) != 1 || jobs[0].ID != job.ID {
		t.Errorf("expected Jobs to list the job, got %+v", jobs)
	}
}

func TestSubmit_FailedJobRecordsError(t *testing.T) {
	ft := &fakeTranscriber{}
	ft.setErr(stderrors.New("boom"))
	o := newTestOrchestrator(t, Deps{Transcriber: ft}, testConfig())
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer o.Stop(context.Background())

	job, err := o.Submit(context.Background(), TranscribeRequest{
		Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")},
	})
	if err != nil {
		t.Fatal(err)
	}
	done := waitForJob(t, o, job.ID)
	if done.Status != JobFailed || done.ErrorCode != errors.ErrCodeProvider {
		t.Errorf("expected failed PROVIDER_ERROR job, got %s %s", done.Status, done.ErrorCode)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	o := newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}}, testConfig())

	_, err := o.Submit(context.Background(), TranscribeRequest{
		Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")},
	})
	if !errors.HasCode(err, errors.ErrCodeUsage) {
		t.Errorf("expected USAGE_ERROR before Start, got %v", err)
	}
	if len(o.Jobs()) != 0 {
		t.Error("rejected submission must not be recorded")
	}

	_, err = o.Submit(context.Background(), TranscribeRequest{})
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestStop_DrainsJobs(t *testing.T) {
	ft := &fakeTranscriber{}
	o := newTestOrchestrator(t, Deps{Transcriber: ft}, testConfig())
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	path := writeAudio(t, "a.wav")
	var ids []string
	for i := 0; i < 10; i++ {
		job, err := o.Submit(context.Background(), TranscribeRequest{Request: transcription.Request{AudioPath: path}})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, job.ID)
	}
	if err := o.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if job, _ := o.Job(id); job.Status != JobSucceeded {
			t.Errorf("job %s not drained: %s", id, job.Status)
		}
	}
}

func TestJob_NotFound(t *testing.T) {
	o := newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}}, testConfig())
	if _, err := o.Job("missing"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestAnalyze_RendersTranscript(t *testing.T) {
	gen := &fakeGenerator{}
	o := newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}, Generator: gen}, testConfig())
	result := transcript.New("a.wav", []transcript.Utterance{
		{Speaker: transcript.Ptr("Ana"), Text: "hello"},
		{Speaker: transcript.Ptr("Rui"), Text: "hi"},
	})

	reply, err := o.Analyze(context.Background(), result, "", "Summarise:\n{transcription}")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "reply 1" {
		t.Errorf("unexpected reply %q", reply)
	}
	req := gen.requests[0]
	if req.SystemPrompt != textgen.DefaultSystemPrompt {
		t.Errorf("expected default system prompt, got %q", req.SystemPrompt)
	}
	if req.UserPrompt != "Summarise:\nAna: hello\nRui: hi" {
		t.Errorf("unexpected user prompt %q", req.UserPrompt)
	}
}

func TestAnalyzeText_Chunked(t *testing.T) {
	gen := &fakeGenerator{}
	cfg := testConfig()
	cfg.AnalysisChunkLines = 3
	cfg.AnalysisChunkSize = 20
	o := newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}, Generator: gen}, cfg)

	text := strings.Repeat("A: ten chars\n", 5) + "A: ten chars"
	reply, err := o.AnalyzeText(context.Background(), AnalyzeRequest{Text: text})
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.requests) != 6 {
		t.Fatalf("expected 6 chunk calls, got %d", len(gen.requests))
	}
	if got := strings.Count(reply, "\n") + 1; got != 6 {
		t.Errorf("expected 6 joined replies, got %d in %q", got, reply)
	}

	gen.requests = nil
	o.cfg.AnalysisMaxChunks = 2
	if _, err := o.AnalyzeText(context.Background(), AnalyzeRequest{Text: text}); err != nil {
		t.Fatal(err)
	}
	if len(gen.requests) != 2 {
		t.Errorf("expected chunk cap of 2, got %d calls", len(gen.requests))
	}
}

func TestAnalyzeText_Errors(t *testing.T) {
	o := newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}}, testConfig())
	_, err := o.AnalyzeText(context.Background(), AnalyzeRequest{Text: "x"})
	if !errors.HasCode(err, errors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE without generator, got %v", err)
	}

	o = newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}, Generator: &fakeGenerator{}}, testConfig())
	if _, err := o.AnalyzeText(context.Background(), AnalyzeRequest{}); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for empty text, got %v", err)
	}
}

func TestStreamTranscribe(t *testing.T) {
	m := mock.NewProvider(mock.Config{})
	o := newTestOrchestrator(t, Deps{Transcriber: m, Streamer: m}, testConfig())

	chunks := make(chan []byte, 2)
	chunks <- []byte{1}
	chunks <- []byte{2}
	close(chunks)

	res, err := o.StreamTranscribe(context.Background(), "live.wav", chunks)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Utterances) != 2 {
		t.Fatalf("expected 2 final utterances, got %d", len(res.Utterances))
	}
	want := mock.SamplePhrases[0] + " " + mock.SamplePhrases[1]
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
	if res.AudioFile != "live.wav" || res.ID == "" {
		t.Errorf("unexpected result metadata %+v", res)
	}
}

func TestStreamTranscribe_Unavailable(t *testing.T) {
	o := newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}}, testConfig())
	_, err := o.StreamTranscribe(context.Background(), "", nil)
	if !errors.HasCode(err, errors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	o := newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}}, testConfig())
	if h := o.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before Start, got %s", h.Status)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h := o.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy after Start, got %s (%s)", h.Status, h.Message)
	}
	if err := o.Start(context.Background()); !errors.HasCode(err, errors.ErrCodeUsage) {
		t.Errorf("expected USAGE_ERROR on double start, got %v", err)
	}
	if err := o.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSubmit_NotifiesJobUpdates(t *testing.T) {
	var mu sync.Mutex
	var statuses []JobStatus
	finished := make(chan struct{})
	deps := Deps{
		Transcriber: &fakeTranscriber{},
		OnJobUpdate: func(j Job) {
			mu.Lock()
			statuses = append(statuses, j.Status)
			mu.Unlock()
			if j.Status.Done() {
				close(finished)
			}
		},
	}
	o := newTestOrchestrator(t, deps, testConfig())
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer o.Stop(context.Background())

	if _, err := o.Submit(context.Background(), TranscribeRequest{
		Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")},
	}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []JobStatus{JobQueued, JobRunning, JobSucceeded}
	if len(statuses) != len(want) {
		t.Fatalf("expected %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("update %d: expected %s, got %s", i, want[i], statuses[i])
		}
	}
}

func TestTranscribe_ResultsDoNotShareCachedMemory(t *testing.T) {
	ft := &fakeTranscriber{}
	o := newTestOrchestrator(t, Deps{Transcriber: ft, Cache: newTestCache(t)}, testConfig())
	req := TranscribeRequest{Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")}}

	first, err := o.Transcribe(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	first.Utterances[0].Text = "edited"
	*first.Utterances[1].Speaker = "someone else"

	second, err := o.Transcribe(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if ft.calls.Load() != 1 {
		t.Fatalf("expected a cache hit, provider calls = %d", ft.calls.Load())
	}
	if got := second.Utterances[0].Text; got != "hello" {
		t.Errorf("cached utterance changed through the first result: %q", got)
	}
	if got := second.Utterances[1].SpeakerName(); got != "Speaker B" {
		t.Errorf("cached speaker changed through the first result: %q", got)
	}

	second.Utterances[0].Text = "edited again"
	third, _ := o.Transcribe(context.Background(), req)
	if third.Utterances[0].Text != "hello" {
		t.Errorf("cache hit results share memory: %q", third.Utterances[0].Text)
	}
}

func TestJob_SnapshotsAreIndependent(t *testing.T) {
	o := newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}}, testConfig())
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer o.Stop(context.Background())

	job, err := o.Submit(context.Background(), TranscribeRequest{
		Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")},
	})
	if err != nil {
		t.Fatal(err)
	}
	done := waitForJob(t, o, job.ID)
	done.Result.Utterances[0].Text = "edited"

	again, _ := o.Job(job.ID)
	if again.Result.Utterances[0].Text != "hello" {
		t.Errorf("job result changed through a snapshot: %q", again.Result.Utterances[0].Text)
	}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestSubmit_DropsExpiredJobs(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	cfg := testConfig()
	cfg.JobRetention = time.Hour
	o := newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}}, cfg)
	o.now = clock.Now
	if err := o.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer o.Stop(context.Background())

	submit := func() Job {
		t.Helper()
		job, err := o.Submit(context.Background(), TranscribeRequest{
			Request: transcription.Request{AudioPath: writeAudio(t, "a.wav")},
		})
		if err != nil {
			t.Fatal(err)
		}
		return waitForJob(t, o, job.ID)
	}

	old := submit()
	clock.Advance(30 * time.Minute)
	recent := submit()

	clock.Advance(45 * time.Minute)
	latest := submit()

	if _, err := o.Job(old.ID); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected job finished 75m ago to be dropped, got %v", err)
	}
	for _, j := range []Job{recent, latest} {
		if _, err := o.Job(j.ID); err != nil {
			t.Errorf("job %s within retention was dropped: %v", j.ID, err)
		}
	}
	if n := len(o.Jobs()); n != 2 {
		t.Errorf("expected 2 retained jobs, got %d", n)
	}
}

func TestSubmit_KeepsUnfinishedJobs(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	cfg := testConfig()
	cfg.JobRetention = time.Minute
	o := newTestOrchestrator(t, Deps{Transcriber: &fakeTranscriber{}}, cfg)
	o.now = clock.Now

	o.jobs["running"] = &Job{ID: "running", Status: JobRunning, CreatedAt: clock.Now()}
	clock.Advance(time.Hour)

	o.jobsMu.Lock()
	n := o.pruneJobsLocked()
	o.jobsMu.Unlock()
	if n != 0 {
		t.Errorf("pruned %d unfinished jobs", n)
	}
}
