package assemblyai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/transcription"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "standup.mp3")
	if err := os.WriteFile(p, []byte("ID3-fake-audio"), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

// fakeAPI serves upload, create and poll. The transcript completes after
// pending polls.
type fakeAPI struct {
	t       *testing.T
	pending int32
	polls   atomic.Int32
	final   map[string]any

	mu      sync.Mutex
	created transcriptRequest
}

func (f *fakeAPI) request() transcriptRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if got := r.Header.Get("Authorization"); got != "aai-key" {
		f.t.Errorf("unexpected auth header %q", got)
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload":
		body, _ := io.ReadAll(r.Body)
		if string(body) != "ID3-fake-audio" {
			f.t.Errorf("unexpected upload body %q", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/abc"})
	case r.Method == http.MethodPost && r.URL.Path == "/transcript":
		var req transcriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decode transcript request: %v", err)
		}
		f.mu.Lock()
		f.created = req
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "tx-1", "status": "queued"})
	case r.Method == http.MethodGet && r.URL.Path == "/transcript/tx-1":
		if f.polls.Add(1) <= f.pending {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "tx-1", "status": "processing"})
			return
		}
		_ = json.NewEncoder(w).Encode(f.final)
	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestProvider(url string) *Provider {
	return NewProvider(Config{BaseURL: url + "/", APIKey: "aai-key", PollInterval: time.Millisecond})
}

func TestTranscribe_UploadCreatePoll(t *testing.T) {
	api := &fakeAPI{t: t, pending: 2, final: map[string]any{
		"id":            "tx-1",
		"status":        "completed",
		"text":          "Bom dia. Vamos começar.",
		"language_code": "pt",
		"utterances": []map[string]any{
			{"speaker": "A", "text": "Bom dia.", "start": 250, "end": 1200},
			{"speaker": "B", "text": " Vamos começar. ", "start": 1300, "end": 2750},
		},
	}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	audio := writeAudio(t)
	res, err := newTestProvider(srv.URL).Transcribe(context.Background(), transcription.Request{
		AudioPath:        audio,
		SpeakerLabels:    true,
		SpeakersExpected: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	if created := api.request(); created.AudioURL != "https://cdn.example/abc" || created.LanguageCode != "pt" ||
		!created.SpeakerLabels || created.SpeakersExpected != 2 {
		t.Errorf("unexpected transcript request %+v", created)
	}
	if got := api.polls.Load(); got != 3 {
		t.Errorf("expected 3 polls, got %d", got)
	}
	if len(res.Utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(res.Utterances))
	}
	u := res.Utterances[1]
	if u.SpeakerName() != "Speaker B" || u.Text != "Vamos começar." || *u.Start != 1.3 || *u.End != 2.75 {
		t.Errorf("unexpected utterance %+v", u)
	}
	if res.ID != "tx-1" || res.AudioFile != audio || res.Language != "pt" {
		t.Errorf("unexpected result metadata %+v", res)
	}
}

func TestTranscribe_TextWithoutUtterances(t *testing.T) {
	api := &fakeAPI{t: t, final: map[string]any{"id": "tx-1", "status": "completed", "text": "Only text."}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	res, err := newTestProvider(srv.URL).Transcribe(context.Background(), transcription.Request{AudioPath: writeAudio(t)})
	if err != nil {
		t.Fatal(err)
	}
	if created := api.request(); created.SpeakerLabels || created.SpeakersExpected != 0 {
		t.Errorf("speaker settings sent without speaker labels: %+v", created)
	}
	if len(res.Utterances) != 1 || res.Utterances[0].SpeakerName() != "Speaker 1" || res.Text != "Only text." {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestTranscribe_FailedTranscript(t *testing.T) {
	api := &fakeAPI{t: t, final: map[string]any{"id": "tx-1", "status": "error", "error": "audio too short"}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Transcribe(context.Background(), transcription.Request{AudioPath: writeAudio(t)})
	if !errors.HasCode(err, errors.ErrCodeProvider) || errors.IsRetryable(err) {
		t.Fatalf("expected non-retryable PROVIDER_ERROR, got %v", err)
	}
}

func TestTranscribe_CancelledWhilePolling(t *testing.T) {
	api := &fakeAPI{t: t, pending: 1 << 20}
	srv := httptest.NewServer(api)
	defer srv.Close()

	p := NewProvider(Config{BaseURL: srv.URL, APIKey: "aai-key", PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Transcribe(ctx, transcription.Request{AudioPath: writeAudio(t)})
	if !errors.HasCode(err, errors.ErrCodeCancelled) {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
}

func TestTranscribe_StatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		code      errors.ErrorCode
		retryable bool
	}{
		{http.StatusTooManyRequests, errors.ErrCodeRateLimited, true},
		{http.StatusUnauthorized, errors.ErrCodeProvider, false},
		{http.StatusBadGateway, errors.ErrCodeProvider, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"nope"}`, tt.status)
		}))
		_, err := newTestProvider(srv.URL).Transcribe(context.Background(), transcription.Request{AudioPath: writeAudio(t)})
		srv.Close()
		if !errors.HasCode(err, tt.code) || errors.IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: expected %s retryable=%v, got %v", tt.status, tt.code, tt.retryable, err)
		}
	}
}

func TestTranscribe_NoAPIKey(t *testing.T) {
	p := NewProvider(Config{})
	if p.IsAvailable(context.Background()) {
		t.Error("expected unavailable without API key")
	}
	_, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: writeAudio(t)})
	if !errors.HasCode(err, errors.ErrCodeServiceUnavailable) || errors.IsRetryable(err) {
		t.Fatalf("expected non-retryable SERVICE_UNAVAILABLE, got %v", err)
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	p := NewProvider(Config{APIKey: "aai-key"})
	_, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: filepath.Join(t.TempDir(), "gone.mp3")})
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestFactory(t *testing.T) {
	p, err := Factory()(map[string]any{"api_key": "k", "poll_interval": "2s", "language": "en"})
	if err != nil {
		t.Fatal(err)
	}
	ap := p.(*Provider)
	if ap.cfg.PollInterval != 2*time.Second || ap.cfg.Language != "en" || ap.cfg.BaseURL != defaultBaseURL {
		t.Errorf("unexpected config %+v", ap.cfg)
	}
	if _, err := Factory()(map[string]any{"poll_interval": "soon"}); err == nil {
		t.Error("expected decode error")
	}
}
