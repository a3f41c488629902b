package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/automeet/component"
	"github.com/kbukum/automeet/config"
	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/orchestrator"
	"github.com/kbukum/automeet/transcript"
	"github.com/kbukum/automeet/transcription"
	"github.com/kbukum/automeet/transcription/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockComponent struct {
	name     string
	startErr error
	health   component.Health
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(context.Context) error {
	m.started = true
	return m.startErr
}
func (m *mockComponent) Stop(context.Context) error {
	m.stopped = true
	return nil
}
func (m *mockComponent) Health(context.Context) component.Health { return m.health }

// plainTranscriber has no streaming support.
type plainTranscriber struct{}

func (plainTranscriber) Name() string                     { return "plain" }
func (plainTranscriber) IsAvailable(context.Context) bool { return true }
func (plainTranscriber) Transcribe(context.Context, transcription.Request) (*transcript.Result, error) {
	return &transcript.Result{Text: "plain"}, nil
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{}
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

func newTestApp(t *testing.T, cfg *config.AppConfig, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop()), WithGracefulTimeout(5 * time.Second)}, opts...)
	app, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return app
}

func audioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.wav")
	if err := os.WriteFile(path, []byte("RIFF fake audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestNewWiresDefaults(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	if app.Name != config.DefaultServiceName {
		t.Errorf("name = %q", app.Name)
	}
	if app.Orchestrator == nil || app.Cache == nil {
		t.Fatal("orchestrator and cache should be wired")
	}
	if app.Server != nil {
		t.Error("server should be nil when disabled")
	}
	if app.Components.Get("orchestrator") == nil {
		t.Error("orchestrator should be a registered component")
	}
	names := app.Limiters.Names()
	for _, want := range []string{"mock", "null"} {
		if !slices.Contains(names, want) {
			t.Errorf("limiters %v missing %q", names, want)
		}
	}
}

func TestNewCacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = false
	app := newTestApp(t, cfg)
	if app.Cache != nil {
		t.Error("cache should be nil when disabled")
	}
}

func TestNewEncryptedCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.EncryptionKey = "meeting-secret"
	cfg.Cache.EncryptionAlgorithm = "chacha20-poly1305"
	app := newTestApp(t, cfg)
	path := audioFile(t)

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		_, err := app.Orchestrator.Transcribe(ctx, orchestrator.TranscribeRequest{Request: transcription.Request{AudioPath: path}})
		return err
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	entries, _ := os.ReadDir(cfg.Cache.Dir)
	if len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".enc" {
		t.Fatalf("expected one sealed entry, got %v", entries)
	}
	raw, _ := os.ReadFile(filepath.Join(cfg.Cache.Dir, entries[0].Name()))
	if strings.Contains(string(raw), "Speaker") || json.Valid(raw) {
		t.Error("cache entry was written in the clear")
	}
}

func TestNewMediaExtraction(t *testing.T) {
	cfg := testConfig(t)
	cfg.Media.Enabled = true
	cfg.Media.FFmpeg = "automeet-missing-ffmpeg"
	app := newTestApp(t, cfg)

	if !slices.Contains(app.Orchestrator.Config().AllowedExtensions, "mkv") {
		t.Errorf("expected video extensions, got %v", app.Orchestrator.Config().AllowedExtensions)
	}
}

func TestNewRejectsConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.AppConfig)
		opts   []Option
	}{
		{"bad environment", func(c *config.AppConfig) { c.Environment = "qa" }, nil},
		{"unknown cipher", func(c *config.AppConfig) {
			c.Cache.EncryptionKey = "k"
			c.Cache.EncryptionAlgorithm = "rot13"
		}, nil},
		{"unknown transcriber", func(c *config.AppConfig) { c.Providers.Transcription = "nope" }, nil},
		{"unknown generator", func(c *config.AppConfig) { c.Providers.TextGeneration = "nope" }, nil},
		{"bad provider settings", func(c *config.AppConfig) {
			c.Providers.Settings = map[string]any{"mock": map[string]any{"delay": "soon"}}
		}, nil},
		{"streamer without streaming", func(c *config.AppConfig) { c.Providers.Streaming = "plain" }, []Option{
			WithTranscriptionFactory("plain", func(map[string]any) (transcription.Provider, error) {
				return plainTranscriber{}, nil
			}),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			opts := append([]Option{WithLogger(logger.Nop())}, tt.opts...)
			_, err := New(context.Background(), cfg, opts...)
			if !errors.HasCode(err, errors.ErrCodeConfigInvalid) {
				t.Fatalf("expected CONFIG_INVALID, got %v", err)
			}
		})
	}
}

func TestNewAssemblyAIProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Transcription = "assemblyai"
	cfg.Providers.Settings = map[string]any{"assemblyai": map[string]any{"api_key": "aai-key"}}
	app := newTestApp(t, cfg)

	if !slices.Contains(app.Limiters.Names(), "assemblyai") {
		t.Errorf("limiters %v missing assemblyai", app.Limiters.Names())
	}
	if got := app.Orchestrator.Health(context.Background()).Details["transcriber"]; got != "assemblyai" {
		t.Errorf("transcriber = %v", got)
	}

	cfg = testConfig(t)
	cfg.Providers.Streaming = "assemblyai"
	if _, err := New(context.Background(), cfg, WithLogger(logger.Nop())); !errors.HasCode(err, errors.ErrCodeConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID for batch-only streaming provider, got %v", err)
	}
}

func TestNewStreamingProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Streaming = mock.ProviderName
	app := newTestApp(t, cfg)

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		chunks := make(chan []byte, 2)
		chunks <- []byte("one")
		chunks <- []byte("two")
		close(chunks)
		res, err := app.Orchestrator.StreamTranscribe(ctx, "live", chunks)
		if err != nil {
			return err
		}
		if res.Text == "" {
			return fmt.Errorf("empty streaming transcript")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
}

func TestRunTaskTranscribesAndCaches(t *testing.T) {
	provider := mock.NewProvider(mock.Config{})
	app := newTestApp(t, testConfig(t), WithTranscriptionFactory(mock.ProviderName,
		func(map[string]any) (transcription.Provider, error) { return provider, nil }))
	path := audioFile(t)

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		req := orchestrator.TranscribeRequest{Request: transcription.Request{AudioPath: path}}
		for range 2 {
			res, err := app.Orchestrator.Transcribe(ctx, req)
			if err != nil {
				return err
			}
			if len(res.Utterances) == 0 {
				return fmt.Errorf("empty transcript")
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if got := provider.Calls(); got != 1 {
		t.Errorf("provider calls = %d, want 1 (second call cached)", got)
	}
	entries, err := os.ReadDir(app.Cfg.Cache.Dir)
	if err != nil || len(entries) == 0 {
		t.Errorf("expected a persisted cache entry, got %d (%v)", len(entries), err)
	}
}

func TestRunTaskReturnsTaskError(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	err := app.RunTask(context.Background(), func(context.Context) error {
		return fmt.Errorf("task error")
	})
	if err == nil || err.Error() != "task error" {
		t.Fatalf("expected task error, got %v", err)
	}
}

func TestRunTaskCancellation(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())

	err := app.RunTask(ctx, func(taskCtx context.Context) error {
		cancel()
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if err == nil {
		t.Error("expected error from cancelled task")
	}
}

func TestRunTaskHookOrder(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	comp := &mockComponent{name: "extra", health: component.Health{Name: "extra", Status: component.StatusHealthy}}
	if err := app.RegisterComponent(comp); err != nil {
		t.Fatalf("RegisterComponent: %v", err)
	}

	var order []string
	record := func(name string) Hook {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	app.OnStart(record("start"))
	app.OnReady(record("ready"))
	app.OnStop(record("stop"))

	err := app.RunTask(context.Background(), func(context.Context) error {
		order = append(order, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if want := []string{"start", "ready", "task", "stop"}; !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if !comp.started || !comp.stopped {
		t.Errorf("component started=%v stopped=%v", comp.started, comp.stopped)
	}
}

func TestRunTaskStartHookErrorStopsComponents(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	comp := &mockComponent{name: "extra", health: component.Health{Name: "extra", Status: component.StatusHealthy}}
	_ = app.RegisterComponent(comp)
	app.OnStart(func(context.Context) error { return fmt.Errorf("boom") })

	ran := false
	err := app.RunTask(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected hook error, got %v", err)
	}
	if ran {
		t.Error("task should not run after a failed start hook")
	}
	if !comp.stopped {
		t.Error("started components should be stopped")
	}
}

func TestRunTaskComponentStartError(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	_ = app.RegisterComponent(&mockComponent{name: "broken", startErr: fmt.Errorf("no disk")})

	err := app.RunTask(context.Background(), func(context.Context) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "no disk") {
		t.Fatalf("expected start error, got %v", err)
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	_ = app.RegisterComponent(&mockComponent{
		name:   "store",
		health: component.Health{Name: "store", Status: component.StatusDegraded, Message: "slow"},
	})

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		err := app.ReadyCheck(ctx)
		if err == nil {
			return fmt.Errorf("expected ready check error")
		}
		if !strings.Contains(err.Error(), "store=degraded(slow)") {
			return fmt.Errorf("unexpected ready check error: %v", err)
		}
		if strings.Contains(err.Error(), "orchestrator") {
			return fmt.Errorf("running orchestrator reported unhealthy: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSummary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Enabled = true
	app := newTestApp(t, cfg)

	s := app.Summary(context.Background(), 1500*time.Millisecond)
	out := s.String()
	for _, want := range []string{"automeet", "1.5s", "transcription", "mock", "orchestrator", "POST /v1/transcriptions", "GET /health"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRunServesHTTP(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Enabled = true
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	app := newTestApp(t, cfg)

	ready := make(chan string, 1)
	app.OnReady(func(context.Context) error {
		ready <- app.Server.Addr()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var body struct {
		Status     string             `json:"status"`
		Components []component.Health `json:"components"`
	}
	err = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != string(component.StatusHealthy) {
		t.Errorf("health = %d %+v", resp.StatusCode, body)
	}
	if len(body.Components) != 3 {
		t.Errorf("expected orchestrator, sse and http-server, got %+v", body.Components)
	}
	if app.Events == nil || app.Components.Get("sse") == nil {
		t.Error("job event hub should be wired with the server")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRegistersComponentLoggers(t *testing.T) {
	var buf strings.Builder
	cfg := testConfig(t)
	cfg.Logging.Components = map[string]string{"cache": "error"}
	newTestApp(t, cfg, WithLogger(logger.NewWithWriter(&buf, "automeet")))
	buf.Reset()

	logger.Get("cache").Warn("below the cache level")
	if buf.Len() != 0 {
		t.Fatalf("expected cache warning to be dropped, got %s", buf.String())
	}
	logger.Get("streaming").Warn("session dropped")
	if !strings.Contains(buf.String(), `"component":"streaming"`) {
		t.Errorf("expected streaming logger to write to the app logger, got %s", buf.String())
	}
}
