package sse

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/automeet/logger"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logger.Nop())
	c := NewComponent(hub)
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return hub
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e, ok := <-c.Events():
		if !ok {
			t.Fatal("channel closed")
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestEventWriteTo(t *testing.T) {
	var buf bytes.Buffer
	if _, err := (Event{Type: EventJob, Data: []byte("a\nb")}).WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "event: job\ndata: a\ndata: b\n\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()
	_, _ = (Event{Data: []byte("{}")}).WriteTo(&buf)
	if got := buf.String(); got != "data: {}\n\n" {
		t.Errorf("unnamed event = %q", got)
	}
}

func TestHubPublishMatchesPattern(t *testing.T) {
	hub := startHub(t)
	a := NewClient("job:1:x")
	b := NewClient("job:2:y")
	hub.Register(a)
	hub.Register(b)
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.Publish("job:1:*", Event{Type: EventJob, Data: []byte("one")})
	if e := receive(t, a); string(e.Data) != "one" {
		t.Errorf("a got %q", e.Data)
	}
	select {
	case e := <-b.Events():
		t.Errorf("b should not receive job 1 events, got %q", e.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	hub := startHub(t)
	c := NewClient("job:1:x")
	hub.Register(c)
	hub.Unregister(c)

	select {
	case _, ok := <-c.Events():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected no clients, got %d", hub.ClientCount())
	}
}

func TestHubDuplicateIDReplacesClient(t *testing.T) {
	hub := startHub(t)
	first := NewClient("job:1:x")
	second := NewClient("job:1:x")
	hub.Register(first)
	hub.Register(second)

	if _, ok := <-first.Events(); ok {
		t.Error("replaced client should be closed")
	}
	hub.Unregister(first)
	hub.Publish("job:1:*", Event{Data: []byte("still here")})
	if e := receive(t, second); string(e.Data) != "still here" {
		t.Errorf("got %q", e.Data)
	}
}

func TestHubSlowClientDropsEvents(t *testing.T) {
	hub := startHub(t)
	c := NewClient("job:1:x")
	hub.Register(c)
	for range clientBuffer + 10 {
		hub.Publish("job:1:*", Event{Data: []byte("x")})
	}
	waitFor(t, func() bool { return len(c.events) == clientBuffer })
}

func TestHubStopClosesClientsAndUnblocks(t *testing.T) {
	hub := NewHub(logger.Nop())
	comp := NewComponent(hub)
	if err := comp.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := NewClient("job:1:x")
	hub.Register(c)
	if err := comp.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-c.Events(); ok {
		t.Error("expected closed channel after stop")
	}

	done := make(chan struct{})
	go func() {
		hub.Publish("*", Event{})
		late := NewClient("late")
		hub.Register(late)
		hub.Unregister(late)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("calls on a stopped hub should not block")
	}
	if err := comp.Start(context.Background()); err == nil {
		t.Error("expected restart to fail")
	}
}

func TestServeStreamsUntilFinal(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Serve(hub, w, r, "job:7:client", ServeOptions{
			Initial: func() []Event { return []Event{{Type: EventJob, Data: []byte(`{"status":"queued"}`)}} },
		})
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if line == "\n" {
				return strings.Join(lines, "")
			}
			lines = append(lines, line)
		}
	}

	if got := readEvent(); !strings.HasPrefix(got, "event: connected\n") {
		t.Errorf("first event = %q", got)
	}
	if got := readEvent(); !strings.Contains(got, `"status":"queued"`) {
		t.Errorf("initial event = %q", got)
	}

	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	hub.Publish("job:7:*", Event{Type: EventJob, Data: []byte(`{"status":"succeeded"}`), Final: true})
	if got := readEvent(); !strings.Contains(got, `"status":"succeeded"`) {
		t.Errorf("final event = %q", got)
	}
	if _, err := reader.ReadString('\n'); err == nil {
		t.Error("stream should end after the final event")
	}
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestServeFinalInitialEventEndsAtOnce(t *testing.T) {
	hub := startHub(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Serve(hub, rec, req, "job:8:client", ServeOptions{
		Initial: func() []Event { return []Event{{Type: EventJob, Data: []byte("done"), Final: true}} },
	})
	if body := rec.Body.String(); !strings.Contains(body, "data: done\n") {
		t.Errorf("body = %q", body)
	}
}
