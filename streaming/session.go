package streaming

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
	"github.com/kbukum/automeet/transcript"
)

// DefaultSpeaker labels utterances whose event carried no speaker.
const DefaultSpeaker = transcript.DefaultSpeaker

// ErrSessionClosed is returned by Add after Close.
var ErrSessionClosed = errors.Usage("streaming session is closed")

// State is the lifecycle state of a Session.
type State int

const (
	StateOpen State = iota
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures a Session.
type Option func(*Session)

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithLogger sets the session logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithMetrics counts events into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithNow replaces the clock used for start and close timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session aggregates streaming events. It is safe for one writer and any
// number of concurrent readers.
type Session struct {
	id      string
	now     func() time.Time
	log     *logger.Logger
	metrics *observability.Metrics

	mu        sync.RWMutex
	state     State
	segments  []Event
	partial   *Event
	startedAt time.Time
	closedAt  time.Time
}

// NewSession returns an open, empty session.
func NewSession(opts ...Option) *Session {
	s := &Session{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.log == nil {
		s.log = logger.Get("streaming")
	}
	s.log = s.log.WithFields(logger.Fields(logger.FieldSessionID, s.id))
	s.startedAt = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Add applies e. Final events are appended to the segments and clear the
// partial; non-final events replace the partial.
func (s *Session) Add(e Event) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if e.IsFinal {
		s.segments = append(s.segments, e)
		s.partial = nil
	} else {
		s.partial = &e
	}
	s.mu.Unlock()

	s.metrics.RecordStreamEvent(context.Background(), e.IsFinal)
	return nil
}

// CurrentText returns the final texts joined by a space, followed by the
// pending partial if any.
func (s *Session) CurrentText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := make([]string, 0, len(s.segments)+1)
	for _, seg := range s.segments {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	if s.partial != nil && s.partial.Text != "" {
		parts = append(parts, s.partial.Text)
	}
	return strings.Join(parts, " ")
}

// Segments returns a copy of the final events in arrival order.
func (s *Session) Segments() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.segments))
	copy(out, s.segments)
	return out
}

// Partial returns the pending non-final event, if any.
func (s *Session) Partial() (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.partial == nil {
		return Event{}, false
	}
	return *s.partial, true
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// ClosedAt returns when the session was closed.
func (s *Session) ClosedAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closedAt, s.state == StateClosed
}

// Close moves the session to CLOSED. Closing twice is a usage error.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return errors.Usage("streaming session already closed")
	}
	s.state = StateClosed
	s.closedAt = s.now()
	finals := len(s.segments)
	dropped := s.partial != nil
	s.mu.Unlock()

	s.log.Debug("session closed", logger.Fields(
		"segments", finals,
		"partial_pending", dropped,
		"duration_ms", s.closedAt.Sub(s.startedAt).Milliseconds(),
	))
	return nil
}

// ToTranscriptionResult converts the final segments into a transcript. The
// pending partial is not part of the result.
func (s *Session) ToTranscriptionResult(audioFile string) transcript.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	utterances := make([]transcript.Utterance, 0, len(s.segments))
	for _, seg := range s.segments {
		speaker := DefaultSpeaker
		if seg.Speaker != nil && *seg.Speaker != "" {
			speaker = *seg.Speaker
		}
		utterances = append(utterances, transcript.Utterance{
			Speaker: transcript.Ptr(speaker),
			Text:    seg.Text,
			Start:   seg.StartTime,
			End:     seg.EndTime,
		})
	}
	r := transcript.New(audioFile, utterances)
	r.ID = s.id
	return r
}

// Consume adds events from ch until ch is closed or ctx ends. It does not
// close the session.
func (s *Session) Consume(ctx context.Context, ch <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return errors.Cancelled("streaming session "+s.id, ctx.Err())
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			if err := s.Add(e); err != nil {
				return err
			}
		}
	}
}
