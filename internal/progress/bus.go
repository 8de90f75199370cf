// Package progress publishes per-session pipeline events to listening
// clients. Delivery is best effort: a slow listener loses events, the
// pipeline never blocks on one.
package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/model"
)

// EventType names the events a search session can emit.
type EventType string

const (
	EventStage            EventType = "stage"
	EventPartialResults   EventType = "partial_results"
	EventRefreshAvailable EventType = "refresh_available"
	EventError            EventType = "error"
	EventComplete         EventType = "complete"
)

// Event is one progress notification for one session.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Seq       int         `json:"seq"`
	Stage     model.Stage `json:"stage,omitempty"`
	Source    string      `json:"source,omitempty"`
	Count     int         `json:"count,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	Message   string      `json:"message,omitempty"`
	At        time.Time   `json:"at"`
}

// Terminal reports whether no further events can follow.
func (e Event) Terminal() bool {
	return e.Type == EventError || e.Type == EventComplete
}

const subscriberBuffer = 64

type stream struct {
	mu          sync.Mutex
	seq         int
	closed      bool
	subscribers map[int]chan Event
	nextSubID   int

	partialCount int
	lastPartial  time.Time
}

// Bus fans events out to session subscribers. Events within one
// session are sequenced; cross-session ordering is not defined.
type Bus struct {
	mu      sync.Mutex
	streams map[string]*stream

	maxPartials     int
	partialInterval time.Duration
	nowFunc         func() time.Time
}

func NewBus(maxPartials int) *Bus {
	if maxPartials <= 0 {
		maxPartials = 10
	}
	return &Bus{
		streams:         map[string]*stream{},
		maxPartials:     maxPartials,
		partialInterval: 300 * time.Millisecond,
		nowFunc:         time.Now,
	}
}

// Open registers a session before its pipeline starts emitting.
func (b *Bus) Open(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[sessionID]; !ok {
		b.streams[sessionID] = &stream{subscribers: map[int]chan Event{}}
	}
}

// Known reports whether the session has an open stream.
func (b *Bus) Known(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.streams[sessionID]
	return ok
}

// Subscribe attaches a listener to a session. The returned cancel
// function must be called when the listener goes away. Subscribing to
// an unknown session returns a nil channel.
func (b *Bus) Subscribe(sessionID string) (<-chan Event, func()) {
	b.mu.Lock()
	s, ok := b.streams[sessionID]
	b.mu.Unlock()
	if !ok {
		return nil, func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// Late subscriber to a finished session gets an immediately
		// closed channel, not a hang.
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, subscriberBuffer)
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
}

// PublishStage announces the pipeline stage the session reached.
func (b *Bus) PublishStage(sessionID string, stage model.Stage) {
	b.publish(sessionID, Event{Type: EventStage, Stage: stage})
}

// PublishPartial announces early results from one source. Calls are
// debounced: at most maxPartials per session, spaced by a minimum
// interval, so a chatty source cannot flood listeners.
func (b *Bus) PublishPartial(sessionID, source string, count int) {
	b.mu.Lock()
	s, ok := b.streams[sessionID]
	b.mu.Unlock()
	if !ok {
		return
	}

	now := b.nowFunc()
	s.mu.Lock()
	if s.partialCount >= b.maxPartials ||
		(s.partialCount > 0 && now.Sub(s.lastPartial) < b.partialInterval) {
		s.mu.Unlock()
		return
	}
	s.partialCount++
	s.lastPartial = now
	s.mu.Unlock()

	b.publish(sessionID, Event{Type: EventPartialResults, Source: source, Count: count})
}

// PublishRefreshAvailable tells cache-first listeners that the
// detached live fetch finished and fresher data can be re-requested.
func (b *Bus) PublishRefreshAvailable(sessionID string) {
	b.publish(sessionID, Event{Type: EventRefreshAvailable})
}

// PublishError emits the terminal failure event and closes the stream.
func (b *Bus) PublishError(sessionID string, code model.ErrorCode, message string) {
	b.publish(sessionID, Event{Type: EventError, ErrorCode: string(code), Message: message})
	b.closeStream(sessionID)
}

// PublishComplete emits the terminal success event and closes the stream.
func (b *Bus) PublishComplete(sessionID string, count int) {
	b.publish(sessionID, Event{Type: EventComplete, Count: count})
	b.closeStream(sessionID)
}

func (b *Bus) publish(sessionID string, ev Event) {
	b.mu.Lock()
	s, ok := b.streams[sessionID]
	b.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.seq++
	ev.Seq = s.seq
	ev.SessionID = sessionID
	ev.At = b.nowFunc()

	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Listener buffer full; the event is lost for that
			// listener only.
			zap.L().Debug("progress event dropped",
				zap.String("session_id", sessionID),
				zap.String("type", string(ev.Type)))
		}
	}
}

func (b *Bus) closeStream(sessionID string) {
	b.mu.Lock()
	s, ok := b.streams[sessionID]
	if ok {
		delete(b.streams, sessionID)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}
