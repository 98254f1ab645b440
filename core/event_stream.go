package core

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"satvault/core/types"
	"satvault/observability"
)

const (
	defaultEventHistoryLimit = 2048
	defaultSubscriberBuffer  = 32
)

// EventStream fans committed ledger events out to subscribers. It keeps a
// bounded history so subscribers can resume from a cursor. Delivery to a
// subscriber whose buffer is full is skipped rather than blocking the ledger.
type EventStream struct {
	mu      sync.Mutex
	limit   int
	history []types.Event
	subs    map[uint64]chan types.Event
	nextID  uint64
	lastSeq uint64
}

// NewEventStream creates a stream retaining up to limit events.
func NewEventStream(limit int) *EventStream {
	if limit <= 0 {
		limit = defaultEventHistoryLimit
	}
	return &EventStream{limit: limit, subs: make(map[uint64]chan types.Event)}
}

func cloneEvent(evt types.Event) types.Event {
	if cloned := evt.Clone(); cloned != nil {
		return *cloned
	}
	return evt
}

// Publish appends events to the history and delivers them to subscribers.
// Events must carry increasing sequence numbers.
func (s *EventStream) Publish(evts ...types.Event) {
	if s == nil || len(evts) == 0 {
		return
	}
	metrics := observability.Events()

	s.mu.Lock()
	for _, evt := range evts {
		s.history = append(s.history, cloneEvent(evt))
		if evt.Sequence > s.lastSeq {
			s.lastSeq = evt.Sequence
		}
	}
	if len(s.history) > s.limit {
		excess := len(s.history) - s.limit
		trimmed := make([]types.Event, s.limit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	subscribers := make([]chan types.Event, 0, len(s.subs))
	for _, ch := range s.subs {
		subscribers = append(subscribers, ch)
	}
	// Delivery happens under the lock so cancel cannot close a channel mid-send.
	for _, evt := range evts {
		metrics.RecordPublished(evt.Type)
		for _, ch := range subscribers {
			select {
			case ch <- cloneEvent(evt):
			default:
				metrics.RecordDropped(evt.Type)
			}
		}
	}
	s.mu.Unlock()
}

// LastSequence returns the highest published sequence number.
func (s *EventStream) LastSequence() uint64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// ParseCursor converts a textual cursor into a sequence number. Empty or
// malformed cursors start from the beginning of the retained history.
func ParseCursor(cursor string) uint64 {
	trimmed := strings.TrimSpace(cursor)
	if trimmed == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// Subscribe registers a subscriber for events published after cursor. The
// returned backlog holds retained events newer than cursor; callers should
// deliver it before reading from the channel. buffer sizes the channel and
// defaults to 32.
func (s *EventStream) Subscribe(ctx context.Context, cursor string, buffer int) (<-chan types.Event, func(), []types.Event) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	updates := make(chan types.Event, buffer)
	since := ParseCursor(cursor)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]types.Event, 0, len(s.history))
	for _, entry := range s.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEvent(entry))
		}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			sub, ok := s.subs[id]
			if ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return updates, cancel, backlog
}
