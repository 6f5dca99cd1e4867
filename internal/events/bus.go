// Package events provides an in-process pub/sub bus for observing
// conversation runs. Slow subscribers drop events rather than block
// the request path.
package events

import (
	"sync"
	"time"
)

type Kind string

const (
	KindRequestStart    Kind = "request_start"
	KindLLMCall         Kind = "llm_call"
	KindLLMResponse     Kind = "llm_response"
	KindToolCall        Kind = "tool_call"
	KindToolDone        Kind = "tool_done"
	KindRequestComplete Kind = "request_complete"
)

// Event is one observable step of a conversation run.
type Event struct {
	Kind           Kind           `json:"kind"`
	Time           time.Time      `json:"time"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

const subscriberBuffer = 32

// Bus fans events out to subscribers. A nil *Bus is valid and drops
// everything, so callers never need to guard Publish.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel func must
// be called to release it; the channel is closed on cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer
// space. The timestamp is filled in if the caller left it zero.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
