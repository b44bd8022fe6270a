// Package progress fans experiment progress events out to subscribers of a
// run.
package progress

import (
	"sync"
	"time"
)

const (
	EventTrialCompleted = "trial.completed"
	EventCellCompleted  = "cell.completed"
	EventRunCompleted   = "run.completed"
	EventRunFailed      = "run.failed"
)

type Event struct {
	Type  string         `json:"type"`
	RunID string         `json:"runId"`
	At    time.Time      `json:"at"`
	Data  map[string]any `json:"data,omitempty"`
}

// Terminal reports whether no further events follow e for its run.
func (e Event) Terminal() bool {
	return e.Type == EventRunCompleted || e.Type == EventRunFailed
}

type Broker interface {
	Subscribe(runID string) chan Event
	Unsubscribe(runID string, ch chan Event)
	Publish(runID string, evt Event)
}

// Memory delivers events within the process. Slow subscribers drop events
// rather than block the publisher.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // runID -> set of channels
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Memory) Subscribe(runID string) chan Event {
	ch := make(chan Event, 32)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan Event]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Memory) Unsubscribe(runID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

func (b *Memory) Publish(runID string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
