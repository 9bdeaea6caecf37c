package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sweep lifecycle topics.
const (
	SweepStarted  = "sweep.started"
	SweepFinished = "sweep.finished"
	SweepFailed   = "sweep.failed"
	ConfigApplied = "config.applied"
)

// Event is a small in-process signal.
//
// Publish never blocks: subscribers get buffered channels and a slow
// subscriber simply misses events.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// SweepInfo is the Data payload of sweep.* events.
type SweepInfo struct {
	RunID    string
	Mode     string
	Due      int
	Sent     int
	Failed   int
	Duration time.Duration
	Err      string
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// A concurrent unsubscribe may close ch under us.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}
