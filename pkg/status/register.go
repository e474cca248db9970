// Package status holds the process-wide agent activity state.
package status

import (
	"sort"
	"sync"
)

// Status is what the agent is doing right now.
type Status string

const (
	Idle       Status = "idle"
	Thinking   Status = "thinking"
	Generating Status = "generating"
	Recording  Status = "recording"
	Live       Status = "live"
	Error      Status = "error"
)

// Valid reports whether s is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case Idle, Thinking, Generating, Recording, Live, Error:
		return true
	}
	return false
}

// Listener observes a transition. It runs on the writer's goroutine.
type Listener func(prev, next Status)

// Register holds exactly one Status. Set is an unconditional overwrite;
// transition legality is the writer's business.
type Register struct {
	mu        sync.RWMutex
	current   Status
	listeners map[int]Listener
	nextID    int
}

func NewRegister() *Register {
	return &Register{
		current:   Idle,
		listeners: map[int]Listener{},
	}
}

func (r *Register) Get() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Register) Set(s Status) {
	r.mu.Lock()
	prev := r.current
	r.current = s
	ls := r.snapshotLocked()
	r.mu.Unlock()

	for _, l := range ls {
		l(prev, s)
	}
}

// OnChange registers l for every Set, including same-value overwrites.
// The returned func removes it.
func (r *Register) OnChange(l Listener) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Register) snapshotLocked() []Listener {
	if len(r.listeners) == 0 {
		return nil
	}
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.listeners[id])
	}
	return out
}
