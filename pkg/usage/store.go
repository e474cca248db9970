// Package usage keeps an in-memory account of generation calls for the
// current session.
package usage

import (
	"strings"
	"sync"
	"time"
)

type Record struct {
	Timestamp   time.Time     `json:"timestamp"`
	Operation   string        `json:"operation"`
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	Duration    time.Duration `json:"duration"`
	PromptChars int           `json:"prompt_chars"`
	OutputChars int           `json:"output_chars"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
}

type Filter struct {
	Operation string
	Provider  string
	Limit     int
}

type Aggregate struct {
	Calls         int
	Succeeded     int
	Failed        int
	PromptChars   int
	OutputChars   int
	TotalDuration time.Duration
}

// AverageDuration is zero when no calls were made.
func (a Aggregate) AverageDuration() time.Duration {
	if a.Calls == 0 {
		return 0
	}
	return a.TotalDuration / time.Duration(a.Calls)
}

type Store struct {
	mu      sync.RWMutex
	records []Record
	max     int
}

// NewStore keeps at most max records, dropping the oldest. max <= 0 means
// unbounded.
func NewStore(max int) *Store {
	return &Store{
		records: make([]Record, 0, 64),
		max:     max,
	}
}

func (s *Store) Add(r Record) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	if s.max > 0 && len(s.records) > s.max {
		s.records = append(s.records[:0:0], s.records[len(s.records)-s.max:]...)
	}
}

func (s *Store) Last() (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return Record{}, false
	}
	return s.records[len(s.records)-1], true
}

func (s *Store) Query(f Filter) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if f.Operation != "" && r.Operation != f.Operation {
			continue
		}
		if f.Provider != "" && !strings.EqualFold(r.Provider, f.Provider) {
			continue
		}
		out = append(out, r)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

func AggregateRecords(records []Record) Aggregate {
	var agg Aggregate
	for _, r := range records {
		agg.add(r)
	}
	return agg
}

// OperationBreakdown groups records by operation name.
func OperationBreakdown(records []Record) map[string]Aggregate {
	out := map[string]Aggregate{}
	for _, r := range records {
		op := strings.TrimSpace(r.Operation)
		if op == "" {
			op = "unknown"
		}
		agg := out[op]
		agg.add(r)
		out[op] = agg
	}
	return out
}

func (a *Aggregate) add(r Record) {
	a.Calls++
	if r.Success {
		a.Succeeded++
	} else {
		a.Failed++
	}
	a.PromptChars += r.PromptChars
	a.OutputChars += r.OutputChars
	a.TotalDuration += r.Duration
}
