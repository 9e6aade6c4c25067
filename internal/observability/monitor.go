package observability

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	slowSpan          = time.Second
	slowFileAverage   = 2 * time.Second
	manySpans         = 10
	memoryGrowthLimit = 50 << 20
	memoryPeakLimit   = 100 << 20
)

type Span struct {
	Name     string        `json:"name"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

type MemoryUsage struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
	Peak  uint64 `json:"peak"`
}

type Report struct {
	Spans           []Span        `json:"spans"`
	Total           time.Duration `json:"total"`
	Memory          MemoryUsage   `json:"memory"`
	Recommendations []string      `json:"recommendations"`
}

// Monitor times the stages of one run. It is created per run and is safe for
// concurrent use by the stages of that run.
type Monitor struct {
	mu      sync.Mutex
	now     func() time.Time
	heap    func() uint64
	started time.Time
	spans   []Span
	memory  MemoryUsage
}

func NewMonitor() *Monitor {
	return newMonitor(time.Now, heapAlloc)
}

func newMonitor(now func() time.Time, heap func() uint64) *Monitor {
	m := &Monitor{now: now, heap: heap, started: now()}
	h := heap()
	m.memory = MemoryUsage{Start: h, End: h, Peak: h}
	return m
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// Start opens a span; the returned func closes it and returns its duration.
func (m *Monitor) Start(name string) func() time.Duration {
	start := m.now()
	return func() time.Duration {
		d := m.now().Sub(start)
		h := m.heap()
		m.mu.Lock()
		defer m.mu.Unlock()
		m.spans = append(m.spans, Span{Name: name, Start: start, Duration: d})
		m.memory.End = h
		if h > m.memory.Peak {
			m.memory.Peak = h
		}
		return d
	}
}

// Timings returns span durations in milliseconds keyed by name.
func (m *Monitor) Timings() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.spans)+1)
	for _, s := range m.spans {
		out[s.Name] += float64(s.Duration.Microseconds()) / 1000
	}
	out["totalMs"] = float64(m.now().Sub(m.started).Microseconds()) / 1000
	return out
}

func (m *Monitor) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	spans := append([]Span(nil), m.spans...)
	r := Report{Spans: spans, Total: m.now().Sub(m.started), Memory: m.memory}
	r.Recommendations = recommendations(spans, m.memory)
	return r
}

func recommendations(spans []Span, mem MemoryUsage) []string {
	out := []string{}
	slow := []string{}
	for _, s := range spans {
		if s.Duration > slowSpan {
			slow = append(slow, s.Name)
		}
	}
	if len(slow) > 0 {
		out = append(out, fmt.Sprintf("%d slow operation(s): %s", len(slow), strings.Join(slow, ", ")))
	}
	if mem.End > mem.Start && mem.End-mem.Start > memoryGrowthLimit {
		out = append(out, fmt.Sprintf("heap grew by %.1fMB", float64(mem.End-mem.Start)/(1<<20)))
	}
	if mem.Peak > mem.Start && mem.Peak-mem.Start > memoryPeakLimit {
		out = append(out, fmt.Sprintf("heap peak %.1fMB above start, lower CHUNK_SIZE", float64(mem.Peak-mem.Start)/(1<<20)))
	}

	var fileTotal time.Duration
	files := 0
	for _, s := range spans {
		if strings.Contains(s.Name, "catalog") || strings.Contains(s.Name, "pdf") {
			fileTotal += s.Duration
			files++
		}
	}
	if files > 0 {
		if avg := fileTotal / time.Duration(files); avg > slowFileAverage {
			out = append(out, fmt.Sprintf("file processing averages %dms", avg.Milliseconds()))
		}
	}
	if len(spans) > manySpans {
		out = append(out, fmt.Sprintf("%d operations in one run, enable the extraction cache", len(spans)))
	}
	return out
}
