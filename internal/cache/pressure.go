package cache

import (
	"context"
	"runtime"
	"sync"
	"time"
)

const DefaultCheckInterval = 10 * time.Second

type Purger interface {
	Purge()
}

// PressureMonitor purges its targets when the heap grows past a limit.
// It owns one goroutine between Start and Close.
type PressureMonitor struct {
	limit   uint64
	heap    func() uint64
	targets []Purger
	onPurge func(heap uint64)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPressureMonitor(limitBytes uint64, onPurge func(heap uint64), targets ...Purger) *PressureMonitor {
	return &PressureMonitor{limit: limitBytes, heap: heapAlloc, targets: targets, onPurge: onPurge}
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// Check purges every target when the heap is above the limit and reports
// whether it did. A zero limit disables the monitor.
func (p *PressureMonitor) Check() bool {
	if p.limit == 0 {
		return false
	}
	h := p.heap()
	if h <= p.limit {
		return false
	}
	for _, t := range p.targets {
		t.Purge()
	}
	if p.onPurge != nil {
		p.onPurge(h)
	}
	return true
}

func (p *PressureMonitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Check()
			}
		}
	}(p.done)
}

func (p *PressureMonitor) Close() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
