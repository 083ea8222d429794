// Package monitor samples process runtime metrics for the admin surface.
package monitor

import (
	"context"
	"math"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics is one sample of the process runtime state.
type Metrics struct {
	Memory     int64   `json:"memory"`
	CPU        float64 `json:"cpu"`
	Goroutines int32   `json:"goroutines"`
	HeapAlloc  uint64  `json:"heap_alloc"`
	HeapSys    uint64  `json:"heap_sys"`
	HeapIdle   uint64  `json:"heap_idle"`
	GCCount    uint32  `json:"gc_count"`
	GCPause    uint64  `json:"gc_pause"`
}

// Sampler periodically records runtime metrics and keeps peak values so the
// admin endpoint can report both the current and the worst observed state.
type Sampler struct {
	interval time.Duration

	memory     atomic.Int64
	cpu        atomic.Uint64 // float64 bit pattern
	goroutines atomic.Int32

	peakMemory     atomic.Int64
	peakCPU        atomic.Uint64
	peakGoroutines atomic.Int32

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSampler creates a sampler. Intervals at or below zero fall back to one
// second.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sampler{interval: interval}
}

// Start launches the sampling loop.
func (s *Sampler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.sample()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sample()
			}
		}
	}()
}

// Stop halts the sampling loop.
func (s *Sampler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sampler) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	current := int64(mem.Alloc)
	s.memory.Store(current)
	if current > s.peakMemory.Load() {
		s.peakMemory.Store(current)
	}

	cpu := math.Float64bits(gcCPUFraction(&mem))
	s.cpu.Store(cpu)
	if cpu > s.peakCPU.Load() {
		s.peakCPU.Store(cpu)
	}

	goroutines := int32(runtime.NumGoroutine())
	s.goroutines.Store(goroutines)
	if goroutines > s.peakGoroutines.Load() {
		s.peakGoroutines.Store(goroutines)
	}
}

// gcCPUFraction approximates CPU pressure from the share of wall time spent
// in GC pauses since the last cycle.
func gcCPUFraction(mem *runtime.MemStats) float64 {
	if mem.LastGC == 0 {
		return 0
	}
	sinceGC := time.Since(time.Unix(0, int64(mem.LastGC))).Seconds()
	if sinceGC <= 0 {
		return 0
	}
	return float64(mem.PauseTotalNs) / 1e9 / sinceGC * 100
}

// Snapshot returns the current metrics.
func (s *Sampler) Snapshot() Metrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Metrics{
		Memory:     s.memory.Load(),
		CPU:        math.Float64frombits(s.cpu.Load()),
		Goroutines: s.goroutines.Load(),
		HeapAlloc:  mem.HeapAlloc,
		HeapSys:    mem.HeapSys,
		HeapIdle:   mem.HeapIdle,
		GCCount:    mem.NumGC,
		GCPause:    mem.PauseTotalNs,
	}
}

// Peaks returns the highest values observed since start.
func (s *Sampler) Peaks() Metrics {
	return Metrics{
		Memory:     s.peakMemory.Load(),
		CPU:        math.Float64frombits(s.peakCPU.Load()),
		Goroutines: s.peakGoroutines.Load(),
	}
}
