package monitor

import (
	"context"
	"testing"
	"time"
)

func TestSamplerSnapshot(t *testing.T) {
	s := NewSampler(10 * time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	m := s.Snapshot()
	if m.Goroutines <= 0 {
		t.Errorf("goroutines = %d, want > 0", m.Goroutines)
	}
	if m.Memory <= 0 {
		t.Errorf("memory = %d, want > 0", m.Memory)
	}
	if m.HeapAlloc == 0 {
		t.Error("heap alloc must be populated")
	}
}

func TestSamplerPeaks(t *testing.T) {
	s := NewSampler(10 * time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(30 * time.Millisecond)

	current := s.Snapshot()
	peaks := s.Peaks()
	if peaks.Memory < current.Memory/2 {
		t.Errorf("peak memory %d implausibly below current %d", peaks.Memory, current.Memory)
	}
	if peaks.Goroutines <= 0 {
		t.Errorf("peak goroutines = %d", peaks.Goroutines)
	}
}

func TestSamplerStopTwiceSafe(t *testing.T) {
	s := NewSampler(time.Millisecond)
	s.Start(context.Background())
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Stop blocked")
	}
}
