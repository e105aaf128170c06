package utils

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSeenSetNoDuplicates(t *testing.T) {
	s := NewSeenSet()

	added := s.Add("SKU-1")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("SKU-1")
	if added {
		t.Error("second Add of same key should return false")
	}

	if !s.Contains("SKU-1") {
		t.Error("Contains should report an added key")
	}
	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
}

func TestSeenSetConcurrency(t *testing.T) {
	s := NewSeenSet()
	var added int64

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("same-sku") {
				atomic.AddInt64(&added, 1)
			}
		}()
	}
	wg.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestPacerEnforcesInterval(t *testing.T) {
	interval := 100 * time.Millisecond
	p := NewPacer(interval)

	var timestamps []time.Time
	for i := 0; i < 3; i++ {
		p.Wait()
		timestamps = append(timestamps, time.Now())
	}

	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		if gap < interval {
			t.Errorf("gap between call %d and %d: %v < minimum %v", i-1, i, gap, interval)
		}
	}
}

func TestPacerFirstCallImmediate(t *testing.T) {
	p := NewPacer(time.Second)

	start := time.Now()
	p.Wait()
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait blocked for %v; should return immediately", elapsed)
	}
}
