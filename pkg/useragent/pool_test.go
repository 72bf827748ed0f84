package useragent

import (
	"sync"
	"testing"
)

func TestPool_Next(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})

	for i, want := range []string{"A", "B", "C", "A"} {
		if got := p.Next(); got != want {
			t.Errorf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPool_Default(t *testing.T) {
	for _, in := range [][]string{nil, {"", "  "}} {
		p := NewPool(in)
		if p.Len() != len(Desktop) {
			t.Errorf("expected pool length %d, got %d", len(Desktop), p.Len())
		}
		if got := p.Next(); got != Desktop[0] {
			t.Errorf("expected %s, got %s", Desktop[0], got)
		}
	}
}

func TestPool_TrimsEntries(t *testing.T) {
	p := NewPool([]string{" curl/8.0 ", ""})
	if all := p.All(); len(all) != 1 || all[0] != "curl/8.0" {
		t.Errorf("expected [curl/8.0], got %q", all)
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPool([]string{"A", "B"})

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		got := p.Random()
		if got != "A" && got != "B" {
			t.Fatalf("unexpected UA: %s", got)
		}
		seen[got] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("expected to see both A and B randomly, seen: %v", seen)
	}
}

func TestPool_Concurrent(t *testing.T) {
	uas := []string{"X", "Y", "Z"}
	p := NewPool(uas)

	const routines = 100
	const iterations = 999

	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := map[string]int{}
			for j := 0; j < iterations; j++ {
				local[p.Next()]++
			}
			mu.Lock()
			for k, v := range local {
				counts[k] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	expected := routines * iterations / len(uas)
	for _, ua := range uas {
		if counts[ua] != expected {
			t.Errorf("expected %d hits for %s, got %d", expected, ua, counts[ua])
		}
	}
}

func TestPool_Empty(t *testing.T) {
	p := &Pool{}
	if got := p.Next(); got != "" {
		t.Errorf("expected empty string on empty pool, got %s", got)
	}
	if got := p.Random(); got != "" {
		t.Errorf("expected empty string on empty random, got %s", got)
	}
}
