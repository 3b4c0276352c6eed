package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestTimingMetric_Record(t *testing.T) {
	m := newTimingMetric("test")
	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)

	if m.Count() != 2 {
		t.Errorf("Count() = %d", m.Count())
	}
	if m.Avg() != 3*time.Millisecond {
		t.Errorf("Avg() = %v", m.Avg())
	}
	if m.Max() != 4*time.Millisecond {
		t.Errorf("Max() = %v", m.Max())
	}
	s := m.Stats()
	if s.Name != "test" || s.MinMs != 2 || s.TotalMs != 6 {
		t.Errorf("Stats() = %+v", s)
	}

	m.Reset()
	if m.Count() != 0 || m.Avg() != 0 {
		t.Error("Reset should clear measurements")
	}
}

func TestTimingMetric_Concurrent(t *testing.T) {
	m := newTimingMetric("concurrent")
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Record(time.Duration(n) * time.Microsecond)
		}(i)
	}
	wg.Wait()

	if m.Count() != 50 {
		t.Errorf("Count() = %d", m.Count())
	}
	if m.Max() != 50*time.Microsecond {
		t.Errorf("Max() = %v", m.Max())
	}
	if s := m.Stats(); s.MinMs != 0.001 {
		t.Errorf("MinMs = %v", s.MinMs)
	}
}

func TestTimer_Disabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("off")
	Timer(m)()
	if m.Count() != 0 {
		t.Error("disabled metrics should not record")
	}
	if Enabled() {
		t.Error("Enabled() should report false")
	}
}

func TestTimerWithCallback(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("cb")
	var got time.Duration
	TimerWithCallback(m, func(d time.Duration) { got = d })()
	if m.Count() != 1 || got < 0 {
		t.Errorf("Count() = %d, callback duration %v", m.Count(), got)
	}
}

func TestAllTimingStats(t *testing.T) {
	SetEnabled(true)
	ResetAll()
	defer ResetAll()

	if len(AllTimingStats()) != 0 {
		t.Error("expected no stats after reset")
	}
	SearchQuery.Record(time.Millisecond)
	stats := AllTimingStats()
	if len(stats) != 1 || stats[0].Name != "search_query" {
		t.Errorf("AllTimingStats() = %+v", stats)
	}
	if len(AllTimingMetrics()) != 6 {
		t.Errorf("expected 6 registered metrics, got %d", len(AllTimingMetrics()))
	}
}
