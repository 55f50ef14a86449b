package metrics

import (
	"testing"
	"time"
)

func TestLatencyTrackerStats(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	stats := lt.Stats()
	if stats.Samples != 100 {
		t.Fatalf("Samples = %d, want 100", stats.Samples)
	}
	if stats.Min != 1*time.Millisecond {
		t.Errorf("Min = %v, want 1ms", stats.Min)
	}
	if stats.Max != 100*time.Millisecond {
		t.Errorf("Max = %v, want 100ms", stats.Max)
	}
	if stats.P50 != 50*time.Millisecond {
		t.Errorf("P50 = %v, want 50ms", stats.P50)
	}
	if stats.P95 != 95*time.Millisecond {
		t.Errorf("P95 = %v, want 95ms", stats.P95)
	}
	if stats.P99 != 99*time.Millisecond {
		t.Errorf("P99 = %v, want 99ms", stats.P99)
	}
	if stats.Avg != 50500*time.Microsecond {
		t.Errorf("Avg = %v, want 50.5ms", stats.Avg)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	lt := NewLatencyTracker(10)
	if stats := lt.Stats(); stats.Samples != 0 {
		t.Errorf("empty tracker Stats() = %+v, want zero value", stats)
	}
}

func TestLatencyTrackerWindowEviction(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 1; i <= 11; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	// At capacity the oldest tenth is dropped before appending.
	stats := lt.Stats()
	if stats.Samples != 10 {
		t.Errorf("Samples = %d, want 10", stats.Samples)
	}
	if stats.Min != 2*time.Millisecond {
		t.Errorf("Min = %v, want 2ms after eviction", stats.Min)
	}
	if stats.Max != 11*time.Millisecond {
		t.Errorf("Max = %v, want 11ms", stats.Max)
	}
}

func TestLatencyTrackerReset(t *testing.T) {
	lt := NewLatencyTracker(10)
	lt.Record(3 * time.Millisecond)
	lt.Reset()
	if stats := lt.Stats(); stats.Samples != 0 {
		t.Errorf("Stats() after Reset() = %+v, want zero value", stats)
	}
}

func TestLatencyRegistry(t *testing.T) {
	r := NewLatencyRegistry(10)
	r.Record("sweep.tick", 4*time.Millisecond)
	r.Record("sweep.tick", 8*time.Millisecond)
	r.Record("other.op", 1*time.Millisecond)

	stats := r.Stats("sweep.tick")
	if stats.Samples != 2 || stats.Max != 8*time.Millisecond {
		t.Errorf("Stats(sweep.tick) = %+v, want 2 samples with 8ms max", stats)
	}
	if unknown := r.Stats("missing"); unknown.Samples != 0 {
		t.Errorf("Stats(missing) = %+v, want zero value", unknown)
	}

	all := r.AllStats()
	if len(all) != 2 {
		t.Fatalf("AllStats() has %d operations, want 2", len(all))
	}
	if all["other.op"].Samples != 1 {
		t.Errorf("AllStats()[other.op].Samples = %d, want 1", all["other.op"].Samples)
	}
}

func TestGlobalRegistry(t *testing.T) {
	RecordLatency("test.global", 3*time.Millisecond)

	if stats := GetLatencyStats("test.global"); stats.Samples == 0 {
		t.Error("GetLatencyStats() lost the recorded sample")
	}
	if _, ok := GetAllLatencyStats()["test.global"]; !ok {
		t.Error("GetAllLatencyStats() missing the recorded operation")
	}
}
