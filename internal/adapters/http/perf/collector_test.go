package perf

import (
	"sync"
	"testing"
	"time"
)

// TestCollector_Record_And_Snapshot verifies entries are split by kind.
func TestCollector_Record_And_Snapshot(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()

	c.Record(Entry{Kind: KindRequest, Path: "GET /api/scan", StatusCode: 200, DurationMs: 10, Timestamp: now})
	c.Record(Entry{Kind: KindRequest, Path: "GET /api/scan", StatusCode: 200, DurationMs: 30, Timestamp: now})
	c.Record(Entry{Kind: KindQuery, Path: "QueryContext", DurationMs: 5, Timestamp: now})
	c.Record(Entry{Kind: KindScan, Path: "scan.fetch", DurationMs: 12, Timestamp: now})

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if snap.TotalRecorded != 4 {
		t.Errorf("TotalRecorded = %d, want 4", snap.TotalRecorded)
	}
	if snap.Requests.Count != 2 || len(snap.Requests.Slowest) != 1 {
		t.Fatalf("Requests = %+v, want 2 entries on 1 path", snap.Requests)
	}
	if snap.Requests.Slowest[0].AvgMs != 20 {
		t.Errorf("AvgMs = %v, want 20", snap.Requests.Slowest[0].AvgMs)
	}
	if snap.Queries.Count != 1 {
		t.Errorf("Queries.Count = %d, want 1", snap.Queries.Count)
	}
	if snap.Scans.Count != 1 || snap.Scans.P50Ms != 12 {
		t.Errorf("Scans = %+v, want one 12ms entry", snap.Scans)
	}
}

// TestCollector_CountsErrorResponses verifies 4xx and 5xx entries are tallied per path.
func TestCollector_CountsErrorResponses(t *testing.T) {
	c := NewCollector(10)
	now := time.Now()
	for _, status := range []int{200, 404, 409, 500, 202} {
		c.Record(Entry{Kind: KindRequest, Path: "POST /api/scan/trigger", StatusCode: status, DurationMs: 1, Timestamp: now})
	}

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if got := snap.Requests.Slowest[0].Errors; got != 3 {
		t.Errorf("Errors = %d, want 3", got)
	}
}

// TestCollector_RingBuffer_Overwrites verifies oldest entries are overwritten when full.
func TestCollector_RingBuffer_Overwrites(t *testing.T) {
	c := NewCollector(3)
	now := time.Now()

	for i := 0; i < 5; i++ {
		c.Record(Entry{Kind: KindRequest, Path: "GET /x", DurationMs: float64(i), Timestamp: now})
	}

	if c.TotalRecorded() != 5 {
		t.Errorf("TotalRecorded = %d, want 5", c.TotalRecorded())
	}
	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if snap.Requests.Count != 3 {
		t.Errorf("Count = %d, want 3 (ring buffer kept last 3)", snap.Requests.Count)
	}
}

// TestCollector_Percentiles verifies P50/P95/P99 calculation.
func TestCollector_Percentiles(t *testing.T) {
	c := NewCollector(200)
	now := time.Now()
	for i := 1; i <= 100; i++ {
		c.Record(Entry{Kind: KindRequest, Path: "GET /p", DurationMs: float64(i), Timestamp: now})
	}

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if snap.Requests.P50Ms < 49 || snap.Requests.P50Ms > 51 {
		t.Errorf("P50 = %v, want ~50", snap.Requests.P50Ms)
	}
	if snap.Requests.P95Ms < 94 || snap.Requests.P95Ms > 96 {
		t.Errorf("P95 = %v, want ~95", snap.Requests.P95Ms)
	}
	if snap.Requests.P99Ms < 98 || snap.Requests.P99Ms > 100 {
		t.Errorf("P99 = %v, want ~99", snap.Requests.P99Ms)
	}
}

// TestCollector_Snapshot_FiltersBySince verifies old entries are excluded.
func TestCollector_Snapshot_FiltersBySince(t *testing.T) {
	c := NewCollector(100)
	c.Record(Entry{Kind: KindRequest, Path: "GET /old", DurationMs: 100, Timestamp: time.Now().Add(-2 * time.Hour)})
	c.Record(Entry{Kind: KindRequest, Path: "GET /new", DurationMs: 10, Timestamp: time.Now()})

	snap := c.Snapshot(time.Now().Add(-time.Hour), 10)
	if len(snap.Requests.Slowest) != 1 {
		t.Fatalf("Slowest len = %d, want 1 (old entry filtered)", len(snap.Requests.Slowest))
	}
	if snap.Requests.Slowest[0].Path != "GET /new" {
		t.Errorf("Path = %q, want GET /new", snap.Requests.Slowest[0].Path)
	}
}

// TestCollector_TopN verifies slowest paths are ordered and truncated.
func TestCollector_TopN(t *testing.T) {
	c := NewCollector(10)
	now := time.Now()
	c.Record(Entry{Kind: KindQuery, Path: "a", DurationMs: 1, Timestamp: now})
	c.Record(Entry{Kind: KindQuery, Path: "b", DurationMs: 9, Timestamp: now})
	c.Record(Entry{Kind: KindQuery, Path: "c", DurationMs: 5, Timestamp: now})

	snap := c.Snapshot(now.Add(-time.Second), 2)
	if len(snap.Queries.Slowest) != 2 {
		t.Fatalf("Slowest len = %d, want 2", len(snap.Queries.Slowest))
	}
	if snap.Queries.Slowest[0].Path != "b" || snap.Queries.Slowest[1].Path != "c" {
		t.Errorf("Slowest = %+v, want b then c", snap.Queries.Slowest)
	}
}

// TestCollector_RecordSince verifies duration is measured from start.
func TestCollector_RecordSince(t *testing.T) {
	c := NewCollector(10)
	start := time.Now().Add(-50 * time.Millisecond)
	c.RecordSince(KindScan, "scan.fetch", start)

	snap := c.Snapshot(start.Add(-time.Second), 1)
	if snap.Scans.Count != 1 {
		t.Fatalf("Scans.Count = %d, want 1", snap.Scans.Count)
	}
	if snap.Scans.P50Ms < 50 {
		t.Errorf("duration = %vms, want >= 50", snap.Scans.P50Ms)
	}
}

// TestCollector_ConcurrentWrites verifies goroutine safety of Record.
func TestCollector_ConcurrentWrites(t *testing.T) {
	c := NewCollector(1000)
	now := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				c.Record(Entry{Kind: KindRequest, Path: "GET /c", DurationMs: float64(n), Timestamp: now})
			}
		}(i)
	}
	wg.Wait()
	if c.TotalRecorded() != 1000 {
		t.Errorf("TotalRecorded = %d, want 1000", c.TotalRecorded())
	}
}

// BenchmarkCollectorRecord measures per-call cost of Record().
func BenchmarkCollectorRecord(b *testing.B) {
	c := NewCollector(DefaultRingSize)
	e := Entry{Kind: KindRequest, Path: "GET /bench", StatusCode: 200, DurationMs: 1.5, Timestamp: time.Now()}
	b.ReportAllocs()
	for b.Loop() {
		c.Record(e)
	}
}
