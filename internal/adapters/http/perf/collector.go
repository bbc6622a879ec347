package perf

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 4096

// EntryKind distinguishes what was timed.
type EntryKind uint8

const (
	KindRequest EntryKind = iota // HTTP request
	KindQuery                    // SQL call
	KindScan                     // member fetch behind a scan
)

// String names the kind for the stats endpoint.
func (k EntryKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindQuery:
		return "query"
	case KindScan:
		return "scan"
	}
	return "unknown"
}

// Entry is a single timing record stored in the ring buffer.
type Entry struct {
	Kind       EntryKind
	Path       string // "GET /api/scan", "QueryContext", "scan.fetch"
	StatusCode int    // HTTP status (0 for queries and scans)
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring buffer for timing entries.
// When full, the oldest entries are overwritten. Aggregation happens on read.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	pos     int
	count   atomic.Int64
}

// NewCollector creates a collector with the given ring buffer capacity.
// PRE: size > 0, otherwise DefaultRingSize is used
// POST: Returns a ready-to-use collector with pre-allocated storage
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{entries: make([]Entry, size)}
}

// Record appends an entry to the ring buffer.
// PRE: e is a valid Entry
// POST: Entry stored; if buffer full, oldest entry overwritten
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % len(c.entries)
	c.mu.Unlock()
	c.count.Add(1)
}

// RecordSince records an entry whose duration runs from start to now.
func (c *Collector) RecordSince(kind EntryKind, path string, start time.Time) {
	c.Record(Entry{
		Kind:       kind,
		Path:       path,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:  start,
	})
}

// TotalRecorded returns the total number of entries ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return c.count.Load()
}

// KindStats aggregates one entry kind over the snapshot window.
type KindStats struct {
	Count   int        `json:"count"`
	P50Ms   float64    `json:"p50Ms"`
	P95Ms   float64    `json:"p95Ms"`
	P99Ms   float64    `json:"p99Ms"`
	Slowest []PathStat `json:"slowest"`
}

// PathStat aggregates timing for a single path.
type PathStat struct {
	Path    string  `json:"path"`
	AvgMs   float64 `json:"avgMs"`
	MaxMs   float64 `json:"maxMs"`
	Count   int     `json:"count"`
	Errors  int     `json:"errors"` // requests answered with 4xx or 5xx
	TotalMs float64 `json:"totalMs"`
}

// Snapshot holds aggregated performance data computed on read.
type Snapshot struct {
	TotalRecorded int64     `json:"totalRecorded"`
	Requests      KindStats `json:"requests"`
	Queries       KindStats `json:"queries"`
	Scans         KindStats `json:"scans"`
}

// Snapshot computes aggregated stats from entries at or after since.
// PRE: topN >= 0
// POST: Returns per-kind percentiles and the topN slowest paths by average
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := slices.Clone(c.entries)
	c.mu.Unlock()

	byKind := map[EntryKind][]Entry{}
	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	return Snapshot{
		TotalRecorded: c.TotalRecorded(),
		Requests:      aggregate(byKind[KindRequest], topN),
		Queries:       aggregate(byKind[KindQuery], topN),
		Scans:         aggregate(byKind[KindScan], topN),
	}
}

func aggregate(entries []Entry, topN int) KindStats {
	if len(entries) == 0 {
		return KindStats{}
	}
	durations := make([]float64, 0, len(entries))
	paths := make(map[string]*PathStat)
	for _, e := range entries {
		durations = append(durations, e.DurationMs)
		s, ok := paths[e.Path]
		if !ok {
			s = &PathStat{Path: e.Path}
			paths[e.Path] = s
		}
		s.Count++
		if e.StatusCode >= 400 {
			s.Errors++
		}
		s.TotalMs += e.DurationMs
		s.MaxMs = max(s.MaxMs, e.DurationMs)
	}
	slices.Sort(durations)

	list := make([]PathStat, 0, len(paths))
	for _, s := range paths {
		s.AvgMs = s.TotalMs / float64(s.Count)
		list = append(list, *s)
	}
	slices.SortFunc(list, func(a, b PathStat) int {
		switch {
		case a.AvgMs > b.AvgMs:
			return -1
		case a.AvgMs < b.AvgMs:
			return 1
		}
		return 0
	})
	if len(list) > topN {
		list = list[:topN]
	}

	return KindStats{
		Count:   len(entries),
		P50Ms:   percentile(durations, 50),
		P95Ms:   percentile(durations, 95),
		P99Ms:   percentile(durations, 99),
		Slowest: list,
	}
}

// percentile returns the p-th percentile from a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
