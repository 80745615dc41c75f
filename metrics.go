package behold

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordSearch is called after each primary match.
	// valid reports whether the top candidate passed the threshold.
	RecordSearch(duration time.Duration, candidates int, valid bool)

	// RecordFallback is called after each fallback comparison.
	RecordFallback(duration time.Duration, valid bool)

	// RecordReload is called after each catalog load, err is nil if successful.
	RecordReload(records int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSearch(time.Duration, int, bool)  {}
func (NoopMetricsCollector) RecordFallback(time.Duration, bool)     {}
func (NoopMetricsCollector) RecordReload(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	SearchCount      atomic.Int64
	SearchValid      atomic.Int64
	SearchTotalNanos atomic.Int64

	FallbackCount      atomic.Int64
	FallbackValid      atomic.Int64
	FallbackTotalNanos atomic.Int64

	ReloadCount  atomic.Int64
	ReloadErrors atomic.Int64
	CatalogSize  atomic.Int64
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(duration time.Duration, _ int, valid bool) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if valid {
		b.SearchValid.Add(1)
	}
}

// RecordFallback implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFallback(duration time.Duration, valid bool) {
	b.FallbackCount.Add(1)
	b.FallbackTotalNanos.Add(duration.Nanoseconds())
	if valid {
		b.FallbackValid.Add(1)
	}
}

// RecordReload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReload(records int, _ time.Duration, err error) {
	b.ReloadCount.Add(1)
	if err != nil {
		b.ReloadErrors.Add(1)
		return
	}
	b.CatalogSize.Store(int64(records))
}

// Stats is a point-in-time copy of BasicMetricsCollector.
type Stats struct {
	SearchCount    int64
	SearchValid    int64
	AvgSearchNanos int64
	FallbackCount  int64
	FallbackValid  int64
	ReloadCount    int64
	ReloadErrors   int64
	CatalogSize    int64
}

// GetStats returns a snapshot of the collected metrics.
func (b *BasicMetricsCollector) GetStats() Stats {
	s := Stats{
		SearchCount:   b.SearchCount.Load(),
		SearchValid:   b.SearchValid.Load(),
		FallbackCount: b.FallbackCount.Load(),
		FallbackValid: b.FallbackValid.Load(),
		ReloadCount:   b.ReloadCount.Load(),
		ReloadErrors:  b.ReloadErrors.Load(),
		CatalogSize:   b.CatalogSize.Load(),
	}
	if s.SearchCount > 0 {
		s.AvgSearchNanos = b.SearchTotalNanos.Load() / s.SearchCount
	}
	return s
}
