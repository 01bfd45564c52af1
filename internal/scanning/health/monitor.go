package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/feescan/internal/core/domain"
	"github.com/vietddude/feescan/internal/core/progress"
	"github.com/vietddude/feescan/internal/infra/storage"
)

const (
	lagDegraded = 1_000
	lagCritical = 100_000

	staleDegraded = 2 * time.Minute
	staleCritical = 10 * time.Minute
)

// Monitor aggregates health status from the progress rows and the
// failed-range queue.
type Monitor struct {
	sources    []string
	progress   progress.Manager
	queue      storage.FailedRangeQueue // optional
	lastCheck  time.Time
	lastReport map[string]SourceHealth
	mu         sync.RWMutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(sources []string, mgr progress.Manager, queue storage.FailedRangeQueue) *Monitor {
	return &Monitor{
		sources:    sources,
		progress:   mgr,
		queue:      queue,
		lastReport: make(map[string]SourceHealth),
	}
}

// CheckHealth performs a health check for all sources.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]SourceHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid hammering the store on every probe.
	if time.Since(m.lastCheck) < 10*time.Second && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[string]SourceHealth)

	for _, sourceID := range m.sources {
		h := SourceHealth{
			SourceID: sourceID,
			Status:   StatusHealthy,
		}

		p, err := m.progress.Get(ctx, sourceID)
		if err != nil {
			// No row yet means the first cycle has not run. Not an outage.
			h.Status = StatusDegraded
			report[sourceID] = h
			continue
		}

		if p.KnownHeadHeight > p.LastScannedHeight {
			h.HeightLag = p.KnownHeadHeight - p.LastScannedHeight
		}
		h.LastError = p.LastError
		h.StaleSeconds = time.Since(p.LastScanTime).Seconds()

		if m.queue != nil {
			if ranges, qerr := m.queue.Ranges(ctx, sourceID); qerr == nil {
				h.FailedRanges = len(ranges)
			}
		}

		stale := time.Since(p.LastScanTime)
		switch {
		case h.HeightLag > lagCritical || stale > staleCritical:
			h.Status = StatusCritical
		case h.HeightLag > lagDegraded || stale > staleDegraded ||
			p.Status == domain.ScanStatusError || h.FailedRanges > 0:
			h.Status = StatusDegraded
		}

		report[sourceID] = h
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
