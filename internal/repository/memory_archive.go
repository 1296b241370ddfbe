package repository

import (
	"context"
	"sync"

	"PolySentry/internal/domain/models"
	"PolySentry/internal/domain/repository"
)

const memoryArchiveCap = 1000

// MemoryArchive implements Archive in process memory. Used when
// ClickHouse is disabled; it keeps only the most recent decisions and
// drops performance history on restart.
type MemoryArchive struct {
	mu          sync.Mutex
	decisions   []models.Decision
	performance []models.PerformanceRecord
}

// NewMemoryArchive creates an in-memory archive.
func NewMemoryArchive() repository.Archive {
	return &MemoryArchive{}
}

func (a *MemoryArchive) Init(context.Context) error { return nil }

func (a *MemoryArchive) StoreDecision(_ context.Context, d *models.Decision) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decisions = append(a.decisions, *d)
	if len(a.decisions) > memoryArchiveCap {
		a.decisions = a.decisions[len(a.decisions)-memoryArchiveCap:]
	}
	return nil
}

func (a *MemoryArchive) StorePerformance(_ context.Context, p *models.PerformanceRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.performance = append(a.performance, *p)
	if len(a.performance) > memoryArchiveCap {
		a.performance = a.performance[len(a.performance)-memoryArchiveCap:]
	}
	return nil
}

func (a *MemoryArchive) RecentDecisions(_ context.Context, limit int) ([]*models.Decision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.decisions)
	if limit > n {
		limit = n
	}
	out := make([]*models.Decision, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		cp := a.decisions[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (a *MemoryArchive) Health(context.Context) error { return nil }

func (a *MemoryArchive) Close() error { return nil }
