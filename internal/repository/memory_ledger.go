package repository

import (
	"context"
	"sync"

	"PolySentry/internal/domain/models"
	"PolySentry/internal/domain/repository"
)

// MemoryLedger implements Ledger in process memory. Used when Redis is
// disabled; state does not survive restarts, so daily limits restart
// from zero with the process.
type MemoryLedger struct {
	mu        sync.Mutex
	risk      map[string]models.RiskState
	decisions map[string]models.Decision
	pending   map[string]map[string]models.PerformanceRecord // marketID -> eventID
}

// NewMemoryLedger creates an in-memory ledger.
func NewMemoryLedger() repository.Ledger {
	return &MemoryLedger{
		risk:      make(map[string]models.RiskState),
		decisions: make(map[string]models.Decision),
		pending:   make(map[string]map[string]models.PerformanceRecord),
	}
}

func (l *MemoryLedger) LoadRiskState(_ context.Context, day string) (*models.RiskState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.risk[day]; ok {
		cp := st
		return &cp, nil
	}
	return nil, nil
}

func (l *MemoryLedger) SaveRiskState(_ context.Context, st *models.RiskState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.risk[st.Day] = *st
	return nil
}

func (l *MemoryLedger) CreateDecision(_ context.Context, d *models.Decision) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.decisions[d.EventID]; ok {
		return false, nil
	}
	l.decisions[d.EventID] = *d
	return true, nil
}

func (l *MemoryLedger) SaveDecision(_ context.Context, d *models.Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decisions[d.EventID] = *d
	return nil
}

func (l *MemoryLedger) GetDecision(_ context.Context, eventID string) (*models.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.decisions[eventID]; ok {
		cp := d
		return &cp, nil
	}
	return nil, models.ErrNotFound
}

func (l *MemoryLedger) SavePending(_ context.Context, p *models.PerformanceRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending[p.MarketID] == nil {
		l.pending[p.MarketID] = make(map[string]models.PerformanceRecord)
	}
	l.pending[p.MarketID][p.EventID] = *p
	return nil
}

func (l *MemoryLedger) PendingByMarket(_ context.Context, marketID string) ([]*models.PerformanceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := make([]*models.PerformanceRecord, 0, len(l.pending[marketID]))
	for _, p := range l.pending[marketID] {
		cp := p
		records = append(records, &cp)
	}
	return records, nil
}

func (l *MemoryLedger) RemovePending(_ context.Context, marketID, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.pending[marketID]; ok {
		delete(m, eventID)
		if len(m) == 0 {
			delete(l.pending, marketID)
		}
	}
	return nil
}

func (l *MemoryLedger) Health(_ context.Context) error { return nil }

func (l *MemoryLedger) Close() error { return nil }
