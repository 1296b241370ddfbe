package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PolySentry/internal/domain/models"
	"PolySentry/internal/domain/repository"
	"PolySentry/pkg/logger"
	"PolySentry/pkg/util"
)

// Config holds the daily risk limits. The stake itself is the caller's
// choice, passed per reservation.
type Config struct {
	MaxDailyBets  int
	MaxDailyWager float64
	MaxDailyLoss  float64
}

// Store persists risk state across restarts.
type Store interface {
	LoadRiskState(ctx context.Context, day string) (*models.RiskState, error)
	SaveRiskState(ctx context.Context, st *models.RiskState) error
}

// Option configures Manager.
type Option func(*Manager)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRolloverHook registers a callback invoked with the previous day's
// final state when the trading day changes. Called outside the lock.
func WithRolloverHook(fn func(prev models.RiskState)) Option {
	return func(m *Manager) { m.onRollover = fn }
}

// WithMetrics mirrors the ledger into gauges.
func WithMetrics(rec repository.Metrics) Option {
	return func(m *Manager) { m.metrics = rec }
}

// Manager is the daily risk ledger. Every reservation is an atomic
// check-and-increment under one lock: two concurrent events can never
// both pass a limit with only one slot left.
type Manager struct {
	mu         sync.Mutex
	cfg        Config
	store      Store
	loc        *time.Location
	log        *logger.Logger
	now        func() time.Time
	metrics    repository.Metrics
	onRollover func(prev models.RiskState)
	state      *models.RiskState
}

// NewManager creates a risk manager, restoring today's state from the
// store so a restart cannot forget money already spent.
func NewManager(ctx context.Context, cfg Config, store Store, loc *time.Location, log *logger.Logger, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:   cfg,
		store: store,
		loc:   loc,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	day := util.TradingDay(m.now(), loc)
	st, err := store.LoadRiskState(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load risk state: %w", err)
	}
	if st == nil {
		st = &models.RiskState{Day: day}
	}
	m.state = st
	m.publishGauges()

	log.Info("risk ledger restored",
		logger.String("day", st.Day),
		logger.Int("bets", st.BetsPlaced),
		logger.Float64("wagered", st.AmountWagered),
		logger.Float64("loss", st.RealizedLoss),
	)
	return m, nil
}

// TryReserve atomically checks every limit and, if all pass, debits the
// ledger for one bet of the given stake. The debit is persisted before
// the verdict is returned; a persist failure denies the reservation.
func (m *Manager) TryReserve(ctx context.Context, stake float64) (models.RiskVerdict, error) {
	prev, changed := m.lockAndRoll()
	defer m.mu.Unlock()
	if changed {
		m.notifyRollover(prev)
	}

	if m.state.Halted {
		return models.RiskVerdict{Reason: models.RiskReasonHalted}, nil
	}
	if m.state.BetsPlaced+1 > m.cfg.MaxDailyBets {
		return models.RiskVerdict{Reason: models.RiskReasonBetCap}, nil
	}
	if m.cfg.MaxDailyWager > 0 && m.state.AmountWagered+stake > m.cfg.MaxDailyWager {
		return models.RiskVerdict{Reason: models.RiskReasonWagerCap}, nil
	}
	if m.state.RealizedLoss >= m.cfg.MaxDailyLoss {
		return models.RiskVerdict{Reason: models.RiskReasonLossCap}, nil
	}

	m.state.BetsPlaced++
	m.state.AmountWagered += stake
	if err := m.store.SaveRiskState(ctx, m.state); err != nil {
		m.state.BetsPlaced--
		m.state.AmountWagered -= stake
		return models.RiskVerdict{}, fmt.Errorf("persist reservation: %w", err)
	}
	m.publishGauges()
	return models.RiskVerdict{Allowed: true}, nil
}

// Release returns a reservation that was never attempted against the
// exchange. A failed execution attempt must NOT be released: the slot
// stays spent so an exchange outage cannot turn into a retry storm.
func (m *Manager) Release(ctx context.Context, stake float64) error {
	prev, changed := m.lockAndRoll()
	defer m.mu.Unlock()
	if changed {
		m.notifyRollover(prev)
		return nil // reservation belonged to a day that no longer exists
	}

	if m.state.BetsPlaced > 0 {
		m.state.BetsPlaced--
	}
	m.state.AmountWagered -= stake
	if m.state.AmountWagered < 0 {
		m.state.AmountWagered = 0
	}
	if err := m.store.SaveRiskState(ctx, m.state); err != nil {
		return fmt.Errorf("persist release: %w", err)
	}
	m.publishGauges()
	return nil
}

// RecordOutcome applies a settled position's P/L to the ledger. Only
// losses count toward the daily loss cap.
func (m *Manager) RecordOutcome(ctx context.Context, pnl float64) error {
	prev, changed := m.lockAndRoll()
	defer m.mu.Unlock()
	if changed {
		m.notifyRollover(prev)
	}

	if pnl < 0 {
		m.state.RealizedLoss += -pnl
	}
	if err := m.store.SaveRiskState(ctx, m.state); err != nil {
		return fmt.Errorf("persist outcome: %w", err)
	}
	m.publishGauges()
	return nil
}

// Halt stops all future reservations until the process restarts into a
// clean day. Used when an invariant is found broken.
func (m *Manager) Halt(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Halted = true
	m.log.Error("risk ledger halted", logger.String("reason", reason))
	if err := m.store.SaveRiskState(ctx, m.state); err != nil {
		return fmt.Errorf("persist halt: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current ledger.
func (m *Manager) Snapshot() models.RiskState {
	prev, changed := m.lockAndRoll()
	defer m.mu.Unlock()
	if changed {
		m.notifyRollover(prev)
	}
	return *m.state
}

// lockAndRoll acquires the lock and lazily rolls the ledger to the
// current trading day. Callers must unlock.
func (m *Manager) lockAndRoll() (prev models.RiskState, changed bool) {
	m.mu.Lock()

	day := util.TradingDay(m.now(), m.loc)
	if day == m.state.Day {
		return models.RiskState{}, false
	}

	prev = *m.state
	m.state = &models.RiskState{Day: day}
	if err := m.store.SaveRiskState(context.Background(), m.state); err != nil {
		m.log.Error("persist day rollover", logger.Error(err))
	}
	m.publishGauges()
	m.log.Info("risk ledger rolled over",
		logger.String("from", prev.Day),
		logger.String("to", day),
	)
	return prev, true
}

func (m *Manager) notifyRollover(prev models.RiskState) {
	if m.onRollover != nil {
		go m.onRollover(prev)
	}
}

func (m *Manager) publishGauges() {
	if m.metrics != nil {
		m.metrics.SetRiskGauges(m.state.BetsPlaced, m.state.AmountWagered, m.state.RealizedLoss)
	}
}
