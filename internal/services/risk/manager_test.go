package risk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"PolySentry/internal/domain/models"
	"PolySentry/pkg/logger"
)

type memStore struct {
	mu     sync.Mutex
	states map[string]models.RiskState
	fail   bool
	saves  int
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]models.RiskState)}
}

func (s *memStore) LoadRiskState(_ context.Context, day string) (*models.RiskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[day]; ok {
		cp := st
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) SaveRiskState(_ context.Context, st *models.RiskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.saves++
	s.states[st.Day] = *st
	return nil
}

func newTestManager(t *testing.T, cfg Config, store *memStore, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), cfg, store, time.UTC, logger.Nop(), WithNow(now))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func defaultConfig() Config {
	return Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200}
}

func TestTryReserveEnforcesBetCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, Config{MaxDailyBets: 2, MaxDailyWager: 1000, MaxDailyLoss: 200}, newMemStore(), fixedClock(now))

	for i := 0; i < 2; i++ {
		v, err := m.TryReserve(ctx, 50)
		if err != nil || !v.Allowed {
			t.Fatalf("reservation %d: allowed=%v err=%v", i, v.Allowed, err)
		}
	}
	v, err := m.TryReserve(ctx, 50)
	if err != nil {
		t.Fatalf("third reservation: %v", err)
	}
	if v.Allowed || v.Reason != models.RiskReasonBetCap {
		t.Fatalf("expected bet cap rejection, got %+v", v)
	}
}

func TestTryReserveEnforcesWagerCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, Config{MaxDailyBets: 10, MaxDailyWager: 250, MaxDailyLoss: 200}, newMemStore(), fixedClock(now))

	for i := 0; i < 2; i++ {
		if v, _ := m.TryReserve(ctx, 100); !v.Allowed {
			t.Fatalf("reservation %d rejected: %+v", i, v)
		}
	}
	// 200 wagered; 100 more would breach 250
	v, _ := m.TryReserve(ctx, 100)
	if v.Allowed || v.Reason != models.RiskReasonWagerCap {
		t.Fatalf("expected wager cap rejection, got %+v", v)
	}
	// but 50 still fits exactly
	if v, _ := m.TryReserve(ctx, 50); !v.Allowed {
		t.Fatalf("exact-fit reservation rejected: %+v", v)
	}
}

func TestTryReserveEnforcesLossCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, defaultConfig(), newMemStore(), fixedClock(now))

	if err := m.RecordOutcome(ctx, -200); err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	v, _ := m.TryReserve(ctx, 50)
	if v.Allowed || v.Reason != models.RiskReasonLossCap {
		t.Fatalf("expected loss cap rejection, got %+v", v)
	}
}

func TestWinsDoNotOffsetLossCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, defaultConfig(), newMemStore(), fixedClock(now))

	if err := m.RecordOutcome(ctx, -150); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordOutcome(ctx, 500); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordOutcome(ctx, -50); err != nil {
		t.Fatal(err)
	}
	v, _ := m.TryReserve(ctx, 50)
	if v.Allowed {
		t.Fatalf("realized losses total 200; reservation should be blocked, got %+v", v)
	}
}

func TestConcurrentReservationsNeverOverspend(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200}, newMemStore(), fixedClock(now))

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := m.TryReserve(ctx, 50); err == nil && v.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 5 {
		t.Fatalf("expected exactly 5 allowed reservations, got %d", allowed)
	}
	st := m.Snapshot()
	if st.BetsPlaced != 5 || st.AmountWagered != 250 {
		t.Fatalf("ledger inconsistent: %+v", st)
	}
}

func TestReleaseReturnsReservation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, defaultConfig(), newMemStore(), fixedClock(now))

	if v, _ := m.TryReserve(ctx, 50); !v.Allowed {
		t.Fatal("reservation rejected")
	}
	if err := m.Release(ctx, 50); err != nil {
		t.Fatalf("release: %v", err)
	}
	st := m.Snapshot()
	if st.BetsPlaced != 0 || st.AmountWagered != 0 {
		t.Fatalf("release did not restore ledger: %+v", st)
	}
}

func TestDayRolloverResetsLedger(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	current := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	m := newTestManager(t, defaultConfig(), store, clock)

	for i := 0; i < 5; i++ {
		if v, _ := m.TryReserve(ctx, 50); !v.Allowed {
			t.Fatalf("reservation %d rejected", i)
		}
	}
	if v, _ := m.TryReserve(ctx, 50); v.Allowed {
		t.Fatal("sixth reservation should be blocked")
	}

	mu.Lock()
	current = time.Date(2026, 3, 11, 0, 0, 1, 0, time.UTC)
	mu.Unlock()

	v, err := m.TryReserve(ctx, 50)
	if err != nil || !v.Allowed {
		t.Fatalf("reservation after rollover: allowed=%v err=%v", v.Allowed, err)
	}
	st := m.Snapshot()
	if st.Day != "2026-03-11" || st.BetsPlaced != 1 {
		t.Fatalf("ledger after rollover: %+v", st)
	}
}

func TestRolloverHookReceivesPreviousDay(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	current := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	done := make(chan models.RiskState, 1)
	m, err := NewManager(ctx, defaultConfig(), store, time.UTC, logger.Nop(),
		WithNow(clock),
		WithRolloverHook(func(prev models.RiskState) { done <- prev }),
	)
	if err != nil {
		t.Fatal(err)
	}

	if v, _ := m.TryReserve(ctx, 50); !v.Allowed {
		t.Fatal("reservation rejected")
	}

	mu.Lock()
	current = current.AddDate(0, 0, 1)
	mu.Unlock()
	m.Snapshot()

	select {
	case prev := <-done:
		if prev.Day != "2026-03-10" || prev.BetsPlaced != 1 {
			t.Fatalf("unexpected previous-day state: %+v", prev)
		}
	case <-time.After(time.Second):
		t.Fatal("rollover hook never fired")
	}
}

func TestReserveFailsClosedWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, defaultConfig(), store, fixedClock(now))

	store.mu.Lock()
	store.fail = true
	store.mu.Unlock()

	if _, err := m.TryReserve(ctx, 50); err == nil {
		t.Fatal("expected error when persist fails")
	}
	st := m.Snapshot()
	if st.BetsPlaced != 0 || st.AmountWagered != 0 {
		t.Fatalf("failed persist must not leave a debit: %+v", st)
	}
}

func TestHaltBlocksReservations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := newTestManager(t, defaultConfig(), newMemStore(), fixedClock(now))

	if err := m.Halt(ctx, "position count mismatch"); err != nil {
		t.Fatalf("halt: %v", err)
	}
	v, _ := m.TryReserve(ctx, 50)
	if v.Allowed || v.Reason != models.RiskReasonHalted {
		t.Fatalf("expected halt rejection, got %+v", v)
	}
}

func TestNewManagerRestoresPersistedState(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store.states["2026-03-10"] = models.RiskState{
		Day: "2026-03-10", BetsPlaced: 4, AmountWagered: 200, RealizedLoss: 50,
	}

	m := newTestManager(t, defaultConfig(), store, fixedClock(now))
	if v, _ := m.TryReserve(ctx, 50); !v.Allowed {
		t.Fatalf("fifth bet of the day should fit: %+v", v)
	}
	if v, _ := m.TryReserve(ctx, 50); v.Allowed {
		t.Fatal("sixth bet should be blocked after restore")
	}
}
