package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"PolySentry/internal/domain/models"
	localrepo "PolySentry/internal/repository"
	"PolySentry/pkg/logger"
)

type stubRecorder struct {
	pnls []float64
	err  error
}

func (s *stubRecorder) RecordOutcome(_ context.Context, pnl float64) error {
	if s.err != nil {
		return s.err
	}
	s.pnls = append(s.pnls, pnl)
	return nil
}

func executedDecision(id, marketID, outcome string, price float64) *models.Decision {
	return &models.Decision{
		EventID: id,
		Event:   &models.TradeEvent{ID: id, MarketID: marketID, Outcome: outcome, Price: price},
		Outcome: models.OutcomeExecuted,
		Stake:   50,
		Execution: &models.Execution{
			OrderID:    "ord-" + id,
			Price:      price,
			Shares:     50 / price,
			ExecutedAt: time.Now(),
		},
	}
}

func newTrackerFixture() (*Tracker, *stubRecorder, *stubArchive, *stubNotifier) {
	rec := &stubRecorder{}
	archive := &stubArchive{}
	notifier := &stubNotifier{}
	ledger := localrepo.NewMemoryLedger()
	t := NewTracker(time.UTC, ledger, archive, rec, notifier, nopMetrics{}, logger.Nop())
	return t, rec, archive, notifier
}

func TestSettleWinComputesPayout(t *testing.T) {
	tr, rec, archive, _ := newTrackerFixture()
	ctx := context.Background()

	if err := tr.TrackExecution(ctx, executedDecision("evt-1", "mkt-1", "Yes", 0.25)); err != nil {
		t.Fatal(err)
	}

	settled, err := tr.OnResolution(ctx, &models.MarketResolution{
		MarketID: "mkt-1", WinningOutcome: "Yes", ResolvedAt: time.Now(),
	})
	if err != nil || settled != 1 {
		t.Fatalf("settled=%d err=%v", settled, err)
	}

	// stake 50 at 0.25: payout = 50 * (1-0.25)/0.25 = 150
	if len(rec.pnls) != 1 || math.Abs(rec.pnls[0]-150) > 1e-9 {
		t.Fatalf("pnl: %v", rec.pnls)
	}
	if len(archive.performance) != 1 || archive.performance[0].Result != models.ResultWin {
		t.Fatalf("archive: %+v", archive.performance)
	}

	stats := tr.Stats()
	if stats.Wins != 1 || stats.OpenTrades != 0 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestSettleLossIsNegativeStake(t *testing.T) {
	tr, rec, _, _ := newTrackerFixture()
	ctx := context.Background()

	if err := tr.TrackExecution(ctx, executedDecision("evt-2", "mkt-1", "Yes", 0.25)); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.OnResolution(ctx, &models.MarketResolution{
		MarketID: "mkt-1", WinningOutcome: "No", ResolvedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	if len(rec.pnls) != 1 || rec.pnls[0] != -50 {
		t.Fatalf("pnl: %v", rec.pnls)
	}
	if stats := tr.Stats(); stats.Losses != 1 || stats.PnL != -50 {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestSettleSellWinsWhenOutcomeLoses(t *testing.T) {
	tr, rec, archive, _ := newTrackerFixture()
	ctx := context.Background()

	// a mirrored sell of "Yes" at 0.80 is a long on the complement at 0.20
	d := executedDecision("evt-5", "mkt-1", "Yes", 0.8)
	d.Event.Side = models.SideSell
	if err := tr.TrackExecution(ctx, d); err != nil {
		t.Fatal(err)
	}

	settled, err := tr.OnResolution(ctx, &models.MarketResolution{
		MarketID: "mkt-1", WinningOutcome: "No", ResolvedAt: time.Now(),
	})
	if err != nil || settled != 1 {
		t.Fatalf("settled=%d err=%v", settled, err)
	}

	// stake 50 at effective entry 0.20: payout = 50 * (1-0.2)/0.2 = 200
	if len(rec.pnls) != 1 || math.Abs(rec.pnls[0]-200) > 1e-9 {
		t.Fatalf("pnl: %v", rec.pnls)
	}
	if len(archive.performance) != 1 || archive.performance[0].Result != models.ResultWin {
		t.Fatalf("archive: %+v", archive.performance)
	}
	if archive.performance[0].Side != models.SideSell {
		t.Fatalf("side not carried into the record: %+v", archive.performance[0])
	}
}

func TestSettleSellLosesWhenOutcomeWins(t *testing.T) {
	tr, rec, _, _ := newTrackerFixture()
	ctx := context.Background()

	d := executedDecision("evt-6", "mkt-1", "Yes", 0.8)
	d.Event.Side = models.SideSell
	if err := tr.TrackExecution(ctx, d); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.OnResolution(ctx, &models.MarketResolution{
		MarketID: "mkt-1", WinningOutcome: "Yes", ResolvedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	if len(rec.pnls) != 1 || rec.pnls[0] != -50 {
		t.Fatalf("sold position must forfeit the stake when the outcome wins: %v", rec.pnls)
	}
}

func TestResolutionWithoutPositionsIsNoop(t *testing.T) {
	tr, rec, _, _ := newTrackerFixture()

	settled, err := tr.OnResolution(context.Background(), &models.MarketResolution{
		MarketID: "mkt-unknown", WinningOutcome: "Yes", ResolvedAt: time.Now(),
	})
	if err != nil || settled != 0 {
		t.Fatalf("settled=%d err=%v", settled, err)
	}
	if len(rec.pnls) != 0 {
		t.Fatal("nothing should have been recorded")
	}
}

func TestRiskFeedbackFailureKeepsPositionPending(t *testing.T) {
	tr, rec, _, _ := newTrackerFixture()
	rec.err = errors.New("ledger down")
	ctx := context.Background()

	if err := tr.TrackExecution(ctx, executedDecision("evt-3", "mkt-1", "Yes", 0.5)); err != nil {
		t.Fatal(err)
	}

	res := &models.MarketResolution{MarketID: "mkt-1", WinningOutcome: "Yes", ResolvedAt: time.Now()}
	if _, err := tr.OnResolution(ctx, res); err == nil {
		t.Fatal("expected error so the consumer retries")
	}

	// redelivery after recovery settles the position
	rec.err = nil
	settled, err := tr.OnResolution(ctx, res)
	if err != nil || settled != 1 {
		t.Fatalf("retry: settled=%d err=%v", settled, err)
	}
}

func TestRolloverReportSnapshotsAndResets(t *testing.T) {
	tr, _, _, notifier := newTrackerFixture()
	ctx := context.Background()

	if err := tr.TrackExecution(ctx, executedDecision("evt-4", "mkt-1", "Yes", 0.5)); err != nil {
		t.Fatal(err)
	}
	tr.CountEvent()
	tr.CountDecision(&models.Decision{Outcome: models.OutcomeExecuted, Stake: 50})

	tr.RolloverReport(models.RiskState{Day: "2026-08-22", AmountWagered: 50})

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.reports) != 1 {
		t.Fatalf("expected one report, got %d", len(notifier.reports))
	}
	report := notifier.reports[0]
	if report.Events != 1 || report.Executed != 1 || report.Wagered != 50 {
		t.Fatalf("report: %+v", report)
	}

	stats := tr.Stats()
	if stats.Events != 0 || stats.Decisions != 0 {
		t.Fatalf("counters should reset: %+v", stats)
	}
	if stats.OpenTrades != 1 {
		t.Fatalf("open positions must carry over: %+v", stats)
	}
}
