package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PolySentry/internal/domain/models"
	drepo "PolySentry/internal/domain/repository"
	"PolySentry/pkg/logger"
	"PolySentry/pkg/util"
)

// OutcomeRecorder feeds settled P/L back into the risk ledger.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, pnl float64) error
}

// Tracker closes the loop: it counts pipeline activity for the daily
// report, records open positions, and settles them when markets resolve.
type Tracker struct {
	mu      sync.Mutex
	loc     *time.Location
	now     func() time.Time
	stats   models.DailyStats
	ledger  drepo.Ledger
	archive drepo.Archive
	risk    OutcomeRecorder
	notify  drepo.Notifier
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewTracker creates a performance tracker.
func NewTracker(loc *time.Location, ledger drepo.Ledger, archive drepo.Archive, risk OutcomeRecorder, notify drepo.Notifier, metrics drepo.Metrics, log *logger.Logger) *Tracker {
	t := &Tracker{
		loc:     loc,
		now:     time.Now,
		ledger:  ledger,
		archive: archive,
		risk:    risk,
		notify:  notify,
		metrics: metrics,
		log:     log,
	}
	t.stats.Day = util.TradingDay(t.now(), loc)
	return t
}

// WithNow overrides the clock, for tests.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.now = now
	t.mu.Lock()
	t.stats.Day = util.TradingDay(now(), t.loc)
	t.mu.Unlock()
	return t
}

// CountEvent counts one admitted trade event.
func (t *Tracker) CountEvent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureDay()
	t.stats.Events++
}

// CountDecision counts one terminal decision.
func (t *Tracker) CountDecision(d *models.Decision) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureDay()
	t.stats.Decisions++
	switch d.Outcome {
	case models.OutcomeApproved:
		t.stats.Approved++
	case models.OutcomeExecuted:
		t.stats.Executed++
		t.stats.Wagered += d.Stake
	case models.OutcomeFailed:
		t.stats.Wagered += d.Stake // the reservation stays spent
	case models.OutcomeSkipped:
		t.stats.Skipped++
	case models.OutcomeBlocked:
		t.stats.Blocked++
	}
}

// TrackExecution records an executed decision as an open position
// awaiting market resolution.
func (t *Tracker) TrackExecution(ctx context.Context, d *models.Decision) error {
	p := &models.PerformanceRecord{
		EventID:    d.EventID,
		MarketID:   d.Event.MarketID,
		Outcome:    d.Event.Outcome,
		Side:       d.Event.Side,
		Stake:      d.Stake,
		EntryPrice: d.Execution.Price,
		Shares:     d.Execution.Shares,
		Result:     models.ResultPending,
		PlacedAt:   d.Execution.ExecutedAt,
	}
	if err := t.ledger.SavePending(ctx, p); err != nil {
		return fmt.Errorf("save pending position: %w", err)
	}

	t.mu.Lock()
	t.ensureDay()
	t.stats.OpenTrades++
	t.mu.Unlock()
	return nil
}

// OnResolution settles every open position in the resolved market.
// Returns the number of positions settled.
func (t *Tracker) OnResolution(ctx context.Context, res *models.MarketResolution) (int, error) {
	records, err := t.ledger.PendingByMarket(ctx, res.MarketID)
	if err != nil {
		return 0, fmt.Errorf("load pending positions: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	var firstErr error
	settled := 0
	for _, p := range records {
		p.Settle(res.WinningOutcome, res.ResolvedAt)

		if err := t.risk.RecordOutcome(ctx, p.PnL); err != nil {
			t.metrics.RecordError("risk_outcome")
			if firstErr == nil {
				firstErr = err
			}
			continue // keep the position pending; redelivery retries it
		}
		if err := t.archive.StorePerformance(ctx, p); err != nil {
			t.metrics.RecordError("archive")
			t.log.Error("archive performance record",
				logger.String("event_id", p.EventID), logger.Error(err))
		}
		if err := t.ledger.RemovePending(ctx, res.MarketID, p.EventID); err != nil {
			t.metrics.RecordError("ledger")
			t.log.Error("remove pending position",
				logger.String("event_id", p.EventID), logger.Error(err))
		}

		t.mu.Lock()
		t.ensureDay()
		if p.Result == models.ResultWin {
			t.stats.Wins++
		} else {
			t.stats.Losses++
		}
		t.stats.PnL += p.PnL
		if t.stats.OpenTrades > 0 {
			t.stats.OpenTrades--
		}
		t.mu.Unlock()

		settled++
		t.log.Info("position settled",
			logger.String("event_id", p.EventID),
			logger.String("market_id", p.MarketID),
			logger.String("result", p.Result),
			logger.Float64("pnl", p.PnL),
		)
	}
	return settled, firstErr
}

// Stats returns a snapshot of today's counters.
func (t *Tracker) Stats() models.DailyStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureDay()
	return t.stats
}

// RolloverReport snapshots the finished day, resets the counters, and
// sends the daily report. Wired to the risk manager's rollover hook.
func (t *Tracker) RolloverReport(prev models.RiskState) {
	t.mu.Lock()
	snapshot := t.stats
	if snapshot.Wagered == 0 {
		snapshot.Wagered = prev.AmountWagered
	}
	openTrades := t.stats.OpenTrades
	t.stats = models.DailyStats{
		Day:        util.TradingDay(t.now(), t.loc),
		OpenTrades: openTrades, // positions carry over, daily counters do not
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.notify.NotifyDailyReport(ctx, &snapshot); err != nil {
		t.metrics.RecordError("notify")
		t.log.Warn("daily report delivery failed", logger.Error(err))
	}
}

// ensureDay resets counters when the trading day changed. Open positions
// survive the reset. Caller must hold the lock.
func (t *Tracker) ensureDay() {
	day := util.TradingDay(t.now(), t.loc)
	if day == t.stats.Day {
		return
	}
	open := t.stats.OpenTrades
	t.stats = models.DailyStats{Day: day, OpenTrades: open}
}
