package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PolySentry/internal/domain/models"
	drepo "PolySentry/internal/domain/repository"
	"PolySentry/internal/services/risk"
	"PolySentry/internal/services/scoring"
	"PolySentry/pkg/config"
	"PolySentry/pkg/logger"
)

// Event ingestion dispositions, recorded as metrics labels.
const (
	dispositionReceived  = "received"
	dispositionInvalid   = "invalid"
	dispositionDuplicate = "duplicate"
	dispositionBelow     = "below_threshold"
)

// OrchestratorConfig holds the pipeline decision thresholds.
type OrchestratorConfig struct {
	Mode              string
	WhaleThreshold    float64
	EscalationLow     float64
	EscalationHigh    float64
	ApproveScore      float64
	ApproveConfidence float64
	EventDeadline     time.Duration
	Stake             float64
}

// OrchestratorDeps bundles the pipeline's collaborators.
type OrchestratorDeps struct {
	Stream   drepo.TradeStream
	Resolver drepo.MetadataResolver
	Analyzer drepo.Analyzer
	Executor drepo.Executor
	Notifier drepo.Notifier
	Ledger   drepo.Ledger
	Archive  drepo.Archive
	Audit    drepo.AuditPublisher
	Metrics  drepo.Metrics
	Risk     *risk.Manager
	Engine   *scoring.Engine
	Window   *scoring.MarketWindow
	Tracker  *Tracker
	Logger   *logger.Logger
	Halt     func(reason string)
}

// Orchestrator sequences each trade event through enrichment, scoring,
// escalation, the risk gate, and execution. Each event runs on its own
// goroutine under a global deadline so a slow collaborator never blocks
// ingestion.
type Orchestrator struct {
	cfg  OrchestratorConfig
	deps OrchestratorDeps
	wg   sync.WaitGroup
}

// NewOrchestrator creates the pipeline orchestrator.
func NewOrchestrator(cfg OrchestratorConfig, deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{cfg: cfg, deps: deps}
}

// Run consumes the trade stream until ctx is cancelled, reconnecting on
// stream failures. Blocks; call from its own goroutine.
func (o *Orchestrator) Run(ctx context.Context, normalizer *Normalizer) error {
	log := o.deps.Logger

	// bound the cluster window's memory
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				o.deps.Window.Evict(now)
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !o.deps.Stream.IsConnected() {
			if err := o.deps.Stream.Connect(ctx); err != nil {
				o.deps.Metrics.RecordError("stream")
				log.Error("stream connect", logger.Error(err))
				if !sleepCtx(ctx, 5*time.Second) {
					return ctx.Err()
				}
				continue
			}
			if err := o.deps.Stream.Subscribe(ctx); err != nil {
				o.deps.Metrics.RecordError("stream")
				log.Error("stream subscribe", logger.Error(err))
				_ = o.deps.Stream.Close()
				continue
			}
		}

		events, errs := o.deps.Stream.Read(ctx)
	consume:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-events:
				if !ok {
					break consume
				}
				o.wg.Add(1)
				go func() {
					defer o.wg.Done()
					o.handleEvent(ctx, normalizer, ev)
				}()
			case err, ok := <-errs:
				if !ok {
					break consume
				}
				if err != nil {
					o.deps.Metrics.RecordError("stream")
					log.Warn("stream error, reconnecting", logger.Error(err))
				}
				break consume
			}
		}

		if err := o.deps.Stream.Reconnect(ctx); err != nil {
			o.deps.Metrics.RecordError("stream")
			log.Error("stream reconnect", logger.Error(err))
		}
	}
}

// Shutdown waits for in-flight events, bounded by ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for in-flight events: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// handleEvent runs the full per-event state machine.
func (o *Orchestrator) handleEvent(parent context.Context, normalizer *Normalizer, ev *models.TradeEvent) {
	log := o.deps.Logger
	start := time.Now()

	if err := normalizer.Normalize(ev); err != nil {
		if errors.Is(err, models.ErrDuplicateEvent) {
			o.deps.Metrics.RecordEvent(dispositionDuplicate)
		} else {
			o.deps.Metrics.RecordEvent(dispositionInvalid)
			log.Debug("event rejected", logger.String("event_id", ev.ID), logger.Error(err))
		}
		return
	}
	o.deps.Metrics.RecordEvent(dispositionReceived)
	o.deps.Tracker.CountEvent()

	if ev.AmountUSD < o.cfg.WhaleThreshold {
		o.deps.Metrics.RecordEvent(dispositionBelow)
		return
	}

	ctx, cancel := context.WithTimeout(parent, o.cfg.EventDeadline)
	defer cancel()

	d := &models.Decision{EventID: ev.ID, Event: ev, CreatedAt: time.Now()}

	// Claim the event ID. The persisted ledger, not the in-memory dedup
	// cache, is what makes decisions exactly-once across restarts.
	created, err := o.deps.Ledger.CreateDecision(ctx, d)
	if err != nil {
		o.deps.Metrics.RecordError("ledger")
		log.Error("claim event", logger.String("event_id", ev.ID), logger.Error(err))
		return
	}
	if !created {
		o.deps.Metrics.RecordEvent(dispositionDuplicate)
		return
	}

	// Enrichment is tolerant: a missing profile just means its factors
	// cannot fire.
	enrichStart := time.Now()
	wallet, err := o.deps.Resolver.WalletProfile(ctx, ev.Wallet)
	if err != nil {
		o.deps.Metrics.RecordError("resolver")
		log.Warn("wallet enrichment failed", logger.String("wallet", ev.Wallet), logger.Error(err))
		wallet = nil
	}
	market, err := o.deps.Resolver.MarketProfile(ctx, ev.MarketID)
	if err != nil {
		o.deps.Metrics.RecordError("resolver")
		log.Warn("market enrichment failed", logger.String("market_id", ev.MarketID), logger.Error(err))
		market = nil
	}
	d.Wallet, d.Market = wallet, market
	o.deps.Metrics.RecordStageLatency("enrich", time.Since(enrichStart).Seconds())

	cluster := o.deps.Window.Observe(ev)
	d.Score = o.deps.Engine.Score(ev, wallet, market, cluster)

	if o.cfg.Mode == config.ModeAutoExecute &&
		d.Score.Value >= o.cfg.EscalationLow && d.Score.Value < o.cfg.EscalationHigh {
		escStart := time.Now()
		op, err := o.deps.Analyzer.Analyze(ctx, ev, d.Score, market)
		if err != nil {
			// Missing opinion is treated as no escalation, not as approval.
			o.deps.Metrics.RecordError("analysis")
			log.Warn("analysis failed", logger.String("event_id", ev.ID), logger.Error(err))
		} else {
			d.Opinion = op
		}
		o.deps.Metrics.RecordStageLatency("analyze", time.Since(escStart).Seconds())
	}

	if ok, reason := o.clearsThresholds(d); !ok {
		o.finish(d, models.OutcomeSkipped, reason)
		return
	}
	if ctx.Err() != nil {
		// Deadline hit before any budget was reserved: plain skip.
		o.finish(d, models.OutcomeSkipped, "timeout")
		return
	}

	verdict, err := o.deps.Risk.TryReserve(ctx, o.cfg.Stake)
	if err != nil {
		o.deps.Metrics.RecordError("risk")
		log.Error("risk reservation", logger.String("event_id", ev.ID), logger.Error(err))
		o.finish(d, models.OutcomeBlocked, "risk ledger unavailable")
		return
	}
	if !verdict.Allowed {
		o.finish(d, models.OutcomeBlocked, verdict.Reason)
		return
	}
	if ctx.Err() != nil {
		// Deadline hit after reserving but before the order call: give
		// the budget back. Once the order call starts, the debit is final.
		relCtx, relCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer relCancel()
		if rerr := o.deps.Risk.Release(relCtx, o.cfg.Stake); rerr != nil {
			o.deps.Metrics.RecordError("risk")
			log.Error("release reservation", logger.String("event_id", ev.ID), logger.Error(rerr))
		}
		o.finish(d, models.OutcomeSkipped, "timeout")
		return
	}
	d.Stake = o.cfg.Stake

	if o.cfg.Mode == config.ModeAlertOnly {
		// The reservation is kept as paper exposure so alert-only mode
		// honors the same daily budget as live trading.
		o.finish(d, models.OutcomeApproved, "")
		o.deps.Metrics.RecordStageLatency("pipeline", time.Since(start).Seconds())
		return
	}

	o.execute(ctx, d)
	o.deps.Metrics.RecordStageLatency("pipeline", time.Since(start).Seconds())
}

// execute attempts the mirror order exactly once. Budget was already
// reserved and stays spent whatever happens here.
func (o *Orchestrator) execute(ctx context.Context, d *models.Decision) {
	log := o.deps.Logger

	if d.Execution != nil {
		o.haltFatal(fmt.Sprintf("event %s: execution attempted twice", d.EventID))
		return
	}

	execStart := time.Now()
	exec, err := o.deps.Executor.PlaceOrder(ctx, d)
	o.deps.Metrics.RecordStageLatency("execute", time.Since(execStart).Seconds())
	if err != nil {
		// The debit stays spent: a flaky exchange must not turn into a
		// retry storm against the daily budget.
		o.deps.Metrics.RecordError("execution")
		log.Error("order failed", logger.String("event_id", d.EventID), logger.Error(err))
		o.finish(d, models.OutcomeFailed, err.Error())
		return
	}
	d.Execution = exec

	trackCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.deps.Tracker.TrackExecution(trackCtx, d); err != nil {
		o.deps.Metrics.RecordError("ledger")
		log.Error("track execution", logger.String("event_id", d.EventID), logger.Error(err))
	}

	o.finish(d, models.OutcomeExecuted, "")
}

// clearsThresholds applies the approval rules: a HIGH score approves on
// its own; an escalated event approves only when the analyst says act
// with enough confidence.
func (o *Orchestrator) clearsThresholds(d *models.Decision) (bool, string) {
	if d.Score.Value >= o.cfg.ApproveScore {
		return true, ""
	}
	if d.Opinion != nil {
		if d.Opinion.Recommendation == models.RecommendAct && d.Opinion.Confidence >= o.cfg.ApproveConfidence {
			return true, ""
		}
		return false, fmt.Sprintf("analyst: %s (%.2f)", d.Opinion.Recommendation, d.Opinion.Confidence)
	}
	return false, "score below approval threshold"
}

// finish records a terminal decision: persist, archive, audit, count,
// and notify. Persistence uses a detached context so a blown event
// deadline cannot lose the record.
func (o *Orchestrator) finish(d *models.Decision, outcome, reason string) {
	log := o.deps.Logger

	if outcome == models.OutcomeExecuted && d.Execution == nil {
		o.haltFatal(fmt.Sprintf("event %s: executed outcome without execution record", d.EventID))
		return
	}

	d.Outcome = outcome
	d.Reason = reason

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.deps.Ledger.SaveDecision(ctx, d); err != nil {
		o.deps.Metrics.RecordError("ledger")
		log.Error("persist decision", logger.String("event_id", d.EventID), logger.Error(err))
	}
	if err := o.deps.Archive.StoreDecision(ctx, d); err != nil {
		o.deps.Metrics.RecordError("archive")
		log.Error("archive decision", logger.String("event_id", d.EventID), logger.Error(err))
	}
	if err := o.deps.Audit.PublishDecision(ctx, d); err != nil {
		o.deps.Metrics.RecordError("audit")
		log.Warn("audit publish", logger.String("event_id", d.EventID), logger.Error(err))
	}

	o.deps.Metrics.RecordDecision(outcome)
	o.deps.Tracker.CountDecision(d)

	log.Info("decision",
		logger.String("event_id", d.EventID),
		logger.String("market_id", d.Event.MarketID),
		logger.String("outcome", outcome),
		logger.Float64("score", d.Score.Value),
		logger.String("reason", reason),
	)

	// Every terminal state is notified exactly once; the notifier decides
	// how loud each outcome is.
	if err := o.deps.Notifier.NotifyDecision(ctx, d); err != nil {
		o.deps.Metrics.RecordError("notify")
		log.Warn("notify decision", logger.String("event_id", d.EventID), logger.Error(err))
	}
}

// haltFatal reports a broken invariant and stops intake.
func (o *Orchestrator) haltFatal(reason string) {
	o.deps.Metrics.RecordError("fatal")
	o.deps.Logger.Error("invariant broken, halting", logger.String("reason", reason))
	if o.deps.Halt != nil {
		o.deps.Halt(reason)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
