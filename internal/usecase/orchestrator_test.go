package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"PolySentry/internal/domain/models"
	localrepo "PolySentry/internal/repository"
	"PolySentry/internal/services/risk"
	"PolySentry/internal/services/scoring"
	"PolySentry/pkg/config"
	"PolySentry/pkg/logger"
)

type stubResolver struct {
	wallet *models.WalletProfile
	market *models.MarketProfile
	err    error
}

func (s *stubResolver) WalletProfile(context.Context, string) (*models.WalletProfile, error) {
	return s.wallet, s.err
}

func (s *stubResolver) MarketProfile(context.Context, string) (*models.MarketProfile, error) {
	return s.market, s.err
}

type stubAnalyzer struct {
	opinion *models.AIOpinion
	err     error
	calls   int
}

func (s *stubAnalyzer) Analyze(context.Context, *models.TradeEvent, *models.SuspicionScore, *models.MarketProfile) (*models.AIOpinion, error) {
	s.calls++
	return s.opinion, s.err
}

type stubExecutor struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubExecutor) PlaceOrder(_ context.Context, d *models.Decision) (*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.Execution{
		OrderID:    "ord-" + d.EventID,
		Price:      d.Event.Price,
		Shares:     d.Stake / d.Event.Price,
		ExecutedAt: time.Now(),
	}, nil
}

type stubNotifier struct {
	mu        sync.Mutex
	decisions []string
	reports   []*models.DailyStats
	halts     []string
}

func (s *stubNotifier) NotifyDecision(_ context.Context, d *models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d.Outcome)
	return nil
}

func (s *stubNotifier) NotifyDailyReport(_ context.Context, st *models.DailyStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, st)
	return nil
}

func (s *stubNotifier) NotifyHalt(_ context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halts = append(s.halts, reason)
	return nil
}

type stubArchive struct {
	mu          sync.Mutex
	decisions   []*models.Decision
	performance []*models.PerformanceRecord
}

func (s *stubArchive) Init(context.Context) error { return nil }

func (s *stubArchive) StoreDecision(_ context.Context, d *models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *stubArchive) StorePerformance(_ context.Context, p *models.PerformanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.performance = append(s.performance, p)
	return nil
}

func (s *stubArchive) RecentDecisions(context.Context, int) ([]*models.Decision, error) {
	return nil, nil
}

func (s *stubArchive) Health(context.Context) error { return nil }
func (s *stubArchive) Close() error                 { return nil }

type stubAudit struct {
	mu        sync.Mutex
	published []*models.Decision
}

func (s *stubAudit) PublishDecision(_ context.Context, d *models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, d)
	return nil
}

func (s *stubAudit) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordEvent(string)                  {}
func (nopMetrics) RecordDecision(string)               {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordStageLatency(string, float64)  {}
func (nopMetrics) SetRiskGauges(int, float64, float64) {}

type harness struct {
	orch     *Orchestrator
	norm     *Normalizer
	resolver *stubResolver
	analyzer *stubAnalyzer
	executor *stubExecutor
	notifier *stubNotifier
	archive  *stubArchive
	audit    *stubAudit
	risk     *risk.Manager
	tracker  *Tracker
}

func defaultOrchConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Mode:              config.ModeAutoExecute,
		WhaleThreshold:    10000,
		EscalationLow:     0.4,
		EscalationHigh:    0.7,
		ApproveScore:      0.7,
		ApproveConfidence: 0.7,
		EventDeadline:     5 * time.Second,
		Stake:             50,
	}
}

func newHarness(t *testing.T, cfg OrchestratorConfig, riskCfg risk.Config) *harness {
	t.Helper()

	ledger := localrepo.NewMemoryLedger()
	rm, err := risk.NewManager(context.Background(), riskCfg, ledger, time.UTC, logger.Nop())
	if err != nil {
		t.Fatalf("risk manager: %v", err)
	}

	notifier := &stubNotifier{}
	archive := &stubArchive{}
	tracker := NewTracker(time.UTC, ledger, archive, rm, notifier, nopMetrics{}, logger.Nop())

	h := &harness{
		norm: NewNormalizer(time.Hour),
		resolver: &stubResolver{
			wallet: &models.WalletProfile{Address: "0xabc", FirstSeen: time.Now().AddDate(-1, 0, 0)},
			market: &models.MarketProfile{ID: "mkt-1", Question: "Will it happen?", VolumeRank: 75, Active: true},
		},
		analyzer: &stubAnalyzer{},
		executor: &stubExecutor{},
		notifier: notifier,
		archive:  archive,
		audit:    &stubAudit{},
		risk:     rm,
		tracker:  tracker,
	}
	h.orch = NewOrchestrator(cfg, OrchestratorDeps{
		Resolver: h.resolver,
		Analyzer: h.analyzer,
		Executor: h.executor,
		Notifier: h.notifier,
		Ledger:   ledger,
		Archive:  h.archive,
		Audit:    h.audit,
		Metrics:  nopMetrics{},
		Risk:     rm,
		Engine: scoring.NewEngine(scoring.Config{
			WhaleThreshold:   cfg.WhaleThreshold,
			NewWalletDays:    7,
			NicheRank:        50,
			PriceLowExtreme:  0.05,
			PriceHighExtreme: 0.95,
			ClusterSize:      3,
		}),
		Window:  scoring.NewMarketWindow(5 * time.Minute),
		Tracker: tracker,
		Logger:  logger.Nop(),
	})
	return h
}

// whaleEvent scores 0.95: large amount (5x), brand-new wallet, niche
// market (rank 75), extreme price.
func whaleEvent(id string) *models.TradeEvent {
	return &models.TradeEvent{
		ID:        id,
		MarketID:  "mkt-1",
		Outcome:   "Yes",
		Wallet:    "0xabc",
		Side:      models.SideBuy,
		Price:     0.05,
		Size:      1000000,
		AmountUSD: 50000,
		Timestamp: time.Now().Add(-time.Second),
	}
}

// midEvent scores 0.45 (large amount 0.10, niche market 0.20, price
// extremity 0.15): inside the escalation band.
func midEvent(id string) *models.TradeEvent {
	ev := whaleEvent(id)
	ev.AmountUSD = 20000
	return ev
}

func (h *harness) run(ev *models.TradeEvent) *models.Decision {
	h.orch.handleEvent(context.Background(), h.norm, ev)
	d, err := h.orch.deps.Ledger.GetDecision(context.Background(), ev.ID)
	if err != nil {
		return nil
	}
	return d
}

func TestHighScoreEventIsExecuted(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.resolver.wallet.FirstSeen = time.Now().AddDate(0, 0, -3)

	d := h.run(whaleEvent("evt-1"))
	if d == nil {
		t.Fatal("no decision recorded")
	}
	if d.Outcome != models.OutcomeExecuted {
		t.Fatalf("expected executed, got %s (%s)", d.Outcome, d.Reason)
	}
	if h.executor.calls != 1 {
		t.Fatalf("expected exactly one order, got %d", h.executor.calls)
	}
	if h.analyzer.calls != 0 {
		t.Fatal("high-band event must not be escalated")
	}

	st := h.risk.Snapshot()
	if st.BetsPlaced != 1 || st.AmountWagered != 50 {
		t.Fatalf("risk ledger: %+v", st)
	}
	pending, _ := h.orch.deps.Ledger.PendingByMarket(context.Background(), "mkt-1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 open position, got %d", len(pending))
	}
	if len(h.audit.published) != 1 {
		t.Fatalf("expected 1 audit message, got %d", len(h.audit.published))
	}
}

func TestReplayedEventProducesNoSecondDecision(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.resolver.wallet.FirstSeen = time.Now().AddDate(0, 0, -3)

	h.run(whaleEvent("evt-1"))
	h.run(whaleEvent("evt-1"))

	if h.executor.calls != 1 {
		t.Fatalf("replay must not re-execute: %d calls", h.executor.calls)
	}
	st := h.risk.Snapshot()
	if st.BetsPlaced != 1 {
		t.Fatalf("replay must not debit the ledger again: %+v", st)
	}
}

func TestMidBandEscalatesAndFollowsAnalyst(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.analyzer.opinion = &models.AIOpinion{Recommendation: models.RecommendAct, Confidence: 0.9}

	d := h.run(midEvent("evt-2"))
	if d == nil || d.Outcome != models.OutcomeExecuted {
		t.Fatalf("expected executed, got %+v", d)
	}
	if h.analyzer.calls != 1 {
		t.Fatalf("expected one escalation, got %d", h.analyzer.calls)
	}
	if d.Opinion == nil || d.Opinion.Confidence != 0.9 {
		t.Fatalf("opinion not recorded: %+v", d.Opinion)
	}
}

func TestMidBandSkipsOnAnalystSkip(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.analyzer.opinion = &models.AIOpinion{Recommendation: models.RecommendSkip, Confidence: 0.8}

	d := h.run(midEvent("evt-3"))
	if d == nil || d.Outcome != models.OutcomeSkipped {
		t.Fatalf("expected skipped, got %+v", d)
	}
	if h.executor.calls != 0 {
		t.Fatal("skipped decision must not execute")
	}
	if st := h.risk.Snapshot(); st.BetsPlaced != 0 {
		t.Fatalf("skipped decision must not reserve budget: %+v", st)
	}
}

func TestSkippedDecisionIsNotified(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.analyzer.opinion = &models.AIOpinion{Recommendation: models.RecommendSkip, Confidence: 0.8}

	d := h.run(midEvent("evt-15"))
	if d == nil || d.Outcome != models.OutcomeSkipped {
		t.Fatalf("expected skipped, got %+v", d)
	}
	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	if len(h.notifier.decisions) != 1 || h.notifier.decisions[0] != models.OutcomeSkipped {
		t.Fatalf("skipped outcome must be notified exactly once, got %v", h.notifier.decisions)
	}
}

func TestMidBandSkipsOnLowConfidence(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.analyzer.opinion = &models.AIOpinion{Recommendation: models.RecommendAct, Confidence: 0.5}

	d := h.run(midEvent("evt-4"))
	if d == nil || d.Outcome != models.OutcomeSkipped {
		t.Fatalf("expected skipped, got %+v", d)
	}
}

func TestAnalysisFailureDegradesToSkip(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.analyzer.err = errors.New("model timeout")

	d := h.run(midEvent("evt-5"))
	if d == nil || d.Outcome != models.OutcomeSkipped {
		t.Fatalf("expected skipped on analysis failure, got %+v", d)
	}
}

func TestRiskCapBlocksApprovedEvent(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 1, MaxDailyWager: 1000, MaxDailyLoss: 200})
	h.resolver.wallet.FirstSeen = time.Now().AddDate(0, 0, -3)

	first := h.run(whaleEvent("evt-6"))
	second := h.run(whaleEvent("evt-7"))

	if first == nil || first.Outcome != models.OutcomeExecuted {
		t.Fatalf("first event: %+v", first)
	}
	if second == nil || second.Outcome != models.OutcomeBlocked {
		t.Fatalf("second event should be blocked: %+v", second)
	}
	if second.Reason != models.RiskReasonBetCap {
		t.Fatalf("unexpected block reason: %s", second.Reason)
	}
	if h.executor.calls != 1 {
		t.Fatalf("blocked decision must not execute: %d calls", h.executor.calls)
	}
}

func TestFailedExecutionKeepsDebit(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.resolver.wallet.FirstSeen = time.Now().AddDate(0, 0, -3)
	h.executor.err = errors.New("exchange down")

	d := h.run(whaleEvent("evt-8"))
	if d == nil || d.Outcome != models.OutcomeFailed {
		t.Fatalf("expected failed, got %+v", d)
	}
	st := h.risk.Snapshot()
	if st.BetsPlaced != 1 || st.AmountWagered != 50 {
		t.Fatalf("failed execution must keep its debit: %+v", st)
	}
	pending, _ := h.orch.deps.Ledger.PendingByMarket(context.Background(), "mkt-1")
	if len(pending) != 0 {
		t.Fatalf("failed execution must not open a position: %d", len(pending))
	}
}

func TestAlertOnlyModeApprovesWithoutExecuting(t *testing.T) {
	cfg := defaultOrchConfig()
	cfg.Mode = config.ModeAlertOnly
	h := newHarness(t, cfg, risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.resolver.wallet.FirstSeen = time.Now().AddDate(0, 0, -3)

	d := h.run(whaleEvent("evt-9"))
	if d == nil || d.Outcome != models.OutcomeApproved {
		t.Fatalf("expected approved, got %+v", d)
	}
	if h.executor.calls != 0 {
		t.Fatal("alert-only mode must never execute")
	}
	// paper exposure still consumes the daily budget
	if st := h.risk.Snapshot(); st.BetsPlaced != 1 {
		t.Fatalf("alert-only approval should reserve budget: %+v", st)
	}
	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	if len(h.notifier.decisions) != 1 || h.notifier.decisions[0] != models.OutcomeApproved {
		t.Fatalf("expected one approval alert, got %v", h.notifier.decisions)
	}
}

func TestAlertOnlyModeDoesNotEscalate(t *testing.T) {
	cfg := defaultOrchConfig()
	cfg.Mode = config.ModeAlertOnly
	h := newHarness(t, cfg, risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.analyzer.opinion = &models.AIOpinion{Recommendation: models.RecommendAct, Confidence: 0.9}

	d := h.run(midEvent("evt-13"))
	if h.analyzer.calls != 0 {
		t.Fatal("alert-only mode must not escalate")
	}
	if d == nil || d.Outcome != models.OutcomeSkipped {
		t.Fatalf("mid-band event should be skipped in alert-only mode, got %+v", d)
	}
}

func TestExpiredDeadlineSkipsWithoutReserving(t *testing.T) {
	cfg := defaultOrchConfig()
	cfg.EventDeadline = -time.Second
	h := newHarness(t, cfg, risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.resolver.wallet.FirstSeen = time.Now().AddDate(0, 0, -3)

	d := h.run(whaleEvent("evt-14"))
	if d == nil || d.Outcome != models.OutcomeSkipped || d.Reason != "timeout" {
		t.Fatalf("expected timeout skip, got %+v", d)
	}
	if st := h.risk.Snapshot(); st.BetsPlaced != 0 {
		t.Fatalf("timed-out event must not hold a reservation: %+v", st)
	}
	if h.executor.calls != 0 {
		t.Fatal("timed-out event must not execute")
	}
}

func TestBelowWhaleThresholdIgnored(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})

	ev := whaleEvent("evt-10")
	ev.AmountUSD = 500
	if d := h.run(ev); d != nil {
		t.Fatalf("small trade should produce no decision, got %+v", d)
	}
}

func TestInvalidEventIgnored(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})

	ev := whaleEvent("evt-11")
	ev.Price = 0
	if d := h.run(ev); d != nil {
		t.Fatalf("invalid event should produce no decision, got %+v", d)
	}
	if h.executor.calls != 0 {
		t.Fatal("invalid event must not execute")
	}
}

func TestEnrichmentFailureStillScores(t *testing.T) {
	h := newHarness(t, defaultOrchConfig(), risk.Config{MaxDailyBets: 5, MaxDailyWager: 250, MaxDailyLoss: 200})
	h.resolver.err = errors.New("gamma down")

	// Without wallet/market factors this event scores 0.35 (large
	// amount 0.20 + price extremity 0.15): below the escalation band.
	d := h.run(whaleEvent("evt-12"))
	if d == nil || d.Outcome != models.OutcomeSkipped {
		t.Fatalf("expected skipped with degraded enrichment, got %+v", d)
	}
}
