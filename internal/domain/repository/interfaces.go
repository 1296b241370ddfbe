package repository

import (
	"context"

	"PolySentry/internal/domain/models"
)

// TradeStream delivers live trade events from the exchange websocket.
type TradeStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.TradeEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// MetadataResolver enriches events with wallet and market context.
type MetadataResolver interface {
	WalletProfile(ctx context.Context, address string) (*models.WalletProfile, error)
	MarketProfile(ctx context.Context, marketID string) (*models.MarketProfile, error)
}

// Analyzer escalates mid-band events to an external analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, ev *models.TradeEvent, score *models.SuspicionScore, market *models.MarketProfile) (*models.AIOpinion, error)
}

// Executor places mirror orders on the exchange.
type Executor interface {
	PlaceOrder(ctx context.Context, d *models.Decision) (*models.Execution, error)
}

// Notifier delivers human-facing alerts. Implementations must be safe to
// call from multiple goroutines; delivery is best-effort.
type Notifier interface {
	NotifyDecision(ctx context.Context, d *models.Decision) error
	NotifyDailyReport(ctx context.Context, s *models.DailyStats) error
	NotifyHalt(ctx context.Context, reason string) error
}

// Ledger persists risk state, decisions, and open positions so a restart
// cannot forget how much was already spent today.
type Ledger interface {
	LoadRiskState(ctx context.Context, day string) (*models.RiskState, error)
	SaveRiskState(ctx context.Context, st *models.RiskState) error

	// CreateDecision claims an event ID. Returns false when a decision
	// for the event already exists.
	CreateDecision(ctx context.Context, d *models.Decision) (bool, error)
	SaveDecision(ctx context.Context, d *models.Decision) error
	GetDecision(ctx context.Context, eventID string) (*models.Decision, error)

	SavePending(ctx context.Context, p *models.PerformanceRecord) error
	PendingByMarket(ctx context.Context, marketID string) ([]*models.PerformanceRecord, error)
	RemovePending(ctx context.Context, marketID, eventID string) error

	Health(ctx context.Context) error
	Close() error
}

// Archive is the append-only decision and performance store for
// after-the-fact analysis.
type Archive interface {
	Init(ctx context.Context) error
	StoreDecision(ctx context.Context, d *models.Decision) error
	StorePerformance(ctx context.Context, p *models.PerformanceRecord) error
	RecentDecisions(ctx context.Context, limit int) ([]*models.Decision, error)
	Health(ctx context.Context) error
	Close() error
}

// AuditPublisher emits terminal decisions to the audit topic.
type AuditPublisher interface {
	PublishDecision(ctx context.Context, d *models.Decision) error
	Close() error
}

// Metrics records operational telemetry.
type Metrics interface {
	RecordEvent(disposition string)
	RecordDecision(outcome string)
	RecordError(kind string)
	RecordStageLatency(stage string, seconds float64)
	SetRiskGauges(bets int, wagered, loss float64)
}
