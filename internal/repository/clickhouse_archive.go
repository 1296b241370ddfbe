package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"PolySentry/internal/domain/models"
	"PolySentry/internal/domain/repository"
)

var archiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS decisions (
		event_id       String,
		market_id      String,
		question       String,
		wallet         String,
		side           String,
		price          Float64,
		amount_usd     Float64,
		score          Float64,
		factors        String,
		recommendation String,
		confidence     Float64,
		outcome        String,
		reason         String,
		stake          Float64,
		order_id       String,
		created_at     DateTime64(3)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(created_at)
	ORDER BY (created_at, event_id)`,

	`CREATE TABLE IF NOT EXISTS performance (
		event_id    String,
		market_id   String,
		outcome     String,
		side        String,
		stake       Float64,
		entry_price Float64,
		shares      Float64,
		result      String,
		pnl         Float64,
		placed_at   DateTime64(3),
		resolved_at DateTime64(3)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(resolved_at)
	ORDER BY (resolved_at, event_id)`,
}

// ClickHouseArchive implements Archive on ClickHouse.
type ClickHouseArchive struct {
	db *sql.DB
}

// NewClickHouseArchive creates a ClickHouse-backed archive.
func NewClickHouseArchive(db *sql.DB) repository.Archive {
	return &ClickHouseArchive{db: db}
}

func (a *ClickHouseArchive) Init(ctx context.Context) error {
	for _, stmt := range archiveSchema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("archive schema: %w", err)
		}
	}
	return nil
}

func (a *ClickHouseArchive) StoreDecision(ctx context.Context, d *models.Decision) error {
	factors, err := json.Marshal(d.Score.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}

	var question string
	if d.Market != nil {
		question = d.Market.Question
	}
	var recommendation string
	var confidence float64
	if d.Opinion != nil {
		recommendation = d.Opinion.Recommendation
		confidence = d.Opinion.Confidence
	}
	var orderID string
	if d.Execution != nil {
		orderID = d.Execution.OrderID
	}

	const q = `INSERT INTO decisions
		(event_id, market_id, question, wallet, side, price, amount_usd,
		 score, factors, recommendation, confidence, outcome, reason, stake, order_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = a.db.ExecContext(ctx, q,
		d.EventID,
		d.Event.MarketID,
		question,
		d.Event.Wallet,
		string(d.Event.Side),
		d.Event.Price,
		d.Event.AmountUSD,
		d.Score.Value,
		string(factors),
		recommendation,
		confidence,
		d.Outcome,
		d.Reason,
		d.Stake,
		orderID,
		d.CreatedAt,
	)
	return err
}

func (a *ClickHouseArchive) StorePerformance(ctx context.Context, p *models.PerformanceRecord) error {
	const q = `INSERT INTO performance
		(event_id, market_id, outcome, side, stake, entry_price, shares, result, pnl, placed_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := a.db.ExecContext(ctx, q,
		p.EventID,
		p.MarketID,
		p.Outcome,
		string(p.Side),
		p.Stake,
		p.EntryPrice,
		p.Shares,
		p.Result,
		p.PnL,
		p.PlacedAt,
		p.ResolvedAt,
	)
	return err
}

func (a *ClickHouseArchive) RecentDecisions(ctx context.Context, limit int) ([]*models.Decision, error) {
	const q = `SELECT event_id, market_id, question, wallet, side, price, amount_usd,
		score, factors, recommendation, confidence, outcome, reason, stake, order_id, created_at
		FROM decisions ORDER BY created_at DESC LIMIT ?`
	rows, err := a.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		d := &models.Decision{
			Event:  &models.TradeEvent{},
			Market: &models.MarketProfile{},
			Score:  &models.SuspicionScore{},
		}
		var side, factors, recommendation, orderID string
		var confidence float64
		if err := rows.Scan(
			&d.EventID,
			&d.Event.MarketID,
			&d.Market.Question,
			&d.Event.Wallet,
			&side,
			&d.Event.Price,
			&d.Event.AmountUSD,
			&d.Score.Value,
			&factors,
			&recommendation,
			&confidence,
			&d.Outcome,
			&d.Reason,
			&d.Stake,
			&orderID,
			&d.CreatedAt,
		); err != nil {
			return nil, err
		}
		d.Event.ID = d.EventID
		d.Event.Side = models.Side(side)
		d.Score.EventID = d.EventID
		d.Market.ID = d.Event.MarketID
		if factors != "" {
			_ = json.Unmarshal([]byte(factors), &d.Score.Factors)
		}
		if recommendation != "" {
			d.Opinion = &models.AIOpinion{Recommendation: recommendation, Confidence: confidence}
		}
		if orderID != "" {
			d.Execution = &models.Execution{OrderID: orderID}
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func (a *ClickHouseArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *ClickHouseArchive) Close() error {
	return nil // pool is owned by pkg/clickhouse
}
