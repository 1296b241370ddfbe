package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PolySentry/internal/domain/models"
	"PolySentry/internal/domain/repository"
	"PolySentry/pkg/cache"
)

// Key layout, relative to the client prefix:
//
//	risk:<day>            risk ledger JSON
//	decision:<event_id>   decision JSON, SETNX-claimed
//	pending:<market_id>   set of pending event IDs
//	position:<event_id>   pending performance record JSON
const (
	decisionTTL = 30 * 24 * time.Hour
	positionTTL = 90 * 24 * time.Hour
)

// RedisLedger implements Ledger on Redis.
type RedisLedger struct {
	client *cache.RedisClient
}

// NewRedisLedger creates a Redis-backed ledger.
func NewRedisLedger(client *cache.RedisClient) repository.Ledger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) LoadRiskState(ctx context.Context, day string) (*models.RiskState, error) {
	var st models.RiskState
	err := l.client.GetJSON(ctx, "risk:"+day, &st)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load risk state: %w", err)
	}
	return &st, nil
}

func (l *RedisLedger) SaveRiskState(ctx context.Context, st *models.RiskState) error {
	// Keep yesterday's ledger around for the daily report.
	return l.client.SetJSON(ctx, "risk:"+st.Day, st, 48*time.Hour)
}

func (l *RedisLedger) CreateDecision(ctx context.Context, d *models.Decision) (bool, error) {
	return l.client.SetJSONNX(ctx, "decision:"+d.EventID, d, decisionTTL)
}

func (l *RedisLedger) SaveDecision(ctx context.Context, d *models.Decision) error {
	return l.client.SetJSON(ctx, "decision:"+d.EventID, d, decisionTTL)
}

func (l *RedisLedger) GetDecision(ctx context.Context, eventID string) (*models.Decision, error) {
	var d models.Decision
	err := l.client.GetJSON(ctx, "decision:"+eventID, &d)
	if errors.Is(err, cache.ErrMiss) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (l *RedisLedger) SavePending(ctx context.Context, p *models.PerformanceRecord) error {
	if err := l.client.SetJSON(ctx, "position:"+p.EventID, p, positionTTL); err != nil {
		return err
	}
	if err := l.client.SAdd(ctx, "pending:"+p.MarketID, p.EventID); err != nil {
		return err
	}
	return l.client.Expire(ctx, "pending:"+p.MarketID, positionTTL)
}

func (l *RedisLedger) PendingByMarket(ctx context.Context, marketID string) ([]*models.PerformanceRecord, error) {
	ids, err := l.client.SMembers(ctx, "pending:"+marketID)
	if err != nil {
		return nil, err
	}

	records := make([]*models.PerformanceRecord, 0, len(ids))
	for _, id := range ids {
		var p models.PerformanceRecord
		err := l.client.GetJSON(ctx, "position:"+id, &p)
		if errors.Is(err, cache.ErrMiss) {
			// Position expired under the set entry; drop the orphan.
			_ = l.client.SRem(ctx, "pending:"+marketID, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, &p)
	}
	return records, nil
}

func (l *RedisLedger) RemovePending(ctx context.Context, marketID, eventID string) error {
	if err := l.client.SRem(ctx, "pending:"+marketID, eventID); err != nil {
		return err
	}
	return l.client.Delete(ctx, "position:"+eventID)
}

func (l *RedisLedger) Health(ctx context.Context) error {
	return l.client.Ping(ctx)
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
