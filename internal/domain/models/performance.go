package models

import "time"

// Performance results.
const (
	ResultPending = "pending"
	ResultWin     = "win"
	ResultLoss    = "loss"
)

// PerformanceRecord tracks the outcome of one executed decision.
type PerformanceRecord struct {
	EventID    string    `json:"event_id"`
	MarketID   string    `json:"market_id"`
	Outcome    string    `json:"outcome"` // outcome token the position is on
	Side       Side      `json:"side"`
	Stake      float64   `json:"stake"`
	EntryPrice float64   `json:"entry_price"`
	Shares     float64   `json:"shares"`
	Result     string    `json:"result"`
	PnL        float64   `json:"pnl"`
	PlacedAt   time.Time `json:"placed_at"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// Settle applies a market resolution to a pending record. A winning
// position pays out shares * 1.00; a losing one forfeits the stake.
// A SELL is a long position on the complement: it wins when the outcome
// loses, at the complementary entry price.
func (p *PerformanceRecord) Settle(winningOutcome string, at time.Time) {
	won := p.Outcome == winningOutcome
	entry := p.EntryPrice
	if p.Side == SideSell {
		won = !won
		entry = 1 - p.EntryPrice
	}
	if won {
		p.Result = ResultWin
		p.PnL = p.Stake * (1 - entry) / entry
	} else {
		p.Result = ResultLoss
		p.PnL = -p.Stake
	}
	p.ResolvedAt = at
}

// MarketResolution announces the winning outcome of a market.
type MarketResolution struct {
	MarketID       string    `json:"market_id"`
	WinningOutcome string    `json:"winning_outcome"`
	ResolvedAt     time.Time `json:"resolved_at"`
}

// DailyStats summarizes one trading day.
type DailyStats struct {
	Day        string  `json:"day"`
	Events     int64   `json:"events"`
	Decisions  int64   `json:"decisions"`
	Approved   int64   `json:"approved"`
	Executed   int64   `json:"executed"`
	Skipped    int64   `json:"skipped"`
	Blocked    int64   `json:"blocked"`
	Wins       int64   `json:"wins"`
	Losses     int64   `json:"losses"`
	PnL        float64 `json:"pnl"`
	Wagered    float64 `json:"wagered"`
	OpenTrades int64   `json:"open_trades"`
}
