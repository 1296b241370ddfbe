package models

import "time"

// Terminal pipeline outcomes for a decision.
const (
	OutcomeApproved = "approved" // passed gates, alert-only mode
	OutcomeExecuted = "executed" // passed gates, order placed
	OutcomeFailed   = "failed"   // passed gates, order attempt failed
	OutcomeSkipped  = "skipped"  // below gates or analyst said skip
	OutcomeBlocked  = "blocked"  // rejected by the risk ledger
)

// Decision is the full record of one trade event's trip through the
// pipeline. Exactly one Decision exists per event ID.
type Decision struct {
	EventID   string          `json:"event_id"`
	Event     *TradeEvent     `json:"event"`
	Wallet    *WalletProfile  `json:"wallet,omitempty"`
	Market    *MarketProfile  `json:"market,omitempty"`
	Score     *SuspicionScore `json:"score"`
	Opinion   *AIOpinion      `json:"opinion,omitempty"` // set only when escalated
	Outcome   string          `json:"outcome"`
	Reason    string          `json:"reason,omitempty"`
	Stake     float64         `json:"stake,omitempty"` // reserved amount, USD
	Execution *Execution      `json:"execution,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Execution records a placed mirror order.
type Execution struct {
	OrderID    string    `json:"order_id"`
	Price      float64   `json:"price"`
	Shares     float64   `json:"shares"`
	ExecutedAt time.Time `json:"executed_at"`
}
