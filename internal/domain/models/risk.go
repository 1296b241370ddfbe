package models

// Risk rejection reasons.
const (
	RiskReasonBetCap   = "daily bet cap reached"
	RiskReasonWagerCap = "daily wager cap reached"
	RiskReasonLossCap  = "daily loss cap reached"
	RiskReasonHalted   = "trading halted"
)

// RiskState is the daily risk ledger. All fields count only the current
// trading day and reset on day rollover.
type RiskState struct {
	Day           string  `json:"day"` // YYYY-MM-DD in the configured timezone
	BetsPlaced    int     `json:"bets_placed"`
	AmountWagered float64 `json:"amount_wagered"`
	RealizedLoss  float64 `json:"realized_loss"`
	Halted        bool    `json:"halted"`
}

// RiskVerdict is the result of a reservation attempt.
type RiskVerdict struct {
	Allowed bool
	Reason  string // set when not allowed
}
