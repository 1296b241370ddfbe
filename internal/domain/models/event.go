package models

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TradeEvent is a single fill observed on the market trade stream.
type TradeEvent struct {
	ID        string
	MarketID  string
	Outcome   string // outcome token label, e.g. "Yes"
	Wallet    string
	Side      Side
	Price     float64 // implied probability, (0, 1)
	Size      float64 // shares
	AmountUSD float64 // price * size
	Timestamp time.Time
}

// WalletProfile describes the trading history of a wallet.
type WalletProfile struct {
	Address    string
	FirstSeen  time.Time
	TradeCount int
}

// AgeDays returns the wallet age in whole days at the time of now.
func (w *WalletProfile) AgeDays(now time.Time) int {
	if w.FirstSeen.IsZero() || now.Before(w.FirstSeen) {
		return 0
	}
	return int(now.Sub(w.FirstSeen).Hours() / 24)
}

// MarketProfile describes the market an event trades in.
type MarketProfile struct {
	ID         string
	Question   string
	VolumeRank int // 1 = highest 24h volume; 0 = unranked
	Volume24h  float64
	Active     bool
}
