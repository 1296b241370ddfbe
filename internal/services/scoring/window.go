package scoring

import (
	"sync"
	"time"

	"PolySentry/internal/domain/models"
)

type windowEntry struct {
	wallet string
	side   models.Side
	at     time.Time
}

// MarketWindow tracks recent trades per market for coordinated-cluster
// detection. Observation is causal: an event only sees trades that
// arrived before it plus itself, never later ones.
type MarketWindow struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string][]windowEntry
}

// NewMarketWindow creates a window of the given duration.
func NewMarketWindow(window time.Duration) *MarketWindow {
	return &MarketWindow{
		window:  window,
		entries: make(map[string][]windowEntry),
	}
}

// Observe appends ev to its market's window and returns the number of
// distinct wallets trading the same side within the window, including
// ev's own wallet.
func (w *MarketWindow) Observe(ev *models.TradeEvent) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := ev.Timestamp.Add(-w.window)
	kept := w.entries[ev.MarketID][:0]
	for _, e := range w.entries[ev.MarketID] {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, windowEntry{wallet: ev.Wallet, side: ev.Side, at: ev.Timestamp})
	w.entries[ev.MarketID] = kept

	distinct := make(map[string]struct{}, len(kept))
	for _, e := range kept {
		if e.side == ev.Side {
			distinct[e.wallet] = struct{}{}
		}
	}
	return len(distinct)
}

// Evict drops markets whose newest entry is older than now minus the
// window, bounding memory on long-running processes.
func (w *MarketWindow) Evict(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	for market, entries := range w.entries {
		if len(entries) == 0 || !entries[len(entries)-1].at.After(cutoff) {
			delete(w.entries, market)
		}
	}
}

// Markets returns the number of markets currently tracked.
func (w *MarketWindow) Markets() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
