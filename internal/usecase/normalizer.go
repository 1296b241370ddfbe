package usecase

import (
	"strings"
	"time"

	"PolySentry/internal/domain/models"
	svccache "PolySentry/internal/service/cache"
)

// maxClockSkew is how far in the future an event timestamp may sit
// before the event is considered malformed.
const maxClockSkew = 5 * time.Minute

// Normalizer validates raw trade events and drops duplicates seen
// within the dedup window. The persisted decision ledger is the
// authoritative duplicate check; this cache just keeps obvious replays
// from reaching Redis at all.
type Normalizer struct {
	dedup    *svccache.TTLCache
	dedupTTL time.Duration
	now      func() time.Time
}

// NewNormalizer creates a normalizer with the given dedup window.
func NewNormalizer(dedupTTL time.Duration) *Normalizer {
	return &Normalizer{
		dedup:    svccache.NewTTLCache(),
		dedupTTL: dedupTTL,
		now:      time.Now,
	}
}

// Normalize validates ev in place and registers its ID in the dedup
// window. Returns ErrDuplicateEvent or a ValidationError on rejection.
func (n *Normalizer) Normalize(ev *models.TradeEvent) error {
	if ev.ID == "" {
		return models.Invalid("id", "empty")
	}
	if ev.MarketID == "" {
		return models.Invalid("market", "empty")
	}
	if ev.Wallet == "" {
		return models.Invalid("wallet", "empty")
	}

	ev.Side = models.Side(strings.ToUpper(string(ev.Side)))
	if ev.Side != models.SideBuy && ev.Side != models.SideSell {
		return models.Invalid("side", "must be BUY or SELL")
	}
	if ev.Price <= 0 || ev.Price >= 1 {
		return models.Invalid("price", "must be in (0, 1)")
	}
	if ev.Size <= 0 {
		return models.Invalid("size", "must be positive")
	}
	if ev.AmountUSD <= 0 {
		ev.AmountUSD = ev.Price * ev.Size
	}
	if ev.Timestamp.IsZero() {
		return models.Invalid("timestamp", "missing")
	}
	if ev.Timestamp.After(n.now().Add(maxClockSkew)) {
		return models.Invalid("timestamp", "in the future")
	}

	if _, seen := n.dedup.Get(ev.ID); seen {
		return models.ErrDuplicateEvent
	}
	n.dedup.Set(ev.ID, struct{}{}, n.dedupTTL)
	return nil
}
