package scoring

import (
	"fmt"

	"PolySentry/internal/domain/models"
)

// Factor names contributing to a suspicion score.
const (
	FactorLargeAmount    = "large_amount"
	FactorNewWallet      = "new_wallet"
	FactorNicheMarket    = "niche_market"
	FactorPriceExtremity = "price_extremity"
	FactorCluster        = "coordinated_cluster"
)

// Config holds the scoring thresholds.
type Config struct {
	WhaleThreshold   float64
	NewWalletDays    int
	NicheRank        int
	PriceLowExtreme  float64
	PriceHighExtreme float64
	ClusterSize      int
}

// Engine computes suspicion scores. It is pure: identical inputs always
// produce identical scores, and no state is kept between calls.
type Engine struct {
	cfg Config
}

// NewEngine creates a scoring engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Score computes the composite suspicion score for one enriched event.
// clusterCount is the number of distinct same-side wallets observed in
// the market window, including this event's own wallet.
func (e *Engine) Score(ev *models.TradeEvent, wallet *models.WalletProfile, market *models.MarketProfile, clusterCount int) *models.SuspicionScore {
	s := &models.SuspicionScore{EventID: ev.ID}

	if f, ok := e.largeAmount(ev); ok {
		s.Factors = append(s.Factors, f)
	}
	if f, ok := e.newWallet(ev, wallet); ok {
		s.Factors = append(s.Factors, f)
	}
	if f, ok := e.nicheMarket(market); ok {
		s.Factors = append(s.Factors, f)
	}
	if f, ok := e.priceExtremity(ev); ok {
		s.Factors = append(s.Factors, f)
	}
	if f, ok := e.cluster(clusterCount); ok {
		s.Factors = append(s.Factors, f)
	}

	for _, f := range s.Factors {
		s.Value += f.Weight
	}
	if s.Value > 1 {
		s.Value = 1
	}
	if s.Value < 0 {
		s.Value = 0
	}
	return s
}

func (e *Engine) largeAmount(ev *models.TradeEvent) (models.ScoreFactor, bool) {
	t := e.cfg.WhaleThreshold
	var w float64
	switch {
	case ev.AmountUSD >= 10*t:
		w = 0.30
	case ev.AmountUSD >= 5*t:
		w = 0.20
	case ev.AmountUSD >= t:
		w = 0.10
	default:
		return models.ScoreFactor{}, false
	}
	return models.ScoreFactor{
		Name:   FactorLargeAmount,
		Weight: w,
		Detail: fmt.Sprintf("$%.0f vs $%.0f threshold", ev.AmountUSD, t),
	}, true
}

func (e *Engine) newWallet(ev *models.TradeEvent, wallet *models.WalletProfile) (models.ScoreFactor, bool) {
	if wallet == nil {
		return models.ScoreFactor{}, false
	}
	age := wallet.AgeDays(ev.Timestamp)
	d := e.cfg.NewWalletDays
	var w float64
	switch {
	case age <= d/2:
		w = 0.40
	case age <= d:
		w = 0.30
	case age <= 2*d:
		w = 0.10
	default:
		return models.ScoreFactor{}, false
	}
	return models.ScoreFactor{
		Name:   FactorNewWallet,
		Weight: w,
		Detail: fmt.Sprintf("wallet age %dd", age),
	}, true
}

func (e *Engine) nicheMarket(market *models.MarketProfile) (models.ScoreFactor, bool) {
	if market == nil || market.VolumeRank <= 0 {
		return models.ScoreFactor{}, false
	}
	rank := market.VolumeRank
	n := e.cfg.NicheRank
	var w float64
	switch {
	case rank >= 2*n:
		w = 0.30
	case rank >= n:
		w = 0.20
	case float64(rank) >= 0.4*float64(n):
		w = 0.10
	default:
		return models.ScoreFactor{}, false
	}
	return models.ScoreFactor{
		Name:   FactorNicheMarket,
		Weight: w,
		Detail: fmt.Sprintf("volume rank %d", rank),
	}, true
}

func (e *Engine) priceExtremity(ev *models.TradeEvent) (models.ScoreFactor, bool) {
	if ev.Price > e.cfg.PriceLowExtreme && ev.Price < e.cfg.PriceHighExtreme {
		return models.ScoreFactor{}, false
	}
	return models.ScoreFactor{
		Name:   FactorPriceExtremity,
		Weight: 0.15,
		Detail: fmt.Sprintf("price %.3f", ev.Price),
	}, true
}

func (e *Engine) cluster(clusterCount int) (models.ScoreFactor, bool) {
	if e.cfg.ClusterSize <= 0 || clusterCount < e.cfg.ClusterSize {
		return models.ScoreFactor{}, false
	}
	return models.ScoreFactor{
		Name:   FactorCluster,
		Weight: 0.20,
		Detail: fmt.Sprintf("%d wallets same side", clusterCount),
	}, true
}
