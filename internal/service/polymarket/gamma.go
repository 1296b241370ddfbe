package polymarket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"PolySentry/internal/domain/models"
	drepo "PolySentry/internal/domain/repository"
	svccache "PolySentry/internal/service/cache"
	"PolySentry/internal/service/ratelimit"
	pkghttp "PolySentry/pkg/http"
	"PolySentry/pkg/util"
)

const gammaLimiterKey = "gamma"

// GammaConfig holds resolver configuration.
type GammaConfig struct {
	BaseURL    string
	Timeout    time.Duration
	CacheTTL   time.Duration
	MaxRPS     float64
	RankWindow int // how deep the volume ranking goes
}

// Gamma implements MetadataResolver against the Gamma metadata API,
// with a TTL cache and a token-bucket rate limit in front of it.
type Gamma struct {
	cfg     GammaConfig
	http    *pkghttp.Client
	cache   *svccache.TTLCache
	limiter *ratelimit.Limiter
}

// NewGamma creates a Gamma metadata resolver.
func NewGamma(cfg GammaConfig) drepo.MetadataResolver {
	return &Gamma{
		cfg:     cfg,
		http:    pkghttp.NewClient(pkghttp.WithTimeout(cfg.Timeout)),
		cache:   svccache.NewTTLCache(),
		limiter: ratelimit.New(),
	}
}

type gammaActivity struct {
	Timestamp string `json:"timestamp"`
}

// WalletProfile resolves a wallet's first-seen time and trade count from
// its activity history.
func (g *Gamma) WalletProfile(ctx context.Context, address string) (*models.WalletProfile, error) {
	key := "wallet:" + address
	if v, ok := g.cache.Get(key); ok {
		return v.(*models.WalletProfile), nil
	}
	if err := g.waitForToken(ctx); err != nil {
		return nil, err
	}

	var activity []gammaActivity
	err := g.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    g.cfg.BaseURL + "/activity",
		QueryParams: map[string][]string{
			"user":          {address},
			"sortBy":        {"TIMESTAMP"},
			"sortDirection": {"ASC"},
			"limit":         {"500"},
		},
	}, &activity)
	if err != nil {
		return nil, fmt.Errorf("wallet activity %s: %w", address, err)
	}

	p := &models.WalletProfile{Address: address, TradeCount: len(activity)}
	if len(activity) > 0 {
		if t, ok := util.ParseTime(activity[0].Timestamp); ok {
			p.FirstSeen = t
		}
	}
	g.cache.Set(key, p, g.cfg.CacheTTL)
	return p, nil
}

type gammaMarket struct {
	ID        string  `json:"id"`
	Question  string  `json:"question"`
	Volume24h float64 `json:"volume24hr"`
	Active    bool    `json:"active"`
}

// MarketProfile resolves a market's question, activity flag, and 24h
// volume rank against the top-ranked market list.
func (g *Gamma) MarketProfile(ctx context.Context, marketID string) (*models.MarketProfile, error) {
	key := "market:" + marketID
	if v, ok := g.cache.Get(key); ok {
		return v.(*models.MarketProfile), nil
	}
	if err := g.waitForToken(ctx); err != nil {
		return nil, err
	}

	var m gammaMarket
	err := g.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    g.cfg.BaseURL + "/markets/" + marketID,
	}, &m)
	if err != nil {
		return nil, fmt.Errorf("market %s: %w", marketID, err)
	}

	rank, err := g.volumeRank(ctx, marketID)
	if err != nil {
		// Ranking is advisory; the profile is still useful without it.
		rank = 0
	}

	p := &models.MarketProfile{
		ID:         marketID,
		Question:   m.Question,
		Volume24h:  m.Volume24h,
		Active:     m.Active,
		VolumeRank: rank,
	}
	g.cache.Set(key, p, g.cfg.CacheTTL)
	return p, nil
}

// volumeRank returns the market's 1-based position in the top-volume
// list, or RankWindow+1 when it does not appear at all (deeply niche).
func (g *Gamma) volumeRank(ctx context.Context, marketID string) (int, error) {
	ranking, err := g.topMarkets(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ranking {
		if id == marketID {
			return i + 1, nil
		}
	}
	return len(ranking) + 1, nil
}

func (g *Gamma) topMarkets(ctx context.Context) ([]string, error) {
	const key = "markets:top"
	if v, ok := g.cache.Get(key); ok {
		return v.([]string), nil
	}
	if err := g.waitForToken(ctx); err != nil {
		return nil, err
	}

	var markets []gammaMarket
	err := g.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    g.cfg.BaseURL + "/markets",
		QueryParams: map[string][]string{
			"order":     {"volume24hr"},
			"ascending": {"false"},
			"active":    {"true"},
			"limit":     {strconv.Itoa(g.cfg.RankWindow)},
		},
	}, &markets)
	if err != nil {
		return nil, fmt.Errorf("top markets: %w", err)
	}

	ids := make([]string, len(markets))
	for i, m := range markets {
		ids[i] = m.ID
	}
	g.cache.Set(key, ids, g.cfg.CacheTTL)
	return ids, nil
}

// waitForToken blocks until the rate limiter admits one request or the
// context expires.
func (g *Gamma) waitForToken(ctx context.Context) error {
	for {
		if g.limiter.Allow(gammaLimiterKey, g.cfg.MaxRPS, g.cfg.MaxRPS) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
