package polymarket

import (
	"context"
	"fmt"
	"time"

	"PolySentry/internal/domain/models"
	drepo "PolySentry/internal/domain/repository"
	pkghttp "PolySentry/pkg/http"
)

// CLOBConfig holds executor configuration.
type CLOBConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// CLOB implements Executor against the CLOB order API.
type CLOB struct {
	cfg  CLOBConfig
	http *pkghttp.Client
}

// NewCLOB creates a CLOB order executor.
func NewCLOB(cfg CLOBConfig) drepo.Executor {
	return &CLOB{
		cfg:  cfg,
		http: pkghttp.NewClient(pkghttp.WithTimeout(cfg.Timeout)),
	}
}

type orderRequest struct {
	Market  string  `json:"market"`
	Outcome string  `json:"outcome"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
}

type orderResponse struct {
	OrderID string  `json:"orderID"`
	Status  string  `json:"status"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
}

// PlaceOrder mirrors the decision's event: same market, same outcome,
// same side, sized as stake / price shares at the observed price.
func (c *CLOB) PlaceOrder(ctx context.Context, d *models.Decision) (*models.Execution, error) {
	ev := d.Event
	if ev.Price <= 0 {
		return nil, fmt.Errorf("order price must be positive, got %v", ev.Price)
	}
	shares := d.Stake / ev.Price

	var resp orderResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    c.cfg.BaseURL + "/order",
		Headers: map[string]string{
			"Authorization": "Bearer " + c.cfg.APIKey,
		},
		Body: orderRequest{
			Market:  ev.MarketID,
			Outcome: ev.Outcome,
			Side:    string(ev.Side),
			Price:   ev.Price,
			Size:    shares,
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if resp.Status != "" && resp.Status != "matched" && resp.Status != "live" {
		return nil, fmt.Errorf("order rejected: %s", resp.Status)
	}

	price := resp.Price
	if price == 0 {
		price = ev.Price
	}
	size := resp.Size
	if size == 0 {
		size = shares
	}
	return &models.Execution{
		OrderID:    resp.OrderID,
		Price:      price,
		Shares:     size,
		ExecutedAt: time.Now(),
	}, nil
}
