package usecase

import (
	"errors"
	"testing"
	"time"

	"PolySentry/internal/domain/models"
)

func validEvent() *models.TradeEvent {
	return &models.TradeEvent{
		ID:        "evt-1",
		MarketID:  "mkt-1",
		Outcome:   "Yes",
		Wallet:    "0xabc",
		Side:      models.SideBuy,
		Price:     0.4,
		Size:      1000,
		AmountUSD: 400,
		Timestamp: time.Now().Add(-time.Second),
	}
}

func TestNormalizeAcceptsValidEvent(t *testing.T) {
	n := NewNormalizer(time.Hour)
	if err := n.Normalize(validEvent()); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
}

func TestNormalizeRejectsDuplicates(t *testing.T) {
	n := NewNormalizer(time.Hour)
	ev := validEvent()
	if err := n.Normalize(ev); err != nil {
		t.Fatal(err)
	}
	err := n.Normalize(validEvent())
	if !errors.Is(err, models.ErrDuplicateEvent) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestNormalizeUppercasesSide(t *testing.T) {
	n := NewNormalizer(time.Hour)
	ev := validEvent()
	ev.Side = "buy"
	if err := n.Normalize(ev); err != nil {
		t.Fatal(err)
	}
	if ev.Side != models.SideBuy {
		t.Fatalf("side not normalized: %s", ev.Side)
	}
}

func TestNormalizeDerivesAmount(t *testing.T) {
	n := NewNormalizer(time.Hour)
	ev := validEvent()
	ev.AmountUSD = 0
	if err := n.Normalize(ev); err != nil {
		t.Fatal(err)
	}
	if ev.AmountUSD != 400 {
		t.Fatalf("expected derived amount 400, got %v", ev.AmountUSD)
	}
}

func TestNormalizeRejectsMalformedEvents(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.TradeEvent)
	}{
		{"empty id", func(e *models.TradeEvent) { e.ID = "" }},
		{"empty market", func(e *models.TradeEvent) { e.MarketID = "" }},
		{"empty wallet", func(e *models.TradeEvent) { e.Wallet = "" }},
		{"bad side", func(e *models.TradeEvent) { e.Side = "HOLD" }},
		{"zero price", func(e *models.TradeEvent) { e.Price = 0 }},
		{"price above one", func(e *models.TradeEvent) { e.Price = 1.2 }},
		{"zero size", func(e *models.TradeEvent) { e.Size = 0 }},
		{"zero timestamp", func(e *models.TradeEvent) { e.Timestamp = time.Time{} }},
		{"future timestamp", func(e *models.TradeEvent) { e.Timestamp = time.Now().Add(time.Hour) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := NewNormalizer(time.Hour)
			ev := validEvent()
			tc.mutate(ev)
			err := n.Normalize(ev)
			if err == nil {
				t.Fatal("expected rejection")
			}
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
		})
	}
}
