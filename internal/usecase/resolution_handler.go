package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PolySentry/internal/domain/models"
	"PolySentry/pkg/logger"
)

// ResolutionHandler consumes market-resolution messages and settles the
// open positions they affect. Implements kafka.MessageHandler.
type ResolutionHandler struct {
	topic   string
	tracker *Tracker
	log     *logger.Logger
}

// NewResolutionHandler creates a resolution handler for topic.
func NewResolutionHandler(topic string, tracker *Tracker, log *logger.Logger) *ResolutionHandler {
	return &ResolutionHandler{topic: topic, tracker: tracker, log: log}
}

// Topic returns the resolutions topic.
func (h *ResolutionHandler) Topic() string { return h.topic }

// Handle settles positions for one resolution message. Returning an
// error lets the consumer retry with backoff.
func (h *ResolutionHandler) Handle(ctx context.Context, data []byte) error {
	var res models.MarketResolution
	if err := json.Unmarshal(data, &res); err != nil {
		// Malformed payloads will never succeed; drop instead of retrying.
		h.log.Warn("malformed resolution message", logger.Error(err))
		return nil
	}
	if res.MarketID == "" || res.WinningOutcome == "" {
		h.log.Warn("incomplete resolution message",
			logger.String("market_id", res.MarketID))
		return nil
	}
	if res.ResolvedAt.IsZero() {
		res.ResolvedAt = time.Now()
	}

	settled, err := h.tracker.OnResolution(ctx, &res)
	if err != nil {
		return fmt.Errorf("settle %s: %w", res.MarketID, err)
	}
	if settled > 0 {
		h.log.Info("market resolved",
			logger.String("market_id", res.MarketID),
			logger.String("winning_outcome", res.WinningOutcome),
			logger.Int("settled", settled),
		)
	}
	return nil
}
