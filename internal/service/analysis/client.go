package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"PolySentry/internal/domain/models"
	drepo "PolySentry/internal/domain/repository"
	pkghttp "PolySentry/pkg/http"
)

// Config holds analysis service configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client implements Analyzer against a generative-model HTTP API. The
// model is asked for a strict JSON verdict; anything it returns outside
// that contract degrades to a low-confidence "monitor".
type Client struct {
	cfg  Config
	http *pkghttp.Client
}

// NewClient creates an analysis client.
func NewClient(cfg Config) drepo.Analyzer {
	return &Client{
		cfg:  cfg,
		http: pkghttp.NewClient(pkghttp.WithTimeout(cfg.Timeout)),
	}
}

// Nop never escalates. Used when no analysis backend is configured;
// scores then decide on their own.
type Nop struct{}

func (Nop) Analyze(context.Context, *models.TradeEvent, *models.SuspicionScore, *models.MarketProfile) (*models.AIOpinion, error) {
	return nil, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Analyze asks the model whether the event looks like informed trading.
// The call is bounded by ctx; callers set the stage deadline.
func (c *Client) Analyze(ctx context.Context, ev *models.TradeEvent, score *models.SuspicionScore, market *models.MarketProfile) (*models.AIOpinion, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)

	var resp generateResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:      pkghttp.MethodPost,
		URL:         url,
		QueryParams: map[string][]string{"key": {c.cfg.APIKey}},
		Body: generateRequest{
			Contents: []content{{Parts: []part{{Text: buildPrompt(ev, score, market)}}}},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("analysis request: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("analysis response empty")
	}

	return parseOpinion(resp.Candidates[0].Content.Parts[0].Text), nil
}

func buildPrompt(ev *models.TradeEvent, score *models.SuspicionScore, market *models.MarketProfile) string {
	var b strings.Builder
	b.WriteString("You are reviewing a prediction-market trade for signs of informed (insider-like) trading.\n\n")
	if market != nil && market.Question != "" {
		fmt.Fprintf(&b, "Market: %s\n", market.Question)
	}
	fmt.Fprintf(&b, "Trade: %s %s at %.3f for $%.0f\n", ev.Side, ev.Outcome, ev.Price, ev.AmountUSD)
	fmt.Fprintf(&b, "Suspicion score: %.2f\n", score.Value)
	for _, f := range score.Factors {
		fmt.Fprintf(&b, "- %s (%.2f): %s\n", f.Name, f.Weight, f.Detail)
	}
	b.WriteString("\nRespond with ONLY a JSON object: ")
	b.WriteString(`{"recommendation": "act"|"skip"|"monitor", "confidence": 0.0-1.0, "rationale": "one sentence"}`)
	return b.String()
}

// parseOpinion extracts the JSON verdict from the model's text. Models
// sometimes wrap JSON in markdown fences or prose; scan for the braces.
func parseOpinion(text string) *models.AIOpinion {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var op models.AIOpinion
		if err := json.Unmarshal([]byte(text[start:end+1]), &op); err == nil {
			op.Recommendation = strings.ToLower(strings.TrimSpace(op.Recommendation))
			switch op.Recommendation {
			case models.RecommendAct, models.RecommendSkip, models.RecommendMonitor:
				if op.Confidence < 0 {
					op.Confidence = 0
				}
				if op.Confidence > 1 {
					op.Confidence = 1
				}
				return &op
			}
		}
	}
	return &models.AIOpinion{
		Recommendation: models.RecommendMonitor,
		Confidence:     0,
		Rationale:      "unparseable model response",
	}
}
