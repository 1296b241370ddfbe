package analysis

import (
	"testing"

	"PolySentry/internal/domain/models"
)

func TestParseOpinionCleanJSON(t *testing.T) {
	op := parseOpinion(`{"recommendation": "act", "confidence": 0.85, "rationale": "new wallet, niche market"}`)
	if op.Recommendation != models.RecommendAct {
		t.Fatalf("expected act, got %s", op.Recommendation)
	}
	if op.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %v", op.Confidence)
	}
}

func TestParseOpinionMarkdownFenced(t *testing.T) {
	text := "```json\n{\"recommendation\": \"skip\", \"confidence\": 0.6}\n```"
	op := parseOpinion(text)
	if op.Recommendation != models.RecommendSkip || op.Confidence != 0.6 {
		t.Fatalf("unexpected opinion: %+v", op)
	}
}

func TestParseOpinionClampsConfidence(t *testing.T) {
	op := parseOpinion(`{"recommendation": "ACT", "confidence": 1.7}`)
	if op.Recommendation != models.RecommendAct || op.Confidence != 1 {
		t.Fatalf("unexpected opinion: %+v", op)
	}
}

func TestParseOpinionGarbageFallsBackToMonitor(t *testing.T) {
	for _, text := range []string{
		"I think this trade looks suspicious.",
		`{"recommendation": "yolo", "confidence": 0.9}`,
		"",
	} {
		op := parseOpinion(text)
		if op.Recommendation != models.RecommendMonitor || op.Confidence != 0 {
			t.Errorf("text %q: expected monitor fallback, got %+v", text, op)
		}
	}
}
