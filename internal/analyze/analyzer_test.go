package analyze

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
)

const fillerBody = "The city council met on Tuesday to discuss the proposal. " +
	"Residents attended the session in large numbers. " +
	"A decision is expected later this month after further review of the plan."

func TestHeuristicAnalyzer_RejectsThinContent(t *testing.T) {
	analyzer := NewHeuristicAnalyzer()

	article := &models.Article{
		ID:          "a1",
		Headline:    "Short note",
		BodyExcerpt: "Too little text.",
	}

	_, err := analyzer.Analyze(context.Background(), article)
	if !errors.Is(err, ErrAnalysisRejected) {
		t.Errorf("Analyze error = %v, want ErrAnalysisRejected", err)
	}
}

func TestHeuristicAnalyzer_Categorize(t *testing.T) {
	analyzer := NewHeuristicAnalyzer()

	tests := []struct {
		name     string
		headline string
		body     string
		expected string
	}{
		{
			"politics",
			"Parliament passes new policy after election",
			"The government confirmed the minister will present the policy to parliament next week. " + fillerBody,
			"politics",
		},
		{
			"economy",
			"Inflation fears rattle the market",
			"Economists warn the economy may slip into recession as inflation stays high and the market reacts. " + fillerBody,
			"economy",
		},
		{
			"no category qualifies",
			"Local bakery wins award",
			fillerBody,
			"general",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article := &models.Article{ID: "a1", Headline: tt.headline, BodyExcerpt: tt.body}
			result, err := analyzer.Analyze(context.Background(), article)
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if result.Category != tt.expected {
				t.Errorf("category = %q, want %q", result.Category, tt.expected)
			}
		})
	}
}

func TestHeuristicAnalyzer_ScoreBonuses(t *testing.T) {
	analyzer := NewHeuristicAnalyzer()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	analyzer.now = func() time.Time { return now }

	base := &models.Article{
		ID:          "a1",
		Headline:    "Quiet day in town",
		BodyExcerpt: fillerBody,
	}
	baseResult, err := analyzer.Analyze(context.Background(), base)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	breaking := &models.Article{
		ID:          "a2",
		Headline:    "Breaking: major event unfolds",
		BodyExcerpt: fillerBody,
	}
	breakingResult, err := analyzer.Analyze(context.Background(), breaking)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if breakingResult.ImportanceScore <= baseResult.ImportanceScore {
		t.Errorf("breaking score %v should exceed base score %v",
			breakingResult.ImportanceScore, baseResult.ImportanceScore)
	}

	recent := &models.Article{
		ID:          "a3",
		Headline:    "Quiet day in town",
		BodyExcerpt: fillerBody,
		PublishedAt: sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
	}
	recentResult, err := analyzer.Analyze(context.Background(), recent)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if recentResult.ImportanceScore <= baseResult.ImportanceScore {
		t.Errorf("recent score %v should exceed base score %v",
			recentResult.ImportanceScore, baseResult.ImportanceScore)
	}
}

func TestHeuristicAnalyzer_ScoreClamped(t *testing.T) {
	analyzer := NewHeuristicAnalyzer()
	now := time.Now().UTC()

	article := &models.Article{
		ID:       "a1",
		Headline: "Breaking: government election policy shakes economy",
		BodyExcerpt: "The minister told parliament the election policy would reshape the senate agenda. " +
			strings.Repeat("The market reaction dominated every discussion across the capital today. ", 70),
		PublishedAt: sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
	}

	result, err := analyzer.Analyze(context.Background(), article)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.ImportanceScore > 1.0 || result.ImportanceScore < 0.0 {
		t.Errorf("score %v outside [0, 1]", result.ImportanceScore)
	}
}

func TestHeuristicAnalyzer_CancelledContext(t *testing.T) {
	analyzer := NewHeuristicAnalyzer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzer.Analyze(ctx, &models.Article{ID: "a1", BodyExcerpt: fillerBody})
	if !errors.Is(err, ErrAnalysisUnavailable) {
		t.Errorf("Analyze error = %v, want ErrAnalysisUnavailable", err)
	}
}
