package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/pkg/logging"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

var (
	// ErrAnalysisUnavailable marks a transient analyzer failure; the
	// article is retried a bounded number of times.
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
	// ErrAnalysisRejected marks content the analyzer deems unsuitable;
	// terminal for the article.
	ErrAnalysisRejected = errors.New("analysis rejected content")
)

// Result is the analyzer's enrichment of an article
type Result struct {
	Category        string
	ImportanceScore float64
	Keywords        []string
}

// Analyzer categorizes an article and scores its importance
type Analyzer interface {
	Analyze(ctx context.Context, article *models.Article) (*Result, error)
}

// categoryDef is one category's keyword table and score weight
type categoryDef struct {
	name     string
	keywords []string
	weight   float64
}

// HeuristicAnalyzer scores articles from keyword tables. It stands in
// for an AI-backed analyzer behind the same interface.
type HeuristicAnalyzer struct {
	categories []categoryDef
	breaking   []string
	minBodyLen int
	now        func() time.Time
	logger     *zap.Logger
}

// NewHeuristicAnalyzer creates an analyzer with the default tables
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{
		categories: []categoryDef{
			{name: "politics", weight: 0.15, keywords: []string{"government", "minister", "parliament", "election", "senate", "policy"}},
			{name: "economy", weight: 0.12, keywords: []string{"economy", "inflation", "recession", "market", "unemployment", "interest rate"}},
			{name: "health", weight: 0.10, keywords: []string{"health", "hospital", "pandemic", "outbreak", "vaccine", "disease"}},
			{name: "technology", weight: 0.08, keywords: []string{"technology", "software", "startup", "cyber", "artificial intelligence"}},
			{name: "sports", weight: 0.05, keywords: []string{"game", "tournament", "championship", "league", "playoff"}},
		},
		breaking:   []string{"breaking", "urgent", "alert", "developing", "exclusive"},
		minBodyLen: 120,
		now:        time.Now,
		logger:     logging.WithComponent("analyzer"),
	}
}

// Analyze categorizes the article and computes its importance score.
// Articles with too little body text are rejected as unsuitable.
func (a *HeuristicAnalyzer) Analyze(ctx context.Context, article *models.Article) (*Result, error) {
	_, span := telemetry.StartSpan(ctx, "analyze.article")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	if len(strings.TrimSpace(article.BodyExcerpt)) < a.minBodyLen {
		return nil, ErrAnalysisRejected
	}

	text := strings.ToLower(article.Headline + " " + article.BodyExcerpt)

	category, categoryWeight, matched := a.categorize(text)
	score := a.score(text, article, categoryWeight)

	a.logger.Debug("Article analyzed",
		zap.String("article_id", article.ID),
		zap.String("category", category),
		zap.Float64("importance", score))

	return &Result{
		Category:        category,
		ImportanceScore: score,
		Keywords:        matched,
	}, nil
}

// categorize picks the category with the most keyword hits; a category
// needs at least 30% of its keywords present to qualify.
func (a *HeuristicAnalyzer) categorize(text string) (string, float64, []string) {
	bestName := "general"
	bestWeight := 0.0
	bestHits := 0
	var bestMatched []string

	for _, def := range a.categories {
		var matched []string
		for _, kw := range def.keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, kw)
			}
		}
		threshold := (len(def.keywords)*3 + 9) / 10
		if len(matched) >= threshold && len(matched) > bestHits {
			bestName = def.name
			bestWeight = def.weight
			bestHits = len(matched)
			bestMatched = matched
		}
	}

	return bestName, bestWeight, bestMatched
}

// score combines a base score, category weight, breaking-news and
// recency bonuses, clamped to [0, 1].
func (a *HeuristicAnalyzer) score(text string, article *models.Article, categoryWeight float64) float64 {
	score := 0.3 + categoryWeight

	for _, kw := range a.breaking {
		if strings.Contains(text, kw) {
			score += 0.2
			break
		}
	}

	if article.PublishedAt.Valid {
		age := a.now().UTC().Sub(article.PublishedAt.Time)
		switch {
		case age < 2*time.Hour:
			score += 0.15
		case age < 6*time.Hour:
			score += 0.08
		}
	}

	if len(strings.Fields(article.BodyExcerpt)) > 500 {
		score += 0.05
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}
