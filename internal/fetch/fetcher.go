package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/sources"
	"github.com/zegh6389/news-instagram-mcp/pkg/logging"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

// ErrSourceUnavailable marks a fetch failure that should be skipped and
// retried on the next discovery cycle, never treated as pipeline-fatal.
var ErrSourceUnavailable = errors.New("source unavailable")

// RawArticle is one story as reported by a source feed
type RawArticle struct {
	CanonicalURL string
	Headline     string
	Body         string
	PublishedAt  time.Time
}

// Fetcher retrieves the current stories of a source
type Fetcher interface {
	Fetch(ctx context.Context, src sources.Source) ([]RawArticle, error)
}

// FeedFetcher reads RSS/Atom feeds
type FeedFetcher struct {
	parser *gofeed.Parser
	logger *zap.Logger
}

// NewFeedFetcher creates a feed fetcher with a dedicated HTTP client
func NewFeedFetcher(timeout time.Duration, userAgent string) *FeedFetcher {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	if userAgent != "" {
		parser.UserAgent = userAgent
	}

	return &FeedFetcher{
		parser: parser,
		logger: logging.WithComponent("feed-fetcher"),
	}
}

// Fetch downloads and parses the source feed
func (f *FeedFetcher) Fetch(ctx context.Context, src sources.Source) ([]RawArticle, error) {
	ctx, span := telemetry.StartSpan(ctx, "fetch.feed")
	defer span.End()

	feed, err := f.parser.ParseURLWithContext(src.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, src.ID, err)
	}

	articles := make([]RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" || item.Title == "" {
			f.logger.Debug("Skipping feed item without link or title",
				zap.String("source_id", src.ID))
			continue
		}

		body := item.Content
		if body == "" {
			body = item.Description
		}

		published := time.Time{}
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		}

		articles = append(articles, RawArticle{
			CanonicalURL: item.Link,
			Headline:     item.Title,
			Body:         body,
			PublishedAt:  published,
		})
	}

	return articles, nil
}
