package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/pkg/logging"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

// ErrRenderFailed marks a failed render attempt; retried a bounded
// number of times because a render failure does not invalidate the
// underlying article.
var ErrRenderFailed = errors.New("render failed")

const (
	maxCaptionLength = 2200 // Instagram caption limit
	maxHashtags      = 30   // Instagram hashtag limit
)

// Output is the rendered media handle and caption for a post
type Output struct {
	MediaRef string
	Caption  string
}

// Renderer produces the publishable asset and caption for a post
type Renderer interface {
	Render(ctx context.Context, article *models.Article, templateKind string) (*Output, error)
}

// TemplateRenderer builds captions from per-kind templates and hashtag
// tables. The media ref it emits is an opaque handle understood by the
// publisher; image compositing happens behind that handle.
type TemplateRenderer struct {
	templates map[string]Template
	hashtags  map[string][]string
	logger    *zap.Logger
}

// NewTemplateRenderer creates a renderer from a template set
func NewTemplateRenderer(set *TemplateSet) *TemplateRenderer {
	return &TemplateRenderer{
		templates: set.Templates,
		hashtags:  set.Hashtags,
		logger:    logging.WithComponent("renderer"),
	}
}

// Render builds the caption and media handle for the article
func (r *TemplateRenderer) Render(ctx context.Context, article *models.Article, templateKind string) (*Output, error) {
	_, span := telemetry.StartSpan(ctx, "render.post")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	tmpl, ok := r.templates[templateKind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown template kind %q", ErrRenderFailed, templateKind)
	}

	caption := r.buildCaption(article, tmpl)
	if err := validateCaption(caption); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	mediaRef := fmt.Sprintf("rendered/%s/%s.jpg", templateKind, article.ID)

	r.logger.Debug("Post rendered",
		zap.String("article_id", article.ID),
		zap.String("template_kind", templateKind),
		zap.Int("caption_len", len(caption)))

	return &Output{MediaRef: mediaRef, Caption: caption}, nil
}

func (r *TemplateRenderer) buildCaption(article *models.Article, tmpl Template) string {
	var parts []string

	headline := strings.TrimSpace(article.Headline)
	if tmpl.HeadlinePrefix != "" {
		parts = append(parts, tmpl.HeadlinePrefix+" "+headline)
	} else {
		parts = append(parts, headline)
	}
	parts = append(parts, "")

	if excerpt := summarize(article.BodyExcerpt, tmpl.ExcerptSentences); excerpt != "" {
		parts = append(parts, excerpt, "")
	}

	if tags := r.hashtagLine(article); tags != "" {
		parts = append(parts, tags)
	}

	caption := strings.Join(parts, "\n")
	if len(caption) > maxCaptionLength {
		// Cut on a rune boundary so the caption stays valid UTF-8.
		cut := maxCaptionLength - 3
		for cut > 0 && !utf8.RuneStart(caption[cut]) {
			cut--
		}
		caption = caption[:cut] + "..."
	}
	return caption
}

// hashtagLine assembles category hashtags plus the general set, capped
// at the platform limit
func (r *TemplateRenderer) hashtagLine(article *models.Article) string {
	var tags []string
	seen := make(map[string]bool)

	appendTags := func(list []string) {
		for _, t := range list {
			if len(tags) >= maxHashtags {
				return
			}
			t = strings.TrimPrefix(t, "#")
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			tags = append(tags, "#"+t)
		}
	}

	if article.Category.Valid {
		appendTags(r.hashtags[article.Category.String])
	}
	appendTags(r.hashtags["general"])

	return strings.Join(tags, " ")
}

// summarize returns the first n sentences of the text
func summarize(text string, n int) string {
	if n <= 0 {
		n = 2
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' {
			count++
			if count == n {
				return strings.TrimSpace(text[:i+1])
			}
		}
	}
	return text
}

func validateCaption(caption string) error {
	if strings.TrimSpace(caption) == "" {
		return fmt.Errorf("caption is empty")
	}
	if len(caption) > maxCaptionLength {
		return fmt.Errorf("caption too long (%d > %d)", len(caption), maxCaptionLength)
	}
	if n := strings.Count(caption, "#"); n > maxHashtags {
		return fmt.Errorf("too many hashtags (%d > %d)", n, maxHashtags)
	}
	return nil
}
