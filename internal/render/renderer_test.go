package render

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
)

func testArticle() *models.Article {
	return &models.Article{
		ID:          "a1",
		Headline:    "City approves new transit plan",
		BodyExcerpt: "The council voted on Tuesday. The plan adds three new lines. Work begins next spring.",
		Category:    sql.NullString{String: "politics", Valid: true},
	}
}

func TestTemplateRenderer_Render(t *testing.T) {
	renderer := NewTemplateRenderer(DefaultTemplateSet())

	out, err := renderer.Render(context.Background(), testArticle(), KindStandard)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if !strings.Contains(out.Caption, "City approves new transit plan") {
		t.Error("caption missing headline")
	}
	if !strings.HasPrefix(out.Caption, "📰") {
		t.Errorf("caption missing template prefix: %q", out.Caption)
	}
	if !strings.Contains(out.Caption, "The council voted on Tuesday. The plan adds three new lines.") {
		t.Error("caption missing two-sentence excerpt")
	}
	if strings.Contains(out.Caption, "Work begins next spring") {
		t.Error("excerpt exceeded the configured sentence count")
	}
	if !strings.Contains(out.Caption, "#politics") {
		t.Error("caption missing category hashtags")
	}
	if !strings.Contains(out.Caption, "#news") {
		t.Error("caption missing general hashtags")
	}
	if out.MediaRef != "rendered/standard/a1.jpg" {
		t.Errorf("media ref = %q, want rendered/standard/a1.jpg", out.MediaRef)
	}
}

func TestTemplateRenderer_BreakingPrefix(t *testing.T) {
	renderer := NewTemplateRenderer(DefaultTemplateSet())

	out, err := renderer.Render(context.Background(), testArticle(), KindBreaking)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasPrefix(out.Caption, "🚨 BREAKING:") {
		t.Errorf("breaking caption missing prefix: %q", out.Caption)
	}
}

func TestTemplateRenderer_UnknownKind(t *testing.T) {
	renderer := NewTemplateRenderer(DefaultTemplateSet())

	_, err := renderer.Render(context.Background(), testArticle(), "mystery")
	if !errors.Is(err, ErrRenderFailed) {
		t.Errorf("Render error = %v, want ErrRenderFailed", err)
	}
}

func TestTemplateRenderer_CaptionTruncated(t *testing.T) {
	renderer := NewTemplateRenderer(DefaultTemplateSet())

	article := testArticle()
	article.BodyExcerpt = strings.Repeat("An exceptionally long sentence that never seems to end and keeps going ", 60)

	out, err := renderer.Render(context.Background(), article, KindStandard)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(out.Caption) > maxCaptionLength {
		t.Errorf("caption length %d exceeds the limit %d", len(out.Caption), maxCaptionLength)
	}
	if !strings.HasSuffix(out.Caption, "...") {
		t.Error("truncated caption missing ellipsis")
	}
}

func TestTemplateRenderer_TruncationKeepsValidUTF8(t *testing.T) {
	renderer := NewTemplateRenderer(DefaultTemplateSet())

	// A solid run of two-byte runes; the byte limit lands mid-rune
	// unless the cut backs up to a boundary.
	article := testArticle()
	article.Headline = "City approves new transit plans"
	article.BodyExcerpt = strings.Repeat("é", 1500)

	out, err := renderer.Render(context.Background(), article, KindStandard)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(out.Caption) > maxCaptionLength {
		t.Errorf("caption length %d exceeds the limit %d", len(out.Caption), maxCaptionLength)
	}
	if !utf8.ValidString(out.Caption) {
		t.Error("truncated caption is not valid UTF-8")
	}
}

func TestTemplateRenderer_HashtagCapAndDedup(t *testing.T) {
	set := DefaultTemplateSet()
	var many []string
	for i := 0; i < 40; i++ {
		many = append(many, "tag"+strings.Repeat("x", i%5)+string(rune('a'+i%26)))
	}
	set.Hashtags["politics"] = append([]string{"news", "news"}, many...)

	renderer := NewTemplateRenderer(set)
	out, err := renderer.Render(context.Background(), testArticle(), KindStandard)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(out.Caption, "\n")
	tagLine := lines[len(lines)-1]
	tags := strings.Fields(tagLine)
	if len(tags) > maxHashtags {
		t.Errorf("hashtag line has %d tags, limit is %d", len(tags), maxHashtags)
	}

	seen := make(map[string]int)
	for _, tag := range tags {
		seen[tag]++
	}
	if seen["#news"] > 1 {
		t.Error("duplicate hashtag survived dedup")
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		n        int
		expected string
	}{
		{"two of three", "One. Two. Three.", 2, "One. Two."},
		{"fewer sentences than asked", "Only one here.", 3, "Only one here."},
		{"no terminator", "no punctuation at all", 2, "no punctuation at all"},
		{"whitespace collapsed", "First   sentence.  Second  one.", 1, "First sentence."},
		{"empty", "", 2, ""},
		{"question and exclamation", "Really? Yes! Indeed.", 2, "Really? Yes!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summarize(tt.text, tt.n); got != tt.expected {
				t.Errorf("summarize(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.expected)
			}
		})
	}
}

func TestLoadTemplateSet_MissingFileUsesDefaults(t *testing.T) {
	set, err := LoadTemplateSet("does-not-exist.yaml")
	if err != nil {
		t.Fatalf("LoadTemplateSet failed: %v", err)
	}
	if _, ok := set.Templates[KindStandard]; !ok {
		t.Error("default template set missing standard kind")
	}
}
