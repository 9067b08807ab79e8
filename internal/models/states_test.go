package models

import "testing"

func TestArticleState_CanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     ArticleState
		to       ArticleState
		expected bool
	}{
		{"discovered to analyzing", ArticleDiscovered, ArticleAnalyzing, true},
		{"discovered to rejected", ArticleDiscovered, ArticleRejected, true},
		{"discovered to expired", ArticleDiscovered, ArticleExpired, true},
		{"analyzing to analyzed", ArticleAnalyzing, ArticleAnalyzed, true},
		{"analyzing back to discovered for retry", ArticleAnalyzing, ArticleDiscovered, true},
		{"analyzing to rejected", ArticleAnalyzing, ArticleRejected, true},
		{"discovered cannot skip to analyzed", ArticleDiscovered, ArticleAnalyzed, false},
		{"analyzed has no outgoing edges", ArticleAnalyzed, ArticleExpired, false},
		{"analyzed cannot return to analyzing", ArticleAnalyzed, ArticleAnalyzing, false},
		{"rejected is terminal", ArticleRejected, ArticleDiscovered, false},
		{"expired is terminal", ArticleExpired, ArticleAnalyzing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.expected {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestPostState_CanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     PostState
		to       PostState
		expected bool
	}{
		{"drafted to rendered", PostDrafted, PostRendered, true},
		{"rendered to scheduled", PostRendered, PostScheduled, true},
		{"scheduled to publishing", PostScheduled, PostPublishing, true},
		{"publishing to published", PostPublishing, PostPublished, true},
		{"publishing back to scheduled for retry", PostPublishing, PostScheduled, true},
		{"publishing to failed", PostPublishing, PostFailed, true},
		{"scheduled to cancelled", PostScheduled, PostCancelled, true},
		{"drafted cannot skip to scheduled", PostDrafted, PostScheduled, false},
		{"scheduled cannot return to rendered", PostScheduled, PostRendered, false},
		{"published is terminal", PostPublished, PostScheduled, false},
		{"failed is terminal", PostFailed, PostScheduled, false},
		{"cancelled is terminal", PostCancelled, PostDrafted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.expected {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []ArticleState{ArticleRejected, ArticleExpired} {
		if !s.Terminal() {
			t.Errorf("ArticleState %s should be terminal", s)
		}
	}
	for _, s := range []ArticleState{ArticleDiscovered, ArticleAnalyzing, ArticleAnalyzed} {
		if s.Terminal() {
			t.Errorf("ArticleState %s should not be terminal", s)
		}
	}
	for _, s := range []PostState{PostPublished, PostFailed, PostCancelled} {
		if !s.Terminal() {
			t.Errorf("PostState %s should be terminal", s)
		}
	}
	for _, s := range []PostState{PostDrafted, PostRendered, PostScheduled, PostPublishing} {
		if s.Terminal() {
			t.Errorf("PostState %s should not be terminal", s)
		}
	}
}

func TestArticleLive(t *testing.T) {
	live := &Article{State: ArticleAnalyzed}
	if !live.Live() {
		t.Error("analyzed article should be live")
	}
	expired := &Article{State: ArticleExpired}
	if expired.Live() {
		t.Error("expired article should not be live")
	}
}
