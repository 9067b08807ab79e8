package models

// ArticleState is the lifecycle state of a discovered article
type ArticleState string

const (
	ArticleDiscovered ArticleState = "discovered"
	ArticleAnalyzing  ArticleState = "analyzing"
	ArticleAnalyzed   ArticleState = "analyzed"
	ArticleRejected   ArticleState = "rejected"
	ArticleExpired    ArticleState = "expired"
)

// Terminal reports whether the state has no outgoing transitions
func (s ArticleState) Terminal() bool {
	return s == ArticleRejected || s == ArticleExpired
}

var articleEdges = map[ArticleState][]ArticleState{
	ArticleDiscovered: {ArticleAnalyzing, ArticleRejected, ArticleExpired},
	ArticleAnalyzing:  {ArticleAnalyzed, ArticleDiscovered, ArticleRejected, ArticleExpired},
	ArticleAnalyzed:   {},
	ArticleRejected:   {},
	ArticleExpired:    {},
}

// CanTransition reports whether the edge from s to next exists.
// Analyzing back to Discovered is the retry edge after a transient
// analysis failure; every other edge is forward-only.
func (s ArticleState) CanTransition(next ArticleState) bool {
	for _, t := range articleEdges[s] {
		if t == next {
			return true
		}
	}
	return false
}

// PostState is the lifecycle state of a post candidate
type PostState string

const (
	PostDrafted    PostState = "drafted"
	PostRendered   PostState = "rendered"
	PostScheduled  PostState = "scheduled"
	PostPublishing PostState = "publishing"
	PostPublished  PostState = "published"
	PostFailed     PostState = "failed"
	PostCancelled  PostState = "cancelled"
)

// Terminal reports whether the state has no outgoing transitions
func (s PostState) Terminal() bool {
	return s == PostPublished || s == PostFailed || s == PostCancelled
}

var postEdges = map[PostState][]PostState{
	PostDrafted:    {PostRendered, PostFailed, PostCancelled},
	PostRendered:   {PostScheduled, PostFailed, PostCancelled},
	PostScheduled:  {PostPublishing, PostFailed, PostCancelled},
	PostPublishing: {PostPublished, PostScheduled, PostFailed, PostCancelled},
	PostPublished:  {},
	PostFailed:     {},
	PostCancelled:  {},
}

// CanTransition reports whether the edge from s to next exists.
// Publishing back to Scheduled covers rate-limit deferrals and backoff
// between attempts; no edge leaves a terminal state. A superseding
// attempt always creates a new post row for the same article.
func (s PostState) CanTransition(next PostState) bool {
	for _, t := range postEdges[s] {
		if t == next {
			return true
		}
	}
	return false
}
