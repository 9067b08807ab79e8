package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/db"
	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/internal/render"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func listParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// statsHandler reports pipeline state counts and the current rate
// ledger position
func (r *Router) statsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	articleCounts, err := r.articles.CountByState(ctx)
	if err != nil {
		r.logger.Error("Failed to count articles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count articles"})
		return
	}

	postCounts, err := r.posts.CountByState(ctx)
	if err != nil {
		r.logger.Error("Failed to count posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count posts"})
		return
	}

	stats := gin.H{
		"articles": articleCounts,
		"posts":    postCounts,
	}

	if counts, err := r.ledger.Counts(ctx, r.account, time.Now().UTC()); err == nil {
		stats["publishing"] = gin.H{
			"account":        r.account,
			"published_hour": counts.Hour,
			"published_day":  counts.Day,
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (r *Router) listArticlesHandler(c *gin.Context) {
	limit, offset := listParams(c)
	state := models.ArticleState(c.Query("state"))

	articles, err := r.articles.List(c.Request.Context(), state, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list articles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list articles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

func (r *Router) getArticleHandler(c *gin.Context) {
	article, err := r.articles.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.logger.Error("Failed to get article", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get article"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}
	c.JSON(http.StatusOK, article)
}

type spawnRequest struct {
	TemplateKind string `json:"template_kind"`
}

// spawnPostHandler creates a post candidate for an analyzed article,
// bypassing the importance threshold. The single-active-candidate
// constraint still applies.
func (r *Router) spawnPostHandler(c *gin.Context) {
	ctx := c.Request.Context()

	article, err := r.articles.GetByID(ctx, c.Param("id"))
	if err != nil {
		r.logger.Error("Failed to get article", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get article"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}
	if article.State != models.ArticleAnalyzed {
		c.JSON(http.StatusConflict, gin.H{
			"error": "article is not analyzed",
			"state": article.State,
		})
		return
	}

	var req spawnRequest
	_ = c.ShouldBindJSON(&req)
	kind := req.TemplateKind
	if kind == "" {
		kind = render.KindStandard
	}
	switch kind {
	case render.KindBreaking, render.KindStandard, render.KindFeature:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown template kind"})
		return
	}

	post := &models.Post{
		ID:           uuid.NewString(),
		ArticleID:    article.ID,
		TemplateKind: kind,
		State:        models.PostDrafted,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	if err := r.posts.Spawn(ctx, post); err != nil {
		if errors.Is(err, db.ErrActiveCandidateExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "article already has an active post candidate"})
			return
		}
		r.logger.Error("Failed to spawn post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to spawn post"})
		return
	}

	r.logger.Info("Post spawned via API",
		zap.String("article_id", article.ID),
		zap.String("post_id", post.ID))
	c.JSON(http.StatusCreated, post)
}

func (r *Router) listPostsHandler(c *gin.Context) {
	limit, offset := listParams(c)
	state := models.PostState(c.Query("state"))

	posts, err := r.posts.List(c.Request.Context(), state, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

func (r *Router) getPostHandler(c *gin.Context) {
	post, err := r.posts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		r.logger.Error("Failed to get post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get post"})
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusOK, post)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// cancelPostHandler cancels a non-terminal post. A post that already
// reached a terminal state reports a conflict.
func (r *Router) cancelPostHandler(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	reason := req.Reason
	if reason == "" {
		reason = "cancelled by operator"
	}

	ok, err := r.posts.Cancel(c.Request.Context(), c.Param("id"), reason)
	if err != nil {
		r.logger.Error("Failed to cancel post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel post"})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "post cannot be cancelled in its current state"})
		return
	}

	r.logger.Info("Post cancelled via API", zap.String("post_id", c.Param("id")))
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (r *Router) listRunsHandler(c *gin.Context) {
	limit, _ := listParams(c)

	runs, err := r.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		r.logger.Error("Failed to list fetch runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list fetch runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
