package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/db"
	"github.com/zegh6389/news-instagram-mcp/internal/rate"
	"github.com/zegh6389/news-instagram-mcp/pkg/logging"
)

// Router sets up the operator API routes
type Router struct {
	articles *db.ArticleRepository
	posts    *db.PostRepository
	runs     *db.FetchRunRepository
	ledger   rate.Ledger
	account  string
	database *db.DB
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, ledger rate.Ledger, account string) *Router {
	repo := db.NewRepository(database.DB)
	return &Router{
		articles: db.NewArticleRepository(repo),
		posts:    db.NewPostRepository(repo),
		runs:     db.NewFetchRunRepository(repo),
		ledger:   ledger,
		account:  account,
		database: database,
		logger:   logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	api := engine.Group("/api")
	{
		api.GET("/stats", r.statsHandler)
		api.GET("/articles", r.listArticlesHandler)
		api.GET("/articles/:id", r.getArticleHandler)
		api.POST("/articles/:id/spawn", r.spawnPostHandler)
		api.GET("/posts", r.listPostsHandler)
		api.GET("/posts/:id", r.getPostHandler)
		api.POST("/posts/:id/cancel", r.cancelPostHandler)
		api.GET("/runs", r.listRunsHandler)
	}
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	if err := r.database.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DEGRADED",
			"service": "news-pipeline-api",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "news-pipeline-api",
	})
}
