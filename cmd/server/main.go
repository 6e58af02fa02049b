package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/nuruplay/api/internal/assignment"
	"github.com/nuruplay/api/internal/config"
	"github.com/nuruplay/api/internal/database"
	"github.com/nuruplay/api/internal/directory"
	"github.com/nuruplay/api/internal/gateway"
	"github.com/nuruplay/api/internal/handler"
	"github.com/nuruplay/api/internal/leaderboard"
	"github.com/nuruplay/api/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Directory client (child names, grade rosters). Redis is fail-open:
	// without it every name lookup goes to the directory service.
	dir := directory.New(cfg.DirectoryURL, cfg.RedisURL, cfg.ChildNameTTL)

	// Gateway over the game session backends
	sessions := gateway.New(cfg.BackendURLs, cfg.BackendTimeout)

	svc := assignment.NewService(db, sessions, dir)
	agg := leaderboard.New(sessions, svc, dir)

	assignmentHandler := handler.NewAssignmentHandler(svc)
	leaderboardHandler := handler.NewLeaderboardHandler(agg)

	// Setup router
	r := gin.Default()
	r.Use(middleware.RequestID())
	r.Use(middleware.MetricsMiddleware())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api")
	api.GET("/games", assignmentHandler.Games)
	{
		owner := api.Group("/assignments", middleware.AuthMiddleware(cfg.JWTSecret))
		owner.POST("", assignmentHandler.Create)
		owner.GET("", assignmentHandler.ListByOwner)
		owner.GET("/:id/details", assignmentHandler.Details)
		owner.DELETE("/:id", assignmentHandler.Delete)
		owner.PATCH("/targets/:targetId/status", assignmentHandler.UpdateStatus)

		owner.GET("/:id/leaderboard", leaderboardHandler.Leaderboard)
		owner.GET("/:id/statistics", leaderboardHandler.Statistics)
		owner.GET("/:id/overview", leaderboardHandler.Overview)
		owner.GET("/:id/performance", leaderboardHandler.Performance)

		children := api.Group("/children", middleware.AuthMiddleware(cfg.JWTSecret))
		children.GET("/:childId/assignments", assignmentHandler.ListByChild)
		children.GET("/:childId/stats", leaderboardHandler.ChildStats)
		children.GET("/:childId/recent-activity", leaderboardHandler.RecentActivity)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	log.Printf("API server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
