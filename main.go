package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/shojbahmed330/oneclick-studio/ai"
	"github.com/shojbahmed330/oneclick-studio/cache"
	"github.com/shojbahmed330/oneclick-studio/config"
	"github.com/shojbahmed330/oneclick-studio/db"
	_ "github.com/shojbahmed330/oneclick-studio/docs" // Swagger docs
	"github.com/shojbahmed330/oneclick-studio/handlers"
	"github.com/shojbahmed330/oneclick-studio/service"
)

func main() {
	cfg := config.GetConfig()

	// Initialize database
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Initialize cache
	appCache := cache.New()

	// Initialize generation client (Gemini + Ollama backends)
	aiService := ai.New(cfg.GeminiAPIKey, cfg.DefaultModel, cfg.OllamaURL, cfg.LocalModelHints)
	if cfg.GeminiAPIKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set; only local models will be usable")
	}

	genManager := service.NewGenerationManager(database, aiService, cfg.AffirmativeTokens)
	githubService := service.NewGithubService(config.AndroidWorkflowYAML)
	buildRunner := service.NewBuildRunner(githubService, cfg.BuildPollInterval, cfg.BuildPollAttempts)

	// Initialize handlers
	h := handlers.New(database, genManager, githubService, buildRunner, appCache)

	// Setup Gin router
	r := gin.Default()

	// CORS - the dashboard may be served from any origin during development
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "X-Requested-With", "X-User-ID"}
	corsConfig.MaxAge = 24 * time.Hour
	r.Use(cors.New(corsConfig))

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Routes
	r.GET("/health", h.HealthHandler)

	r.POST("/api/projects", h.CreateProjectHandler)
	r.GET("/api/projects", h.ListProjectsHandler)
	r.GET("/api/projects/:id", h.GetProjectHandler)
	r.DELETE("/api/projects/:id", h.DeleteProjectHandler)
	r.PUT("/api/projects/:id/config", h.UpdateProjectConfigHandler)

	r.POST("/api/projects/:id/generate", h.GenerateHandler)
	r.POST("/api/projects/:id/stop", h.StopHandler)
	r.GET("/api/projects/:id/state", h.StateHandler)

	r.GET("/api/projects/:id/preview", h.PreviewHandler)

	r.POST("/api/projects/:id/files", h.AddFileHandler)
	r.PUT("/api/projects/:id/files/rename", h.RenameFileHandler)
	r.DELETE("/api/projects/:id/files/*path", h.DeleteFileHandler)

	r.POST("/api/projects/:id/build", h.BuildHandler)
	r.GET("/api/projects/:id/build/status", h.BuildStatusHandler)
	r.POST("/api/github/repo", h.CreateRepoHandler)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
