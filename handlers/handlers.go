package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/oneclick-studio/cache"
	"github.com/shojbahmed330/oneclick-studio/db"
	"github.com/shojbahmed330/oneclick-studio/service"
)

// @title           OneClick Studio API
// @version         1.0
// @description     AI-assisted hybrid app builder backend - generate and patch multi-file projects with an LLM, preview them, and trigger Android/web builds

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:9090
// @BasePath  /

// @schemes   http https

type Handlers struct {
	db     *db.DB
	gen    *service.GenerationManager
	github *service.GithubService
	builds *service.BuildRunner
	cache  *cache.Cache
}

func New(database *db.DB, gen *service.GenerationManager, github *service.GithubService, builds *service.BuildRunner, appCache *cache.Cache) *Handlers {
	return &Handlers{
		db:     database,
		gen:    gen,
		github: github,
		builds: builds,
		cache:  appCache,
	}
}

// userID resolves the caller. Use "admin" as default since we don't have a
// full user system yet.
func userID(c *gin.Context) string {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		id = "admin"
	}
	return id
}
