package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/medcrew/backend/config"
	"github.com/medcrew/backend/internal/embed"
	"github.com/medcrew/backend/internal/handler"
)

func Setup(
	cfg *config.Config,
	consultationHandler *handler.ConsultationHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
	}))

	// 模板、静态文件与 gzip 中间件，中间件需在路由注册之前
	embed.SetupRouter(r)

	r.GET("/", consultationHandler.Index)
	r.POST("/consult", consultationHandler.ConsultForm)
	r.GET("/healthz", consultationHandler.Health)

	api := r.Group("/api")
	{
		api.POST("/consultations", consultationHandler.Create)
		api.POST("/documents/export", consultationHandler.Export)
		api.GET("/stages", consultationHandler.Stages)
	}

	return r
}
