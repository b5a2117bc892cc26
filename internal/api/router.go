package api

import (
	"github.com/gin-gonic/gin"
	"github.com/yashwanth-3000/find.ai/internal/api/handler"
	"github.com/yashwanth-3000/find.ai/internal/api/middleware"
	"github.com/yashwanth-3000/find.ai/internal/importer"
	"github.com/yashwanth-3000/find.ai/internal/logger"
	"github.com/yashwanth-3000/find.ai/internal/repository"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	importSvc *importer.Service,
	profileRepo *repository.ProfileRepository,
	events *importer.RingReporter,
	log *logger.Logger,
	mode string,
	cors middleware.CORSConfig,
) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cors))

	healthHandler := handler.NewHealthHandler()
	profileHandler := handler.NewProfileHandler(profileRepo)
	importHandler := handler.NewImportHandler(importSvc, events)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/profiles", profileHandler.CreateProfile)
		v1.GET("/profiles/:id", profileHandler.GetProfile)

		v1.POST("/profiles/:id/import", importHandler.StartImport)
		v1.GET("/profiles/:id/import", importHandler.GetStatus)
		v1.POST("/profiles/:id/import/retry", importHandler.Retry)
		v1.POST("/profiles/:id/import/bootstrap", importHandler.Bootstrap)
		v1.DELETE("/profiles/:id/import", importHandler.Cancel)
	}

	return r
}
