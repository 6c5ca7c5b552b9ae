package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/relaxr-go/api/handlers"
	"github.com/yourusername/relaxr-go/api/middleware"
	"github.com/yourusername/relaxr-go/internal/app"
	"github.com/yourusername/relaxr-go/pkg/logger"
)

// Dependencies are the services the HTTP API is built on
type Dependencies struct {
	Service    *app.ConversionService
	Dispatcher *app.Dispatcher
	Events     *app.EventHub
	Logger     *zap.Logger
	MultiLog   *logger.MultiLogger // optional
	LogsDir    string
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(deps.Logger, deps.MultiLog))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(deps.Service, deps.Events)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		jobHandler := handlers.NewJobHandler(deps.Dispatcher, deps.Service, deps.Logger)
		v1.POST("/convert", jobHandler.Convert)

		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.Submit)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/stats", jobHandler.GetStats)
			jobs.GET("/:id", jobHandler.GetJob)
		}

		prefsHandler := handlers.NewPreferencesHandler(deps.Dispatcher)
		v1.GET("/preferences/default-directory", prefsHandler.GetDefaultDirectory)
		v1.PUT("/preferences/default-directory", prefsHandler.SetDefaultDirectory)
		v1.POST("/files/open", prefsHandler.OpenFileLocation)

		eventsHandler := handlers.NewEventsHandler(deps.Events, deps.Logger)
		v1.GET("/events", eventsHandler.HandleWebSocket)

		if deps.LogsDir != "" {
			logHandler := handlers.NewLogHandler(deps.LogsDir)
			v1.GET("/logs/:category", logHandler.GetLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
