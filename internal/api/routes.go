package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/api/handlers"
	"github.com/quantora/mlserve/internal/health"
	"github.com/quantora/mlserve/internal/lifecycle"
	"github.com/quantora/mlserve/internal/predictor"
	"github.com/quantora/mlserve/internal/registry"
)

// SetupRoutes wires the HTTP surface onto the router.
func SetupRoutes(router *gin.Engine, reg *registry.Registry, pipe *predictor.Pipeline, lc *lifecycle.Manager, gate *health.Gate, logger *logrus.Logger) {
	router.Use(RequestID())
	serving := handlers.NewServingHandler(reg, pipe, lc, gate, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"models":    reg.Len(),
			"timestamp": time.Now().UTC(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		modelGroup := v1.Group("/models")
		{
			modelGroup.GET("", serving.ListModels)
			modelGroup.POST("/train", serving.Train)
			modelGroup.POST("/ensemble", serving.CreateEnsemble)
			modelGroup.POST("/retrain", serving.Retrain)
			modelGroup.POST("/cleanup", serving.Cleanup)
			modelGroup.POST("/:name/predict", serving.Predict)
			modelGroup.POST("/:name/predict/batch", serving.BatchPredict)
			modelGroup.POST("/:name/save", serving.SaveModel)
			modelGroup.POST("/:name/load", serving.LoadModel)
		}
		v1.GET("/predictions/history", serving.History)
		v1.GET("/health/report", serving.HealthReport)
	}
}
