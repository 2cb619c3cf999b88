package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"mangashelf-backend/internal/middleware"
	"mangashelf-backend/internal/models"
)

type RouterConfig struct {
	Orders   *OrdersHandler
	Payments *PaymentsHandler
	Pages    *PagesHandler
	Health   *HealthHandler
	Logger   *zap.Logger

	// JWTSecret enables bearer authentication on /api/v1 when set.
	JWTSecret string
	// UploadDir is served at /uploads when set.
	UploadDir string
	// StagingDirName is hidden from the /uploads route.
	StagingDirName string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Logger))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", cfg.Health.Health)

	if cfg.UploadDir != "" {
		uploads := router.Group("/uploads", hideDir(cfg.StagingDirName))
		uploads.Static("/", cfg.UploadDir)
	}

	api := router.Group("/api/v1")
	if cfg.JWTSecret != "" {
		api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	}

	// Orders
	api.POST("/orders", cfg.Orders.CreateOrder)
	api.GET("/orders", cfg.Orders.ListOrders)
	api.GET("/orders/:id", cfg.Orders.GetOrder)
	api.PUT("/orders/:id/status", cfg.Orders.UpdateOrderStatus)
	api.DELETE("/orders/:id", cfg.Orders.CancelOrder)

	// Payments
	api.POST("/payments", cfg.Payments.CreatePayment)
	api.GET("/payments/:id", cfg.Payments.GetPayment)
	api.GET("/payments/order/:orderId", cfg.Payments.GetPaymentByOrder)
	api.POST("/payments/:id/complete", cfg.Payments.CompletePayment)
	api.POST("/payments/:id/fail", cfg.Payments.FailPayment)
	api.POST("/payments/:id/refund", cfg.Payments.RefundPayment)

	// Pages
	api.POST("/pages/volume/:volumeId/upload-zip", cfg.Pages.UploadArchive)
	api.GET("/pages/volume/:volumeId", cfg.Pages.ListPages)
	api.DELETE("/pages/volume/:volumeId", cfg.Pages.DeleteAllPages)
	api.POST("/pages", cfg.Pages.CreatePage)
	api.GET("/pages/:id", cfg.Pages.GetPage)
	api.PUT("/pages/:id", cfg.Pages.UpdatePage)
	api.DELETE("/pages/:id", cfg.Pages.DeletePage)
	api.PUT("/pages/:id/reorder", cfg.Pages.ReorderPage)

	return router
}

func hideDir(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if name == "" {
			return
		}
		for _, part := range strings.Split(c.Param("filepath"), "/") {
			if part == name {
				c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found"})
				return
			}
		}
	}
}
