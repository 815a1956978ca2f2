package router

import (
	"github.com/gin-gonic/gin"
	"github.com/truecar-kr/truecar-backend/config"
	"github.com/truecar-kr/truecar-backend/internal/app/controller"
	"github.com/truecar-kr/truecar-backend/internal/metrics"
	"github.com/truecar-kr/truecar-backend/internal/middleware"
)

type Router struct {
	authController   *controller.AuthController
	reviewController *controller.ReviewController
	uploadController *controller.UploadController
	authMiddleware   *middleware.AuthMiddleware
	adminGate        middleware.AdminChecker
	config           *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	reviewController *controller.ReviewController,
	uploadController *controller.UploadController,
	authMiddleware *middleware.AuthMiddleware,
	adminGate middleware.AdminChecker,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:   authController,
		reviewController: reviewController,
		uploadController: uploadController,
		authMiddleware:   authMiddleware,
		adminGate:        adminGate,
		config:           cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(metrics.Middleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "TRUECAR API is running",
		})
	})
	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", r.authController.Signup)
			auth.POST("/login", r.authController.Login)
			auth.POST("/refresh", r.authController.RefreshToken)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.GetMe)
		}

		// 공개 리뷰 (조회수 중복 방지용 세션 부여)
		reviews := v1.Group("/reviews")
		reviews.Use(middleware.ViewerSession(
			r.config.Views.SessionCookie,
			r.config.Server.Environment == "production",
		))
		{
			reviews.GET("", r.reviewController.ListReviews)
			reviews.GET("/popular", r.reviewController.ListPopularReviews)
			reviews.GET("/vehicle/:type", r.reviewController.ListReviewsByVehicleType)
			// 로그인한 관리자의 조회는 카운트하지 않음
			reviews.GET("/:id", r.authMiddleware.OptionalAuthenticate(r.adminGate), r.reviewController.GetReview)
			reviews.GET("/:id/live", r.reviewController.LiveViews)
		}

		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.Authenticate(), r.authMiddleware.RequireAdmin(r.adminGate))
		{
			adminReviews := admin.Group("/reviews")
			{
				adminReviews.POST("", r.reviewController.CreateReview)
				adminReviews.GET("/stats", r.reviewController.GetViewStats)
				adminReviews.GET("/export", r.reviewController.ExportReviews)
				adminReviews.GET("/:id", r.reviewController.AdminGetReview)
				adminReviews.PUT("/:id", r.reviewController.UpdateReview)
				adminReviews.DELETE("/:id", r.reviewController.DeleteReview)
			}

			uploads := admin.Group("/uploads")
			{
				uploads.POST("/image", r.uploadController.UploadReviewImage)
				uploads.POST("/presigned-url", r.uploadController.GeneratePresignedURL)
			}
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID, X-Viewer-Session")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
