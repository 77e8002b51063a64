package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	jwtpkg "communitymsg/backend/internal/auth/jwt"
	"communitymsg/backend/internal/config"
	"communitymsg/backend/internal/health"
	"communitymsg/backend/internal/middleware"
	"communitymsg/backend/internal/monitoring"
	"communitymsg/backend/internal/service"
	"communitymsg/backend/internal/template"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	MessageService *service.MessageService
	TemplateEngine *template.Engine
	JWTManager     *jwtpkg.Manager
	Metrics        *monitoring.Metrics
	HealthChecker  *health.Checker
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// 监控中间件
	var mm *middleware.MonitoringMiddleware
	if deps.Metrics != nil {
		mm = middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
		router.Use(mm.BusinessMetrics())
	} else {
		router.Use(gin.Recovery())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	handler := NewHandler(deps.MessageService)
	templateHandler := NewTemplateHandler(deps.TemplateEngine, deps.MessageService)
	contactHandler := NewContactHandler(deps.MessageService, deps.Config.Contact, deps.Metrics)

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	if deps.HealthChecker != nil {
		router.GET("/live", gin.WrapH(deps.HealthChecker.Handler()))
		router.GET("/ready", gin.WrapH(deps.HealthChecker.Handler()))
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Contact Routes（共享密钥校验,无需JWT） ==========
		v1.POST("/contact", contactHandler.submitContact)

		// ========== Message Routes ==========
		messageRoutes := v1.Group("/messages")
		messageRoutes.Use(jwtAuth.RequireAuth())
		{
			messageRoutes.POST("", handler.createMessage)
			messageRoutes.GET("", handler.listMessages)
			messageRoutes.GET("/:id", handler.getMessage)
			messageRoutes.POST("/:id/read", handler.markMessageRead)
			messageRoutes.DELETE("/:id", handler.deleteMessage)
		}

		// ========== Inbox Routes ==========
		inboxRoutes := v1.Group("/inbox")
		inboxRoutes.Use(jwtAuth.RequireAuth())
		{
			inboxRoutes.GET("", handler.getInbox)
			inboxRoutes.GET("/unread-count", handler.getUnreadCount)
		}

		// ========== Template Routes（仅管理员） ==========
		templateRoutes := v1.Group("/templates")
		templateRoutes.Use(jwtAuth.RequireAuth(), jwtAuth.RequireAdmin())
		{
			templateRoutes.GET("", templateHandler.listTemplates)
			templateRoutes.GET("/:id", templateHandler.getTemplate)
			templateRoutes.POST("/:id/dispatch", templateHandler.dispatchTemplate)
		}
	}

	return router
}
