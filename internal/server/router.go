package server

import (
	"log/slog"
	"net/http"
	"time"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/config"
	"visit-tracker/internal/handler"
	"visit-tracker/internal/metrics"
	"visit-tracker/internal/middleware"
	"visit-tracker/internal/model"
	"visit-tracker/internal/service"
	"visit-tracker/internal/storage"
	"visit-tracker/internal/websocket"

	_ "visit-tracker/api/swagger" // swagger docs

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// uploadsPath is where LocalStore documents are served.
const uploadsPath = "/uploads"

type RouterDeps struct {
	Config   *config.Config
	DB       *gorm.DB
	Log      *slog.Logger
	Tokens   *auth.TokenManager
	Hub      *websocket.Hub
	Store    storage.Store
	Limiters Limiters

	Visits    service.VisitService
	Quotas    service.QuotaService
	Users     service.UserService
	Customers service.CustomerService
	Dashboard service.DashboardService
	Audit     service.AuditService
}

// NewRouter assembles middleware and routes.
func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// ClientIP keys the rate limiters, so forwarded headers only count from known proxies.
	if err := router.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		d.Log.Error("invalid trusted proxies; trusting none", "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery(), middleware.RequestLogger(d.Log), middleware.Metrics(), middleware.SecurityHeaders())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = d.Config.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
	corsConfig.MaxAge = 12 * time.Hour
	if len(corsConfig.AllowOrigins) > 0 {
		router.Use(cors.New(corsConfig))
	}

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	handler.NewHealthHandler(d.DB).RegisterRoutes(router)

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(d.Hub, d.Tokens, c, model.RoleAdmin, model.RoleApprover, model.RoleTechnician)
	})

	if local, ok := d.Store.(*storage.LocalStore); ok {
		router.StaticFS(uploadsPath, http.Dir(local.BaseDir()))
	}

	guard := middleware.NewGuard(d.Tokens, d.Config.IsProduction())
	submitLimit := middleware.RateLimit(d.Limiters.Submit, "submit", d.Log)
	loginLimit := middleware.RateLimit(d.Limiters.Login, "login", d.Log)

	// API Routing
	api := router.Group("/api")
	handler.NewUserHandler(d.Users, guard).RegisterRoutes(api, loginLimit)
	handler.NewRequestHandler(d.Visits, d.Quotas, d.Customers).RegisterRoutes(api, guard, submitLimit)
	handler.NewApprovalHandler(d.Visits).RegisterRoutes(api, guard)
	handler.NewVisitHandler(d.Visits).RegisterRoutes(api, guard)
	handler.NewQuotaHandler(d.Quotas).RegisterRoutes(api, guard)
	handler.NewAdminHandler(d.Customers, d.Dashboard, d.Visits).RegisterRoutes(api, guard)
	handler.NewAuditHandler(d.Audit).RegisterRoutes(api, guard)

	return router
}
