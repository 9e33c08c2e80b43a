package router

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/stampcard-next/internal/authz"
	"github.com/stampcard-next/internal/cache"
	"github.com/stampcard-next/internal/config"
	"github.com/stampcard-next/internal/constants"
	handlershared "github.com/stampcard-next/internal/http/handlers/shared"
	publichandlers "github.com/stampcard-next/internal/http/handlers/public"
	staffhandlers "github.com/stampcard-next/internal/http/handlers/staff"
	"github.com/stampcard-next/internal/http/response"
	"github.com/stampcard-next/internal/logger"
	"github.com/stampcard-next/internal/models"
	"github.com/stampcard-next/internal/provider"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const healthCheckTimeout = 2 * time.Second

const staffRoutePrefix = "/api/v1/staff/"

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	staffHandler := staffhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	redisClient := cache.Client()
	scanRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:scan", redisPrefix),
		WindowSeconds: cfg.Security.ScanRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.ScanRateLimit.MaxRequests,
	}
	verifyRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:verify", redisPrefix),
		WindowSeconds: cfg.Security.VerifyRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.VerifyRateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(MetricsMiddleware(c.Metrics))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 顾客接口
		customer := apiV1.Group("")
		customer.Use(UserJWTAuthMiddleware(c.TokenService, c.UserRepo))
		{
			customer.POST("/stamps/scan",
				RateLimitMiddleware(redisClient, scanRule, KeyByContextUint(handlershared.ContextUserID)),
				publicHandler.ScanStamp,
			)
			customer.GET("/stamp-cards", publicHandler.ListStampCards)
			customer.POST("/stamp-cards/:id/redemption-code", publicHandler.IssueRedemptionCode)
		}

		// 店员接口（鉴权 + RBAC）
		staff := apiV1.Group("/staff")
		staff.Use(StaffJWTAuthMiddleware(c.TokenService, c.StaffRepo))
		staff.Use(StaffRBACMiddleware(c.AuthzService))
		{
			staff.GET("/me", staffHandler.GetCurrentStaff)
			staff.POST("/redemptions/verify",
				RateLimitMiddleware(redisClient, verifyRule, KeyByContextUint(handlershared.ContextStaffID)),
				staffHandler.VerifyRedemption,
			)
			staff.GET("/stamp-transactions", staffHandler.ListStampTransactions)
			staff.POST("/stamp-transactions/:id/approve", staffHandler.ApproveStampTransaction)
			staff.POST("/stamp-transactions/:id/reject", staffHandler.RejectStampTransaction)
		}
	}

	if cfg.Metrics.Enabled && c.Metrics != nil {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(c.Metrics.Handler()))
	}

	// 健康检查
	r.GET("/healthz", healthCheckHandler(models.DB))
	r.NoRoute(notFoundHandler)

	auditStaffPermissions(r, c.AuthzService)
	return r
}

// healthCheckHandler 探测数据库与 Redis，任一不可达返回 503
func healthCheckHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		checks := gin.H{"database": "ok", "redis": "ok"}
		healthy := true
		if err := pingDatabase(ctx, db); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if !cache.Enabled() {
			checks["redis"] = "disabled"
		} else if err := cache.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
		if !healthy {
			logger.FromContext(c.Request.Context()).Warnw("health_check_failed", "checks", checks)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
	}
}

func notFoundHandler(c *gin.Context) {
	response.NotFound(c, handlershared.Message("error.not_found"))
}

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type staffPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildStaffPermissionCatalog(engine *gin.Engine) []staffPermissionCatalogItem {
	if engine == nil {
		return []staffPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]staffPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, staffRoutePrefix) {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, staffPermissionCatalogItem{
			Module:     deriveStaffPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveStaffPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), strings.TrimSuffix(staffRoutePrefix, "/"))
	normalized = strings.TrimPrefix(normalized, "/")
	if normalized == "" {
		return "staff"
	}
	return strings.Split(normalized, "/")[0]
}

// uncoveredStaffPermissions 返回没有任何内置角色授权的店员路由
func uncoveredStaffPermissions(engine *gin.Engine, authzService *authz.Service) ([]staffPermissionCatalogItem, error) {
	missing := make([]staffPermissionCatalogItem, 0)
	if authzService == nil {
		return missing, nil
	}
	for _, item := range buildStaffPermissionCatalog(engine) {
		covered := false
		for _, seed := range authz.BuiltinRoleSeeds() {
			role, err := authz.NormalizeRole(seed.Role)
			if err != nil {
				return nil, err
			}
			allowed, err := authzService.Enforce(role, item.Object, item.Method)
			if err != nil {
				return nil, err
			}
			if allowed {
				covered = true
				break
			}
		}
		if !covered {
			missing = append(missing, item)
		}
	}
	return missing, nil
}

func auditStaffPermissions(engine *gin.Engine, authzService *authz.Service) {
	missing, err := uncoveredStaffPermissions(engine, authzService)
	if err != nil {
		logger.Warnw("router_staff_permission_audit_failed", "error", err)
		return
	}
	for _, item := range missing {
		logger.Warnw("router_staff_permission_uncovered",
			"module", item.Module,
			"permission", item.Permission,
		)
	}
}
