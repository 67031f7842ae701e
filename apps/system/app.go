package system

import (
	"strings"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/getevo/restify"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/lib/response"
)

const (
	MaxBodySize       = 1 * 1024 * 1024
	RateLimitRequests = 100 // per minute per IP
)

var StartupTime = time.Now()

type App struct {
}

func (a App) Register() error {
	var logLevel = settings.Get("APP.LOG_LEVEL", "info").String()
	switch strings.ToLower(logLevel) {
	case "debug", "dev", "development":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn", "warning":
		log.SetLevel(log.WarningLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "critical", "crit":
		log.SetLevel(log.CriticalLevel)
	default:
		log.SetLevel(log.WarningLevel)
	}

	var app = evo.GetFiber()

	if settings.Get("APP.LOG_REQUESTS").Bool() {
		app.Use(logger.New())
	}

	// multipart uploads are bounded by the storage policy, everything else by MaxBodySize
	bodyLimit := settings.Get("APP.MAX_BODY_SIZE", MaxBodySize).Int()
	app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
			return c.Next()
		}
		if len(c.Body()) > bodyLimit {
			return response.FiberError(c, response.ErrInvalidInput.WithMessage("Request body too large"))
		}
		return c.Next()
	})

	if settings.Get("APP.RATE_LIMIT", true).Bool() {
		max := settings.Get("APP.RATE_LIMIT_REQUESTS", RateLimitRequests).Int()
		app.Use(limiter.New(limiter.Config{
			Max:        max,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return response.FiberError(c, response.ErrTooManyRequests)
			},
		}))
		log.Info("Rate limiting enabled: %d requests per minute", max)
	}

	restify.SetPrefix("/api/restify")

	return nil
}

func (a App) Router() error {
	var controller Controller
	evo.Get("/health", controller.HealthHandler)
	evo.Get("/api/health", controller.HealthHandler)
	evo.Get("/uptime", controller.UptimeHandler)

	evo.Use("/api/system", auth.RequireAuth)
	evo.Get("/api/system/departments", controller.GetDepartments)
	evo.Get("/api/system/designations", controller.GetDesignations)
	evo.Get("/api/system/mrf-statuses", controller.GetRequisitionStatuses)

	evo.Use("/api/settings", auth.RequireRole(auth.RoleHR))
	evo.Get("/api/settings/rate-limits", controller.GetRateLimitSettings)

	// reference data is maintained by hr
	evo.Use("/api/restify", auth.RequireRole(auth.RoleHR))

	return nil
}

func (a App) WhenReady() error {
	return nil
}

func (a App) Name() string {
	return "system"
}
