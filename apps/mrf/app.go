package mrf

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/gofiber/fiber/v2"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/apps/notify"
	"github.com/iesreza/hrdesk-backend/apps/redis"
	"github.com/iesreza/hrdesk-backend/apps/storage"
	"github.com/iesreza/hrdesk-backend/lib/database"
	"github.com/iesreza/hrdesk-backend/lib/response"
)

// App serves the manpower requisition workflow
type App struct {
	waker   notify.Waker
	files   *storage.Service
	service *Service
}

func New(waker notify.Waker, files *storage.Service) *App {
	return &App{waker: waker, files: files}
}

func (a *App) Service() *Service {
	return a.service
}

func (a *App) Register() error {
	db.UseModel(Requisition{})
	db.UseModel(Query{})
	db.UseModel(Sequence{})
	db.UseModel(History{})

	config := DefaultConfig()
	config.OperationsMailbox = settings.Get("HR.OPERATIONS_MAILBOX", "").String()
	config.DirectorMailbox = settings.Get("HR.DIRECTOR_MAILBOX", "").String()
	config.WithdrawWindowDays = settings.Get("HR.WITHDRAW_WINDOW_DAYS", config.WithdrawWindowDays).Int()
	config.BaseURL = settings.Get("APP.BASE_URL", "").String()
	config.Number.Prefix = settings.Get("HR.MRF_PREFIX", config.Number.Prefix).String()
	config.Number.Digits = settings.Get("HR.MRF_DIGITS", config.Number.Digits).Int()

	a.service = NewService(database.Default(), a.waker, config)
	return nil
}

func (a *App) Router() error {
	controller := Controller{service: a.service, files: a.files}

	upload := redis.RateLimitMiddleware(redis.LimitStorageUpload)
	evo.GetFiber().Post("/api/mrf/add-manpower-requisition", upload, controller.CreateHandler)
	evo.GetFiber().Put("/api/mrf/update-manpower-requisition/:id", upload, controller.UpdateHandler)
	evo.GetFiber().Get("/api/reports/mrf/export", controller.ExportHandler)

	evo.GetFiber().Use("/api/mrf/reply-by-link", redis.RateLimitMiddleware(redis.LimitMRFReplyLink))
	evo.Post("/api/mrf/reply-by-link", controller.ReplyByLink)

	// the reply link carries its own signed token
	evo.GetFiber().Use("/api/mrf", func(c *fiber.Ctx) error {
		if c.Path() == "/api/mrf/reply-by-link" {
			return c.Next()
		}
		if _, err := auth.FiberEmployee(c); err != nil {
			return response.FiberError(c, err)
		}
		return c.Next()
	})
	evo.Put("/api/mrf/update-status/:id", controller.UpdateStatus)
	evo.Put("/api/mrf/withdraw-manpower/:id", controller.Withdraw)
	evo.Put("/api/mrf/delete-manpower/:id", controller.Delete)
	evo.Post("/api/mrf/add-query-form", controller.AddQuery)
	evo.Post("/api/mrf/reply-to-query/:id", controller.ReplyToQuery)
	evo.Get("/api/mrf/query/:id", controller.GetQuery)
	evo.Get("/api/mrf/history/:id", controller.History)
	evo.Get("/api/mrf/get-manpower/:id", controller.Get)
	evo.Get("/api/mrf/getmanpowerrequisitionbystatus/:status/:emp_id", controller.ListByStatus)
	evo.Get("/api/mrf/manager-mrf-counts/:id", controller.ManagerCounts)
	return nil
}

func (a *App) WhenReady() error {
	return nil
}

func (a *App) Name() string {
	return "mrf"
}

var _ application.Application = (*App)(nil)
