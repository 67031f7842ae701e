package sysupdate

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/apps/notify"
	"github.com/iesreza/hrdesk-backend/lib/database"
)

type App struct {
	waker   notify.Waker
	service *Service
}

func New(waker notify.Waker) *App {
	return &App{waker: waker}
}

func (a *App) Register() error {
	db.UseModel(SystemUpdate{})
	db.UseModel(Recipient{})
	db.UseModel(Read{})
	db.UseModel(Discussion{})
	db.UseModel(DiscussionRead{})
	a.service = NewService(database.Default(), a.waker)
	return nil
}

func (a *App) Router() error {
	controller := Controller{service: a.service}

	evo.Use("/api/system-updates", auth.RequireAuth)
	evo.Get("/api/system-updates", controller.List)
	evo.Post("/api/system-updates", controller.Create)
	evo.Get("/api/system-updates/unread-counts", controller.Unread)
	evo.Put("/api/system-updates/discussions/:id/read", controller.MarkDiscussionRead)
	evo.Get("/api/system-updates/:id", controller.Get)
	evo.Delete("/api/system-updates/:id", controller.Delete)
	evo.Put("/api/system-updates/:id/read", controller.MarkRead)
	evo.Get("/api/system-updates/:id/recipients", controller.ReadStatus)
	evo.Get("/api/system-updates/:id/discussions", controller.Discussions)
	evo.Post("/api/system-updates/:id/discussions", controller.PostDiscussion)
	return nil
}

func (a *App) WhenReady() error {
	return nil
}

func (a *App) Name() string {
	return "sysupdate"
}

var _ application.Application = (*App)(nil)
