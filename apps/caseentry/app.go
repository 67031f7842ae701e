package caseentry

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
	db.UseModel(CaseEntry{})
	a.service = NewService(database.Default(), a.waker)
	return nil
}

func (a *App) Router() error {
	controller := Controller{service: a.service}

	evo.Use("/api/case-entries", auth.RequireAuth)
	evo.Get("/api/case-entries", controller.List)
	evo.Post("/api/case-entries", controller.Create)
	evo.Get("/api/case-entries/:id", controller.Get)
	evo.Put("/api/case-entries/:id", controller.Update)
	evo.Put("/api/case-entries/:id/delete", controller.Delete)
	evo.Delete("/api/case-entries/:id", controller.Delete)
	return nil
}

func (a *App) WhenReady() error {
	return nil
}

func (a *App) Name() string {
	return "caseentry"
}

var _ application.Application = (*App)(nil)
