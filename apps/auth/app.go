package auth

import (
	"os"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/args"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/iesreza/hrdesk-backend/apps/redis"
)

type App struct {
}

func (a App) Register() error {
	db.UseModel(Employee{})
	db.UseModel(LoginHistory{})

	evo.SetUserInterface(&Employee{})

	InitializeTokens()

	if args.Exists("--create-admin") {
		CreateAdminUser()
		os.Exit(0)
	}

	return nil
}

func (a App) Router() error {
	var controller Controller

	evo.GetFiber().Use("/api/auth/login", redis.RateLimitMiddleware(redis.LimitAuthLogin))
	evo.Post("/api/auth/login", controller.LoginHandler)
	evo.Post("/api/auth/refresh", controller.RefreshHandler)

	evo.Use("/api/auth/profile", RequireAuth)
	evo.Get("/api/auth/profile", controller.GetProfile)
	evo.Put("/api/auth/profile", controller.EditProfile)

	if settings.Get("OAUTH.MICROSOFT.ENABLED").Bool() {
		evo.Get("/api/auth/oauth/microsoft", controller.MicrosoftOAuthLogin)
		evo.Get("/api/auth/oauth/microsoft/callback", controller.MicrosoftOAuthCallback)
	}

	evo.Use("/api/directory", RequireAuth)
	evo.Get("/api/directory/managers", controller.ListManagers)

	evo.Use("/api/users", RequireRole(RoleHR))
	evo.Get("/api/users", controller.ListEmployees)
	evo.Post("/api/users", controller.CreateEmployee)
	evo.Get("/api/users/:id", controller.GetEmployee)
	evo.Put("/api/users/:id", controller.UpdateEmployee)
	evo.Put("/api/users/:id/deactivate", controller.DeactivateEmployee)
	evo.Put("/api/users/:id/activate", controller.ActivateEmployee)

	return nil
}

func (a App) WhenReady() error {
	InitOAuthConfigs()
	return nil
}

func (a App) Name() string {
	return "auth"
}

var _ application.Application = (*App)(nil)
