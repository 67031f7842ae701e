package realtime

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/gofiber/contrib/websocket"
	appnats "github.com/iesreza/hrdesk-backend/apps/nats"
)

// App owns the hub and the broadcaster handed to the other apps
type App struct {
	hub         *Hub
	broadcaster *NATSBroadcaster
}

func New() *App {
	hub := NewHub(settings.Get("REALTIME.CLIENT_BUFFER", 16).Int())
	return &App{hub: hub, broadcaster: NewNATSBroadcaster(hub)}
}

func (a *App) Broadcaster() Broadcaster {
	return a.broadcaster
}

func (a *App) Hub() *Hub {
	return a.hub
}

func (a *App) Register() error {
	return nil
}

func (a *App) Router() error {
	app := evo.GetFiber()
	app.Use("/ws/events", authenticate)
	app.Get("/ws/events", websocket.New(a.hub.serve))
	return nil
}

// WhenReady runs after the nats app has connected
func (a *App) WhenReady() error {
	if !appnats.IsConnected() {
		log.Info("realtime: NATS unavailable, events reach local clients only")
		return nil
	}
	if err := a.broadcaster.Start(); err != nil {
		log.Warning("realtime: NATS subscription failed, using local delivery: %v", err)
	}
	return nil
}

func (a *App) Name() string {
	return "realtime"
}

func (a *App) Shutdown() error {
	a.broadcaster.Stop()
	a.hub.Close()
	return nil
}

var _ application.Application = (*App)(nil)
