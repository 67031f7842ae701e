package nats

import (
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
)

// App owns the process-wide NATS connection. It is optional: without it the
// realtime hub only reaches clients of this instance.
type App struct{}

func (App) Register() error {
	return nil
}

func (App) Router() error {
	return nil
}

func (App) WhenReady() error {
	if settings.Get("NATS.URL", "").String() == "" {
		log.Warning("NATS.URL not set, running single-instance")
		return nil
	}

	reconnectWait, _ := settings.Get("NATS.RECONNECT_WAIT", "2s").Duration()
	pingInterval, _ := settings.Get("NATS.PING_INTERVAL", "20s").Duration()
	drainTimeout, _ := settings.Get("NATS.DRAIN_TIMEOUT", "30s").Duration()

	config := NATSConfig{
		URL:            settings.Get("NATS.URL").String(),
		Name:           settings.Get("NATS.NAME", "hrdesk-backend").String(),
		MaxReconnects:  int(settings.Get("NATS.MAX_RECONNECTS", 60).Int64()),
		ReconnectWait:  reconnectWait,
		PingInterval:   pingInterval,
		MaxPingsOut:    int(settings.Get("NATS.MAX_PINGS_OUT", 2).Int64()),
		AllowReconnect: settings.Get("NATS.ALLOW_RECONNECT", true).Bool(),
		DrainTimeout:   drainTimeout,
	}

	if err := Connect(config); err != nil {
		log.Error("Failed to connect to NATS: %v", err)
		return err
	}
	return nil
}

func (App) Name() string {
	return "nats"
}

func (App) Shutdown() error {
	drainTimeout, _ := settings.Get("NATS.DRAIN_TIMEOUT", "30s").Duration()
	return Close(drainTimeout)
}

var _ application.Application = (*App)(nil)
