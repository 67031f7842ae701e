package redis

import (
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/log"
)

// App owns the shared Redis client used for rate limiting and short-lived caches
type App struct{}

func (App) Register() error {
	LoadRateLimitSettings()
	return nil
}

func (App) Router() error {
	return nil
}

func (App) WhenReady() error {
	if err := Initialize(); err != nil {
		log.Error("Failed to connect to Redis: %v", err)
		return err
	}
	return nil
}

func (App) Name() string {
	return "redis"
}

func (App) Shutdown() error {
	log.Info("Shutting down Redis connection...")
	return Close()
}

var _ application.Application = (*App)(nil)
