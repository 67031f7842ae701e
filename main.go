package main

import (
	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/apps/caseentry"
	"github.com/iesreza/hrdesk-backend/apps/models"
	"github.com/iesreza/hrdesk-backend/apps/mrf"
	"github.com/iesreza/hrdesk-backend/apps/nats"
	"github.com/iesreza/hrdesk-backend/apps/notify"
	"github.com/iesreza/hrdesk-backend/apps/realtime"
	"github.com/iesreza/hrdesk-backend/apps/redis"
	"github.com/iesreza/hrdesk-backend/apps/storage"
	"github.com/iesreza/hrdesk-backend/apps/sysupdate"
	"github.com/iesreza/hrdesk-backend/apps/system"
)

func main() {
	evo.Setup()

	var live = realtime.New()
	var outbox = notify.New(live.Broadcaster())
	var files = storage.New()

	var apps = application.GetInstance()
	apps.Register(
		system.App{}, nats.App{}, redis.App{}, auth.App{}, models.App{},
		live, outbox, files,
		mrf.New(outbox.Waker(), files.Service()),
		caseentry.New(outbox.Waker()),
		sysupdate.New(outbox.Waker()),
	)

	evo.Run()
}
