package notify

import (
	"context"
	"time"

	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	appnats "github.com/iesreza/hrdesk-backend/apps/nats"
	"github.com/iesreza/hrdesk-backend/apps/realtime"
	"github.com/iesreza/hrdesk-backend/lib/database"
)

// App runs the outbox dispatcher. Other apps receive it as a Waker.
type App struct {
	dispatcher *Dispatcher
	cancel     context.CancelFunc
	done       chan struct{}
}

func New(broadcaster realtime.Broadcaster) *App {
	var mailer Mailer = LogMailer{}
	if settings.Get("SMTP.ENABLED", true).Bool() && settings.Get("SMTP.HOST").String() != "" {
		mailer = NewSMTPMailer(LoadSMTPConfig())
	}

	poll, err := settings.Get("OUTBOX.POLL_INTERVAL", "5s").Duration()
	if err != nil {
		poll = 5 * time.Second
	}
	lease, err := settings.Get("OUTBOX.LEASE", "2m").Duration()
	if err != nil {
		lease = 2 * time.Minute
	}
	config := DispatcherConfig{
		Lease:        lease,
		PollInterval: poll,
		BatchSize:    settings.Get("OUTBOX.BATCH_SIZE", 50).Int(),
		MaxAttempts:  settings.Get("OUTBOX.MAX_ATTEMPTS", 8).Int(),
	}
	return &App{dispatcher: NewDispatcher(database.Default(), mailer, broadcaster, nil, config)}
}

func (a *App) Waker() Waker {
	return a.dispatcher
}

func (a *App) Register() error {
	db.UseModel(OutboxEvent{})
	return nil
}

func (a *App) Router() error {
	return nil
}

func (a *App) WhenReady() error {
	a.dispatcher.locker = appnats.NewLocker("hrdesk_locks", 2*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		a.dispatcher.Run(ctx)
	}()
	log.Info("outbox dispatcher started (poll %v)", a.dispatcher.config.PollInterval)
	return nil
}

func (a *App) Name() string {
	return "notify"
}

func (a *App) Shutdown() error {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	return nil
}

var _ application.Application = (*App)(nil)
