package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	appnats "github.com/iesreza/hrdesk-backend/apps/nats"
	"github.com/iesreza/hrdesk-backend/apps/realtime"
	"github.com/iesreza/hrdesk-backend/lib/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 60 * time.Second
	lockName       = "outbox-dispatch"
)

type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// Lease is how long claimed rows stay hidden from other passes
	Lease time.Duration
}

// Dispatcher delivers outbox events at least once
type Dispatcher struct {
	tx          database.TxFunc
	mailer      Mailer
	broadcaster realtime.Broadcaster
	renderer    *Renderer
	locker      appnats.Locker
	config      DispatcherConfig
	now         func() time.Time
	wake        chan struct{}
}

func NewDispatcher(tx database.TxFunc, mailer Mailer, broadcaster realtime.Broadcaster, locker appnats.Locker, config DispatcherConfig) *Dispatcher {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 8
	}
	if config.Lease <= 0 {
		config.Lease = 2 * time.Minute
	}
	if locker == nil {
		locker = appnats.NewLocalLocker()
	}
	return &Dispatcher{
		tx:          tx,
		mailer:      mailer,
		broadcaster: broadcaster,
		renderer:    NewRenderer(),
		locker:      locker,
		config:      config,
		now:         time.Now,
		wake:        make(chan struct{}, 1),
	}
}

// Wake never blocks; several wakes before the next pass collapse into one
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := d.DispatchOnce(ctx); err != nil {
			log.Error("outbox dispatch failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// backoff follows 1s, 2s, 4s ... capped at MaxBackoff
func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(InitialBackoff) * math.Pow(2, float64(attempt-1))
	if delay > float64(MaxBackoff) {
		delay = float64(MaxBackoff)
	}
	return time.Duration(delay)
}

// DispatchOnce delivers one batch of due events and reports how many were
// sent. Rows are claimed in one short transaction and results are recorded in
// another, so no lock is held while talking to SMTP or NATS. A claim is a
// lease: if the process dies mid batch the rows come due again after it.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	if !d.locker.TryLock(lockName) {
		return 0, nil
	}
	defer d.locker.Unlock(lockName)

	due, err := d.claim()
	if err != nil || len(due) == 0 {
		return 0, err
	}

	sent := 0
	for i := range due {
		event := &due[i]
		deliverErr := d.deliver(ctx, event)
		event.Attempts++
		if deliverErr == nil {
			now := d.now()
			event.Status = StatusSent
			event.SentAt = &now
			event.LastError = ""
			sent++
			continue
		}
		event.LastError = truncate(deliverErr.Error(), 1024)
		if event.Attempts >= d.config.MaxAttempts {
			event.Status = StatusFailed
			log.Error("outbox event %s (%s) failed permanently after %d attempts: %v",
				event.ID, event.Kind, event.Attempts, deliverErr)
		} else {
			event.NextAttemptAt = d.now().Add(backoff(event.Attempts))
			log.Warning("outbox event %s (%s) attempt %d failed, retrying in %v: %v",
				event.ID, event.Kind, event.Attempts, backoff(event.Attempts), deliverErr)
		}
	}

	err = d.tx(func(tx *gorm.DB) error {
		for i := range due {
			if err := tx.Save(&due[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return sent, err
}

// claim picks due rows and pushes their next attempt past the lease
func (d *Dispatcher) claim() ([]OutboxEvent, error) {
	var due []OutboxEvent
	err := d.tx(func(tx *gorm.DB) error {
		now := d.now()
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_attempt_at <= ?", StatusPending, now).
			Order("created_at").
			Limit(d.config.BatchSize).
			Find(&due).Error
		if err != nil || len(due) == 0 {
			return err
		}
		ids := make([]string, len(due))
		for i := range due {
			ids[i] = due[i].ID
		}
		lease := now.Add(d.config.Lease)
		return tx.Model(&OutboxEvent{}).Where("id IN ?", ids).Update("next_attempt_at", lease).Error
	})
	return due, err
}

func (d *Dispatcher) deliver(ctx context.Context, event *OutboxEvent) error {
	switch event.Kind {
	case KindEmail:
		var payload EmailPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}
		html, err := d.renderer.Render(payload.Template, payload.Subject, payload.Vars)
		if err != nil {
			return err
		}
		return d.mailer.Send(ctx, Message{To: payload.To, Subject: payload.Subject, HTML: html})

	case KindBroadcast:
		var payload realtime.Event
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("decode broadcast payload: %w", err)
		}
		return d.broadcaster.Broadcast(ctx, payload)
	}
	return fmt.Errorf("unknown outbox event kind %q", event.Kind)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
