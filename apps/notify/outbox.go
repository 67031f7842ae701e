package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/iesreza/hrdesk-backend/apps/realtime"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventKind string

const (
	KindEmail     EventKind = "email"
	KindBroadcast EventKind = "broadcast"
)

type EventStatus string

const (
	StatusPending EventStatus = "pending"
	StatusSent    EventStatus = "sent"
	StatusFailed  EventStatus = "failed"
)

// OutboxEvent is written in the same transaction as the change it announces
type OutboxEvent struct {
	ID            string         `gorm:"column:id;primaryKey;size:36" json:"id"`
	Kind          EventKind      `gorm:"column:kind;size:16;not null" json:"kind"`
	Payload       datatypes.JSON `gorm:"column:payload;not null" json:"payload"`
	Status        EventStatus    `gorm:"column:status;size:16;not null;index:idx_outbox_due,priority:1" json:"status"`
	Attempts      int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	NextAttemptAt time.Time      `gorm:"column:next_attempt_at;index:idx_outbox_due,priority:2" json:"next_attempt_at"`
	LastError     string         `gorm:"column:last_error;size:1024" json:"last_error,omitempty"`
	CreatedAt     time.Time      `gorm:"column:created_at" json:"created_at"`
	SentAt        *time.Time     `gorm:"column:sent_at" json:"sent_at,omitempty"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// EmailPayload is rendered at delivery time, so a template fix also applies
// to events still waiting for a retry.
type EmailPayload struct {
	Template string         `json:"template"`
	To       []string       `json:"to"`
	Subject  string         `json:"subject"`
	Vars     map[string]any `json:"vars"`
}

func enqueue(tx *gorm.DB, kind EventKind, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	now := time.Now()
	return tx.Create(&OutboxEvent{
		ID:            uuid.NewString(),
		Kind:          kind,
		Payload:       datatypes.JSON(raw),
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}).Error
}

// EnqueueEmail drops recipients that are empty; an email with nobody left
// to receive it is not queued.
func EnqueueEmail(tx *gorm.DB, email EmailPayload) error {
	to := email.To[:0:0]
	for _, addr := range email.To {
		if addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return nil
	}
	email.To = to
	return enqueue(tx, KindEmail, email)
}

func EnqueueBroadcast(tx *gorm.DB, event realtime.Event) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	return enqueue(tx, KindBroadcast, event)
}

// Waker is told after a commit that new events are waiting
type Waker interface {
	Wake()
}

type NopWaker struct{}

func (NopWaker) Wake() {}
