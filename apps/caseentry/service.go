package caseentry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/apps/notify"
	"github.com/iesreza/hrdesk-backend/apps/realtime"
	"github.com/iesreza/hrdesk-backend/lib/database"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"gorm.io/gorm"
)

var ErrDuplicateTicket = response.ErrConflict.WithMessage("A case entry with this ticket number already exists")

type Service struct {
	tx    database.TxFunc
	waker notify.Waker
}

func NewService(tx database.TxFunc, waker notify.Waker) *Service {
	if waker == nil {
		waker = notify.NopWaker{}
	}
	return &Service{tx: tx, waker: waker}
}

type Input struct {
	TicketNumber *string
	EmployeeID   *string
	EntryDate    *time.Time
	Status       *string
	Category     *string
	Description  *string
}

func (in Input) apply(entry *CaseEntry) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&entry.TicketNumber, in.TicketNumber)
	set(&entry.EmployeeID, in.EmployeeID)
	set(&entry.Status, in.Status)
	set(&entry.Category, in.Category)
	set(&entry.Description, in.Description)
	if in.EntryDate != nil {
		entry.EntryDate = *in.EntryDate
	}
}

func check(tx *gorm.DB, entry *CaseEntry) error {
	switch {
	case entry.TicketNumber == "":
		return response.ErrMissingRequired.WithMessage("ticket_number is required")
	case entry.EmployeeID == "":
		return response.ErrMissingRequired.WithMessage("employee_id is required")
	case entry.EntryDate.IsZero():
		return response.ErrMissingRequired.WithMessage("entry_date is required")
	}
	if _, err := auth.FindEmployee(tx, entry.EmployeeID); err != nil {
		if errors.Is(err, response.ErrEmployeeNotFound) {
			return response.ErrInvalidInput.WithMessage("Unknown employee %s", entry.EmployeeID)
		}
		return err
	}
	return nil
}

func saveError(err error, context string) error {
	if database.IsDuplicateKey(err) {
		return ErrDuplicateTicket
	}
	return response.DBError(err, response.ErrNotFound, context)
}

func enqueueRefresh(tx *gorm.DB, entry *CaseEntry) error {
	return notify.EnqueueBroadcast(tx, realtime.Event{
		Name: realtime.EventCaseEntryRefresh,
		Data: map[string]any{"id": entry.ID},
	})
}

func (s *Service) Create(ctx context.Context, actor auth.Identity, in Input) (*CaseEntry, error) {
	entry := CaseEntry{CreatedBy: actor.EmployeeID, IsDelete: RecordActive}
	in.apply(&entry)

	err := s.tx(func(tx *gorm.DB) error {
		if err := check(tx, &entry); err != nil {
			return err
		}
		if err := tx.Create(&entry).Error; err != nil {
			return saveError(err, "create case entry")
		}
		return enqueueRefresh(tx, &entry)
	})
	if err != nil {
		return nil, err
	}
	s.waker.Wake()
	log.Info("case entry %s created by %s", entry.TicketNumber, actor.EmployeeID)
	return &entry, nil
}

// Update changes an entry. Only its creator, hr and the director may edit.
func (s *Service) Update(ctx context.Context, id uint, actor auth.Identity, in Input) (*CaseEntry, error) {
	var entry CaseEntry
	err := s.tx(func(tx *gorm.DB) error {
		if err := load(tx, id, &entry); err != nil {
			return err
		}
		if entry.CreatedBy != actor.EmployeeID && !actor.IsPrivileged() {
			return response.ErrForbidden
		}
		in.apply(&entry)
		if err := check(tx, &entry); err != nil {
			return err
		}
		err := tx.Model(&entry).
			Select("ticket_number", "employee_id", "entry_date", "status", "category", "description", "updated_at").
			Updates(&entry).Error
		if err != nil {
			return saveError(err, "update case entry")
		}
		return enqueueRefresh(tx, &entry)
	})
	if err != nil {
		return nil, err
	}
	s.waker.Wake()
	return &entry, nil
}

func (s *Service) Delete(ctx context.Context, id uint, actor auth.Identity) error {
	err := s.tx(func(tx *gorm.DB) error {
		var entry CaseEntry
		if err := load(tx, id, &entry); err != nil {
			return err
		}
		if entry.CreatedBy != actor.EmployeeID && !actor.IsPrivileged() {
			return response.ErrForbidden
		}
		if err := tx.Model(&entry).Update("is_delete", RecordInactive).Error; err != nil {
			return response.DBError(err, response.ErrNotFound, "delete case entry")
		}
		return enqueueRefresh(tx, &entry)
	})
	if err != nil {
		return err
	}
	s.waker.Wake()
	return nil
}

func (s *Service) Get(ctx context.Context, id uint) (*CaseEntry, error) {
	var entry CaseEntry
	if err := s.tx(func(tx *gorm.DB) error { return load(tx, id, &entry) }); err != nil {
		return nil, err
	}
	return &entry, nil
}

func load(tx *gorm.DB, id uint, entry *CaseEntry) error {
	err := tx.Where("id = ? AND is_delete = ?", id, RecordActive).First(entry).Error
	return response.DBError(err, response.ErrNotFound.WithMessage("Case entry not found"), "load case entry")
}

type ListFilter struct {
	Status     string
	EmployeeID string
	Search     string
}

// ListQuery returns active entries, newest first
func ListQuery(q *gorm.DB, filter ListFilter) *gorm.DB {
	q = q.Model(&CaseEntry{}).Where("is_delete = ?", RecordActive)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.EmployeeID != "" {
		q = q.Where("employee_id = ?", filter.EmployeeID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(ticket_number) LIKE ? OR LOWER(description) LIKE ?", term, term)
	}
	return q.Order("entry_date DESC, id DESC")
}
