package sysupdate

import (
	"context"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/apps/notify"
	"github.com/iesreza/hrdesk-backend/apps/realtime"
	"github.com/iesreza/hrdesk-backend/lib/database"
	"github.com/iesreza/hrdesk-backend/lib/idset"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"gorm.io/gorm"
)

var (
	ErrUpdateNotFound     = response.ErrNotFound.WithMessage("System update not found")
	ErrDiscussionNotFound = response.ErrNotFound.WithMessage("Discussion not found")
)

type Service struct {
	tx    database.TxFunc
	waker notify.Waker
	now   func() time.Time
}

func NewService(tx database.TxFunc, waker notify.Waker) *Service {
	if waker == nil {
		waker = notify.NopWaker{}
	}
	return &Service{tx: tx, waker: waker, now: time.Now}
}

type CreateInput struct {
	Title      string
	Body       string
	Recipients []string
	// Everyone addresses every active employee and ignores Recipients
	Everyone bool
}

// Create publishes an update. Only hr and the director may publish.
func (s *Service) Create(ctx context.Context, actor auth.Identity, in CreateInput) (*Detail, error) {
	if !actor.IsPrivileged() {
		return nil, response.ErrForbidden
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, response.ErrMissingRequired.WithMessage("title is required")
	}

	var detail Detail
	err := s.tx(func(tx *gorm.DB) error {
		to, err := s.resolveRecipients(tx, in)
		if err != nil {
			return err
		}
		update := SystemUpdate{Title: in.Title, Body: in.Body, CreatedBy: actor.EmployeeID, IsDelete: RecordActive}
		if err := tx.Create(&update).Error; err != nil {
			return response.DBError(err, ErrUpdateNotFound, "create system update")
		}
		rows := make([]Recipient, 0, to.Len())
		for _, id := range to.Sorted() {
			rows = append(rows, Recipient{UpdateID: update.ID, EmployeeID: id})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return response.DBError(err, ErrUpdateNotFound, "create system update recipients")
		}
		// the author has read what they wrote
		if err := markRead(tx, update.ID, actor.EmployeeID, s.now()); err != nil {
			return err
		}
		detail = Detail{SystemUpdate: update, Recipients: to.Sorted(), Read: true}
		return s.enqueueRefresh(tx, &update, to)
	})
	if err != nil {
		return nil, err
	}
	s.waker.Wake()
	log.Info("system update %d published by %s to %d employees", detail.ID, actor.EmployeeID, len(detail.Recipients))
	return &detail, nil
}

func (s *Service) resolveRecipients(tx *gorm.DB, in CreateInput) (idset.Set, error) {
	var active []string
	q := tx.Model(&auth.Employee{}).Where("status = ?", auth.EmployeeStatusActive)
	if !in.Everyone {
		wanted := idset.New(in.Recipients...)
		if wanted.Len() == 0 {
			return nil, response.ErrMissingRequired.WithMessage("at least one recipient is required")
		}
		q = q.Where("employee_id IN ?", wanted.Sorted())
		if err := q.Pluck("employee_id", &active).Error; err != nil {
			return nil, err
		}
		if unknown := wanted.Difference(idset.New(active...)); unknown.Len() > 0 {
			return nil, response.ErrInvalidInput.WithMessage("Unknown or inactive recipients: %s", unknown.String())
		}
		return wanted, nil
	}
	if err := q.Pluck("employee_id", &active).Error; err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, response.ErrInvalidInput.WithMessage("there are no active employees to address")
	}
	return idset.New(active...), nil
}

func (s *Service) enqueueRefresh(tx *gorm.DB, update *SystemUpdate, to idset.Set) error {
	for _, id := range to.Sorted() {
		err := notify.EnqueueBroadcast(tx, realtime.Event{
			Name:  realtime.EventSystemUpdateRefresh,
			Group: realtime.EmployeeGroup(id),
			Data:  map[string]any{"id": update.ID},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func load(tx *gorm.DB, id uint, update *SystemUpdate) error {
	err := tx.Where("id = ? AND is_delete = ?", id, RecordActive).First(update).Error
	return response.DBError(err, ErrUpdateNotFound, "load system update")
}

// loadVisible loads an update the viewer takes part in. Everyone else gets
// not found, hr and the director included.
func loadVisible(tx *gorm.DB, id uint, viewer auth.Identity) (*SystemUpdate, idset.Set, error) {
	var update SystemUpdate
	if err := load(tx, id, &update); err != nil {
		return nil, nil, err
	}
	members, err := participants(tx, &update)
	if err != nil {
		return nil, nil, err
	}
	if !members.Has(viewer.EmployeeID) {
		return nil, nil, ErrUpdateNotFound
	}
	return &update, members, nil
}

// ListMine returns the viewer's updates newest first with read flags
func (s *Service) ListMine(ctx context.Context, viewer auth.Identity) ([]Summary, error) {
	if viewer.Anonymous() {
		return nil, response.ErrUnauthorized
	}
	var out []Summary
	err := s.tx(func(tx *gorm.DB) error {
		var updates []SystemUpdate
		err := tx.Where("is_delete = ?", RecordActive).
			Where("created_by = ? OR id IN (?)", viewer.EmployeeID,
				tx.Model(&Recipient{}).Select("update_id").Where("employee_id = ?", viewer.EmployeeID)).
			Order("created_at DESC, id DESC").
			Find(&updates).Error
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(updates))
		for _, u := range updates {
			ids = append(ids, u.ID)
		}

		var read []uint
		if len(ids) > 0 {
			err = tx.Model(&Read{}).Where("employee_id = ? AND update_id IN ?", viewer.EmployeeID, ids).Pluck("update_id", &read).Error
			if err != nil {
				return err
			}
		}
		readSet := idset.New()
		for _, id := range read {
			readSet.Add(key(id))
		}
		threads, err := loadThreads(tx, ids)
		if err != nil {
			return err
		}

		out = make([]Summary, 0, len(updates))
		for _, u := range updates {
			out = append(out, Summary{
				SystemUpdate:      u,
				Read:              readSet.Has(key(u.ID)),
				UnreadDiscussions: threads.unread(u.ID, viewer.EmployeeID),
			})
		}
		return nil
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, id uint, viewer auth.Identity) (*Detail, error) {
	var detail Detail
	err := s.tx(func(tx *gorm.DB) error {
		update, _, err := loadVisible(tx, id, viewer)
		if err != nil {
			return err
		}
		to, err := recipients(tx, id)
		if err != nil {
			return err
		}
		seen, err := readers(tx, id)
		if err != nil {
			return err
		}
		detail = Detail{SystemUpdate: *update, Recipients: to.Sorted(), Read: seen.Has(viewer.EmployeeID)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (s *Service) MarkRead(ctx context.Context, id uint, viewer auth.Identity) error {
	return s.tx(func(tx *gorm.DB) error {
		if _, _, err := loadVisible(tx, id, viewer); err != nil {
			return err
		}
		return markRead(tx, id, viewer.EmployeeID, s.now())
	})
}

// Delete hides an update. The author, hr and the director may delete.
func (s *Service) Delete(ctx context.Context, id uint, actor auth.Identity) error {
	err := s.tx(func(tx *gorm.DB) error {
		var update SystemUpdate
		if err := load(tx, id, &update); err != nil {
			return err
		}
		if update.CreatedBy != actor.EmployeeID && !actor.IsPrivileged() {
			return response.ErrForbidden
		}
		if err := tx.Model(&update).Update("is_delete", RecordInactive).Error; err != nil {
			return response.DBError(err, ErrUpdateNotFound, "delete system update")
		}
		members, err := participants(tx, &update)
		if err != nil {
			return err
		}
		return s.enqueueRefresh(tx, &update, members)
	})
	if err != nil {
		return err
	}
	s.waker.Wake()
	return nil
}

// ReadStatus lists every recipient with whether they read the update and
// how many discussion messages they have not seen.
func (s *Service) ReadStatus(ctx context.Context, id uint, actor auth.Identity) ([]RecipientStatus, error) {
	var out []RecipientStatus
	err := s.tx(func(tx *gorm.DB) error {
		var update SystemUpdate
		if err := load(tx, id, &update); err != nil {
			return err
		}
		if update.CreatedBy != actor.EmployeeID && !actor.IsPrivileged() {
			return response.ErrForbidden
		}
		to, err := recipients(tx, id)
		if err != nil {
			return err
		}
		seen, err := readers(tx, id)
		if err != nil {
			return err
		}
		threads, err := loadThreads(tx, []uint{id})
		if err != nil {
			return err
		}
		for _, emp := range to.Sorted() {
			out = append(out, RecipientStatus{
				EmployeeID:        emp,
				Read:              seen.Has(emp),
				UnreadDiscussions: threads.unread(id, emp),
			})
		}
		return nil
	})
	return out, err
}

type PostInput struct {
	ParentID *uint
	Body     string
}

func (s *Service) PostDiscussion(ctx context.Context, updateID uint, actor auth.Identity, in PostInput) (*Discussion, error) {
	in.Body = strings.TrimSpace(in.Body)
	if in.Body == "" {
		return nil, response.ErrMissingRequired.WithMessage("body is required")
	}
	var message Discussion
	err := s.tx(func(tx *gorm.DB) error {
		update, members, err := loadVisible(tx, updateID, actor)
		if err != nil {
			return err
		}
		if in.ParentID != nil {
			var parent Discussion
			err := tx.Where("id = ? AND update_id = ?", *in.ParentID, updateID).First(&parent).Error
			if err != nil {
				return response.DBError(err, ErrDiscussionNotFound, "load parent discussion")
			}
		}
		message = Discussion{UpdateID: updateID, ParentID: in.ParentID, AuthorID: actor.EmployeeID, Body: in.Body}
		if err := tx.Create(&message).Error; err != nil {
			return response.DBError(err, ErrDiscussionNotFound, "create discussion")
		}
		if err := markDiscussionRead(tx, []uint{message.ID}, actor.EmployeeID, s.now()); err != nil {
			return err
		}
		return s.enqueueRefresh(tx, update, members.Difference(idset.New(actor.EmployeeID)))
	})
	if err != nil {
		return nil, err
	}
	s.waker.Wake()
	return &message, nil
}

// Discussions returns the thread of an update oldest first
func (s *Service) Discussions(ctx context.Context, updateID uint, viewer auth.Identity) ([]DiscussionView, error) {
	var out []DiscussionView
	err := s.tx(func(tx *gorm.DB) error {
		if _, _, err := loadVisible(tx, updateID, viewer); err != nil {
			return err
		}
		var messages []Discussion
		if err := tx.Where("update_id = ?", updateID).Order("created_at ASC, id ASC").Find(&messages).Error; err != nil {
			return err
		}
		threads, err := loadThreads(tx, []uint{updateID})
		if err != nil {
			return err
		}
		seen := threads.readSet(updateID, viewer.EmployeeID)
		out = make([]DiscussionView, 0, len(messages))
		for _, m := range messages {
			out = append(out, DiscussionView{Discussion: m, Read: seen.Has(key(m.ID))})
		}
		return nil
	})
	return out, err
}

// MarkDiscussionRead marks one message, or with all set every message of
// its update, as read by the viewer.
func (s *Service) MarkDiscussionRead(ctx context.Context, discussionID uint, viewer auth.Identity, all bool) error {
	return s.tx(func(tx *gorm.DB) error {
		var message Discussion
		if err := tx.First(&message, discussionID).Error; err != nil {
			return response.DBError(err, ErrDiscussionNotFound, "load discussion")
		}
		if _, _, err := loadVisible(tx, message.UpdateID, viewer); err != nil {
			return err
		}
		ids := []uint{message.ID}
		if all {
			if err := tx.Model(&Discussion{}).Where("update_id = ?", message.UpdateID).Pluck("id", &ids).Error; err != nil {
				return err
			}
		}
		return markDiscussionRead(tx, ids, viewer.EmployeeID, s.now())
	})
}

// Unread counts unread updates and unread discussion messages for viewer
func (s *Service) Unread(ctx context.Context, viewer auth.Identity) (*UnreadCounts, error) {
	summaries, err := s.ListMine(ctx, viewer)
	if err != nil {
		return nil, err
	}
	counts := &UnreadCounts{ByUpdate: map[uint]int{}}
	for _, item := range summaries {
		if !item.Read {
			counts.Updates++
		}
		if item.UnreadDiscussions > 0 {
			counts.Discussions += item.UnreadDiscussions
			counts.ByUpdate[item.ID] = item.UnreadDiscussions
		}
	}
	return counts, nil
}
