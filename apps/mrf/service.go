package mrf

import (
	"context"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/apps/notify"
	"github.com/iesreza/hrdesk-backend/lib/database"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config carries the deployment specific parts of the workflow
type Config struct {
	OperationsMailbox  string
	DirectorMailbox    string
	WithdrawWindowDays int
	BaseURL            string
	Number             NumberFormat
}

func DefaultConfig() Config {
	return Config{
		WithdrawWindowDays: 7,
		Number:             NumberFormat{Prefix: "MRF-", Digits: 6},
	}
}

// Service owns every write to requisitions and their queries. Each
// operation runs in one transaction that also records the history row and
// the outbox events; the dispatcher is woken once the transaction commits.
type Service struct {
	tx     database.TxFunc
	waker  notify.Waker
	config Config
	now    func() time.Time
}

func NewService(tx database.TxFunc, waker notify.Waker, config Config) *Service {
	if waker == nil {
		waker = notify.NopWaker{}
	}
	return &Service{tx: tx, waker: waker, config: config, now: time.Now}
}

// Fields are the descriptive columns a requestor fills in
type Fields struct {
	Department         *string
	EmploymentStatus   *string
	Designation        *string
	ResourceCount      *int
	RequirementType    *string
	Justification      *string
	JobDescription     *string
	ExperienceMin      *int
	ExperienceMax      *int
	CTCMin             *float64
	CTCMax             *float64
	RequestorSignature *string
	FHSignature        *string
	RampupAttachment   *string
}

var descriptiveColumns = []string{
	"department", "employment_status", "designation", "resource_count", "requirement_type",
	"justification", "job_description", "experience_min", "experience_max", "ctc_min", "ctc_max",
	"requestor_signature", "fh_signature", "rampup_attachment", "updated_at",
}

func (f Fields) apply(r *Requisition) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&r.Department, f.Department)
	set(&r.EmploymentStatus, f.EmploymentStatus)
	set(&r.Designation, f.Designation)
	set(&r.RequirementType, f.RequirementType)
	set(&r.Justification, f.Justification)
	set(&r.JobDescription, f.JobDescription)
	set(&r.RequestorSignature, f.RequestorSignature)
	set(&r.FHSignature, f.FHSignature)
	set(&r.RampupAttachment, f.RampupAttachment)
	if f.ResourceCount != nil {
		r.ResourceCount = *f.ResourceCount
	}
	if f.ExperienceMin != nil {
		r.ExperienceMin = *f.ExperienceMin
	}
	if f.ExperienceMax != nil {
		r.ExperienceMax = *f.ExperienceMax
	}
	if f.CTCMin != nil {
		r.CTCMin = *f.CTCMin
	}
	if f.CTCMax != nil {
		r.CTCMax = *f.CTCMax
	}
}

// checkRanges validates a requisition before it is stored. Drafts may be
// incomplete, but whatever they carry must still be consistent.
func checkRanges(r *Requisition) error {
	draft := r.Status == StatusDraft
	switch r.RequirementType {
	case RequirementRampUp, RequirementNew, RequirementReplacement:
	case "":
		if !draft {
			return response.ErrMissingRequired.WithMessage("requirement_type is required")
		}
	default:
		return response.ErrInvalidInput.WithMessage("requirement_type must be one of %s, %s, %s", RequirementRampUp, RequirementNew, RequirementReplacement)
	}
	if !draft && (r.Department == "" || r.Designation == "") {
		return response.ErrMissingRequired.WithMessage("department and designation are required")
	}
	if r.ResourceCount < 0 || (!draft && r.ResourceCount < 1) {
		return response.ErrInvalidInput.WithMessage("resource_count must be at least 1")
	}
	if r.ExperienceMin < 0 || r.ExperienceMax < r.ExperienceMin {
		return response.ErrInvalidInput.WithMessage("experience range is invalid")
	}
	if r.CTCMin < 0 || r.CTCMax < r.CTCMin {
		return response.ErrInvalidInput.WithMessage("ctc range is invalid")
	}
	return nil
}

// Create stores a new requisition owned by actor. Unless draft is set it is
// submitted right away.
func (s *Service) Create(ctx context.Context, actor auth.Identity, fields Fields, draft bool) (*Requisition, error) {
	if actor.Anonymous() {
		return nil, response.ErrUnauthorized
	}
	requisition := Requisition{
		CreatedBy: actor.EmployeeID,
		Status:    StatusPending,
		IsDelete:  RecordActive,
	}
	if draft {
		requisition.Status = StatusDraft
	}
	fields.apply(&requisition)
	if err := checkRanges(&requisition); err != nil {
		return nil, err
	}

	err := s.tx(func(tx *gorm.DB) error {
		if err := tx.Create(&requisition).Error; err != nil {
			return response.DBError(err, response.ErrNotFound, "create requisition")
		}
		if err := recordHistory(tx, &requisition, "", actor, ""); err != nil {
			return err
		}
		if requisition.Status == StatusPending && !actor.IsPrivileged() {
			if err := s.enqueueSubmitted(tx, &requisition, actor); err != nil {
				return err
			}
		}
		return enqueueRefresh(tx, &requisition)
	})
	if err != nil {
		return nil, err
	}
	s.waker.Wake()
	log.Info("requisition %d created by %s as %s", requisition.ID, actor.EmployeeID, requisition.Status)
	return &requisition, nil
}

func editable(requisition *Requisition, actor auth.Identity) error {
	if requisition.CreatedBy != actor.EmployeeID {
		return response.ErrForbidden.WithMessage("Only the creator can edit a requisition")
	}
	if requisition.Status != StatusDraft && requisition.Status != StatusPending {
		return response.ErrInvalidTransition.WithMessage("A requisition in %s can no longer be edited", requisition.Status)
	}
	return nil
}

// CheckCreate runs the checks Create would without writing anything
func (s *Service) CheckCreate(actor auth.Identity, fields Fields, draft bool) error {
	if actor.Anonymous() {
		return response.ErrUnauthorized
	}
	candidate := Requisition{Status: StatusPending}
	if draft {
		candidate.Status = StatusDraft
	}
	fields.apply(&candidate)
	return checkRanges(&candidate)
}

// CheckEditable reports whether actor may currently Update id
func (s *Service) CheckEditable(ctx context.Context, id uint, actor auth.Identity) error {
	return s.tx(func(tx *gorm.DB) error {
		var requisition Requisition
		if err := loadForUpdate(tx, id, &requisition); err != nil {
			return err
		}
		return editable(&requisition, actor)
	})
}

// Update changes descriptive fields while the requisition is still with its
// creator.
func (s *Service) Update(ctx context.Context, id uint, actor auth.Identity, fields Fields) (*Requisition, error) {
	var requisition Requisition
	err := s.tx(func(tx *gorm.DB) error {
		if err := loadForUpdate(tx, id, &requisition); err != nil {
			return err
		}
		if err := editable(&requisition, actor); err != nil {
			return err
		}
		fields.apply(&requisition)
		if err := checkRanges(&requisition); err != nil {
			return err
		}
		if err := tx.Model(&requisition).Select(descriptiveColumns).Updates(&requisition).Error; err != nil {
			return response.DBError(err, response.ErrRequisitionNotFound, "update requisition")
		}
		return enqueueRefresh(tx, &requisition)
	})
	if err != nil {
		return nil, err
	}
	s.waker.Wake()
	return &requisition, nil
}

// Withdraw lets the creator pull back a requisition that has not been acted
// on, within the configured number of calendar days after creation.
func (s *Service) Withdraw(ctx context.Context, id uint, actor auth.Identity) (*Requisition, error) {
	var requisition Requisition
	err := s.tx(func(tx *gorm.DB) error {
		if err := loadForUpdate(tx, id, &requisition); err != nil {
			return err
		}
		if requisition.CreatedBy != actor.EmployeeID {
			return response.ErrForbidden.WithMessage("Only the creator can withdraw a requisition")
		}
		if requisition.Status != StatusDraft && requisition.Status != StatusPending {
			return response.ErrInvalidTransition.WithMessage("A requisition in %s cannot be withdrawn", requisition.Status)
		}
		if !s.withinWithdrawWindow(requisition.CreatedAt) {
			return response.ErrWithdrawExpired
		}
		from := requisition.Status
		if err := tx.Model(&requisition).Update("status", StatusWithdraw).Error; err != nil {
			return response.DBError(err, response.ErrRequisitionNotFound, "withdraw requisition")
		}
		requisition.Status = StatusWithdraw
		if err := recordHistory(tx, &requisition, from, actor, ""); err != nil {
			return err
		}
		return enqueueRefresh(tx, &requisition)
	})
	if err != nil {
		return nil, err
	}
	s.waker.Wake()
	log.Info("requisition %d withdrawn by %s", id, actor.EmployeeID)
	return &requisition, nil
}

// withinWithdrawWindow compares calendar days, matching DATEDIFF semantics
func (s *Service) withinWithdrawWindow(createdAt time.Time) bool {
	now := s.now()
	day := func(t time.Time) time.Time {
		t = t.In(now.Location())
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	days := int(day(now).Sub(day(createdAt)).Hours() / 24)
	return days <= s.config.WithdrawWindowDays
}

// Delete flags the requisition inactive. The creator may delete their own
// drafts and pending requisitions; hr and the director may delete any.
func (s *Service) Delete(ctx context.Context, id uint, actor auth.Identity) error {
	err := s.tx(func(tx *gorm.DB) error {
		var requisition Requisition
		if err := loadForUpdate(tx, id, &requisition); err != nil {
			return err
		}
		if !actor.IsPrivileged() {
			if requisition.CreatedBy != actor.EmployeeID {
				return response.ErrForbidden
			}
			if requisition.Status != StatusDraft && requisition.Status != StatusPending {
				return response.ErrInvalidTransition.WithMessage("A requisition in %s cannot be deleted", requisition.Status)
			}
		}
		if err := tx.Model(&requisition).Update("isdelete", RecordInactive).Error; err != nil {
			return response.DBError(err, response.ErrRequisitionNotFound, "delete requisition")
		}
		return enqueueRefresh(tx, &requisition)
	})
	if err != nil {
		return err
	}
	s.waker.Wake()
	return nil
}

func loadForUpdate(tx *gorm.DB, id uint, requisition *Requisition) error {
	if id == 0 {
		return response.ErrMissingRequired.WithMessage("id is required")
	}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND isdelete = ?", id, RecordActive).
		First(requisition).Error
	return response.DBError(err, response.ErrRequisitionNotFound, "load requisition")
}

func recordHistory(tx *gorm.DB, requisition *Requisition, from Status, actor auth.Identity, comments string) error {
	err := tx.Create(&History{
		RequisitionID: requisition.ID,
		FromStatus:    from,
		ToStatus:      requisition.Status,
		ActorID:       actor.EmployeeID,
		ActorRole:     string(actor.Role),
		Comments:      comments,
		MRFNumber:     requisition.MRFNumber,
	}).Error
	return response.DBError(err, response.ErrRequisitionNotFound, "record history")
}
