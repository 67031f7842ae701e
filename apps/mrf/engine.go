package mrf

import (
	"context"
	"strings"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"gorm.io/gorm"
)

type TransitionInput struct {
	RequisitionID uint
	Target        Status
	Actor         auth.Identity
	Comments      string
	// Question is the text of a Raise Query; Comments is used when empty
	Question string
}

// path is the set of moves one role may make
type path struct {
	from map[Status]bool
	to   map[Status]bool
}

func statusSet(statuses ...Status) map[Status]bool {
	set := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}

var (
	directorPath = path{
		from: statusSet(StatusPending, StatusRaiseQuery, StatusFHReplied, StatusOnHold),
		to:   statusSet(StatusApprove, StatusReject, StatusRaiseQuery, StatusOnHold),
	}
	hrPath = path{
		from: statusSet(StatusPending, StatusApprove, StatusRaiseQuery, StatusFHReplied, StatusOnHold),
		to:   statusSet(StatusHRApprove, StatusReject, StatusRaiseQuery, StatusOnHold),
	}
	// moves with their own operation
	dedicated = statusSet(StatusWithdraw, StatusFHReplied)
	// targets that need the reviewer to say why
	needsComments = statusSet(StatusApprove, StatusReject, StatusHRApprove)
)

func (p path) allows(from, to Status) bool {
	return p.from[from] && p.to[to]
}

// isSubmission is the creator moving their own draft into review
func isSubmission(requisition *Requisition, in TransitionInput) bool {
	return requisition.Status == StatusDraft && in.Target == StatusPending &&
		requisition.CreatedBy == in.Actor.EmployeeID
}

// checkTransition applies the role rules to one move
func checkTransition(requisition *Requisition, in TransitionInput) error {
	from, to := requisition.Status, in.Target
	if isSubmission(requisition, in) {
		return nil
	}
	switch {
	case in.Actor.IsDirector():
		if directorPath.allows(from, to) {
			return nil
		}
	case in.Actor.IsHR():
		if from == StatusHRApprove && to == StatusHRApprove {
			return nil
		}
		if hrPath.allows(from, to) {
			return nil
		}
	default:
		if requisition.CreatedBy != in.Actor.EmployeeID {
			return response.ErrForbidden.WithMessage("Only hr or the director can review requisitions")
		}
	}
	return response.ErrInvalidTransition.WithMessage("%s cannot move a requisition from %s to %s", in.Actor.Role, from, to)
}

func validateInput(in *TransitionInput) error {
	in.Comments = strings.TrimSpace(in.Comments)
	in.Question = strings.TrimSpace(in.Question)
	switch {
	case in.RequisitionID == 0:
		return response.ErrMissingRequired.WithMessage("id is required")
	case in.Target == "":
		return response.ErrMissingRequired.WithMessage("status is required")
	case in.Actor.Anonymous():
		return response.ErrMissingRequired.WithMessage("user is required")
	case !in.Target.Valid():
		return response.ErrInvalidStatus.WithMessage("Unknown status %q", in.Target)
	case dedicated[in.Target]:
		return response.ErrInvalidTransition.WithMessage("%s has its own endpoint", in.Target)
	}
	if in.Actor.IsPrivileged() && needsComments[in.Target] && in.Comments == "" {
		return response.ErrMissingRequired.WithMessage("comments are required to %s", in.Target)
	}
	if in.Target == StatusRaiseQuery {
		if in.Question == "" {
			in.Question = in.Comments
		}
		if in.Question == "" {
			return response.ErrMissingRequired.WithMessage("question is required")
		}
	}
	return nil
}

// Transition moves a requisition to in.Target on behalf of in.Actor. The
// status fields, MRF number, query changes, history row and notifications
// are written in one transaction.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (*Requisition, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	var requisition Requisition
	err := s.tx(func(tx *gorm.DB) error {
		if err := loadForUpdate(tx, in.RequisitionID, &requisition); err != nil {
			return err
		}
		if err := checkTransition(&requisition, in); err != nil {
			return err
		}
		return s.apply(tx, &requisition, in)
	})
	if err != nil {
		return nil, err
	}
	s.waker.Wake()
	log.Info("requisition %d moved to %s by %s (%s)", requisition.ID, requisition.Status, in.Actor.EmployeeID, in.Actor.Role)
	return &requisition, nil
}

func (s *Service) apply(tx *gorm.DB, requisition *Requisition, in TransitionInput) error {
	from := requisition.Status
	submission := isSubmission(requisition, in)
	updates := map[string]any{"status": in.Target}

	if submission {
		candidate := *requisition
		candidate.Status = StatusPending
		if err := checkRanges(&candidate); err != nil {
			return err
		}
	} else {
		switch {
		case in.Actor.IsDirector():
			updates["director_status"] = in.Target
			updates["director_comments"] = in.Comments
		case in.Actor.IsHR():
			updates["hr_status"] = in.Target
			updates["hr_comments"] = in.Comments
		}
	}

	minted := false
	if in.Target == StatusHRApprove && requisition.MRFNumber == nil {
		number, err := mintNumber(tx, s.config.Number)
		if err != nil {
			return response.DBError(err, response.ErrRequisitionNotFound, "mint mrf number")
		}
		updates["mrf_number"] = number
		minted = true
	}

	if err := tx.Model(&Requisition{}).Where("id = ?", requisition.ID).Updates(updates).Error; err != nil {
		return response.DBError(err, response.ErrRequisitionNotFound, "update requisition status")
	}
	if err := tx.First(requisition, requisition.ID).Error; err != nil {
		return response.DBError(err, response.ErrRequisitionNotFound, "reload requisition")
	}

	switch in.Target {
	case StatusApprove, StatusHRApprove, StatusReject:
		if err := tx.Where("query_manpower_requisition_pid = ?", requisition.ID).Delete(&Query{}).Error; err != nil {
			return response.DBError(err, response.ErrQueryNotFound, "clear queries")
		}
	case StatusRaiseQuery:
		if _, err := s.raiseQuery(tx, requisition, in.Actor, in.Question); err != nil {
			return err
		}
	}

	comments := in.Comments
	if in.Target == StatusRaiseQuery {
		comments = in.Question
	}
	if err := recordHistory(tx, requisition, from, in.Actor, comments); err != nil {
		return err
	}

	switch {
	case submission && !in.Actor.IsPrivileged():
		if err := s.enqueueSubmitted(tx, requisition, in.Actor); err != nil {
			return err
		}
	case in.Target == StatusApprove:
		if err := s.enqueueDirectorApproved(tx, requisition, in.Actor); err != nil {
			return err
		}
	case in.Target == StatusHRApprove && minted:
		if err := s.enqueueHRApproved(tx, requisition); err != nil {
			return err
		}
	}
	return enqueueRefresh(tx, requisition)
}
