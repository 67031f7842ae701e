package mrf

import (
	"context"
	"errors"
	"strings"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/lib/database"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// raiseQuery stores the acting role's question on the requisition's query
// row, creating the row on first use. The other role's question is kept.
func (s *Service) raiseQuery(tx *gorm.DB, requisition *Requisition, actor auth.Identity, question string) (*Query, error) {
	var query Query
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("query_manpower_requisition_pid = ?", requisition.ID).
		First(&query).Error
	switch {
	case database.IsNotFound(err):
		query = Query{RequisitionID: requisition.ID, CreatedBy: actor.EmployeeID, IsDelete: RecordActive}
	case err != nil:
		return nil, response.DBError(err, response.ErrQueryNotFound, "load query")
	}

	column := "query_name_hr"
	if actor.IsDirector() {
		column = "query_name_director"
		query.DirectorQuestion = question
	} else {
		query.HRQuestion = question
	}

	if query.ID == 0 {
		err = tx.Create(&query).Error
	} else {
		err = tx.Model(&query).Update(column, question).Error
	}
	if err != nil {
		return nil, response.DBError(err, response.ErrQueryNotFound, "save query")
	}

	if err := s.enqueueQueryRaised(tx, requisition, actor, question); err != nil {
		return nil, err
	}
	return &query, nil
}

// answerColumn picks the question a reply answers. When both roles have an
// open question the director's wins.
func answerColumn(query *Query) (column string, role auth.Role) {
	if query.DirectorQuestion != "" {
		return "Director_Query_Answer", auth.RoleDirector
	}
	return "HR_Query_Answer", auth.RoleHR
}

// a reply may follow up on an earlier reply until the reviewer moves on
var awaitingReply = statusSet(StatusRaiseQuery, StatusFHReplied)

// Reply records the functional head's answer and hands the requisition back
// to the role that asked.
func (s *Service) Reply(ctx context.Context, id uint, actor auth.Identity, answer string) (*Requisition, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, response.ErrMissingRequired.WithMessage("reply is required")
	}
	if actor.Anonymous() {
		return nil, response.ErrUnauthorized
	}

	var requisition Requisition
	err := s.tx(func(tx *gorm.DB) error {
		if err := loadForUpdate(tx, id, &requisition); err != nil {
			return err
		}
		if !awaitingReply[requisition.Status] {
			return response.ErrInvalidTransition.WithMessage("requisition in status %s has no open query", requisition.Status)
		}
		creator, err := auth.FindEmployee(tx, requisition.CreatedBy)
		if err != nil && !errors.Is(err, response.ErrEmployeeNotFound) {
			return err
		}
		if !auth.CanAnswerQueries(actor, creator, requisition.Department) {
			return response.ErrForbidden.WithMessage("Only the functional head of the requestor can answer this query")
		}

		var query Query
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("query_manpower_requisition_pid = ?", requisition.ID).
			First(&query).Error
		if err != nil {
			return response.DBError(err, response.ErrQueryNotFound, "load query")
		}

		column, askedBy := answerColumn(&query)
		if err := tx.Model(&query).Update(column, answer).Error; err != nil {
			return response.DBError(err, response.ErrQueryNotFound, "save answer")
		}

		from := requisition.Status
		updates := map[string]any{"status": StatusFHReplied}
		if askedBy == auth.RoleDirector {
			updates["director_status"] = StatusFHReplied
		} else {
			updates["hr_status"] = StatusFHReplied
		}
		if err := tx.Model(&Requisition{}).Where("id = ?", requisition.ID).Updates(updates).Error; err != nil {
			return response.DBError(err, response.ErrRequisitionNotFound, "update requisition status")
		}
		if err := tx.First(&requisition, requisition.ID).Error; err != nil {
			return response.DBError(err, response.ErrRequisitionNotFound, "reload requisition")
		}
		if err := recordHistory(tx, &requisition, from, actor, answer); err != nil {
			return err
		}
		if err := s.enqueueQueryReplied(tx, &requisition, actor, answer); err != nil {
			return err
		}
		return enqueueRefresh(tx, &requisition)
	})
	if err != nil {
		return nil, err
	}
	s.waker.Wake()
	log.Info("query on requisition %d answered by %s", id, actor.EmployeeID)
	return &requisition, nil
}

// ReplyByLink answers through the signed link sent in the query email. The
// link names the functional head it was sent to.
func (s *Service) ReplyByLink(ctx context.Context, token, answer string) (*Requisition, error) {
	id, employeeID, err := auth.VerifyReplyLink(token)
	if err != nil {
		return nil, response.ErrInvalidToken.WithMessage("The reply link is invalid or has expired")
	}
	var employee *auth.Employee
	err = s.tx(func(tx *gorm.DB) error {
		employee, err = auth.FindEmployee(tx, employeeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !employee.Active() {
		return nil, response.ErrForbidden.WithMessage("This account is inactive")
	}
	return s.Reply(ctx, id, employee.Identity(), answer)
}
