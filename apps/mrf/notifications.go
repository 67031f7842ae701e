package mrf

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/apps/notify"
	"github.com/iesreza/hrdesk-backend/apps/realtime"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"gorm.io/gorm"
)

func (s *Service) link(requisition *Requisition) string {
	if s.config.BaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/mrf/%d", s.config.BaseURL, requisition.ID)
}

func (s *Service) replyLink(token string) string {
	return s.config.BaseURL + "/mrf/reply?token=" + url.QueryEscape(token)
}

func enqueueRefresh(tx *gorm.DB, requisition *Requisition) error {
	return notify.EnqueueBroadcast(tx, realtime.Event{
		Name: realtime.EventRequisitionRefresh,
		Data: map[string]any{
			"id":     requisition.ID,
			"status": requisition.Status,
		},
	})
}

func (s *Service) enqueueSubmitted(tx *gorm.DB, requisition *Requisition, actor auth.Identity) error {
	vars := map[string]any{
		"RequestorName": actor.Name,
		"RequisitionID": strconv.FormatUint(uint64(requisition.ID), 10),
		"JobTitle":      requisition.Designation,
		"Department":    requisition.Department,
		"Link":          s.link(requisition),
	}
	subject := fmt.Sprintf("New manpower requisition #%d awaiting review", requisition.ID)
	for _, mailbox := range []string{s.config.OperationsMailbox, s.config.DirectorMailbox} {
		err := notify.EnqueueEmail(tx, notify.EmailPayload{
			Template: notify.TemplateSubmitted,
			To:       []string{mailbox},
			Subject:  subject,
			Vars:     vars,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// enqueueDirectorApproved tells hr, who acts next, about the approval
func (s *Service) enqueueDirectorApproved(tx *gorm.DB, requisition *Requisition, actor auth.Identity) error {
	return notify.EnqueueEmail(tx, notify.EmailPayload{
		Template: notify.TemplateDirectorApproved,
		To:       []string{s.config.OperationsMailbox},
		Subject:  fmt.Sprintf("Requisition #%d approved by the director", requisition.ID),
		Vars: map[string]any{
			"ApproverName":  actor.Name,
			"RequisitionID": strconv.FormatUint(uint64(requisition.ID), 10),
			"JobTitle":      requisition.Designation,
			"Comments":      requisition.DirectorComments,
			"Link":          s.link(requisition),
		},
	})
}

func (s *Service) enqueueHRApproved(tx *gorm.DB, requisition *Requisition) error {
	creator, err := auth.FindEmployee(tx, requisition.CreatedBy)
	if errors.Is(err, response.ErrEmployeeNotFound) {
		log.Warning("requisition %d: creator %s not found, approval email skipped", requisition.ID, requisition.CreatedBy)
		return nil
	}
	if err != nil {
		return err
	}
	number := ""
	if requisition.MRFNumber != nil {
		number = *requisition.MRFNumber
	}
	return notify.EnqueueEmail(tx, notify.EmailPayload{
		Template: notify.TemplateHRApproved,
		To:       []string{creator.Email},
		Subject:  fmt.Sprintf("Requisition approved: %s", number),
		Vars: map[string]any{
			"RequestorName": creator.Name,
			"JobTitle":      requisition.Designation,
			"MRFNumber":     number,
			"Comments":      requisition.HRComments,
		},
	})
}

// enqueueQueryRaised mails the functional head of the creator a signed link
// to the reply form. Without a functional head there is nobody to ask.
func (s *Service) enqueueQueryRaised(tx *gorm.DB, requisition *Requisition, actor auth.Identity, question string) error {
	creator, err := auth.FindEmployee(tx, requisition.CreatedBy)
	var head *auth.Employee
	if err == nil {
		head, err = auth.FunctionalHeadOf(tx, creator)
	}
	if errors.Is(err, response.ErrEmployeeNotFound) {
		log.Warning("requisition %d: no functional head for %s, query email skipped", requisition.ID, requisition.CreatedBy)
		return nil
	}
	if err != nil {
		return err
	}

	token, err := auth.SignReplyLink(requisition.ID, head.EmployeeID)
	if err != nil {
		return err
	}
	return notify.EnqueueEmail(tx, notify.EmailPayload{
		Template: notify.TemplateQueryRaised,
		To:       []string{head.Email},
		Subject:  fmt.Sprintf("Query on requisition #%d", requisition.ID),
		Vars: map[string]any{
			"RaisedBy":      actor.Name,
			"JobTitle":      requisition.Designation,
			"RequestorName": creator.Name,
			"Question":      question,
			"ReplyLink":     s.replyLink(token),
			"RequisitionID": strconv.FormatUint(uint64(requisition.ID), 10),
		},
	})
}

func (s *Service) enqueueQueryReplied(tx *gorm.DB, requisition *Requisition, actor auth.Identity, answer string) error {
	return notify.EnqueueEmail(tx, notify.EmailPayload{
		Template: notify.TemplateQueryReplied,
		To:       []string{s.config.OperationsMailbox},
		Subject:  fmt.Sprintf("Query answered on requisition #%d", requisition.ID),
		Vars: map[string]any{
			"RepliedBy":     actor.Name,
			"Answer":        answer,
			"JobTitle":      requisition.Designation,
			"RequisitionID": strconv.FormatUint(uint64(requisition.ID), 10),
			"Link":          s.link(requisition),
		},
	})
}
