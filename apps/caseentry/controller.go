package caseentry

import (
	"context"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/pagination"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"github.com/iesreza/hrdesk-backend/lib/validate"
)

const dateLayout = "2006-01-02"

type Controller struct {
	service *Service
}

type CreateRequest struct {
	TicketNumber string `json:"ticket_number" validate:"required,max=64"`
	EmployeeID   string `json:"employee_id" validate:"required,max=32"`
	EntryDate    string `json:"entry_date" validate:"required"`
	Status       string `json:"status" validate:"max=64"`
	Category     string `json:"category" validate:"max=128"`
	Description  string `json:"description" validate:"max=8000"`
}

type UpdateRequest struct {
	TicketNumber *string `json:"ticket_number" validate:"omitempty,max=64"`
	EmployeeID   *string `json:"employee_id" validate:"omitempty,max=32"`
	EntryDate    *string `json:"entry_date"`
	Status       *string `json:"status" validate:"omitempty,max=64"`
	Category     *string `json:"category" validate:"omitempty,max=128"`
	Description  *string `json:"description" validate:"omitempty,max=8000"`
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, *raw)
	}
	if err != nil {
		return nil, response.ErrInvalidInput.WithMessage("entry_date must be a date like 2024-01-31")
	}
	return &t, nil
}

func timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func (c Controller) List(request *evo.Request) any {
	query := ListQuery(db.Model(&CaseEntry{}), ListFilter{
		Status:     request.Query("status").String(),
		EmployeeID: request.Query("employee_id").String(),
		Search:     request.Query("search").String(),
	})

	var entries []CaseEntry
	p, err := pagination.New(query, request, &entries, pagination.Options{MaxSize: 100})
	if err != nil {
		log.Error("list case entries: %v", err)
		return response.Error(response.ErrInternalError)
	}
	return response.OKWithMeta(entries, &response.Meta{
		Page:       p.CurrentPage,
		Limit:      p.Size,
		Total:      int64(p.Records),
		TotalPages: p.Pages,
	})
}

func (c Controller) Get(request *evo.Request) any {
	ctx, cancel := timeout()
	defer cancel()
	entry, err := c.service.Get(ctx, request.Param("id").Uint())
	if err != nil {
		return response.From(err)
	}
	return response.OK(entry)
}

func (c Controller) Create(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	var req CreateRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}
	date, err := parseDate(&req.EntryDate)
	if err != nil {
		return response.From(err)
	}

	ctx, cancel := timeout()
	defer cancel()
	entry, err := c.service.Create(ctx, actor, Input{
		TicketNumber: &req.TicketNumber,
		EmployeeID:   &req.EmployeeID,
		EntryDate:    date,
		Status:       &req.Status,
		Category:     &req.Category,
		Description:  &req.Description,
	})
	if err != nil {
		return response.From(err)
	}
	return response.CreatedWithMessage(entry, "Case entry created successfully")
}

func (c Controller) Update(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	var req UpdateRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}
	date, err := parseDate(req.EntryDate)
	if err != nil {
		return response.From(err)
	}

	ctx, cancel := timeout()
	defer cancel()
	entry, err := c.service.Update(ctx, request.Param("id").Uint(), actor, Input{
		TicketNumber: req.TicketNumber,
		EmployeeID:   req.EmployeeID,
		EntryDate:    date,
		Status:       req.Status,
		Category:     req.Category,
		Description:  req.Description,
	})
	if err != nil {
		return response.From(err)
	}
	return response.OKWithMessage(entry, "Case entry updated successfully")
}

func (c Controller) Delete(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := timeout()
	defer cancel()
	if err := c.service.Delete(ctx, request.Param("id").Uint(), actor); err != nil {
		return response.From(err)
	}
	return response.Message("Case entry deleted")
}
