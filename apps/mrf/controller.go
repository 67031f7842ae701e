package mrf

import (
	"context"
	"net/http"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/pagination"
	"github.com/gofiber/fiber/v2"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/apps/storage"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"github.com/iesreza/hrdesk-backend/lib/validate"
)

const requestTimeout = 15 * time.Second

type Controller struct {
	service *Service
	files   *storage.Service
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// CreateHandler serves the multipart create form. Files are stored only once
// the requisition would be accepted.
func (c Controller) CreateHandler(ctx *fiber.Ctx) error {
	employee, err := auth.FiberEmployee(ctx)
	if err != nil {
		return response.FiberError(ctx, err)
	}
	fields, uploads, err := c.readMultipart(ctx)
	if err != nil {
		return response.FiberError(ctx, err)
	}
	draft := ctx.FormValue("is_draft") == "true" || ctx.FormValue("is_draft") == "1"
	actor := employee.Identity()

	rctx, cancel := requestContext()
	defer cancel()
	var requisition *Requisition
	err = withUploads(rctx, c.files, uploads, &fields,
		func() error { return c.service.CheckCreate(actor, fields, draft) },
		func() (err error) {
			requisition, err = c.service.Create(rctx, actor, fields, draft)
			return err
		})
	if err != nil {
		return response.FiberError(ctx, err)
	}
	return response.FiberOK(ctx, http.StatusCreated, fiber.Map{"id": requisition.ID, "requisition": requisition}, "Manpower requisition created successfully")
}

// UpdateHandler serves the multipart edit form
func (c Controller) UpdateHandler(ctx *fiber.Ctx) error {
	employee, err := auth.FiberEmployee(ctx)
	if err != nil {
		return response.FiberError(ctx, err)
	}
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.FiberError(ctx, response.ErrInvalidInput.WithMessage("Invalid requisition id"))
	}
	fields, uploads, err := c.readMultipart(ctx)
	if err != nil {
		return response.FiberError(ctx, err)
	}
	actor := employee.Identity()

	rctx, cancel := requestContext()
	defer cancel()
	var requisition *Requisition
	err = withUploads(rctx, c.files, uploads, &fields,
		func() error { return c.service.CheckEditable(rctx, uint(id), actor) },
		func() (err error) {
			requisition, err = c.service.Update(rctx, uint(id), actor, fields)
			return err
		})
	if err != nil {
		return response.FiberError(ctx, err)
	}
	return response.FiberOK(ctx, http.StatusOK, requisition, "Manpower requisition updated successfully")
}

// readMultipart reads the text fields and the checked, not yet stored, files
func (c Controller) readMultipart(ctx *fiber.Ctx) (Fields, []upload, error) {
	fields, err := readForm(ctx)
	if err != nil {
		return fields, nil, err
	}
	form, err := ctx.MultipartForm()
	if err != nil {
		// a urlencoded form carries no files
		return fields, nil, nil
	}
	uploads, err := readUploads(form, c.files, c.files.MaxSize())
	return fields, uploads, err
}

func (c Controller) UpdateStatus(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	var req TransitionRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}
	status, ok := ParseStatus(req.Status)
	if !ok {
		return response.Error(response.ErrInvalidStatus.WithMessage("Unknown status %q", req.Status))
	}

	ctx, cancel := requestContext()
	defer cancel()
	requisition, err := c.service.Transition(ctx, TransitionInput{
		RequisitionID: request.Param("id").Uint(),
		Target:        status,
		Actor:         actor,
		Comments:      req.comments(actor),
		Question:      req.Question,
	})
	if err != nil {
		return response.From(err)
	}
	return response.OKWithMessage(requisition, "Status updated successfully")
}

func (c Controller) AddQuery(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	var req QueryRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}

	ctx, cancel := requestContext()
	defer cancel()
	requisition, err := c.service.Transition(ctx, TransitionInput{
		RequisitionID: req.RequisitionID,
		Target:        StatusRaiseQuery,
		Actor:         actor,
		Question:      req.Question,
	})
	if err != nil {
		return response.From(err)
	}
	return response.CreatedWithMessage(requisition, "Query raised successfully")
}

func (c Controller) ReplyToQuery(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	var req ReplyRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}

	ctx, cancel := requestContext()
	defer cancel()
	requisition, err := c.service.Reply(ctx, request.Param("id").Uint(), actor, req.Reply)
	if err != nil {
		return response.From(err)
	}
	return response.OKWithMessage(requisition, "Reply saved successfully")
}

// ReplyByLink is reached from the query email without a session
func (c Controller) ReplyByLink(request *evo.Request) any {
	var req ReplyByLinkRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}

	ctx, cancel := requestContext()
	defer cancel()
	requisition, err := c.service.ReplyByLink(ctx, req.Token, req.Reply)
	if err != nil {
		return response.From(err)
	}
	return response.OKWithMessage(fiber.Map{"id": requisition.ID, "status": requisition.Status}, "Reply saved successfully")
}

func (c Controller) Withdraw(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := requestContext()
	defer cancel()
	requisition, err := c.service.Withdraw(ctx, request.Param("id").Uint(), actor)
	if err != nil {
		return response.From(err)
	}
	return response.OKWithMessage(requisition, "Manpower requisition withdrawn")
}

func (c Controller) Delete(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := requestContext()
	defer cancel()
	if err := c.service.Delete(ctx, request.Param("id").Uint(), actor); err != nil {
		return response.From(err)
	}
	return response.Message("Manpower requisition deleted")
}

func (c Controller) Get(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := requestContext()
	defer cancel()
	detail, err := c.service.Get(ctx, request.Param("id").Uint(), actor)
	if err != nil {
		return response.From(err)
	}
	return response.OK(detail)
}

func (c Controller) GetQuery(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := requestContext()
	defer cancel()
	query, err := c.service.GetQuery(ctx, request.Param("id").Uint(), actor)
	if err != nil {
		return response.From(err)
	}
	return response.OK(query)
}

func (c Controller) History(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := requestContext()
	defer cancel()
	history, err := c.service.History(ctx, request.Param("id").Uint(), actor)
	if err != nil {
		return response.From(err)
	}
	return response.List(history, len(history))
}

// ListByStatus serves /getmanpowerrequisitionbystatus/:status/:emp_id
func (c Controller) ListByStatus(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	query, err := ListQuery(db.Model(&Requisition{}), actor, ListFilter{
		Status:     request.Param("status").String(),
		EmployeeID: request.Param("emp_id").String(),
	})
	if err != nil {
		return response.From(err)
	}

	var requisitions []Requisition
	p, err := pagination.New(query, request, &requisitions, pagination.Options{MaxSize: 100})
	if err != nil {
		log.Error("list requisitions: %v", err)
		return response.Error(response.ErrInternalError)
	}
	return response.OKWithMeta(requisitions, &response.Meta{
		Page:       p.CurrentPage,
		Limit:      p.Size,
		Total:      int64(p.Records),
		TotalPages: p.Pages,
	})
}

func (c Controller) ManagerCounts(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := requestContext()
	defer cancel()
	counts, err := c.service.ManagerCounts(ctx, request.Param("id").String(), actor)
	if err != nil {
		return response.From(err)
	}
	return response.OK(counts)
}

// ExportHandler streams the workbook. It is a fiber handler because the
// body is binary.
func (c Controller) ExportHandler(ctx *fiber.Ctx) error {
	employee, err := auth.FiberEmployee(ctx)
	if err != nil {
		return response.FiberError(ctx, err)
	}
	filter := ExportFilter{}
	if raw := ctx.Query("status"); raw != "" && raw != "all" {
		status, ok := ParseStatus(raw)
		if !ok {
			return response.FiberError(ctx, response.ErrInvalidStatus.WithMessage("Unknown status %q", raw))
		}
		filter.Status = status
	}
	for key, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := ctx.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return response.FiberError(ctx, response.ErrInvalidInput.WithMessage("%s must be a date like 2024-01-31", key))
		}
		*dst = t
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.AddDate(0, 0, 1)
	}

	rctx, cancel := requestContext()
	defer cancel()
	f, filename, err := c.service.Export(rctx, employee.Identity(), filter)
	if err != nil {
		return response.FiberError(ctx, err)
	}
	defer f.Close()

	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	if err := f.Write(ctx.Response().BodyWriter()); err != nil {
		log.Error("write export: %v", err)
		return response.FiberError(ctx, response.ErrInternalError)
	}
	return nil
}
