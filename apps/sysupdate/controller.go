package sysupdate

import (
	"context"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"github.com/iesreza/hrdesk-backend/lib/validate"
)

type Controller struct {
	service *Service
}

type CreateRequest struct {
	Title      string   `json:"title" validate:"required,max=255"`
	Body       string   `json:"body" validate:"max=20000"`
	Recipients []string `json:"recipients" validate:"dive,max=32"`
	Everyone   bool     `json:"everyone"`
}

type DiscussionRequest struct {
	ParentID *uint  `json:"parent_id"`
	Body     string `json:"body" validate:"required,max=8000"`
}

func timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
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
	ctx, cancel := timeout()
	defer cancel()
	detail, err := c.service.Create(ctx, actor, CreateInput{
		Title:      req.Title,
		Body:       req.Body,
		Recipients: req.Recipients,
		Everyone:   req.Everyone,
	})
	if err != nil {
		return response.From(err)
	}
	return response.CreatedWithMessage(detail, "System update published")
}

func (c Controller) List(request *evo.Request) any {
	viewer, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := timeout()
	defer cancel()
	items, err := c.service.ListMine(ctx, viewer)
	if err != nil {
		return response.From(err)
	}
	return response.List(items, len(items))
}

func (c Controller) Get(request *evo.Request) any {
	viewer, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := timeout()
	defer cancel()
	detail, err := c.service.Get(ctx, request.Param("id").Uint(), viewer)
	if err != nil {
		return response.From(err)
	}
	return response.OK(detail)
}

func (c Controller) MarkRead(request *evo.Request) any {
	viewer, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := timeout()
	defer cancel()
	if err := c.service.MarkRead(ctx, request.Param("id").Uint(), viewer); err != nil {
		return response.From(err)
	}
	return response.Message("Marked as read")
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
	return response.Message("System update deleted")
}

func (c Controller) ReadStatus(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := timeout()
	defer cancel()
	status, err := c.service.ReadStatus(ctx, request.Param("id").Uint(), actor)
	if err != nil {
		return response.From(err)
	}
	return response.List(status, len(status))
}

func (c Controller) PostDiscussion(request *evo.Request) any {
	actor, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	var req DiscussionRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}
	ctx, cancel := timeout()
	defer cancel()
	message, err := c.service.PostDiscussion(ctx, request.Param("id").Uint(), actor, PostInput{ParentID: req.ParentID, Body: req.Body})
	if err != nil {
		return response.From(err)
	}
	return response.Created(message)
}

func (c Controller) Discussions(request *evo.Request) any {
	viewer, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := timeout()
	defer cancel()
	thread, err := c.service.Discussions(ctx, request.Param("id").Uint(), viewer)
	if err != nil {
		return response.From(err)
	}
	return response.List(thread, len(thread))
}

// MarkDiscussionRead accepts ?all=true to mark the whole thread
func (c Controller) MarkDiscussionRead(request *evo.Request) any {
	viewer, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := timeout()
	defer cancel()
	all := request.Query("all").String() == "true"
	if err := c.service.MarkDiscussionRead(ctx, request.Param("id").Uint(), viewer, all); err != nil {
		return response.From(err)
	}
	return response.Message("Marked as read")
}

func (c Controller) Unread(request *evo.Request) any {
	viewer, err := auth.CurrentIdentity(request)
	if err != nil {
		return response.From(err)
	}
	ctx, cancel := timeout()
	defer cancel()
	counts, err := c.service.Unread(ctx, viewer)
	if err != nil {
		return response.From(err)
	}
	return response.OK(counts)
}
