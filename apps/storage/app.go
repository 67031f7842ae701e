package storage

import (
	"context"
	"strings"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/lib/response"
)

// App chooses the backing store and exposes the upload Service to other apps
type App struct {
	service *Service
	s3      *S3Store
	local   *LocalStore
}

func New() *App {
	a := &App{}
	var store Store
	if settings.Get("S3.ENABLED").Bool() {
		s3Store, err := NewS3Store(LoadS3Config())
		if err != nil {
			log.Warning("Failed to initialize S3 storage, using local disk: %v", err)
		} else {
			a.s3 = s3Store
			store = s3Store
			log.Notice("S3 storage initialized: bucket=%s", s3Store.bucket)
		}
	}
	if store == nil {
		a.local = NewLocalStore(settings.Get("STORAGE.PATH", "uploads").String())
		store = a.local
	}

	maxSize := settings.Get("STORAGE.MAX_UPLOAD_SIZE", DefaultMaxUploadSize).Int()
	width := settings.Get("STORAGE.SIGNATURE_MAX_WIDTH", 600).Int()
	a.service = NewService(store, maxSize, width)
	return a
}

func (a *App) Service() *Service {
	return a.service
}

func (a *App) Register() error {
	return nil
}

func (a *App) Router() error {
	if a.local != nil {
		evo.Static(a.local.URLPrefix, a.local.Root)
		return nil
	}

	evo.Use("/api/files", auth.RequireAuth)
	evo.Get("/api/files/*", func(request *evo.Request) any {
		key := strings.TrimPrefix(request.Param("*").String(), "/")
		if key == "" || strings.Contains(key, "..") {
			return response.Error(response.ErrNotFound)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		url, err := a.s3.DownloadURL(ctx, key)
		if err != nil {
			log.Error("failed to presign %s: %v", key, err)
			return response.Error(response.ErrInternalError)
		}
		return request.Redirect(url)
	})
	return nil
}

func (a *App) WhenReady() error {
	return nil
}

func (a *App) Name() string {
	return "storage"
}

var _ application.Application = (*App)(nil)
