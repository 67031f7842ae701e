package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/google/uuid"
	"github.com/iesreza/hrdesk-backend/lib/imageutil"
)

// Service validates uploads and hands them to the configured Store
type Service struct {
	store          Store
	maxSize        int
	signatureWidth int
}

func NewService(store Store, maxSize, signatureWidth int) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &Service{store: store, maxSize: maxSize, signatureWidth: signatureWidth}
}

// Save checks data against the field policy and stores it. The returned
// path is what gets recorded on the requisition.
func (s *Service) Save(ctx context.Context, field string, data []byte) (string, error) {
	mime, policy, err := Check(field, data, s.maxSize)
	if err != nil {
		return "", err
	}

	contentType := mime.String()
	ext := extension(mime)
	if policy.Signature && s.signatureWidth > 0 {
		out, format, resized, err := imageutil.FitWidth(data, s.signatureWidth)
		if err != nil {
			return "", err
		}
		if resized {
			data = out
			contentType = "image/" + format
			ext = "." + format
			if format == "jpeg" {
				ext = ".jpg"
			}
		}
	}

	key := fmt.Sprintf("%s/%s/%s%s", field, time.Now().Format("2006/01"), uuid.NewString(), ext)
	path, err := s.store.Save(ctx, key, data, contentType)
	if err != nil {
		log.Error("failed to store %s upload: %v", field, err)
		return "", err
	}
	return path, nil
}

// Check runs the field policy without storing anything
func (s *Service) Check(field string, data []byte) error {
	_, _, err := Check(field, data, s.maxSize)
	return err
}

// Delete removes a file Save stored earlier
func (s *Service) Delete(ctx context.Context, path string) error {
	if err := s.store.Delete(ctx, path); err != nil {
		log.Error("failed to delete upload %s: %v", path, err)
		return err
	}
	return nil
}

func (s *Service) MaxSize() int {
	return s.maxSize
}
