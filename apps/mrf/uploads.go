package mrf

import (
	"context"
	"mime/multipart"

	"github.com/getevo/evo/v2/lib/log"
)

// fileStore is the part of storage.Service the form handlers need
type fileStore interface {
	Check(field string, data []byte) error
	Save(ctx context.Context, field string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
}

type upload struct {
	field string
	data  []byte
}

// readUploads reads and checks the file parts of form without storing them
func readUploads(form *multipart.Form, files fileStore, maxSize int) ([]upload, error) {
	var uploads []upload
	if form == nil {
		return uploads, nil
	}
	for _, field := range fileFields {
		headers := form.File[field]
		if len(headers) == 0 {
			continue
		}
		data, err := readUpload(headers[0], maxSize)
		if err != nil {
			return nil, err
		}
		if err := files.Check(field, data); err != nil {
			return nil, err
		}
		uploads = append(uploads, upload{field: field, data: data})
	}
	return uploads, nil
}

// withUploads stores uploads only after check passes and records their
// paths on fields before running write. Files stored for a write that fails
// are removed again.
func withUploads(ctx context.Context, files fileStore, uploads []upload, fields *Fields, check, write func() error) error {
	if err := check(); err != nil {
		return err
	}

	var saved []string
	discard := func() {
		for _, path := range saved {
			if err := files.Delete(context.Background(), path); err != nil {
				log.Warning("orphan upload %s left behind: %v", path, err)
			}
		}
	}
	for _, u := range uploads {
		path, err := files.Save(ctx, u.field, u.data)
		if err != nil {
			discard()
			return err
		}
		saved = append(saved, path)
		fields.setFile(u.field, path)
	}

	if err := write(); err != nil {
		discard()
		return err
	}
	return nil
}
