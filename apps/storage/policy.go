package storage

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/iesreza/hrdesk-backend/lib/response"
)

// Upload fields accepted on requisition forms
const (
	FieldRequestorSignature = "requestor_signature"
	FieldFHSignature        = "fh_signature"
	FieldRampupAttachment   = "rampup_attachment"
)

const DefaultMaxUploadSize = 2 << 20

var imageTypes = []string{"image/png", "image/jpeg", "image/gif"}

var documentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Policy limits what a form field accepts
type Policy struct {
	Allowed   []string
	Signature bool
}

var Policies = map[string]Policy{
	FieldRequestorSignature: {Allowed: imageTypes, Signature: true},
	FieldFHSignature:        {Allowed: imageTypes, Signature: true},
	FieldRampupAttachment:   {Allowed: documentTypes},
}

// Check sniffs data and returns its detected type. The client supplied
// content type and extension are ignored.
func Check(field string, data []byte, maxSize int) (*mimetype.MIME, Policy, error) {
	policy, ok := Policies[field]
	if !ok {
		return nil, Policy{}, response.ErrInvalidFile.WithMessage("Field %s does not accept uploads", field)
	}
	if len(data) == 0 {
		return nil, policy, response.ErrInvalidFile.WithMessage("%s is empty", field)
	}
	if maxSize > 0 && len(data) > maxSize {
		return nil, policy, response.ErrInvalidFile.WithMessage("%s exceeds the %s limit", field, humanSize(maxSize))
	}

	detected := mimetype.Detect(data)
	for _, allowed := range policy.Allowed {
		if detected.Is(allowed) {
			return detected, policy, nil
		}
	}
	return nil, policy, response.ErrInvalidFile.WithMessage("%s of type %s is not allowed", field, detected.String())
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}

// extension picks the stored file extension from the detected type
func extension(mime *mimetype.MIME) string {
	ext := mime.Extension()
	if ext == "" {
		return ".bin"
	}
	return strings.ToLower(ext)
}
