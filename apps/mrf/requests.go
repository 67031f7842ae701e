package mrf

import (
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/apps/storage"
	"github.com/iesreza/hrdesk-backend/lib/response"
)

// TransitionRequest is the body of PUT /api/mrf/update-status/:id. Older
// clients send the reviewer's text in hr_comments or director_comments.
type TransitionRequest struct {
	Status           string `json:"status" validate:"required"`
	Comments         string `json:"comments" validate:"max=4000"`
	HRComments       string `json:"hr_comments" validate:"max=4000"`
	DirectorComments string `json:"director_comments" validate:"max=4000"`
	Question         string `json:"question" validate:"max=4000"`
}

func (r TransitionRequest) comments(actor auth.Identity) string {
	switch {
	case r.Comments != "":
		return r.Comments
	case actor.IsDirector():
		return r.DirectorComments
	case actor.IsHR():
		return r.HRComments
	}
	return ""
}

// QueryRequest is the body of POST /api/mrf/add-query-form
type QueryRequest struct {
	RequisitionID uint   `json:"requisition_id" validate:"required"`
	Question      string `json:"question" validate:"required,max=4000"`
}

type ReplyRequest struct {
	Reply string `json:"reply" validate:"required,max=4000"`
}

type ReplyByLinkRequest struct {
	Token string `json:"token" validate:"required"`
	Reply string `json:"reply" validate:"required,max=4000"`
}

// fileFields are the multipart file parts a requisition accepts
var fileFields = []string{storage.FieldRequestorSignature, storage.FieldFHSignature, storage.FieldRampupAttachment}

// readForm collects the descriptive fields present in a multipart form.
// Absent fields stay nil so an update only touches what was sent.
func readForm(c *fiber.Ctx) (Fields, error) {
	var fields Fields
	text := func(key string) *string {
		if !formHas(c, key) {
			return nil
		}
		v := strings.TrimSpace(c.FormValue(key))
		return &v
	}
	var bad []string
	integer := func(key string) *int {
		raw := text(key)
		if raw == nil || *raw == "" {
			return nil
		}
		v, err := strconv.Atoi(*raw)
		if err != nil {
			bad = append(bad, key)
			return nil
		}
		return &v
	}
	decimal := func(key string) *float64 {
		raw := text(key)
		if raw == nil || *raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			bad = append(bad, key)
			return nil
		}
		return &v
	}

	fields.Department = text("department")
	fields.EmploymentStatus = text("employment_status")
	fields.Designation = text("designation")
	fields.RequirementType = text("requirement_type")
	fields.Justification = text("justification")
	fields.JobDescription = text("job_description")
	fields.ResourceCount = integer("resource_count")
	fields.ExperienceMin = integer("experience_min")
	fields.ExperienceMax = integer("experience_max")
	fields.CTCMin = decimal("ctc_min")
	fields.CTCMax = decimal("ctc_max")

	if len(bad) > 0 {
		return fields, response.ErrInvalidInput.WithMessage("%s must be numeric", strings.Join(bad, ", "))
	}
	return fields, nil
}

func formHas(c *fiber.Ctx, key string) bool {
	form, err := c.MultipartForm()
	if err != nil {
		return c.FormValue(key) != ""
	}
	_, ok := form.Value[key]
	return ok
}

// setFile records a stored upload path on the field it belongs to
func (f *Fields) setFile(field, path string) {
	switch field {
	case storage.FieldRequestorSignature:
		f.RequestorSignature = &path
	case storage.FieldFHSignature:
		f.FHSignature = &path
	case storage.FieldRampupAttachment:
		f.RampupAttachment = &path
	}
}

func readUpload(header *multipart.FileHeader, maxSize int) ([]byte, error) {
	if header.Size > int64(maxSize) {
		return nil, response.ErrInvalidFile.WithMessage("%s exceeds the upload limit", header.Filename)
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, int64(maxSize)+1))
}
