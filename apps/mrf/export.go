package mrf

import (
	"context"
	"fmt"
	"time"

	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var exportHeaders = []string{
	"ID", "MRF Number", "Status", "Director Status", "HR Status", "Department", "Designation",
	"Employment Status", "Requirement Type", "Resources", "Experience (years)", "CTC Range",
	"Created By", "Created At",
}

var exportWidths = []float64{8, 14, 14, 16, 14, 20, 24, 18, 18, 10, 18, 20, 12, 18}

// ExportFilter selects the rows of an export. Zero values disable a filter.
type ExportFilter struct {
	Status Status
	From   time.Time
	To     time.Time
}

// Export renders the requisitions visible to viewer into a workbook
func (s *Service) Export(ctx context.Context, viewer auth.Identity, filter ExportFilter) (*excelize.File, string, error) {
	if !viewer.IsPrivileged() {
		return nil, "", response.ErrForbidden
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, "", response.ErrInvalidStatus.WithMessage("Unknown status %q", filter.Status)
	}

	var rows []Requisition
	err := s.tx(func(tx *gorm.DB) error {
		q := Visible(tx.Model(&Requisition{}), viewer)
		if filter.Status != "" {
			q = q.Where("manpower_requisitions.status = ?", filter.Status)
		}
		if !filter.From.IsZero() {
			q = q.Where("manpower_requisitions.created_at >= ?", filter.From)
		}
		if !filter.To.IsZero() {
			q = q.Where("manpower_requisitions.created_at < ?", filter.To)
		}
		return q.Order("manpower_requisitions.id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, "", response.DBError(err, response.ErrRequisitionNotFound, "export requisitions")
	}

	f := excelize.NewFile()
	sheet := "Requisitions"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range exportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, r := range rows {
		number := ""
		if r.MRFNumber != nil {
			number = *r.MRFNumber
		}
		values := []any{
			r.ID, number, string(r.Status), string(r.DirectorStatus), string(r.HRStatus), r.Department,
			r.Designation, r.EmploymentStatus, r.RequirementType, r.ResourceCount,
			fmt.Sprintf("%d-%d", r.ExperienceMin, r.ExperienceMax),
			fmt.Sprintf("%.2f-%.2f", r.CTCMin, r.CTCMax),
			r.CreatedBy, r.CreatedAt.Format("2006-01-02 15:04"),
		}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, i+2), v)
		}
	}

	for i, w := range exportWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
	f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	filename := fmt.Sprintf("requisitions_%s.xlsx", s.now().Format("20060102_150405"))
	return f, filename, nil
}
