package mrf

import (
	"context"

	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/lib/database"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"gorm.io/gorm"
)

// Visible narrows q to the active requisitions viewer may see. hr and the
// director see everything that left draft, a functional head sees the
// requisitions of their reports and department, everyone sees their own.
func Visible(q *gorm.DB, viewer auth.Identity) *gorm.DB {
	q = q.Where("manpower_requisitions.isdelete = ?", RecordActive)
	switch {
	case viewer.IsPrivileged():
		return q.Where("manpower_requisitions.status <> ? OR manpower_requisitions.created_by = ?", StatusDraft, viewer.EmployeeID)
	case viewer.IsFunctionalHead():
		team := q.Session(&gorm.Session{NewDB: true}).
			Model(&auth.Employee{}).
			Select("employee_id").
			Where("reporting_manager = ? OR department = ?", viewer.EmployeeID, viewer.Department)
		return q.Where(
			"manpower_requisitions.created_by = ? OR (manpower_requisitions.status <> ? AND manpower_requisitions.created_by IN (?))",
			viewer.EmployeeID, StatusDraft, team,
		)
	default:
		return q.Where("manpower_requisitions.created_by = ?", viewer.EmployeeID)
	}
}

// ListFilter is the list route's status and employee selection. "all"
// disables either filter.
type ListFilter struct {
	Status     string
	EmployeeID string
}

// ListQuery builds the ordered list query for viewer. The caller paginates.
func ListQuery(q *gorm.DB, viewer auth.Identity, filter ListFilter) (*gorm.DB, error) {
	q = Visible(q.Model(&Requisition{}), viewer)
	if filter.Status != "" && filter.Status != "all" {
		status, ok := ParseStatus(filter.Status)
		if !ok {
			return nil, response.ErrInvalidStatus.WithMessage("Unknown status %q", filter.Status)
		}
		q = q.Where("manpower_requisitions.status = ?", status)
	}
	if filter.EmployeeID != "" && filter.EmployeeID != "all" {
		q = q.Where("manpower_requisitions.created_by = ?", filter.EmployeeID)
	}
	return q.Order("manpower_requisitions.id DESC"), nil
}

// Get loads a requisition with its query row and history
func (s *Service) Get(ctx context.Context, id uint, viewer auth.Identity) (*Detail, error) {
	var detail Detail
	err := s.tx(func(tx *gorm.DB) error {
		err := Visible(tx.Model(&Requisition{}), viewer).
			Where("manpower_requisitions.id = ?", id).
			First(&detail.Requisition).Error
		if err != nil {
			return response.DBError(err, response.ErrRequisitionNotFound, "get requisition")
		}
		var query Query
		err = tx.Where("query_manpower_requisition_pid = ?", id).First(&query).Error
		switch {
		case err == nil:
			detail.Query = &query
		case !database.IsNotFound(err):
			return response.DBError(err, response.ErrQueryNotFound, "get query")
		}
		return tx.Where("requisition_id = ?", id).Order("id ASC").Find(&detail.History).Error
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetQuery returns the query row of a requisition visible to viewer
func (s *Service) GetQuery(ctx context.Context, id uint, viewer auth.Identity) (*Query, error) {
	detail, err := s.Get(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if detail.Query == nil {
		return nil, response.ErrQueryNotFound
	}
	return detail.Query, nil
}

// History lists the status changes of a requisition visible to viewer
func (s *Service) History(ctx context.Context, id uint, viewer auth.Identity) ([]History, error) {
	detail, err := s.Get(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	return detail.History, nil
}

// Counts is the dashboard summary of one manager's requisitions
type Counts struct {
	Total    int64            `json:"total"`
	ByStatus map[Status]int64 `json:"by_status"`
}

// ManagerCounts counts the requisitions employeeID can see, by status.
// Only the employee themselves, hr and the director may ask.
func (s *Service) ManagerCounts(ctx context.Context, employeeID string, viewer auth.Identity) (*Counts, error) {
	if employeeID != viewer.EmployeeID && !viewer.IsPrivileged() {
		return nil, response.ErrForbidden
	}
	counts := Counts{ByStatus: make(map[Status]int64, len(Statuses))}
	err := s.tx(func(tx *gorm.DB) error {
		subject := viewer
		if employeeID != viewer.EmployeeID {
			employee, err := auth.FindEmployee(tx, employeeID)
			if err != nil {
				return err
			}
			subject = employee.Identity()
		}
		var rows []struct {
			Status Status
			Total  int64
		}
		err := Visible(tx.Model(&Requisition{}), subject).
			Select("manpower_requisitions.status AS status, COUNT(*) AS total").
			Group("manpower_requisitions.status").
			Scan(&rows).Error
		if err != nil {
			return response.DBError(err, response.ErrRequisitionNotFound, "count requisitions")
		}
		for _, row := range rows {
			counts.ByStatus[row.Status] = row.Total
			counts.Total += row.Total
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &counts, nil
}
