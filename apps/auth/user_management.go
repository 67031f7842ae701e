package auth

import (
	"context"
	"strings"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/pagination"
	"github.com/iesreza/hrdesk-backend/apps/redis"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"github.com/iesreza/hrdesk-backend/lib/validate"
)

const managerRosterKey = "hrdesk:managers"

type CreateEmployeeRequest struct {
	EmployeeID       string  `json:"employee_id" validate:"required,max=32"`
	Name             string  `json:"name" validate:"required,max=255"`
	Email            string  `json:"email" validate:"required,email"`
	Position         string  `json:"position" validate:"max=128"`
	Department       string  `json:"department" validate:"required,max=128"`
	ReportingManager *string `json:"reporting_manager" validate:"omitempty,max=32"`
	Role             Role    `json:"role" validate:"required,oneof=director hr functional_head requestor"`
	Password         string  `json:"password" validate:"required,min=8"`
}

type UpdateEmployeeRequest struct {
	Name             *string `json:"name" validate:"omitempty,max=255"`
	Email            *string `json:"email" validate:"omitempty,email"`
	Position         *string `json:"position" validate:"omitempty,max=128"`
	Department       *string `json:"department" validate:"omitempty,max=128"`
	ReportingManager *string `json:"reporting_manager" validate:"omitempty,max=32"`
	Role             *Role   `json:"role" validate:"omitempty,oneof=director hr functional_head requestor"`
	Password         *string `json:"password" validate:"omitempty,min=8"`
}

// ListEmployees returns a paginated, filterable employee directory
func (c Controller) ListEmployees(request *evo.Request) any {
	query := db.Model(&Employee{})

	if search := strings.TrimSpace(request.Query("search").String()); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR employee_id LIKE ?", term, term, term)
	}
	if department := request.Query("department").String(); department != "" {
		query = query.Where("department = ?", department)
	}
	if role := Role(request.Query("role").String()); role.Valid() {
		query = query.Where("role = ?", role)
	}
	if status := request.Query("status").String(); status == EmployeeStatusActive || status == EmployeeStatusInactive {
		query = query.Where("status = ?", status)
	}
	query = query.Order("name ASC")

	var employees []Employee
	p, err := pagination.New(query, request, &employees, pagination.Options{MaxSize: 100})
	if err != nil {
		log.Error("list employees: %v", err)
		return response.Error(response.ErrInternalError)
	}

	return response.OKWithMeta(employees, &response.Meta{
		Page:       p.CurrentPage,
		Limit:      p.Size,
		Total:      int64(p.Records),
		TotalPages: p.Pages,
	})
}

func (c Controller) GetEmployee(request *evo.Request) any {
	var employee Employee
	if err := db.Where("employee_id = ?", request.Param("id").String()).First(&employee).Error; err != nil {
		return response.From(response.DBError(err, response.ErrEmployeeNotFound, "get employee"))
	}
	return response.OK(employee)
}

func (c Controller) CreateEmployee(request *evo.Request) any {
	var req CreateEmployeeRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}

	employee := Employee{
		EmployeeID:       strings.TrimSpace(req.EmployeeID),
		Name:             req.Name,
		Email:            strings.ToLower(req.Email),
		Position:         req.Position,
		Department:       req.Department,
		ReportingManager: req.ReportingManager,
		Role:             req.Role,
		Status:           EmployeeStatusActive,
	}
	if err := employee.SetPassword(req.Password); err != nil {
		return response.Error(response.ErrInternalError)
	}

	if err := db.Create(&employee).Error; err != nil {
		err = response.DBError(err, response.ErrNotFound, "create employee")
		if appErr, _ := response.AsAppError(err); appErr.Code == response.ErrorCodeConflict {
			return response.Error(response.ErrConflict.WithMessage("An employee with this id or email already exists"))
		}
		return response.From(err)
	}

	invalidateManagerRoster()
	log.Info("employee %s created with role %s", employee.EmployeeID, employee.Role)
	return response.CreatedWithMessage(employee, "Employee created successfully")
}

func (c Controller) UpdateEmployee(request *evo.Request) any {
	var req UpdateEmployeeRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(&req); err != nil {
		return response.From(err)
	}

	var employee Employee
	if err := db.Where("employee_id = ?", request.Param("id").String()).First(&employee).Error; err != nil {
		return response.From(response.DBError(err, response.ErrEmployeeNotFound, "update employee"))
	}

	if req.Name != nil {
		employee.Name = *req.Name
	}
	if req.Email != nil {
		employee.Email = strings.ToLower(*req.Email)
	}
	if req.Position != nil {
		employee.Position = *req.Position
	}
	if req.Department != nil {
		employee.Department = *req.Department
	}
	if req.ReportingManager != nil {
		if *req.ReportingManager == employee.EmployeeID {
			return response.Error(response.ErrInvalidInput.WithMessage("An employee cannot report to themselves"))
		}
		employee.ReportingManager = req.ReportingManager
	}
	if req.Role != nil {
		employee.Role = *req.Role
	}
	if req.Password != nil && *req.Password != "" {
		if err := employee.SetPassword(*req.Password); err != nil {
			return response.Error(response.ErrInternalError)
		}
	}

	if err := db.Save(&employee).Error; err != nil {
		return response.From(response.DBError(err, response.ErrEmployeeNotFound, "save employee"))
	}

	invalidateManagerRoster()
	return response.OKWithMessage(employee, "Employee updated successfully")
}

func (c Controller) DeactivateEmployee(request *evo.Request) any {
	return c.setStatus(request, EmployeeStatusInactive)
}

func (c Controller) ActivateEmployee(request *evo.Request) any {
	return c.setStatus(request, EmployeeStatusActive)
}

func (c Controller) setStatus(request *evo.Request, status string) any {
	actor, err := CurrentEmployee(request)
	if err != nil {
		return response.From(err)
	}
	var target = request.Param("id").String()
	if target == actor.EmployeeID && status == EmployeeStatusInactive {
		return response.Error(response.ErrInvalidInput.WithMessage("You cannot deactivate your own account"))
	}

	result := db.Model(&Employee{}).Where("employee_id = ?", target).Update("status", status)
	if result.Error != nil {
		return response.From(response.DBError(result.Error, response.ErrEmployeeNotFound, "set employee status"))
	}
	if result.RowsAffected == 0 {
		return response.Error(response.ErrEmployeeNotFound)
	}

	invalidateManagerRoster()
	log.Info("employee %s set to %s by %s", target, status, actor.EmployeeID)
	return response.Message("Employee status updated")
}

// ListManagers returns the functional-head roster, cached in Redis when available
func (c Controller) ListManagers(request *evo.Request) any {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var heads []Employee
	if found, _ := redis.GetJSON(ctx, managerRosterKey, &heads); found {
		return response.List(heads, len(heads))
	}

	heads, err := ListFunctionalHeads(db.Model(&Employee{}))
	if err != nil {
		log.Error("list functional heads: %v", err)
		return response.Error(response.ErrDatabaseError)
	}
	if err := redis.SetJSON(ctx, managerRosterKey, heads, 5*time.Minute); err != nil {
		log.Debug("manager roster not cached: %v", err)
	}
	return response.List(heads, len(heads))
}

func invalidateManagerRoster() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := redis.Delete(ctx, managerRosterKey); err != nil {
		log.Debug("manager roster invalidation skipped: %v", err)
	}
}
