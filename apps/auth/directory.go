package auth

import (
	"errors"

	"github.com/iesreza/hrdesk-backend/lib/response"
	"gorm.io/gorm"
)

// FindEmployee loads an employee by employee id using tx
func FindEmployee(tx *gorm.DB, employeeID string) (*Employee, error) {
	if employeeID == "" {
		return nil, response.ErrEmployeeNotFound
	}
	var employee Employee
	if err := tx.Where("employee_id = ?", employeeID).First(&employee).Error; err != nil {
		return nil, response.DBError(err, response.ErrEmployeeNotFound, "load employee "+employeeID)
	}
	return &employee, nil
}

// FunctionalHeadOf resolves who answers queries on requisitions raised by
// creator: the creator's reporting manager, or failing that the functional
// head of the creator's department.
func FunctionalHeadOf(tx *gorm.DB, creator *Employee) (*Employee, error) {
	if managerID := creator.ManagerID(); managerID != "" {
		manager, err := FindEmployee(tx, managerID)
		if err == nil {
			return manager, nil
		}
		if !errors.Is(err, response.ErrEmployeeNotFound) {
			return nil, err
		}
	}
	var head Employee
	err := tx.Where("department = ? AND role = ? AND status = ?", creator.Department, RoleFunctionalHead, EmployeeStatusActive).
		Order("id ASC").
		First(&head).Error
	if err != nil {
		return nil, response.DBError(err, response.ErrEmployeeNotFound.WithMessage("No functional head found for %s", creator.EmployeeID), "resolve functional head")
	}
	return &head, nil
}

// CanAnswerQueries reports whether actor may reply to queries on a
// requisition raised by creator in department.
func CanAnswerQueries(actor Identity, creator *Employee, department string) bool {
	if actor.Anonymous() {
		return false
	}
	if creator != nil && creator.ManagerID() == actor.EmployeeID {
		return true
	}
	return actor.IsFunctionalHead() && actor.Department == department
}

// ListFunctionalHeads returns the active functional-head roster
func ListFunctionalHeads(tx *gorm.DB) ([]Employee, error) {
	var heads []Employee
	err := tx.Where("role = ? AND status = ?", RoleFunctionalHead, EmployeeStatusActive).
		Order("department ASC, name ASC").
		Find(&heads).Error
	return heads, err
}
