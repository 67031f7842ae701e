package models

import (
	"time"

	"github.com/getevo/restify"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Department is reference data for employees and requisitions. Records keep
// the department name, not the id, so renaming one does not rewrite history.
type Department struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;size:128;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Status      string    `gorm:"column:status;size:20;not null;default:'active';check:status IN ('active','suspended')" json:"status"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Designations []Designation `gorm:"foreignKey:DepartmentID" json:"designations,omitempty"`

	restify.API
}

func (Department) TableName() string {
	return "departments"
}

type Designation struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	DepartmentID *uint     `gorm:"column:department_id;index" json:"department_id"`
	Name         string    `gorm:"column:name;size:128;not null" json:"name"`
	Grade        string    `gorm:"column:grade;size:32" json:"grade"`
	Status       string    `gorm:"column:status;size:20;not null;default:'active'" json:"status"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Department *Department `gorm:"foreignKey:DepartmentID;references:ID" json:"department,omitempty"`

	restify.API
}

func (Designation) TableName() string {
	return "designations"
}
