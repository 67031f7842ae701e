package caseentry

import (
	"time"
)

const (
	RecordActive   = "Active"
	RecordInactive = "Inactive"
)

// CaseEntry is one support ticket logged against an assignee. Status and
// category are free-form labels chosen by the client.
type CaseEntry struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	TicketNumber string    `gorm:"column:ticket_number;size:64;uniqueIndex;not null" json:"ticket_number"`
	EmployeeID   string    `gorm:"column:employee_id;size:32;index;not null" json:"employee_id"`
	CreatedBy    string    `gorm:"column:created_by;size:32;not null" json:"created_by"`
	EntryDate    time.Time `gorm:"column:entry_date;not null" json:"entry_date"`
	Status       string    `gorm:"column:status;size:64" json:"status"`
	Category     string    `gorm:"column:category;size:128" json:"category"`
	Description  string    `gorm:"column:description;type:text" json:"description"`
	IsDelete     string    `gorm:"column:is_delete;size:16;not null;default:Active;index" json:"is_delete"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CaseEntry) TableName() string {
	return "case_entries"
}
