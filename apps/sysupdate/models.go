package sysupdate

import (
	"time"
)

const (
	RecordActive   = "Active"
	RecordInactive = "Inactive"
)

// SystemUpdate is an announcement addressed to a set of employees
type SystemUpdate struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	Title     string    `gorm:"column:title;size:255;not null" json:"title"`
	Body      string    `gorm:"column:body;type:text" json:"body"`
	CreatedBy string    `gorm:"column:created_by;size:32;not null;index" json:"created_by"`
	IsDelete  string    `gorm:"column:is_delete;size:16;not null;default:Active;index" json:"is_delete"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SystemUpdate) TableName() string {
	return "system_updates"
}

type Recipient struct {
	UpdateID   uint   `gorm:"column:update_id;primaryKey" json:"update_id"`
	EmployeeID string `gorm:"column:employee_id;primaryKey;size:32;index" json:"employee_id"`
}

func (Recipient) TableName() string {
	return "system_update_recipients"
}

type Read struct {
	UpdateID   uint      `gorm:"column:update_id;primaryKey" json:"update_id"`
	EmployeeID string    `gorm:"column:employee_id;primaryKey;size:32" json:"employee_id"`
	ReadAt     time.Time `gorm:"column:read_at" json:"read_at"`
}

func (Read) TableName() string {
	return "system_update_reads"
}

// Discussion is a threaded reply under an update. ParentID is nil for
// top-level messages.
type Discussion struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	UpdateID  uint      `gorm:"column:update_id;not null;index" json:"update_id"`
	ParentID  *uint     `gorm:"column:parent_id;index" json:"parent_id"`
	AuthorID  string    `gorm:"column:author_id;size:32;not null" json:"author_id"`
	Body      string    `gorm:"column:body;type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Discussion) TableName() string {
	return "system_update_discussions"
}

type DiscussionRead struct {
	DiscussionID uint      `gorm:"column:discussion_id;primaryKey" json:"discussion_id"`
	EmployeeID   string    `gorm:"column:employee_id;primaryKey;size:32" json:"employee_id"`
	ReadAt       time.Time `gorm:"column:read_at" json:"read_at"`
}

func (DiscussionRead) TableName() string {
	return "discussion_reads"
}

// Summary is an update as listed for one viewer
type Summary struct {
	SystemUpdate
	Read              bool `json:"read"`
	UnreadDiscussions int  `json:"unread_discussions"`
}

type Detail struct {
	SystemUpdate
	Recipients []string `json:"recipients"`
	Read       bool     `json:"read"`
}

type RecipientStatus struct {
	EmployeeID        string `json:"employee_id"`
	Read              bool   `json:"read"`
	UnreadDiscussions int    `json:"unread_discussions"`
}

type DiscussionView struct {
	Discussion
	Read bool `json:"read"`
}

type UnreadCounts struct {
	Updates     int          `json:"updates"`
	Discussions int          `json:"discussions"`
	ByUpdate    map[uint]int `json:"by_update"`
}
