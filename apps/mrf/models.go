package mrf

import (
	"time"
)

// Status is the overall workflow status of a requisition. The same values
// are used for the director and hr sub-statuses.
type Status string

const (
	StatusDraft      Status = "Draft"
	StatusPending    Status = "Pending"
	StatusApprove    Status = "Approve"
	StatusHRApprove  Status = "HR Approve"
	StatusReject     Status = "Reject"
	StatusRaiseQuery Status = "Raise Query"
	StatusFHReplied  Status = "FH Replied"
	StatusOnHold     Status = "On Hold"
	StatusWithdraw   Status = "Withdraw"
)

// Statuses lists every accepted status value
var Statuses = []Status{
	StatusDraft, StatusPending, StatusApprove, StatusHRApprove, StatusReject,
	StatusRaiseQuery, StatusFHReplied, StatusOnHold, StatusWithdraw,
}

func (s Status) Valid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// ParseStatus accepts the exact value or its lower case form, as sent by
// older clients in the list route.
func ParseStatus(raw string) (Status, bool) {
	status := Status(titleStatus(raw))
	return status, status.Valid()
}

func titleStatus(raw string) string {
	switch raw {
	case "draft":
		return string(StatusDraft)
	case "pending":
		return string(StatusPending)
	case "approve":
		return string(StatusApprove)
	case "hr approve", "hr-approve":
		return string(StatusHRApprove)
	case "reject":
		return string(StatusReject)
	case "raise query", "raise-query":
		return string(StatusRaiseQuery)
	case "fh replied", "fh-replied":
		return string(StatusFHReplied)
	case "on hold", "on-hold":
		return string(StatusOnHold)
	case "withdraw":
		return string(StatusWithdraw)
	}
	return raw
}

// Requirement types
const (
	RequirementRampUp      = "Ramp-up"
	RequirementNew         = "New Requirement"
	RequirementReplacement = "Replacement"
)

// Soft delete flag values of the isdelete column
const (
	RecordActive   = "Active"
	RecordInactive = "Inactive"
)

type Requisition struct {
	ID                 uint      `gorm:"column:id;primaryKey" json:"id"`
	Department         string    `gorm:"column:department;size:128;index" json:"department"`
	EmploymentStatus   string    `gorm:"column:employment_status;size:64" json:"employment_status"`
	Designation        string    `gorm:"column:designation;size:128" json:"designation"`
	ResourceCount      int       `gorm:"column:resource_count" json:"resource_count"`
	RequirementType    string    `gorm:"column:requirement_type;size:32" json:"requirement_type"`
	Justification      string    `gorm:"column:justification;type:text" json:"justification"`
	JobDescription     string    `gorm:"column:job_description;type:text" json:"job_description"`
	ExperienceMin      int       `gorm:"column:experience_min" json:"experience_min"`
	ExperienceMax      int       `gorm:"column:experience_max" json:"experience_max"`
	CTCMin             float64   `gorm:"column:ctc_min" json:"ctc_min"`
	CTCMax             float64   `gorm:"column:ctc_max" json:"ctc_max"`
	RequestorSignature string    `gorm:"column:requestor_signature;size:512" json:"requestor_signature"`
	FHSignature        string    `gorm:"column:fh_signature;size:512" json:"fh_signature"`
	RampupAttachment   string    `gorm:"column:rampup_attachment;size:512" json:"rampup_attachment"`
	Status             Status    `gorm:"column:status;size:32;index;not null" json:"status"`
	DirectorStatus     Status    `gorm:"column:director_status;size:32" json:"director_status"`
	HRStatus           Status    `gorm:"column:hr_status;size:32" json:"hr_status"`
	HRComments         string    `gorm:"column:hr_comments;type:text" json:"hr_comments"`
	DirectorComments   string    `gorm:"column:director_comments;type:text" json:"director_comments"`
	MRFNumber          *string   `gorm:"column:mrf_number;size:32;uniqueIndex" json:"mrf_number"`
	CreatedBy          string    `gorm:"column:created_by;size:32;index;not null" json:"created_by"`
	IsDelete           string    `gorm:"column:isdelete;size:16;not null;default:Active" json:"isdelete"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Requisition) TableName() string {
	return "manpower_requisitions"
}

// Query carries the questions raised by hr and the director on one
// requisition together with the functional head's answers. There is at most
// one row per requisition.
type Query struct {
	ID               uint      `gorm:"column:query_pid;primaryKey" json:"query_pid"`
	RequisitionID    uint      `gorm:"column:query_manpower_requisition_pid;uniqueIndex;not null" json:"query_manpower_requisition_pid"`
	HRQuestion       string    `gorm:"column:query_name_hr;type:text" json:"query_name_hr"`
	DirectorQuestion string    `gorm:"column:query_name_director;type:text" json:"query_name_director"`
	HRAnswer         string    `gorm:"column:HR_Query_Answer;type:text" json:"HR_Query_Answer"`
	DirectorAnswer   string    `gorm:"column:Director_Query_Answer;type:text" json:"Director_Query_Answer"`
	CreatedBy        string    `gorm:"column:query_created_by;size:32" json:"query_created_by"`
	IsDelete         string    `gorm:"column:isdelete;size:16;not null;default:Active" json:"isdelete"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Query) TableName() string {
	return "mrf_queries"
}

// Sequence is the row locked while an MRF number is minted
type Sequence struct {
	Name      string `gorm:"column:name;size:64;primaryKey" json:"name"`
	LastValue int64  `gorm:"column:last_value;not null" json:"last_value"`
}

func (Sequence) TableName() string {
	return "mrf_sequences"
}

// History records every status change with who made it
type History struct {
	ID            uint      `gorm:"column:id;primaryKey" json:"id"`
	RequisitionID uint      `gorm:"column:requisition_id;index;not null" json:"requisition_id"`
	FromStatus    Status    `gorm:"column:from_status;size:32" json:"from_status"`
	ToStatus      Status    `gorm:"column:to_status;size:32;not null" json:"to_status"`
	ActorID       string    `gorm:"column:actor_id;size:32" json:"actor_id"`
	ActorRole     string    `gorm:"column:actor_role;size:32" json:"actor_role"`
	Comments      string    `gorm:"column:comments;type:text" json:"comments"`
	MRFNumber     *string   `gorm:"column:mrf_number;size:32" json:"mrf_number"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (History) TableName() string {
	return "requisition_history"
}

// Detail is the shape returned by the detail route
type Detail struct {
	Requisition
	Query   *Query    `json:"query"`
	History []History `json:"history"`
}
