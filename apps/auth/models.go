package auth

import (
	"strings"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/generic"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/hlandau/passlib"
)

// Role is the workflow capability of an employee. It is resolved once when
// the bearer token is accepted and carried with the identity from then on.
type Role string

const (
	RoleDirector       Role = "director"
	RoleHR             Role = "hr"
	RoleFunctionalHead Role = "functional_head"
	RoleRequestor      Role = "requestor"
)

// Roles lists the accepted role values
var Roles = []Role{RoleDirector, RoleHR, RoleFunctionalHead, RoleRequestor}

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Employee status constants
const (
	EmployeeStatusActive   = "active"
	EmployeeStatusInactive = "inactive"
)

type Employee struct {
	RowID            uint      `gorm:"column:id;primaryKey" json:"id"`
	EmployeeID       string    `gorm:"column:employee_id;size:32;uniqueIndex;not null" json:"employee_id"`
	Name             string    `gorm:"column:name;size:255;not null" json:"name"`
	Email            string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	Position         string    `gorm:"column:position;size:128" json:"position"`
	Department       string    `gorm:"column:department;size:128;index" json:"department"`
	ReportingManager *string   `gorm:"column:reporting_manager;size:32;index" json:"reporting_manager"`
	Role             Role      `gorm:"column:role;size:32;not null;default:requestor" json:"role"`
	Status           string    `gorm:"column:status;size:16;not null;default:active" json:"status"`
	PasswordHash     *string   `gorm:"column:password_hash;size:255" json:"-"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Employee) TableName() string {
	return "employees"
}

type LoginHistory struct {
	ID         uint      `gorm:"column:id;primaryKey" json:"id"`
	EmployeeID string    `gorm:"column:employee_id;size:32;not null;index" json:"employee_id"`
	IPAddress  string    `gorm:"column:ip_address;size:45;not null" json:"ip_address"`
	UserAgent  string    `gorm:"column:user_agent;size:500" json:"user_agent"`
	LoginAt    time.Time `gorm:"column:login_at;autoCreateTime" json:"login_at"`
	Success    bool      `gorm:"column:success;not null" json:"success"`
	Reason     string    `gorm:"column:reason;size:255" json:"reason"`
}

func (LoginHistory) TableName() string {
	return "employee_login_history"
}

// Identity is the authenticated caller as the workflow sees it.
type Identity struct {
	EmployeeID string `json:"emp_id"`
	Name       string `json:"emp_name"`
	Position   string `json:"emp_pos"`
	Department string `json:"emp_dept"`
	Role       Role   `json:"role"`
}

func (i Identity) IsDirector() bool       { return i.Role == RoleDirector }
func (i Identity) IsHR() bool             { return i.Role == RoleHR }
func (i Identity) IsFunctionalHead() bool { return i.Role == RoleFunctionalHead }

// IsPrivileged reports whether the caller reviews requisitions (Director or HR).
func (i Identity) IsPrivileged() bool {
	return i.IsDirector() || i.IsHR()
}

func (i Identity) Anonymous() bool {
	return i.EmployeeID == ""
}

// Identity returns the workflow view of the employee
func (e *Employee) Identity() Identity {
	return Identity{
		EmployeeID: e.EmployeeID,
		Name:       e.Name,
		Position:   e.Position,
		Department: e.Department,
		Role:       e.Role,
	}
}

func (e *Employee) Active() bool {
	return e.Status == "" || e.Status == EmployeeStatusActive
}

// ManagerID returns the reporting manager's employee id, or "" when unset
func (e *Employee) ManagerID() string {
	if e.ReportingManager == nil {
		return ""
	}
	return strings.TrimSpace(*e.ReportingManager)
}

// Evo UserInterface implementation
func (e *Employee) GetFirstName() string {
	first, _, _ := strings.Cut(e.Name, " ")
	return first
}

func (e *Employee) GetLastName() string {
	_, last, _ := strings.Cut(e.Name, " ")
	return last
}

func (e *Employee) GetFullName() string {
	return e.Name
}

func (e *Employee) GetEmail() string {
	return e.Email
}

func (e *Employee) UUID() string {
	return e.EmployeeID
}

func (e *Employee) ID() uint64 {
	return uint64(e.RowID)
}

func (e *Employee) Interface() interface{} {
	return e
}

func (e *Employee) Anonymous() bool {
	return e.EmployeeID == ""
}

// HasPermission treats the permission string as a role name; HR holds all of them.
func (e *Employee) HasPermission(permission string) bool {
	return e.Role == RoleHR || string(e.Role) == permission
}

func (e *Employee) Attributes() evo.Attributes {
	var m evo.Attributes
	generic.Parse(e).Cast(&m)
	return m
}

// FromRequest extracts the employee from the bearer token in request
func (e *Employee) FromRequest(request *evo.Request) evo.UserInterface {
	employee, err := EmployeeFromToken(GetAuthToken(request))
	if err != nil {
		log.Debug("bearer rejected: %v", err)
		return &Employee{}
	}
	return employee
}

// SetPassword hashes and stores password
func (e *Employee) SetPassword(password string) error {
	hash, err := passlib.Hash(password)
	if err != nil {
		return err
	}
	e.PasswordHash = &hash
	return nil
}

func (e *Employee) VerifyPassword(password string) bool {
	if e.PasswordHash == nil {
		return false
	}
	_, err := passlib.Verify(password, *e.PasswordHash)
	return err == nil
}

// RecordLogin writes a login history row
func (e *Employee) RecordLogin(request *evo.Request, success bool, reason string) {
	ip := request.IP()
	if ip == "" {
		ip = "unknown"
	}

	userAgent := request.Header("User-Agent")
	if userAgent == "" {
		userAgent = "unknown"
	}

	var employeeID = e.EmployeeID
	if employeeID == "" {
		employeeID = "unknown"
	}

	history := LoginHistory{
		EmployeeID: employeeID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		Success:    success,
		Reason:     reason,
	}

	if err := db.Create(&history).Error; err != nil {
		log.Warning("failed to record login for %s: %v", employeeID, err)
	}
}

// GetAuthToken returns the bearer credential from the Authorization header,
// falling back to the Authorization cookie.
func GetAuthToken(request *evo.Request) string {
	var token = request.Header("Authorization")
	if token == "" {
		token = request.Cookie("Authorization")
	}
	return token
}
