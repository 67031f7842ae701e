package realtime

import (
	"context"
	"time"
)

// Event names clients listen for. They carry no authoritative data: a client
// re-fetches the matching list when one arrives.
const (
	EventRequisitionRefresh  = "manpower-requisition-refresh"
	EventCaseEntryRefresh    = "case-entry-refresh"
	EventSystemUpdateRefresh = "system-update-refresh"
)

// Event is a fire-and-forget push. An empty Group reaches every client.
type Event struct {
	Name  string         `json:"event"`
	Group string         `json:"group,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	At    time.Time      `json:"at"`
}

// Broadcaster is passed to every component that needs to push events
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event) error
}

// EmployeeGroup is the group a single employee's connections join
func EmployeeGroup(employeeID string) string {
	return "emp:" + employeeID
}
