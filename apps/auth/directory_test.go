package auth

import (
	"testing"

	"github.com/iesreza/hrdesk-backend/lib/database/dbtest"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestFunctionalHeadOf(t *testing.T) {
	conn := dbtest.Open(t, &Employee{})
	require.NoError(t, conn.Create(&[]Employee{
		{EmployeeID: "300", Name: "Manager", Email: "m@example.com", Department: "Support", Role: RoleFunctionalHead, Status: EmployeeStatusActive},
		{EmployeeID: "301", Name: "Dept Head", Email: "h@example.com", Department: "Sales", Role: RoleFunctionalHead, Status: EmployeeStatusActive},
		{EmployeeID: "10", Name: "Reporter", Email: "r@example.com", Department: "Support", ReportingManager: ptr("300"), Role: RoleRequestor},
		{EmployeeID: "11", Name: "Orphan", Email: "o@example.com", Department: "Sales", Role: RoleRequestor},
		{EmployeeID: "12", Name: "Dangling", Email: "d@example.com", Department: "Sales", ReportingManager: ptr("999"), Role: RoleRequestor},
		{EmployeeID: "13", Name: "Nobody", Email: "n@example.com", Department: "Finance", Role: RoleRequestor},
	}).Error)

	tests := []struct {
		creator string
		want    string
	}{
		{"10", "300"},
		{"11", "301"},
		{"12", "301"},
	}
	for _, tt := range tests {
		creator, err := FindEmployee(conn, tt.creator)
		require.NoError(t, err)
		head, err := FunctionalHeadOf(conn, creator)
		require.NoError(t, err)
		assert.Equal(t, tt.want, head.EmployeeID, "creator %s", tt.creator)
	}

	creator, err := FindEmployee(conn, "13")
	require.NoError(t, err)
	_, err = FunctionalHeadOf(conn, creator)
	appErr, ok := response.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, response.ErrorCodeEmployeeNotFound, appErr.Code)

	_, err = FindEmployee(conn, "does-not-exist")
	assert.ErrorIs(t, err, response.ErrEmployeeNotFound)
}

func TestCanAnswerQueries(t *testing.T) {
	creator := &Employee{EmployeeID: "10", Department: "Support", ReportingManager: ptr("300")}

	tests := []struct {
		name  string
		actor Identity
		want  bool
	}{
		{"reporting manager", Identity{EmployeeID: "300", Role: RoleRequestor, Department: "Other"}, true},
		{"functional head of the department", Identity{EmployeeID: "301", Role: RoleFunctionalHead, Department: "Support"}, true},
		{"functional head elsewhere", Identity{EmployeeID: "302", Role: RoleFunctionalHead, Department: "Sales"}, false},
		{"hr", Identity{EmployeeID: "1722", Role: RoleHR, Department: "Support"}, false},
		{"creator", Identity{EmployeeID: "10", Role: RoleRequestor, Department: "Support"}, false},
		{"anonymous", Identity{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAnswerQueries(tt.actor, creator, "Support"))
		})
	}
}
