package caseentry

import (
	"context"
	"testing"
	"time"

	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/apps/notify"
	"github.com/iesreza/hrdesk-backend/lib/database"
	"github.com/iesreza/hrdesk-backend/lib/database/dbtest"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func str(s string) *string { return &s }

func setup(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t, &auth.Employee{}, &CaseEntry{}, &notify.OutboxEvent{})
	require.NoError(t, conn.Create(&[]auth.Employee{
		{EmployeeID: "10", Name: "Agent", Email: "agent@example.com", Department: "Support", Role: auth.RoleRequestor, Status: auth.EmployeeStatusActive},
		{EmployeeID: "11", Name: "Agent Two", Email: "agent2@example.com", Department: "Support", Role: auth.RoleRequestor, Status: auth.EmployeeStatusActive},
	}).Error)
	return NewService(database.From(conn), nil), conn
}

var (
	agent = auth.Identity{EmployeeID: "10", Role: auth.RoleRequestor}
	peer  = auth.Identity{EmployeeID: "11", Role: auth.RoleRequestor}
	hr    = auth.Identity{EmployeeID: "1722", Role: auth.RoleHR}
)

func input(ticket string, day time.Time) Input {
	return Input{TicketNumber: str(ticket), EmployeeID: str("10"), EntryDate: &day, Status: str("Open"), Category: str("Billing")}
}

func TestCreateAndList(t *testing.T) {
	svc, conn := setup(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := svc.Create(ctx, agent, input("T-1", day))
	require.NoError(t, err)
	second, err := svc.Create(ctx, agent, input("T-2", day.AddDate(0, 0, 1)))
	require.NoError(t, err)
	third, err := svc.Create(ctx, peer, input("T-3", day))
	require.NoError(t, err)

	var entries []CaseEntry
	require.NoError(t, ListQuery(conn, ListFilter{}).Find(&entries).Error)
	require.Len(t, entries, 3)
	assert.Equal(t, []uint{second.ID, third.ID, first.ID}, []uint{entries[0].ID, entries[1].ID, entries[2].ID})

	var broadcasts int64
	require.NoError(t, conn.Model(&notify.OutboxEvent{}).Where("kind = ?", notify.KindBroadcast).Count(&broadcasts).Error)
	assert.Equal(t, int64(3), broadcasts)
}

func TestCreateRejections(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	day := time.Now()

	_, err := svc.Create(ctx, agent, input("T-1", day))
	require.NoError(t, err)

	_, err = svc.Create(ctx, agent, input("T-1", day))
	assert.ErrorIs(t, err, response.ErrConflict)

	unknown := input("T-2", day)
	unknown.EmployeeID = str("999")
	_, err = svc.Create(ctx, agent, unknown)
	assert.ErrorIs(t, err, response.ErrInvalidInput)

	missing := input("", day)
	_, err = svc.Create(ctx, agent, missing)
	assert.ErrorIs(t, err, response.ErrMissingRequired)

	noDate := input("T-3", day)
	noDate.EntryDate = nil
	_, err = svc.Create(ctx, agent, noDate)
	assert.ErrorIs(t, err, response.ErrMissingRequired)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, conn := setup(t)
	ctx := context.Background()
	entry, err := svc.Create(ctx, agent, input("T-1", time.Now()))
	require.NoError(t, err)
	other, err := svc.Create(ctx, agent, input("T-2", time.Now()))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, entry.ID, agent, Input{Status: str("Closed")})
	require.NoError(t, err)
	assert.Equal(t, "Closed", updated.Status)
	assert.Equal(t, "T-1", updated.TicketNumber)

	_, err = svc.Update(ctx, entry.ID, peer, Input{Status: str("Reopened")})
	assert.ErrorIs(t, err, response.ErrForbidden)

	_, err = svc.Update(ctx, other.ID, hr, Input{TicketNumber: str("T-1")})
	assert.ErrorIs(t, err, response.ErrConflict)

	require.NoError(t, svc.Delete(ctx, entry.ID, agent))
	_, err = svc.Get(ctx, entry.ID)
	assert.ErrorIs(t, err, response.ErrNotFound)

	var entries []CaseEntry
	require.NoError(t, ListQuery(conn, ListFilter{}).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, other.ID, entries[0].ID)
}

func TestListFilters(t *testing.T) {
	svc, conn := setup(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, agent, input("ABC-1", time.Now()))
	require.NoError(t, err)
	closed := input("XYZ-2", time.Now())
	closed.Status = str("Closed")
	closed.EmployeeID = str("11")
	_, err = svc.Create(ctx, agent, closed)
	require.NoError(t, err)

	count := func(filter ListFilter) int64 {
		var n int64
		require.NoError(t, ListQuery(conn, filter).Count(&n).Error)
		return n
	}
	assert.Equal(t, int64(1), count(ListFilter{Status: "Closed"}))
	assert.Equal(t, int64(1), count(ListFilter{EmployeeID: "10"}))
	assert.Equal(t, int64(1), count(ListFilter{Search: "xyz"}))
	assert.Equal(t, int64(2), count(ListFilter{}))
}
