package mrf

import (
	"context"
	"testing"

	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/iesreza/hrdesk-backend/lib/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListVisibility(t *testing.T) {
	f := newFixture(t)
	mine := f.create(t, f.requestor, false)
	myDraft := f.create(t, f.requestor, true)
	theirs := f.create(t, f.other, false)
	hrDraft := f.create(t, f.hr, true)

	cases := []struct {
		name   string
		viewer string
		filter ListFilter
		want   []uint
	}{
		{"requestor sees own including drafts", "requestor", ListFilter{Status: "all", EmployeeID: "all"}, []uint{myDraft.ID, mine.ID}},
		{"functional head sees the team without drafts", "head", ListFilter{Status: "all", EmployeeID: "all"}, []uint{mine.ID}},
		{"hr sees submitted work and own drafts", "hr", ListFilter{Status: "all", EmployeeID: "all"}, []uint{hrDraft.ID, theirs.ID, mine.ID}},
		{"director does not see hr drafts", "director", ListFilter{Status: "all", EmployeeID: "all"}, []uint{theirs.ID, mine.ID}},
		{"status filter", "hr", ListFilter{Status: "pending", EmployeeID: "all"}, []uint{theirs.ID, mine.ID}},
		{"employee filter", "director", ListFilter{Status: "all", EmployeeID: "11"}, []uint{theirs.ID}},
		{"employee filter cannot widen scope", "requestor", ListFilter{Status: "all", EmployeeID: "11"}, nil},
	}
	viewers := map[string]auth.Identity{
		"requestor": f.requestor,
		"head":      f.head,
		"hr":        f.hr,
		"director":  f.director,
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ListQuery(f.conn, viewers[tt.viewer], tt.filter)
			require.NoError(t, err)
			var rows []Requisition
			require.NoError(t, q.Find(&rows).Error)
			got := make([]uint, 0, len(rows))
			for _, r := range rows {
				got = append(got, r.ID)
			}
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ListQuery(f.conn, f.hr, ListFilter{Status: "escalated"})
	assert.ErrorIs(t, err, response.ErrInvalidStatus)
}

func TestGetRespectsVisibility(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, true)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, r.ID, f.hr)
	assert.ErrorIs(t, err, response.ErrRequisitionNotFound, "drafts stay private")

	detail, err := f.svc.Get(ctx, r.ID, f.requestor)
	require.NoError(t, err)
	assert.Nil(t, detail.Query)
	assert.Len(t, detail.History, 1)

	_, err = f.svc.GetQuery(ctx, r.ID, f.requestor)
	assert.ErrorIs(t, err, response.ErrQueryNotFound)
}

func TestManagerCounts(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, f.requestor, false)
	f.create(t, f.requestor, false)
	f.create(t, f.other, false)
	f.move(t, a.ID, StatusApprove, f.director, "ok")
	ctx := context.Background()

	counts, err := f.svc.ManagerCounts(ctx, "300", f.head)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Total)
	assert.Equal(t, int64(1), counts.ByStatus[StatusApprove])
	assert.Equal(t, int64(1), counts.ByStatus[StatusPending])

	counts, err = f.svc.ManagerCounts(ctx, "300", f.hr)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Total)

	_, err = f.svc.ManagerCounts(ctx, "300", f.requestor)
	assert.ErrorIs(t, err, response.ErrForbidden)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, f.requestor, false)
	f.create(t, f.other, false)
	f.move(t, a.ID, StatusHRApprove, f.hr, "go")
	ctx := context.Background()

	_, _, err := f.svc.Export(ctx, f.requestor, ExportFilter{})
	assert.ErrorIs(t, err, response.ErrForbidden)

	file, name, err := f.svc.Export(ctx, f.hr, ExportFilter{Status: StatusHRApprove})
	require.NoError(t, err)
	defer file.Close()
	assert.Contains(t, name, "requisitions_")

	rows, err := file.GetRows("Requisitions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "MRF-000001", rows[1][1])
}
