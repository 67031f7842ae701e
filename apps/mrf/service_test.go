package mrf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
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

type fixture struct {
	svc       *Service
	conn      *gorm.DB
	requestor auth.Identity
	head      auth.Identity
	director  auth.Identity
	hr        auth.Identity
	other     auth.Identity
}

type countingWaker struct {
	mu    sync.Mutex
	count int
}

func (w *countingWaker) Wake() {
	w.mu.Lock()
	w.count++
	w.mu.Unlock()
}

func ptr[T any](v T) *T { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	previous := auth.JWTSecret
	auth.JWTSecret = []byte("test-secret")
	t.Cleanup(func() { auth.JWTSecret = previous })

	conn := dbtest.Open(t, &auth.Employee{}, &Requisition{}, &Query{}, &Sequence{}, &History{}, &notify.OutboxEvent{})
	employees := []auth.Employee{
		{EmployeeID: "10", Name: "Riley Requestor", Email: "riley@example.com", Department: "Support", ReportingManager: ptr("300"), Role: auth.RoleRequestor, Status: auth.EmployeeStatusActive},
		{EmployeeID: "11", Name: "Other Requestor", Email: "other@example.com", Department: "Sales", Role: auth.RoleRequestor, Status: auth.EmployeeStatusActive},
		{EmployeeID: "300", Name: "Frankie Head", Email: "frankie@example.com", Department: "Support", Role: auth.RoleFunctionalHead, Status: auth.EmployeeStatusActive},
		{EmployeeID: "1400", Name: "Dana Director", Email: "dana@example.com", Department: "Management", Role: auth.RoleDirector, Status: auth.EmployeeStatusActive},
		{EmployeeID: "1722", Name: "Harper HR", Email: "harper@example.com", Department: "HR", Role: auth.RoleHR, Status: auth.EmployeeStatusActive},
	}
	require.NoError(t, conn.Create(&employees).Error)

	config := DefaultConfig()
	config.OperationsMailbox = "ops@example.com"
	config.DirectorMailbox = "director@example.com"
	config.BaseURL = "https://hr.example.com"

	return &fixture{
		svc:       NewService(database.From(conn), &countingWaker{}, config),
		conn:      conn,
		requestor: employees[0].Identity(),
		other:     employees[1].Identity(),
		head:      employees[2].Identity(),
		director:  employees[3].Identity(),
		hr:        employees[4].Identity(),
	}
}

func validFields() Fields {
	return Fields{
		Department:       ptr("Support"),
		EmploymentStatus: ptr("Permanent"),
		Designation:      ptr("Support Engineer"),
		ResourceCount:    ptr(2),
		RequirementType:  ptr(RequirementNew),
		Justification:    ptr("Queue growth"),
		ExperienceMin:    ptr(1),
		ExperienceMax:    ptr(3),
		CTCMin:           ptr(3.5),
		CTCMax:           ptr(5.0),
	}
}

func (f *fixture) create(t *testing.T, actor auth.Identity, draft bool) *Requisition {
	t.Helper()
	r, err := f.svc.Create(context.Background(), actor, validFields(), draft)
	require.NoError(t, err)
	return r
}

func (f *fixture) move(t *testing.T, id uint, to Status, actor auth.Identity, comments string) *Requisition {
	t.Helper()
	r, err := f.svc.Transition(context.Background(), TransitionInput{RequisitionID: id, Target: to, Actor: actor, Comments: comments})
	require.NoError(t, err)
	return r
}

func (f *fixture) queries(t *testing.T, id uint) []Query {
	t.Helper()
	var rows []Query
	require.NoError(t, f.conn.Where("query_manpower_requisition_pid = ?", id).Find(&rows).Error)
	return rows
}

func (f *fixture) emails(t *testing.T) []notify.EmailPayload {
	t.Helper()
	var events []notify.OutboxEvent
	require.NoError(t, f.conn.Where("kind = ?", notify.KindEmail).Order("created_at ASC").Find(&events).Error)
	payloads := make([]notify.EmailPayload, 0, len(events))
	for _, e := range events {
		var p notify.EmailPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		payloads = append(payloads, p)
	}
	return payloads
}

func (f *fixture) resetOutbox(t *testing.T) {
	t.Helper()
	require.NoError(t, f.conn.Where("1 = 1").Delete(&notify.OutboxEvent{}).Error)
}

func (f *fixture) countBroadcasts(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&notify.OutboxEvent{}).Where("kind = ?", notify.KindBroadcast).Count(&n).Error)
	return n
}

func TestApprovalScenario(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, true)
	assert.Equal(t, StatusDraft, r.Status)

	r = f.move(t, r.ID, StatusPending, f.requestor, "")
	assert.Equal(t, StatusPending, r.Status)
	assert.Empty(t, r.DirectorStatus)
	assert.Empty(t, r.HRStatus)

	r = f.move(t, r.ID, StatusApprove, f.director, "ok")
	assert.Equal(t, StatusApprove, r.Status)
	assert.Equal(t, StatusApprove, r.DirectorStatus)
	assert.Equal(t, "ok", r.DirectorComments)
	assert.Nil(t, r.MRFNumber)

	r = f.move(t, r.ID, StatusHRApprove, f.hr, "go")
	assert.Equal(t, StatusHRApprove, r.Status)
	assert.Equal(t, StatusHRApprove, r.HRStatus)
	assert.Equal(t, "go", r.HRComments)
	require.NotNil(t, r.MRFNumber)
	assert.Equal(t, "MRF-000001", *r.MRFNumber)

	r = f.move(t, r.ID, StatusHRApprove, f.hr, "again")
	require.NotNil(t, r.MRFNumber)
	assert.Equal(t, "MRF-000001", *r.MRFNumber)

	var history []History
	require.NoError(t, f.conn.Where("requisition_id = ?", r.ID).Order("id ASC").Find(&history).Error)
	require.Len(t, history, 5)
	assert.Equal(t, StatusDraft, history[1].FromStatus)
	assert.Equal(t, StatusPending, history[1].ToStatus)
	assert.Equal(t, "1400", history[2].ActorID)
}

func TestQueryScenario(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)

	_, err := f.svc.Transition(context.Background(), TransitionInput{
		RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: f.hr, Question: "Need more detail",
	})
	require.NoError(t, err)
	rows := f.queries(t, r.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "Need more detail", rows[0].HRQuestion)
	assert.Empty(t, rows[0].DirectorQuestion)

	r, err = f.svc.Reply(context.Background(), r.ID, f.head, "See attached")
	require.NoError(t, err)
	assert.Equal(t, StatusFHReplied, r.Status)
	assert.Equal(t, StatusFHReplied, r.HRStatus)
	assert.Empty(t, r.DirectorStatus)
	rows = f.queries(t, r.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "See attached", rows[0].HRAnswer)

	f.move(t, r.ID, StatusHRApprove, f.hr, "go")
	assert.Empty(t, f.queries(t, r.ID))
}

func TestRaiseQueryTwiceOverwritesOwnColumn(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)

	for _, step := range []struct {
		actor    auth.Identity
		question string
	}{
		{f.director, "Why two people?"},
		{f.hr, "Budget code?"},
		{f.hr, "Which budget code?"},
	} {
		_, err := f.svc.Transition(context.Background(), TransitionInput{
			RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: step.actor, Comments: step.question,
		})
		require.NoError(t, err)
	}

	rows := f.queries(t, r.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "Which budget code?", rows[0].HRQuestion)
	assert.Equal(t, "Why two people?", rows[0].DirectorQuestion)
}

func TestApproveClearsEveryQuery(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)
	_, err := f.svc.Transition(context.Background(), TransitionInput{
		RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: f.director, Question: "Scope?",
	})
	require.NoError(t, err)
	require.Len(t, f.queries(t, r.ID), 1)

	f.move(t, r.ID, StatusApprove, f.director, "fine")
	assert.Empty(t, f.queries(t, r.ID))
}

func TestReplyPrefersDirectorQuestion(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)
	for _, actor := range []auth.Identity{f.hr, f.director} {
		_, err := f.svc.Transition(context.Background(), TransitionInput{
			RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: actor, Question: "question from " + string(actor.Role),
		})
		require.NoError(t, err)
	}

	r, err := f.svc.Reply(context.Background(), r.ID, f.head, "answer")
	require.NoError(t, err)
	assert.Equal(t, StatusFHReplied, r.DirectorStatus)
	rows := f.queries(t, r.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "answer", rows[0].DirectorAnswer)
	assert.Empty(t, rows[0].HRAnswer)
}

func TestReplyRejections(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)
	ctx := context.Background()

	_, err := f.svc.Reply(ctx, r.ID, f.head, "   ")
	assert.ErrorIs(t, err, response.ErrMissingRequired)

	_, err = f.svc.Reply(ctx, r.ID, f.head, "no query yet")
	assert.ErrorIs(t, err, response.ErrInvalidTransition)

	_, err = f.svc.Transition(ctx, TransitionInput{RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: f.hr, Question: "?"})
	require.NoError(t, err)

	_, err = f.svc.Reply(ctx, r.ID, f.hr, "hr cannot answer")
	assert.ErrorIs(t, err, response.ErrForbidden)
	_, err = f.svc.Reply(ctx, r.ID, f.other, "not my report")
	assert.ErrorIs(t, err, response.ErrForbidden)
}

func TestReplyByLink(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)
	_, err := f.svc.Transition(context.Background(), TransitionInput{RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: f.hr, Question: "Budget?"})
	require.NoError(t, err)

	token, err := auth.SignReplyLink(r.ID, "300")
	require.NoError(t, err)
	r, err = f.svc.ReplyByLink(context.Background(), token, "Approved budget")
	require.NoError(t, err)
	assert.Equal(t, StatusFHReplied, r.Status)

	_, err = f.svc.ReplyByLink(context.Background(), "forged", "x")
	assert.ErrorIs(t, err, response.ErrInvalidToken)
}

func TestTransitionValidation(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)
	ctx := context.Background()

	tests := []struct {
		name string
		in   TransitionInput
		want error
	}{
		{"missing id", TransitionInput{Target: StatusApprove, Actor: f.director, Comments: "ok"}, response.ErrMissingRequired},
		{"missing status", TransitionInput{RequisitionID: r.ID, Actor: f.director}, response.ErrMissingRequired},
		{"missing user", TransitionInput{RequisitionID: r.ID, Target: StatusApprove, Comments: "ok"}, response.ErrMissingRequired},
		{"unknown status", TransitionInput{RequisitionID: r.ID, Target: "Escalate", Actor: f.director}, response.ErrInvalidStatus},
		{"comments required", TransitionInput{RequisitionID: r.ID, Target: StatusApprove, Actor: f.director}, response.ErrMissingRequired},
		{"question required", TransitionInput{RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: f.hr}, response.ErrMissingRequired},
		{"withdraw has its own route", TransitionInput{RequisitionID: r.ID, Target: StatusWithdraw, Actor: f.requestor}, response.ErrInvalidTransition},
		{"director cannot hr approve", TransitionInput{RequisitionID: r.ID, Target: StatusHRApprove, Actor: f.director, Comments: "x"}, response.ErrInvalidTransition},
		{"requestor cannot approve", TransitionInput{RequisitionID: r.ID, Target: StatusApprove, Actor: f.requestor, Comments: "x"}, response.ErrInvalidTransition},
		{"stranger cannot act", TransitionInput{RequisitionID: r.ID, Target: StatusOnHold, Actor: f.other}, response.ErrForbidden},
		{"missing requisition", TransitionInput{RequisitionID: 9999, Target: StatusApprove, Actor: f.director, Comments: "ok"}, response.ErrRequisitionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Transition(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	reloaded, err := f.svc.Get(ctx, r.ID, f.hr)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, reloaded.Status)
	assert.Len(t, reloaded.History, 1)
}

func TestMissingRequisitionWritesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Transition(context.Background(), TransitionInput{RequisitionID: 42, Target: StatusHRApprove, Actor: f.hr, Comments: "go"})
	assert.ErrorIs(t, err, response.ErrRequisitionNotFound)

	for _, model := range []any{&Requisition{}, &History{}, &notify.OutboxEvent{}, &Sequence{}} {
		var n int64
		require.NoError(t, f.conn.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T", model)
	}
}

func TestTerminalStatuses(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)
	f.move(t, r.ID, StatusReject, f.director, "no budget")

	_, err := f.svc.Transition(context.Background(), TransitionInput{RequisitionID: r.ID, Target: StatusHRApprove, Actor: f.hr, Comments: "go"})
	assert.ErrorIs(t, err, response.ErrInvalidTransition)
}

func TestReplyAfterRejectIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, f.requestor, false)
	_, err := f.svc.Transition(ctx, TransitionInput{RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: f.hr, Question: "Budget?"})
	require.NoError(t, err)
	f.move(t, r.ID, StatusReject, f.hr, "no budget")
	assert.Empty(t, f.queries(t, r.ID))

	_, err = f.svc.Reply(ctx, r.ID, f.head, "See attached")
	assert.ErrorIs(t, err, response.ErrInvalidTransition)
	_, err = f.svc.Transition(ctx, TransitionInput{RequisitionID: r.ID, Target: StatusHRApprove, Actor: f.hr, Comments: "go"})
	assert.ErrorIs(t, err, response.ErrInvalidTransition)

	reloaded, err := f.svc.Get(ctx, r.ID, f.hr)
	require.NoError(t, err)
	assert.Equal(t, StatusReject, reloaded.Status)
	assert.Nil(t, reloaded.MRFNumber)
}

func TestReplyWithoutQueryRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, f.requestor, false)
	_, err := f.svc.Transition(ctx, TransitionInput{RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: f.hr, Question: "Budget?"})
	require.NoError(t, err)
	require.NoError(t, f.conn.Where("query_manpower_requisition_pid = ?", r.ID).Delete(&Query{}).Error)

	_, err = f.svc.Reply(ctx, r.ID, f.head, "late answer")
	assert.ErrorIs(t, err, response.ErrQueryNotFound)
}

func TestFailedApprovalRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, f.requestor, false)
	f.move(t, first.ID, StatusHRApprove, f.hr, "go")

	r := f.create(t, f.requestor, false)
	_, err := f.svc.Transition(ctx, TransitionInput{RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: f.hr, Question: "Budget?"})
	require.NoError(t, err)
	f.resetOutbox(t)

	boom := errors.New("history unavailable")
	require.NoError(t, f.conn.Callback().Create().Before("gorm:create").Register("test:fail_history", func(tx *gorm.DB) {
		if tx.Statement.Table == "requisition_history" {
			_ = tx.AddError(boom)
		}
	}))

	_, err = f.svc.Transition(ctx, TransitionInput{RequisitionID: r.ID, Target: StatusHRApprove, Actor: f.hr, Comments: "go"})
	require.ErrorIs(t, err, response.ErrDatabaseError)

	var stored Requisition
	require.NoError(t, f.conn.First(&stored, r.ID).Error)
	assert.Nil(t, stored.MRFNumber)
	assert.Equal(t, StatusRaiseQuery, stored.Status)
	assert.Equal(t, StatusRaiseQuery, stored.HRStatus)

	var seq Sequence
	require.NoError(t, f.conn.Where("name = ?", sequenceName).First(&seq).Error)
	assert.EqualValues(t, 1, seq.LastValue)

	assert.Len(t, f.queries(t, r.ID), 1)
	var events int64
	require.NoError(t, f.conn.Model(&notify.OutboxEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

func TestDeletedRequisitionIsNotFound(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)
	require.NoError(t, f.svc.Delete(context.Background(), r.ID, f.requestor))

	_, err := f.svc.Transition(context.Background(), TransitionInput{RequisitionID: r.ID, Target: StatusApprove, Actor: f.director, Comments: "ok"})
	assert.ErrorIs(t, err, response.ErrRequisitionNotFound)
	_, err = f.svc.Get(context.Background(), r.ID, f.hr)
	assert.ErrorIs(t, err, response.ErrRequisitionNotFound)
}

func TestWithdrawWindow(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	old := f.create(t, f.requestor, false)
	require.NoError(t, f.conn.Model(&Requisition{}).Where("id = ?", old.ID).
		UpdateColumn("created_at", now.AddDate(0, 0, -8)).Error)
	_, err := f.svc.Withdraw(context.Background(), old.ID, f.requestor)
	assert.ErrorIs(t, err, response.ErrWithdrawExpired)

	edge := f.create(t, f.requestor, false)
	require.NoError(t, f.conn.Model(&Requisition{}).Where("id = ?", edge.ID).
		UpdateColumn("created_at", now.AddDate(0, 0, -7)).Error)
	_, err = f.svc.Withdraw(context.Background(), edge.ID, f.requestor)
	assert.NoError(t, err)

	today := f.create(t, f.requestor, false)
	require.NoError(t, f.conn.Model(&Requisition{}).Where("id = ?", today.ID).
		UpdateColumn("created_at", now.Add(-time.Hour)).Error)
	r, err := f.svc.Withdraw(context.Background(), today.ID, f.requestor)
	require.NoError(t, err)
	assert.Equal(t, StatusWithdraw, r.Status)

	_, err = f.svc.Withdraw(context.Background(), today.ID, f.requestor)
	assert.ErrorIs(t, err, response.ErrInvalidTransition)

	other := f.create(t, f.requestor, false)
	_, err = f.svc.Withdraw(context.Background(), other.ID, f.hr)
	assert.ErrorIs(t, err, response.ErrForbidden)
}

func TestConcurrentMintingIsUnique(t *testing.T) {
	f := newFixture(t)
	const n = 12
	ids := make([]uint, n)
	for i := range ids {
		ids[i] = f.create(t, f.requestor, false).ID
	}

	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			r, err := f.svc.Transition(context.Background(), TransitionInput{RequisitionID: id, Target: StatusHRApprove, Actor: f.hr, Comments: "go"})
			if assert.NoError(t, err) && assert.NotNil(t, r.MRFNumber) {
				numbers[i] = *r.MRFNumber
			}
		}(i, id)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, number := range numbers {
		assert.False(t, seen[number], "duplicate %s", number)
		seen[number] = true
	}
	for i := 1; i <= n; i++ {
		assert.True(t, seen[fmt.Sprintf("MRF-%06d", i)], "missing number %d", i)
	}
}

func TestMintingContinuesFromIssuedNumbers(t *testing.T) {
	f := newFixture(t)
	legacy := Requisition{
		Department: "Support", Designation: "Agent", RequirementType: RequirementReplacement, ResourceCount: 1,
		Status: StatusHRApprove, MRFNumber: ptr("MRF-000041"), CreatedBy: "10", IsDelete: RecordActive,
	}
	require.NoError(t, f.conn.Create(&legacy).Error)

	r := f.create(t, f.requestor, false)
	r = f.move(t, r.ID, StatusHRApprove, f.hr, "go")
	require.NotNil(t, r.MRFNumber)
	assert.Equal(t, "MRF-000042", *r.MRFNumber)
}

func TestNumberFormat(t *testing.T) {
	format := NumberFormat{Prefix: "MRF-", Digits: 6}
	assert.Equal(t, "MRF-000007", format.Format(7))
	assert.Equal(t, "MRF-1234567", format.Format(1234567))

	v, ok := format.Parse("MRF-000120")
	assert.True(t, ok)
	assert.Equal(t, int64(120), v)
	for _, bad := range []string{"", "MRF-", "MRF-12a", "REQ-000001"} {
		_, ok := format.Parse(bad)
		assert.False(t, ok, bad)
	}
}

func TestSubmissionNotifications(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, true)
	assert.Empty(t, f.emails(t), "drafts are silent")
	f.resetOutbox(t)

	f.move(t, r.ID, StatusPending, f.requestor, "")
	emails := f.emails(t)
	require.Len(t, emails, 2)
	assert.ElementsMatch(t, []string{"ops@example.com", "director@example.com"}, []string{emails[0].To[0], emails[1].To[0]})
	assert.Equal(t, notify.TemplateSubmitted, emails[0].Template)
	assert.Equal(t, int64(1), f.countBroadcasts(t))

	// a privileged creator submitting sends no review emails
	f.resetOutbox(t)
	own := f.create(t, f.hr, true)
	f.move(t, own.ID, StatusPending, f.hr, "")
	assert.Empty(t, f.emails(t))
}

func TestApprovalNotifications(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)

	f.resetOutbox(t)
	f.move(t, r.ID, StatusApprove, f.director, "ok")
	emails := f.emails(t)
	require.Len(t, emails, 1)
	assert.Equal(t, notify.TemplateDirectorApproved, emails[0].Template)
	assert.Equal(t, []string{"ops@example.com"}, emails[0].To)

	f.resetOutbox(t)
	f.move(t, r.ID, StatusHRApprove, f.hr, "go")
	emails = f.emails(t)
	require.Len(t, emails, 1)
	assert.Equal(t, notify.TemplateHRApproved, emails[0].Template)
	assert.Equal(t, []string{"riley@example.com"}, emails[0].To)
	assert.Equal(t, "MRF-000001", emails[0].Vars["MRFNumber"])
	assert.Equal(t, int64(1), f.countBroadcasts(t))

	// approving again neither re-mints nor re-sends
	f.resetOutbox(t)
	f.move(t, r.ID, StatusHRApprove, f.hr, "go")
	assert.Empty(t, f.emails(t))
	assert.Equal(t, int64(1), f.countBroadcasts(t))
}

func TestQueryNotifications(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)

	f.resetOutbox(t)
	_, err := f.svc.Transition(context.Background(), TransitionInput{RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: f.hr, Question: "Budget?"})
	require.NoError(t, err)
	emails := f.emails(t)
	require.Len(t, emails, 1)
	assert.Equal(t, []string{"frankie@example.com"}, emails[0].To)
	link, _ := emails[0].Vars["ReplyLink"].(string)
	assert.Contains(t, link, "https://hr.example.com/mrf/reply?token=")

	f.resetOutbox(t)
	_, err = f.svc.Reply(context.Background(), r.ID, f.head, "Yes")
	require.NoError(t, err)
	emails = f.emails(t)
	require.Len(t, emails, 1)
	assert.Equal(t, notify.TemplateQueryReplied, emails[0].Template)
	assert.Equal(t, []string{"ops@example.com"}, emails[0].To)
}

func TestQueryWithoutFunctionalHeadStillCommits(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.other, false)

	f.resetOutbox(t)
	_, err := f.svc.Transition(context.Background(), TransitionInput{RequisitionID: r.ID, Target: StatusRaiseQuery, Actor: f.hr, Question: "Budget?"})
	require.NoError(t, err)
	assert.Empty(t, f.emails(t))
	assert.Len(t, f.queries(t, r.ID), 1)
}

func TestUpdateOnlyWhileWithCreator(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, f.requestor, false)
	ctx := context.Background()

	updated, err := f.svc.Update(ctx, r.ID, f.requestor, Fields{ResourceCount: ptr(4), Justification: ptr("More volume")})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.ResourceCount)
	assert.Equal(t, "Support Engineer", updated.Designation)

	_, err = f.svc.Update(ctx, r.ID, f.other, Fields{ResourceCount: ptr(1)})
	assert.ErrorIs(t, err, response.ErrForbidden)

	_, err = f.svc.Update(ctx, r.ID, f.requestor, Fields{ExperienceMin: ptr(9)})
	assert.ErrorIs(t, err, response.ErrInvalidInput)

	f.move(t, r.ID, StatusApprove, f.director, "ok")
	_, err = f.svc.Update(ctx, r.ID, f.requestor, Fields{ResourceCount: ptr(1)})
	assert.ErrorIs(t, err, response.ErrInvalidTransition)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.requestor, Fields{Designation: ptr("Agent")}, false)
	assert.ErrorIs(t, err, response.ErrMissingRequired)

	fields := validFields()
	fields.RequirementType = ptr("Internship")
	_, err = f.svc.Create(ctx, f.requestor, fields, false)
	assert.ErrorIs(t, err, response.ErrInvalidInput)

	draft, err := f.svc.Create(ctx, f.requestor, Fields{Designation: ptr("Agent")}, true)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, TransitionInput{RequisitionID: draft.ID, Target: StatusPending, Actor: f.requestor})
	assert.ErrorIs(t, err, response.ErrMissingRequired, "an incomplete draft cannot be submitted")
}
