package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iesreza/hrdesk-backend/apps/realtime"
	"github.com/iesreza/hrdesk-backend/lib/database"
	"github.com/iesreza/hrdesk-backend/lib/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingBroadcaster struct {
	events []realtime.Event
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, event realtime.Event) error {
	b.events = append(b.events, event)
	return nil
}

func newTestDispatcher(t *testing.T, mailer Mailer) (*Dispatcher, *gorm.DB, *recordingBroadcaster, *time.Time) {
	t.Helper()
	conn := dbtest.Open(t, &OutboxEvent{})
	broadcaster := &recordingBroadcaster{}
	d := NewDispatcher(database.From(conn), mailer, broadcaster, nil, DispatcherConfig{MaxAttempts: 3})
	// a little ahead so that freshly enqueued rows are due
	clock := time.Now().Add(time.Second)
	d.now = func() time.Time { return clock }
	return d, conn, broadcaster, &clock
}

func TestRenderTemplates(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render(TemplateHRApproved, "MRF approved", map[string]any{
		"RequestorName": "Sam <script>",
		"JobTitle":      "Support Engineer",
		"MRFNumber":     "MRF-000042",
		"Comments":      "",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "MRF-000042")
	assert.Contains(t, out, "Support Engineer")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<blockquote>")
	assert.NotContains(t, out, "\n  ")

	out, err = r.Render(TemplateQueryRaised, "Query", map[string]any{
		"RequisitionID": "7",
		"JobTitle":      "Analyst",
		"RaisedBy":      "Director",
		"RequestorName": "Sam",
		"Question":      "Why two hires?",
		"ReplyLink":     "https://hr.example.com/reply?token=abc",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Why two hires?")
	assert.Contains(t, out, "https://hr.example.com/reply?token=abc")

	_, err = r.Render("no_such_template", "x", nil)
	assert.Error(t, err)
}

func TestComposeMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{FromEmail: "hr@example.com", FromName: "HR Desk"})
	raw, err := m.compose(Message{To: []string{"a@example.com", "b@example.com"}, Subject: "Hello", HTML: "<p>hi</p>"})
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, "Subject: Hello")
	assert.Contains(t, text, "a@example.com")
	assert.Contains(t, text, "b@example.com")
	assert.Contains(t, text, "text/html")
	assert.Contains(t, text, "Message-Id:")
	assert.Contains(t, text, "<p>hi</p>")
}

func TestEnqueueEmailSkipsEmptyRecipients(t *testing.T) {
	conn := dbtest.Open(t, &OutboxEvent{})

	require.NoError(t, EnqueueEmail(conn, EmailPayload{Template: TemplateSubmitted, To: []string{"", ""}}))
	var count int64
	require.NoError(t, conn.Model(&OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, EnqueueEmail(conn, EmailPayload{Template: TemplateSubmitted, To: []string{"", "ops@example.com"}}))
	var event OutboxEvent
	require.NoError(t, conn.First(&event).Error)
	assert.Equal(t, KindEmail, event.Kind)
	assert.Equal(t, StatusPending, event.Status)

	var payload EmailPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, []string{"ops@example.com"}, payload.To)
}

func TestEnqueueRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t, &OutboxEvent{})
	boom := errors.New("boom")

	err := conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, EnqueueBroadcast(tx, realtime.Event{Name: realtime.EventRequisitionRefresh}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDispatchDeliversEmailAndBroadcast(t *testing.T) {
	mailer := &recordingMailer{}
	d, conn, broadcaster, _ := newTestDispatcher(t, mailer)

	require.NoError(t, EnqueueEmail(conn, EmailPayload{
		Template: TemplateSubmitted,
		To:       []string{"ops@example.com"},
		Subject:  "New MRF",
		Vars:     map[string]any{"RequisitionID": "1", "JobTitle": "Engineer", "Department": "IT", "RequestorName": "Sam"},
	}))
	require.NoError(t, EnqueueBroadcast(conn, realtime.Event{Name: realtime.EventRequisitionRefresh}))

	sent, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "New MRF", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].HTML, "Engineer")
	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, realtime.EventRequisitionRefresh, broadcaster.events[0].Name)

	// nothing left
	sent, err = d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	var events []OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	for _, e := range events {
		assert.Equal(t, StatusSent, e.Status)
		assert.Equal(t, 1, e.Attempts)
		assert.NotNil(t, e.SentAt)
	}
}

func TestDispatchRetriesWithBackoffThenFails(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	d, conn, _, clock := newTestDispatcher(t, mailer)

	require.NoError(t, EnqueueEmail(conn, EmailPayload{
		Template: TemplateHRApproved,
		To:       []string{"sam@example.com"},
		Subject:  "Approved",
		Vars:     map[string]any{"RequestorName": "Sam", "JobTitle": "Engineer", "MRFNumber": "MRF-000001"},
	}))

	_, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)

	var event OutboxEvent
	require.NoError(t, conn.First(&event).Error)
	assert.Equal(t, StatusPending, event.Status)
	assert.Equal(t, 1, event.Attempts)
	assert.Equal(t, "smtp down", event.LastError)
	assert.WithinDuration(t, clock.Add(time.Second), event.NextAttemptAt, time.Millisecond)

	// not yet due
	_, err = d.DispatchOnce(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.First(&event).Error)
	assert.Equal(t, 1, event.Attempts)

	for i := 0; i < 2; i++ {
		*clock = clock.Add(MaxBackoff)
		_, err = d.DispatchOnce(context.Background())
		require.NoError(t, err)
	}
	require.NoError(t, conn.First(&event).Error)
	assert.Equal(t, StatusFailed, event.Status)
	assert.Equal(t, 3, event.Attempts)

	// failed events are never retried
	mailer.err = nil
	*clock = clock.Add(time.Hour)
	sent, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, mailer.sent)
}

// inspectingMailer reads the outbox table while a send is in flight
type inspectingMailer struct {
	conn  *gorm.DB
	seen  []OutboxEvent
	err   error
	calls int
}

func (m *inspectingMailer) Send(ctx context.Context, _ Message) error {
	m.calls++
	// dbtest has a single connection, so this only succeeds when no
	// transaction is holding it
	check, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	m.err = m.conn.WithContext(check).Find(&m.seen).Error
	return nil
}

func TestDispatchSendsOutsideTransaction(t *testing.T) {
	mailer := &inspectingMailer{}
	d, conn, _, clock := newTestDispatcher(t, mailer)
	mailer.conn = conn

	require.NoError(t, EnqueueEmail(conn, EmailPayload{
		Template: TemplateHRApproved,
		To:       []string{"sam@example.com"},
		Subject:  "Approved",
		Vars:     map[string]any{"RequestorName": "Sam", "JobTitle": "Engineer", "MRFNumber": "MRF-000001"},
	}))

	sent, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, mailer.calls)

	require.NoError(t, mailer.err)
	require.Len(t, mailer.seen, 1)
	assert.Equal(t, StatusPending, mailer.seen[0].Status, "result recorded after delivery")
	assert.WithinDuration(t, clock.Add(d.config.Lease), mailer.seen[0].NextAttemptAt, time.Millisecond, "claimed for the lease")

	var event OutboxEvent
	require.NoError(t, conn.First(&event).Error)
	assert.Equal(t, StatusSent, event.Status)
}

func TestClaimedEventsWaitForLease(t *testing.T) {
	mailer := &recordingMailer{}
	d, conn, _, clock := newTestDispatcher(t, mailer)
	require.NoError(t, EnqueueBroadcast(conn, realtime.Event{Name: realtime.EventSystemUpdateRefresh}))

	// a pass that claimed the row and never recorded a result
	claimed, err := d.claim()
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	sent, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	*clock = clock.Add(d.config.Lease + time.Second)
	sent, err = d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestDispatchSkipsWhileLockHeldElsewhere(t *testing.T) {
	mailer := &recordingMailer{}
	d, conn, broadcaster, _ := newTestDispatcher(t, mailer)
	require.NoError(t, EnqueueBroadcast(conn, realtime.Event{Name: realtime.EventCaseEntryRefresh}))

	require.True(t, d.locker.TryLock(lockName))
	sent, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, broadcaster.events)

	d.locker.Unlock(lockName)
	sent, err = d.DispatchOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(0))
	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, 16*time.Second, backoff(5))
	assert.Equal(t, MaxBackoff, backoff(7))
	assert.Equal(t, MaxBackoff, backoff(30))
}

func TestWakeDoesNotBlock(t *testing.T) {
	d := NewDispatcher(nil, LogMailer{}, &recordingBroadcaster{}, nil, DispatcherConfig{})
	for i := 0; i < 5; i++ {
		d.Wake()
	}
	assert.Len(t, d.wake, 1)
}
