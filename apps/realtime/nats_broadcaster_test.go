package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback stands in for the server: whatever is published comes back
// through the subscription handler.
type loopback struct {
	handler  nats.MsgHandler
	subjects []string
	failNext bool
}

func (l *loopback) publish(subject string, data []byte) error {
	if l.failNext {
		l.failNext = false
		return errors.New("connection closed")
	}
	l.subjects = append(l.subjects, subject)
	l.handler(&nats.Msg{Subject: subject, Data: data})
	return nil
}

func (l *loopback) subscribe(_ string, handler nats.MsgHandler) (*nats.Subscription, error) {
	l.handler = handler
	return &nats.Subscription{}, nil
}

func TestNATSBroadcasterRoundTrip(t *testing.T) {
	hub := NewHub(4)
	client := hub.Join("c", "55", EmployeeGroup("55"))
	server := &loopback{}
	b := &NATSBroadcaster{hub: hub, publish: server.publish, subscribe: server.subscribe}
	require.NoError(t, b.Start())

	ctx := context.Background()
	require.NoError(t, b.Broadcast(ctx, Event{Name: EventRequisitionRefresh}))
	require.NoError(t, b.Broadcast(ctx, Event{Name: EventSystemUpdateRefresh, Group: EmployeeGroup("55")}))

	assert.Equal(t, []string{"hr.events.all", "hr.events.group.emp:55"}, server.subjects)
	events := drain(client)
	require.Len(t, events, 2)
	assert.False(t, events[0].At.IsZero())
}

func TestNATSBroadcasterFallsBackToLocal(t *testing.T) {
	hub := NewHub(4)
	client := hub.Join("c", "1")

	// never started: local mode
	b := NewNATSBroadcaster(hub)
	require.NoError(t, b.Broadcast(context.Background(), Event{Name: EventCaseEntryRefresh}))
	assert.Len(t, drain(client), 1)

	// started, but the publish fails
	server := &loopback{}
	b = &NATSBroadcaster{hub: hub, publish: server.publish, subscribe: server.subscribe}
	require.NoError(t, b.Start())
	server.failNext = true
	require.NoError(t, b.Broadcast(context.Background(), Event{Name: EventCaseEntryRefresh}))
	assert.Len(t, drain(client), 1)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "hr.events.all", Subject(""))
	assert.Equal(t, "hr.events.group.Client_Support", Subject("Client Support"))
	assert.Equal(t, "hr.events.group.a_b_c", Subject("a.b>c"))
}
