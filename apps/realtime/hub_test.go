package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/iesreza/hrdesk-backend/apps/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) []Event {
	var out []Event
	for {
		select {
		case e := <-c.Events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestHubGroupScoping(t *testing.T) {
	hub := NewHub(4)
	hr := hub.Join("c1", "1722", "hr", EmployeeGroup("1722"), "HR")
	sales := hub.Join("c2", "55", "requestor", EmployeeGroup("55"), "Sales")

	hub.Deliver(Event{Name: EventRequisitionRefresh})
	hub.Deliver(Event{Name: EventSystemUpdateRefresh, Group: EmployeeGroup("55")})
	hub.Deliver(Event{Name: EventCaseEntryRefresh, Group: "HR"})

	hrEvents := drain(hr)
	salesEvents := drain(sales)
	require.Len(t, hrEvents, 2)
	require.Len(t, salesEvents, 2)
	assert.Equal(t, EventCaseEntryRefresh, hrEvents[1].Name)
	assert.Equal(t, EventSystemUpdateRefresh, salesEvents[1].Name)
}

func TestHubFullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(1)
	slow := hub.Join("slow", "1")
	fast := hub.Join("fast", "2")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Deliver(Event{Name: EventRequisitionRefresh})
			drain(fast)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Deliver blocked on a full client buffer")
	}
	assert.Len(t, drain(slow), 1)
}

func TestHubLeaveClosesChannel(t *testing.T) {
	hub := NewHub(1)
	client := hub.Join("c", "1")
	assert.Equal(t, 1, hub.Count())

	hub.Leave("c")
	hub.Leave("c")
	_, open := <-client.Events
	assert.False(t, open)
	assert.Equal(t, 0, hub.Count())
	assert.Zero(t, hub.Deliver(Event{Name: "x"}))
}

func TestHubAsBroadcaster(t *testing.T) {
	hub := NewHub(1)
	client := hub.Join("c", "1")
	var b Broadcaster = hub
	require.NoError(t, b.Broadcast(context.Background(), Event{Name: EventRequisitionRefresh}))
	assert.Len(t, drain(client), 1)
}

func TestGroupsFor(t *testing.T) {
	employee := &auth.Employee{EmployeeID: "300", Department: "Support", Role: auth.RoleFunctionalHead}
	assert.ElementsMatch(t, []string{"functional_head", "emp:300", "Support"}, groupsFor(employee))

	employee.Department = ""
	assert.ElementsMatch(t, []string{"functional_head", "emp:300"}, groupsFor(employee))
}
