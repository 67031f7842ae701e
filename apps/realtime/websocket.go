package realtime

import (
	"encoding/json"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/iesreza/hrdesk-backend/apps/auth"
)

const pingInterval = 30 * time.Second

// groupsFor lists the groups a connection joins besides the implicit "all"
func groupsFor(employee *auth.Employee) []string {
	groups := []string{string(employee.Role), EmployeeGroup(employee.EmployeeID)}
	if employee.Department != "" {
		groups = append(groups, employee.Department)
	}
	return groups
}

// authenticate runs before the upgrade; browsers cannot set headers on a
// websocket handshake, so the access token travels in the query string.
func authenticate(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	employee, err := auth.EmployeeFromToken("Bearer " + c.Query("token"))
	if err != nil {
		return fiber.ErrUnauthorized
	}
	c.Locals("employee", employee)
	return c.Next()
}

func (h *Hub) serve(conn *websocket.Conn) {
	employee, ok := conn.Locals("employee").(*auth.Employee)
	if !ok {
		_ = conn.Close()
		return
	}

	client := h.Join(uuid.NewString(), employee.EmployeeID, groupsFor(employee)...)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case event, open := <-client.Events:
				if !open {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// clients never send anything meaningful; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warning("realtime websocket error for %s: %v", employee.EmployeeID, err)
			}
			break
		}
	}
	h.Leave(client.ID)
	<-done
}
