package auth

import (
	"github.com/getevo/evo/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/iesreza/hrdesk-backend/lib/response"
)

// CurrentEmployee returns the authenticated employee of request
func CurrentEmployee(request *evo.Request) (*Employee, error) {
	if request.User() == nil || request.User().Anonymous() {
		return nil, response.ErrUnauthorized
	}
	employee, ok := request.User().Interface().(*Employee)
	if !ok || employee.Anonymous() {
		return nil, response.ErrUnauthorized
	}
	return employee, nil
}

// CurrentIdentity returns the workflow identity of request
func CurrentIdentity(request *evo.Request) (Identity, error) {
	employee, err := CurrentEmployee(request)
	if err != nil {
		return Identity{}, err
	}
	return employee.Identity(), nil
}

// RequireAuth rejects anonymous requests
func RequireAuth(request *evo.Request) error {
	if _, err := CurrentEmployee(request); err != nil {
		return err
	}
	return request.Next()
}

// RequireRole builds a middleware accepting only the listed roles
func RequireRole(roles ...Role) func(request *evo.Request) error {
	return func(request *evo.Request) error {
		employee, err := CurrentEmployee(request)
		if err != nil {
			return err
		}
		for _, role := range roles {
			if employee.Role == role {
				return request.Next()
			}
		}
		return response.ErrForbidden
	}
}

// FiberEmployee authenticates a request served by a raw fiber handler
func FiberEmployee(c *fiber.Ctx) (*Employee, error) {
	var header = c.Get("Authorization")
	if header == "" {
		header = c.Cookies("Authorization")
	}
	employee, err := EmployeeFromToken(header)
	if err != nil {
		return nil, response.ErrUnauthorized
	}
	return employee, nil
}
