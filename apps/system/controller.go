package system

import (
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/db"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/hrdesk-backend/apps/models"
	"github.com/iesreza/hrdesk-backend/apps/mrf"
	appnats "github.com/iesreza/hrdesk-backend/apps/nats"
	"github.com/iesreza/hrdesk-backend/apps/redis"
	"github.com/iesreza/hrdesk-backend/lib/response"
)

type Controller struct {
}

type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	NATS     string `json:"nats"`
	Redis    string `json:"redis"`
	Uptime   int64  `json:"uptime"`
}

func state(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}

// HealthHandler reports degraded when NATS or Redis is down; both are
// optional so only a database failure marks the service down.
func (c Controller) HealthHandler(request *evo.Request) any {
	health := Health{Status: "ok", Uptime: int64(time.Since(StartupTime).Seconds())}

	dbUp := db.Exec("SELECT 1").Error == nil
	health.Database = state(dbUp)
	health.NATS = state(appnats.IsConnected())
	health.Redis = state(redis.IsAvailable())

	switch {
	case !dbUp:
		log.Error("health check: database unreachable")
		return response.Error(response.ErrDatabaseError.WithMessage("database unreachable"))
	case health.NATS == "down" || health.Redis == "down":
		health.Status = "degraded"
	}
	return response.OK(health)
}

func (c Controller) UptimeHandler(request *evo.Request) any {
	return response.OK(map[string]any{
		"uptime": int64(time.Since(StartupTime).Seconds()),
	})
}

func (c Controller) GetDepartments(request *evo.Request) any {
	var departments []models.Department
	if err := db.Where("status = ?", models.StatusActive).Order("name").Find(&departments).Error; err != nil {
		return response.Error(response.ErrDatabaseError)
	}
	return response.List(departments, len(departments))
}

// GetDesignations accepts ?department_id= to narrow the list
func (c Controller) GetDesignations(request *evo.Request) any {
	var designations []models.Designation
	query := db.Where("status = ?", models.StatusActive)
	if id := request.Query("department_id").Int(); id > 0 {
		query = query.Where("department_id = ?", id)
	}
	if err := query.Order("name").Find(&designations).Error; err != nil {
		return response.Error(response.ErrDatabaseError)
	}
	return response.List(designations, len(designations))
}

func (c Controller) GetRequisitionStatuses(request *evo.Request) any {
	return response.List(mrf.Statuses, len(mrf.Statuses))
}

func (c Controller) GetRateLimitSettings(request *evo.Request) any {
	endpoints := redis.GetRateLimitSettings()
	return response.OKWithMeta(endpoints, &response.Meta{
		Count: len(endpoints),
		Extra: map[string]any{"redis": state(redis.IsAvailable())},
	})
}
