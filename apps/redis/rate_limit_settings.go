package redis

import (
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
)

// RateLimitEndpoint is a named limit configurable from config.yml
type RateLimitEndpoint struct {
	Key         string `json:"key"`
	Setting     string `json:"-"`
	Description string `json:"description"`
	MaxRequests int    `json:"max_requests"`
	WindowSecs  int    `json:"window_seconds"`
}

const (
	LimitAuthLogin     = "auth_login"
	LimitMRFReplyLink  = "mrf_reply_link"
	LimitStorageUpload = "storage_upload"
)

var DefaultEndpoints = []RateLimitEndpoint{
	{
		Key:         LimitAuthLogin,
		Setting:     "AUTH.LOGIN_RATE_LIMIT",
		Description: "Password login attempts per client",
		MaxRequests: 10,
		WindowSecs:  60,
	},
	{
		Key:         LimitMRFReplyLink,
		Setting:     "MRF.REPLY_LINK_RATE_LIMIT",
		Description: "Query replies submitted through an emailed link",
		MaxRequests: 20,
		WindowSecs:  60,
	},
	{
		Key:         LimitStorageUpload,
		Setting:     "STORAGE.UPLOAD_RATE_LIMIT",
		Description: "Multipart requisition submissions",
		MaxRequests: 30,
		WindowSecs:  60,
	},
}

// LoadRateLimitSettings reads <SETTING> (requests per window) and
// <SETTING>_WINDOW for every endpoint. APP.RATE_LIMIT=false disables all of them.
func LoadRateLimitSettings() {
	enabled := settings.Get("APP.RATE_LIMIT", true).Bool()
	for _, endpoint := range DefaultEndpoints {
		config := RateLimitConfig{
			MaxRequests: endpoint.MaxRequests,
			Window:      time.Duration(endpoint.WindowSecs) * time.Second,
			Enabled:     enabled,
		}
		if n := settings.Get(endpoint.Setting).Int(); n > 0 {
			config.MaxRequests = n
		}
		if window, err := settings.Get(endpoint.Setting+"_WINDOW", "").Duration(); err == nil && window > 0 {
			config.Window = window
		}
		SetRateLimitConfig(endpoint.Key, config)
	}
	log.Info("rate limits loaded (enabled=%v)", enabled)
}

// GetRateLimitSettings reports the effective limits, used by the health endpoint
func GetRateLimitSettings() []RateLimitEndpoint {
	result := make([]RateLimitEndpoint, len(DefaultEndpoints))
	copy(result, DefaultEndpoints)
	for i, endpoint := range result {
		config := GetRateLimitConfig(endpoint.Key)
		result[i].MaxRequests = config.MaxRequests
		result[i].WindowSecs = int(config.Window.Seconds())
	}
	return result
}
