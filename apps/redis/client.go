package redis

import (
	"context"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/redis/go-redis/v9"
)

var (
	// Client is nil when Redis is not configured or unreachable
	Client redis.UniversalClient
	ctx    = context.Background()
)

// RedisConfig mirrors the REDIS.* settings
type RedisConfig struct {
	Addresses        []string      `json:"addresses"`
	Password         string        `json:"password"`
	DB               int           `json:"db"`
	MaxRetries       int           `json:"max_retries"`
	DialTimeout      time.Duration `json:"dial_timeout"`
	ReadTimeout      time.Duration `json:"read_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout"`
	PoolSize         int           `json:"pool_size"`
	MinIdleConns     int           `json:"min_idle_conns"`
	RouteByLatency   bool          `json:"route_by_latency"`
	RouteRandomly    bool          `json:"route_randomly"`
	MasterName       string        `json:"master_name"`
	SentinelPassword string        `json:"sentinel_password"`
}

// Initialize connects the universal client. A missing or unreachable server
// leaves Client nil; callers treat that as "no cache, no rate limit".
//
//	REDIS:
//	  ADDRESS: "localhost:6379"          # single node
//	  ADDRESSES: "r1:6379,r2:6379"       # cluster
//	  MASTER_NAME: "mymaster"            # sentinel mode, ADDRESSES are sentinels
func Initialize() error {
	config := loadConfig()

	if len(config.Addresses) == 0 {
		log.Warning("Redis not configured, login rate limiting and roster caching are disabled")
		return nil
	}

	opts := &redis.UniversalOptions{
		Addrs:            config.Addresses,
		Password:         config.Password,
		DB:               config.DB,
		MaxRetries:       config.MaxRetries,
		DialTimeout:      config.DialTimeout,
		ReadTimeout:      config.ReadTimeout,
		WriteTimeout:     config.WriteTimeout,
		PoolSize:         config.PoolSize,
		MinIdleConns:     config.MinIdleConns,
		RouteByLatency:   config.RouteByLatency,
		RouteRandomly:    config.RouteRandomly,
		MasterName:       config.MasterName,
		SentinelPassword: config.SentinelPassword,
	}

	Client = redis.NewUniversalClient(opts)

	testCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Client.Ping(testCtx).Err(); err != nil {
		log.Warning("Redis connection failed: %v, continuing without it", err)
		Client = nil
		return nil
	}

	switch {
	case config.MasterName != "":
		log.Info("Redis Sentinel connected (master: %s)", config.MasterName)
	case len(config.Addresses) == 1:
		log.Info("Redis connected (single node: %s)", config.Addresses[0])
	default:
		log.Info("Redis Cluster connected (%d nodes)", len(config.Addresses))
	}

	return nil
}

// loadConfig reads Redis configuration from settings
func loadConfig() RedisConfig {
	config := RedisConfig{
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	}

	config.Addresses = splitAddresses(settings.Get("REDIS.ADDRESSES").String())
	if len(config.Addresses) == 0 {
		config.Addresses = splitAddresses(settings.Get("REDIS.ADDRESS").String())
	}

	config.Password = settings.Get("REDIS.PASSWORD").String()

	// only used for non-cluster mode
	config.DB = settings.Get("REDIS.DB").Int()

	if poolSize := settings.Get("REDIS.POOL_SIZE").Int(); poolSize > 0 {
		config.PoolSize = poolSize
	}
	if minIdle := settings.Get("REDIS.MIN_IDLE_CONNS").Int(); minIdle > 0 {
		config.MinIdleConns = minIdle
	}
	if maxRetries := settings.Get("REDIS.MAX_RETRIES").Int(); maxRetries > 0 {
		config.MaxRetries = maxRetries
	}

	config.RouteByLatency = settings.Get("REDIS.ROUTE_BY_LATENCY").Bool()
	config.RouteRandomly = settings.Get("REDIS.ROUTE_RANDOMLY").Bool()

	config.MasterName = settings.Get("REDIS.MASTER_NAME").String()
	config.SentinelPassword = settings.Get("REDIS.SENTINEL_PASSWORD").String()

	return config
}

// splitAddresses accepts "host:port" or a comma separated list of them
func splitAddresses(raw string) []string {
	var out []string
	if raw == "" || raw == "[]" {
		return out
	}
	for _, addr := range strings.Split(raw, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// IsAvailable returns true if Redis client is connected
func IsAvailable() bool {
	if Client == nil {
		return false
	}
	return Client.Ping(ctx).Err() == nil
}

// Close gracefully closes the Redis connection
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}
