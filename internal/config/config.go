package config

import (
	"os"
	"strconv"
	"time"
)

// Redis logical databases. Separate namespaces keep keyspace-notification
// subscriptions scoped: the observer only cares about expiries in the
// rooms DB.
const (
	MatchmakingDB  = 0
	EventQueueDB   = 1
	ConfirmationDB = 2
	RoomsDB        = 3
)

type Config struct {
	Port string

	RedisHost      string
	RedisPort      string
	RedisStreamKey string
	RedisGroup     string

	FrontEndURL   string
	HostURL       string
	APIGatewayURL string
	RegistryPath  string
	HeartbeatPath string

	QuestionPoolURL    string
	QuestionHistoryURL string
	GatewayWebsocketURL string

	JWTSecret string

	// Timeouts are configuration so that tests can shrink them.
	MatchWaitTimeout   time.Duration // waiter block-pop cap
	ConfirmWaitTimeout time.Duration // confirmation block-pop cap
	SupervisorDelay    time.Duration // confirmation supervisor wake-up
	HeartbeatTTL       time.Duration // room liveness budget
	GraceHold          time.Duration // vacated room recovery window
	GracePollInterval  time.Duration
	LockTTL            time.Duration // safety fallback on distributed locks
	HeartbeatPeriod    time.Duration // registry heartbeat cadence
	RoomPollInterval   time.Duration // create_room poller cadence
}

// Load reads configuration from the environment, falling back to the
// defaults the deployment manifests assume.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisStreamKey: getEnv("REDIS_STREAM_KEY", "expired_ttl"),
		RedisGroup:     getEnv("REDIS_GROUP", "collab"),

		FrontEndURL:   getEnv("FRONT_END_URL", "http://localhost:5173"),
		HostURL:       getEnv("HOST_URL", "http://localhost:8080"),
		APIGatewayURL: getEnv("APIGATEWAY_URL", "http://localhost:8000"),
		RegistryPath:  getEnv("REGISTRY_PATH", "/registry/register-openapi"),
		HeartbeatPath: getEnv("HEARTBEAT_PATH", "/registry/heartbeat"),

		QuestionPoolURL:     getEnv("QUESTION_SERVICE_POOL_URL", "http://localhost:8001/pool"),
		QuestionHistoryURL:  getEnv("QUESTION_SERVICE_HISTORY_URL", "http://localhost:8002"),
		GatewayWebsocketURL: getEnv("GATEWAY_WEBSOCKET_URL", "ws://localhost:8000/ws"),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret"),

		MatchWaitTimeout:   getDuration("MATCH_WAIT_TIMEOUT", 180*time.Second),
		ConfirmWaitTimeout: getDuration("CONFIRM_WAIT_TIMEOUT", 15*time.Second),
		SupervisorDelay:    getDuration("SUPERVISOR_DELAY", 12*time.Second),
		HeartbeatTTL:       getDuration("HEARTBEAT_TTL", 120*time.Second),
		GraceHold:          getDuration("GRACE_HOLD", 300*time.Second),
		GracePollInterval:  getDuration("GRACE_POLL_INTERVAL", time.Second),
		LockTTL:            getDuration("LOCK_TTL", 60*time.Second),
		HeartbeatPeriod:    getDuration("HEARTBEAT_PERIOD", 30*time.Second),
		RoomPollInterval:   getDuration("ROOM_POLL_INTERVAL", time.Second),
	}
}

// RedisAddr joins host and port for the go-redis client.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
