package config

import "time"

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultMaxConns is the database pool size.
	DefaultMaxConns = 10

	// DefaultRedisURL is empty; Redis is optional.
	// Without it policies are cached per process and there is no sweep lease or stream.
	DefaultRedisURL = ""

	// DefaultNotifyStream is the Redis stream approval events are published to.
	DefaultNotifyStream = "taskgate:approval-events"

	// DefaultNotifyStreamMaxLen caps the stream length (approximate trimming).
	DefaultNotifyStreamMaxLen = 100000

	// DefaultAutoApproveInterval is how often the auto-approval sweep runs.
	DefaultAutoApproveInterval = time.Hour

	// DefaultEscalationInterval is how often the escalation sweep runs.
	DefaultEscalationInterval = 24 * time.Hour

	// DefaultSweepWorkers bounds the tasks a sweep processes concurrently.
	DefaultSweepWorkers = 4

	// DefaultPolicyCacheTTL is how long a cached policy stays valid.
	DefaultPolicyCacheTTL = 5 * time.Minute

	// DefaultLocalPolicyCacheTTL applies to the in-process cache used without Redis.
	// Replicas do not see each other's invalidations, so it stays short.
	DefaultLocalPolicyCacheTTL = 30 * time.Second

	// DefaultShutdownTimeout bounds graceful HTTP shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)
