package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "istishara"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Advisory slot-lock tuning. TTL bounds how long a stalled claim can
	// hold a slot; wait timeout bounds how long a contender polls before
	// surfacing BUSY.
	DefaultSlotLockTTL           = 10 * time.Second
	DefaultSlotLockWaitTimeout   = 2 * time.Second
	DefaultSlotLockRetryInterval = 50 * time.Millisecond

	DefaultMinSlotDuration = 15 * time.Minute
	DefaultMaxSlotDuration = 8 * time.Hour

	DefaultKafkaBrokers          = ""
	DefaultNotificationsTopic    = "notifications"
	DefaultNotificationsDLQTopic = "notifications.dlq"

	DefaultPaginationLimit = 100
)
