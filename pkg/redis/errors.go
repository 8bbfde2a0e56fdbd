package redis

import "errors"

var (
	// ErrEmptyConnectionURL is returned by Connect when REDIS_URL is unset.
	ErrEmptyConnectionURL = errors.New("redis.errors.empty_connection_url")
	// ErrFailedToParseRedisConnString wraps an invalid REDIS_URL.
	ErrFailedToParseRedisConnString = errors.New("redis.errors.invalid_connection_url")
	// ErrRedisNotReady means the server did not answer a ping within the
	// retry budget, so the queue storage cannot start.
	ErrRedisNotReady = errors.New("redis.errors.not_ready")
	// ErrHealthcheckFailed is reported by the worker's readiness check.
	ErrHealthcheckFailed = errors.New("redis.errors.healthcheck_failed")
)
