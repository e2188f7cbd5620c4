package redis

import "errors"

var (
	// ErrEmptyConnectionURL is returned when REDIS_URL is set to an empty string.
	ErrEmptyConnectionURL = errors.New("redis: connection url is empty")
	// ErrFailedToParseRedisConnString wraps redis.ParseURL failures.
	ErrFailedToParseRedisConnString = errors.New("redis: invalid connection url")
	// ErrRedisNotReady is returned when no PING succeeded before the attempts or ConnectTimeout ran out.
	ErrRedisNotReady = errors.New("redis: server not ready")
	// ErrHealthcheckFailed is returned by the Healthcheck probe.
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
