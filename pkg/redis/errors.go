package redis

import "errors"

var (
	// ErrEmptyConnectionURL is returned by Connect when REDIS_URL is unset.
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL")
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	// ErrRedisNotReady wraps the last ping error once retries run out.
	ErrRedisNotReady     = errors.New("redis did not answer ping within the retry budget")
	ErrHealthcheckFailed = errors.New("redis healthcheck failed")
)
