package mongo

import "errors"

// DefaultDatabase is used when Config.Database is empty.
const DefaultDatabase = "mediakit"

var (
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrEmptyConnectionURL     = errors.New("empty mongo connection url, set MONGODB_URL")
	ErrHealthcheckFailed      = errors.New("mongo healthcheck failed")
)
