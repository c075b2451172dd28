package database

// Backend names accepted by Open
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
)

// DefaultBucket is the BoltDB bucket holding credential keys
const DefaultBucket = "face_enroll"
