// Package gateway provides remote implementations of the persistence
// gateway port, for deployments where the durable store is a hosted
// database rather than the embedded SQLite file.
package gateway

import (
	"fmt"

	"resumekit/internal/domain"
)

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverMongoDB  Driver = "mongodb"
)

// Config describes a remote database connection. The password is supplied
// separately so configs can be logged and stored safely.
type Config struct {
	Driver   Driver `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"` // postgres: disable|require|verify-full; mysql: "require" enables TLS
}

// New creates a PersistenceGateway for the configured driver.
func New(cfg *Config, password string) (domain.PersistenceGateway, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return newPostgresGateway(cfg, password)
	case DriverMySQL:
		return newMySQLGateway(cfg, password)
	case DriverMongoDB:
		return newMongoGateway(cfg, password)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}
