package gateway

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// buildMySQLDSN constructs a MySQL DSN from a Config.
func buildMySQLDSN(cfg *Config, password string) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	// Format: user:password@tcp(host:port)/dbname?parseTime=true
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.Username, password, cfg.Host, port, cfg.Database,
	)
	if cfg.SSLMode == "require" {
		dsn += "&tls=true"
	}
	return dsn
}

func newMySQLGateway(cfg *Config, password string) (*sqlGateway, error) {
	db, err := openSQL("mysql", buildMySQLDSN(cfg, password))
	if err != nil {
		return nil, err
	}
	g := &sqlGateway{
		driverName: "mysql",
		db:         db,
		upsertLink: `INSERT INTO document_blocks (document_id, block_id, position) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE position = VALUES(position)`,
	}
	g.reorder = g.shiftRange
	return g, nil
}
