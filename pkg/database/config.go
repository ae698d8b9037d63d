package database

import "time"

// Config holds SQLite connection settings. The store applies WAL mode and a
// busy timeout on open, so concurrent readers coexist with the single writer.
type Config struct {
	DatabasePath    string
	MaxConnections  int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// DefaultConfig returns settings suitable for a single-center deployment.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    "./classboard.db",
		MaxConnections:  10,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
		MigrationsPath:  "./migrations",
	}
}
