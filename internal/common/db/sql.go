package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Config holds the connection pool settings.
type Config struct {
	Driver             string        `yaml:"driver"`
	DSN                string        `yaml:"dsn"`
	MaxOpenConnections int           `yaml:"maxOpenConnections"`
	MaxIdleConnections int           `yaml:"maxIdleConnections"`
	ConnMaxLifetime    time.Duration `yaml:"connMaxLifetime"`
	ConnMaxIdleTime    time.Duration `yaml:"connMaxIdleTime"`
}

// DefaultConfig returns the default pool configuration for PostgreSQL.
func DefaultConfig() *Config {
	return &Config{
		Driver:             DriverPostgres,
		MaxOpenConnections: 25,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    5 * time.Minute,
		ConnMaxIdleTime:    10 * time.Minute,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Driver == "" {
		c.Driver = def.Driver
	}
	if c.MaxOpenConnections == 0 {
		c.MaxOpenConnections = def.MaxOpenConnections
	}
	if c.MaxIdleConnections == 0 {
		c.MaxIdleConnections = def.MaxIdleConnections
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = def.ConnMaxIdleTime
	}
}

func (c *Config) validate() error {
	if c.DSN == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	switch c.Driver {
	case DriverPostgres, DriverMySQL:
		return nil
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
}

// SQLDatabase implements Database on top of sqlx.
type SQLDatabase struct {
	*sqlx.DB
	driver string
}

// Open creates the pool and verifies the connection.
func Open(config *Config) (*SQLDatabase, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	conn.SetMaxOpenConns(config.MaxOpenConnections)
	conn.SetMaxIdleConns(config.MaxIdleConnections)
	conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLDatabase{DB: conn, driver: config.Driver}, nil
}

// NewWithDB wraps an existing sqlx handle.
func NewWithDB(conn *sqlx.DB) *SQLDatabase {
	return &SQLDatabase{DB: conn, driver: conn.DriverName()}
}

func (d *SQLDatabase) Driver() string {
	return d.driver
}

func (d *SQLDatabase) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Transaction runs fn in a transaction, rolling back when fn fails.
func (d *SQLDatabase) Transaction(ctx context.Context, fn func(tx Querier) error) error {
	tx, err := d.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction failed: %w", err)
	}
	return nil
}
