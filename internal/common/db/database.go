package db

import (
	"context"
	"database/sql"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Querier is implemented by both *sqlx.DB and *sqlx.Tx.
// Queries are written with '?' placeholders and passed through Rebind.
type Querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

// Database is a pooled connection to one of the supported drivers.
type Database interface {
	Querier
	Driver() string
	Transaction(ctx context.Context, fn func(tx Querier) error) error
	Ping(ctx context.Context) error
	Close() error
}

// GetQuerier returns tx if provided, otherwise the database.
func GetQuerier(database Database, tx Querier) Querier {
	if tx != nil {
		return tx
	}
	return database
}
