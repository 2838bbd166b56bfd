// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"promptguy/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// Option configures optional repository dependencies.
type Option func(*conns)

// WithReadReplica sends reads that tolerate replication lag to read.
// A nil read keeps every query on the primary.
func WithReadReplica(read *gorm.DB) Option {
	return func(c *conns) { c.read = read }
}

// conns is the primary connection plus an optional read replica.
type conns struct {
	db   *gorm.DB
	read *gorm.DB
}

func newConns(db *gorm.DB, opts []Option) conns {
	c := conns{db: db}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// replica returns the read replica, or the primary when none is configured.
// Reads that must observe the caller's own writes stay on c.db.
func (c conns) replica() *gorm.DB {
	if c.read != nil {
		return c.read
	}
	return c.db
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}

// wrapFind converts a lookup error into NotFound or Internal.
func wrapFind(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
