package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"estate_tracker/internal/domain"
)

const defaultAttempts = 3

// Conn is the storage session shared by every store. Statements run inside the
// transaction carried by ctx when there is one, otherwise on the pool with
// transient failures re-issued up to the configured number of attempts.
type Conn struct {
	db       *sqlx.DB
	attempts int
}

func NewConn(db *sqlx.DB, maxAttempts int) *Conn {
	if maxAttempts < 1 {
		maxAttempts = defaultAttempts
	}
	return &Conn{db: db, attempts: maxAttempts}
}

func (c *Conn) DB() *sqlx.DB {
	return c.db
}

func (c *Conn) Ping(ctx context.Context) error {
	return c.run(ctx, "ping", func(sqlx.ExtContext) error {
		return c.db.PingContext(ctx)
	})
}

func (c *Conn) run(ctx context.Context, op string, fn func(ex sqlx.ExtContext) error) error {
	// Retrying inside a transaction would replay against an aborted tx.
	if tx := GetTxFromContext(ctx); tx != nil {
		return classify(op, fn(tx))
	}

	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err = fn(c.db)
		if err == nil || !isTransient(err) || ctx.Err() != nil {
			break
		}
	}
	return classify(op, err)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *domain.StoreError
	if errors.As(err, &se) {
		return err
	}

	kind := domain.KindFatal
	switch {
	case errors.Is(err, sql.ErrNoRows):
		kind = domain.KindNotFound
	case isUniqueViolation(err):
		kind = domain.KindConflict
	case isTransient(err):
		kind = domain.KindTransientIO
	}
	return &domain.StoreError{Kind: kind, Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08: connection exception; 57P01-57P03: server shutting down or unavailable.
		return pqErr.Code.Class() == "08" || strings.HasPrefix(string(pqErr.Code), "57P0")
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
