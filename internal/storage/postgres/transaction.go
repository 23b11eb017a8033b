package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type ctxKey string

const txKey ctxKey = "tx"

type TransactionManager struct {
	conn *Conn
}

func NewTransactionManager(conn *Conn) *TransactionManager {
	return &TransactionManager{conn: conn}
}

// WithTransaction runs fn in a transaction that every store picks up from the
// context. Nested calls join the outer transaction.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if GetTxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var tx *sqlx.Tx
	err := tm.conn.run(ctx, "tx.begin", func(sqlx.ExtContext) error {
		var err error
		tx, err = tm.conn.db.BeginTxx(ctx, nil)
		return err
	})
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return classify("tx.commit", tx.Commit())
}

func GetTxFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey).(*sqlx.Tx)
	return tx
}
