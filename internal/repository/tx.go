package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type txKey struct{}

// WithTx runs fn inside a single transaction. Repository calls made with the
// context passed to fn join the transaction. Nested calls reuse the outer one.
func (c *Client) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(dialect.Tx); ok {
		return fn(ctx)
	}
	tx, err := c.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			c.logger.Error("db.tx.rollback_failed", "error", rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (c *Client) conn(ctx context.Context) dialect.ExecQuerier {
	if tx, ok := ctx.Value(txKey{}).(dialect.Tx); ok {
		return tx
	}
	return c.drv
}

// exec runs a statement and returns the number of affected rows.
func (c *Client) exec(ctx context.Context, query string, args []any) (int64, error) {
	if args == nil {
		args = []any{}
	}
	var res stdsql.Result
	if err := c.conn(ctx).Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// query runs a select and calls scan for every row.
func (c *Client) query(ctx context.Context, query string, args []any, scan func(rows *entsql.Rows) error) error {
	if args == nil {
		args = []any{}
	}
	rows := &entsql.Rows{}
	if err := c.conn(ctx).Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (c *Client) count(ctx context.Context, query string, args []any) (int, error) {
	var n int
	err := c.query(ctx, query, args, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}
