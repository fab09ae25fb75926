package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// whereBuilder accumulates positional conditions for list queries.
type whereBuilder struct {
	conditions []string
	args       []interface{}
}

// add appends a condition. Each "?" in cond is replaced by the next placeholder
// bound to the same value.
func (w *whereBuilder) add(cond string, value interface{}) {
	w.args = append(w.args, value)
	w.conditions = append(w.conditions, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereBuilder) clause() string {
	if len(w.conditions) == 0 {
		return " WHERE 1=1"
	}
	return " WHERE 1=1 AND " + strings.Join(w.conditions, " AND ")
}

// pageWindow normalises pagination input into limit and offset.
func pageWindow(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return size, (page - 1) * size
}

// orderBy resolves a whitelisted sort column and direction.
func orderBy(allowed map[string]string, sortBy, fallback, order string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = allowed[fallback]
	}
	order = strings.ToUpper(order)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	return column + " " + order
}

// execer returns exec when a transaction is supplied, otherwise the pool.
func execer(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}

// TxManager runs callbacks inside a database transaction.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager constructs a TxManager.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (m *TxManager) WithinTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
