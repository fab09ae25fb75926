package repository

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestWhereBuilderNumbersPlaceholders(t *testing.T) {
	var w whereBuilder
	assert.Equal(t, " WHERE 1=1", w.clause())
	w.add("active = ?", true)
	w.add("(a LIKE ? OR b LIKE ?)", "%x%")
	assert.Equal(t, " WHERE 1=1 AND active = $1 AND (a LIKE $2 OR b LIKE $2)", w.clause())
	assert.Len(t, w.args, 2)
}

func TestPageWindowAndOrder(t *testing.T) {
	limit, offset := pageWindow(0, 0)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)
	limit, offset = pageWindow(3, 500)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 40, offset)

	allowed := map[string]string{"name": "s.name", "code": "s.code"}
	assert.Equal(t, "s.name DESC", orderBy(allowed, "name", "code", "desc"))
	assert.Equal(t, "s.code ASC", orderBy(allowed, "; DROP TABLE", "code", "sideways"))
}
