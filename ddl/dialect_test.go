package ddl

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazmi/sqlmodel/internal/errs"
)

func TestDialectOf(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	d, err := DialectOf(db)
	require.NoError(t, err)
	assert.Equal(t, SQLite, d.Name())

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	_, err = DialectOf(mockDB)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
