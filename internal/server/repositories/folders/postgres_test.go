package folders

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

var folderCols = []string{"id", "account_id", "name", "parent_id", "created_at", "updated_at"}

func TestCreate(t *testing.T) {
	q := `(?s)^INSERT\s+INTO\s+folders\s*\(account_id,\s*name,\s*parent_id\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,\s*created_at,\s*updated_at$`

	t.Run("root folder", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		now := time.Now()
		mock.ExpectQuery(q).
			WithArgs("a-1", "Docs", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("f-1", now, now))

		got, err := repo.Create(context.Background(), &models.Folder{AccountID: "a-1", Name: "Docs"})
		require.NoError(t, err)
		assert.Equal(t, "f-1", got.ID)
		assert.Nil(t, got.ParentID)
	})

	t.Run("nested folder", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		parent := "f-1"
		now := time.Now()
		mock.ExpectQuery(q).
			WithArgs("a-1", "Tax", "f-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("f-2", now, now))

		got, err := repo.Create(context.Background(), &models.Folder{AccountID: "a-1", Name: "Tax", ParentID: &parent})
		require.NoError(t, err)
		assert.Equal(t, "f-2", got.ID)
	})

	t.Run("unique violation maps to conflict", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := repo.Create(context.Background(), &models.Folder{AccountID: "a-1", Name: "Docs"})
		require.ErrorIs(t, err, common.ErrConflict)
	})
}

func TestGet(t *testing.T) {
	q := `(?s)^SELECT\s+id,\s*account_id,\s*name,\s*parent_id,.*FROM\s+folders\s+WHERE\s+id\s*=\s*\$1\s+AND\s+account_id\s*=\s*\$2$`

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		now := time.Now()
		mock.ExpectQuery(q).WithArgs("f-2", "a-1").
			WillReturnRows(sqlmock.NewRows(folderCols).AddRow("f-2", "a-1", "Tax", "f-1", now, now))

		got, err := repo.Get(context.Background(), "f-2", "a-1")
		require.NoError(t, err)
		require.NotNil(t, got.ParentID)
		assert.Equal(t, "f-1", *got.ParentID)
	})

	t.Run("foreign or missing", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("f-2", "a-2").WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), "f-2", "a-2")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestNameTaken(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)SELECT\s+EXISTS.*parent_id\s+IS\s+NOT\s+DISTINCT\s+FROM\s+\$2\s+AND\s+name\s*=\s*\$3`).
		WithArgs("a-1", nil, "Docs", "").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.NameTaken(context.Background(), "a-1", nil, "Docs", "")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestUpdate(t *testing.T) {
	q := `(?s)^UPDATE\s+folders\s+SET\s+name\s*=\s*\$3,\s*parent_id\s*=\s*\$4`

	t.Run("ok", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(q).WithArgs("f-2", "a-1", "Taxes", nil).WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, repo.Update(context.Background(), &models.Folder{ID: "f-2", AccountID: "a-1", Name: "Taxes"}))
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
		require.ErrorIs(t, repo.Update(context.Background(), &models.Folder{ID: "x", AccountID: "a-1", Name: "n"}), common.ErrorNotFound)
	})

	t.Run("conflict", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(q).WillReturnError(&pgconn.PgError{Code: "23505"})
		require.ErrorIs(t, repo.Update(context.Background(), &models.Folder{ID: "x", AccountID: "a-1", Name: "n"}), common.ErrConflict)
	})
}

func TestListChildren(t *testing.T) {
	q := `(?s)FROM\s+folders\s+WHERE\s+account_id\s*=\s*\$1\s+AND\s+parent_id\s+IS\s+NOT\s+DISTINCT\s+FROM\s+\$2\s+ORDER\s+BY\s+name\s+ASC$`

	t.Run("rows", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		now := time.Now()
		mock.ExpectQuery(q).WithArgs("a-1", "f-1").
			WillReturnRows(sqlmock.NewRows(folderCols).
				AddRow("f-3", "a-1", "A", "f-1", now, now).
				AddRow("f-2", "a-1", "B", "f-1", now, now))

		parent := "f-1"
		got, err := repo.ListChildren(context.Background(), "a-1", &parent)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].Name)
		assert.Equal(t, "B", got[1].Name)
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WillReturnError(errors.New("boom"))

		_, err := repo.ListChildren(context.Background(), "a-1", nil)
		require.Error(t, err)
	})
}

func TestDelete(t *testing.T) {
	q := `^DELETE\s+FROM\s+folders\s+WHERE\s+id\s*=\s*\$1\s+AND\s+account_id\s*=\s*\$2$`

	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(q).WithArgs("f-1", "a-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("f-1", "a-1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "f-1", "a-1"))
	require.ErrorIs(t, repo.Delete(context.Background(), "f-1", "a-1"), common.ErrorNotFound)
}
