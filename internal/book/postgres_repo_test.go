package book

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookColumns = []string{"id", "title", "author", "year"}

func newMockRepo(t *testing.T) (*PostgresRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPostgresRepo(pool, time.Second), pool
}

func TestPostgresRepo_List(t *testing.T) {
	repo, pool := newMockRepo(t)
	pool.ExpectQuery(`SELECT COUNT\(\*\) FROM books`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	pool.ExpectQuery(`SELECT id, title, author, year\s+FROM books\s+ORDER BY id`).
		WithArgs(2, 2).
		WillReturnRows(pgxmock.NewRows(bookColumns).AddRow(int64(3), "C", "Z", 2003))

	books, total, err := repo.List(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []Book{{ID: 3, Title: "C", Author: "Z", Year: 2003}}, books)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresRepo_ListRejectsNegativeOffset(t *testing.T) {
	repo, pool := newMockRepo(t)

	_, _, err := repo.List(context.Background(), 10, -2)
	assert.ErrorIs(t, err, ErrInvalidPagination)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresRepo_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery(`WHERE id = \$1`).WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows(bookColumns).AddRow(int64(1), "A", "B", 1990))

		b, err := repo.GetByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "A", b.Title)
	})

	t.Run("missing", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery(`WHERE id = \$1`).WithArgs(int64(9)).
			WillReturnRows(pgxmock.NewRows(bookColumns))

		_, err := repo.GetByID(context.Background(), 9)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresRepo_FindByTitleAuthor(t *testing.T) {
	repo, pool := newMockRepo(t)
	pool.ExpectQuery(`WHERE title = \$1 AND author = \$2`).WithArgs("A", "B").
		WillReturnRows(pgxmock.NewRows(bookColumns))

	_, err := repo.FindByTitleAuthor(context.Background(), "A", "B")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresRepo_Insert(t *testing.T) {
	in := Input{Title: "A", Author: "B", Year: 2001}

	t.Run("returns id", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery(`INSERT INTO books`).WithArgs("A", "B", 2001).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

		id, err := repo.Insert(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
	})

	t.Run("unique violation maps to conflict", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectQuery(`INSERT INTO books`).WithArgs("A", "B", 2001).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := repo.Insert(context.Background(), in)
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestPostgresRepo_Update(t *testing.T) {
	in := Input{Title: "A", Author: "B", Year: 2001}

	t.Run("updated", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectExec(`UPDATE books`).WithArgs(int64(1), "A", "B", 2001).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(context.Background(), 1, in))
	})

	t.Run("no rows", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectExec(`UPDATE books`).WithArgs(int64(5), "A", "B", 2001).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.Update(context.Background(), 5, in), ErrNotFound)
	})

	t.Run("conflict", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectExec(`UPDATE books`).WithArgs(int64(1), "A", "B", 2001).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		assert.ErrorIs(t, repo.Update(context.Background(), 1, in), ErrConflict)
	})
}

func TestPostgresRepo_Delete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectExec(`DELETE FROM books`).WithArgs(int64(2)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(context.Background(), 2))
	})

	t.Run("missing", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		pool.ExpectExec(`DELETE FROM books`).WithArgs(int64(2)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, repo.Delete(context.Background(), 2), ErrNotFound)
	})

	t.Run("driver error passes through", func(t *testing.T) {
		repo, pool := newMockRepo(t)
		boom := errors.New("connection reset")
		pool.ExpectExec(`DELETE FROM books`).WithArgs(int64(2)).WillReturnError(boom)

		assert.ErrorIs(t, repo.Delete(context.Background(), 2), boom)
	})
}

func TestPostgresRepo_Ping(t *testing.T) {
	repo, pool := newMockRepo(t)
	pool.ExpectPing()
	assert.NoError(t, repo.Ping(context.Background()))
}
