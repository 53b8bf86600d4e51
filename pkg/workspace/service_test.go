package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

func newMockService(t *testing.T) (*PostgresService, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresService(db), mock, db
}

func TestCreate(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(41, now, now)

		mock.ExpectQuery(`INSERT INTO workspaces \(owner_id, display_name\)`).
			WithArgs("u1", "Dr. Reyes Private Practice").
			WillReturnRows(rows)

		ws, err := service.Create(context.Background(), "u1", &CreateWorkspaceRequest{
			DisplayName: "Dr. Reyes Private Practice",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(41), ws.ID)
		assert.Equal(t, "u1", ws.OwnerID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate owner", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO workspaces`).
			WithArgs("u1", "Second Workspace").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "workspaces_owner_id_key"})

		ws, err := service.Create(context.Background(), "u1", &CreateWorkspaceRequest{
			DisplayName: "Second Workspace",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.Nil(t, ws)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO workspaces`).
			WithArgs("u2", "W").
			WillReturnError(fmt.Errorf("database connection error"))

		_, err := service.Create(context.Background(), "u2", &CreateWorkspaceRequest{DisplayName: "W"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create workspace")

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetByOwner(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "owner_id", "display_name", "created_at", "updated_at"}).
			AddRow(41, "u1", "Private Practice", now, now)

		mock.ExpectQuery(`SELECT id, owner_id, display_name, created_at, updated_at
		FROM workspaces
		WHERE owner_id = \$1`).
			WithArgs("u1").
			WillReturnRows(rows)

		ws, err := service.GetByOwner(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(41), ws.ID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent maps to not found", func(t *testing.T) {
		mock.ExpectQuery(`FROM workspaces`).
			WithArgs("u9").
			WillReturnError(sql.ErrNoRows)

		_, err := service.GetByOwner(context.Background(), "u9")
		assert.ErrorIs(t, err, tenancy.ErrNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWorkspaceIDForOwner(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("owner has workspace", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id"}).AddRow(41)
		mock.ExpectQuery(`SELECT id FROM workspaces WHERE owner_id = \$1`).
			WithArgs("u1").
			WillReturnRows(rows)

		id, ok, err := service.WorkspaceIDForOwner(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(41), id)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner has none", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id FROM workspaces WHERE owner_id = \$1`).
			WithArgs("u2").
			WillReturnError(sql.ErrNoRows)

		_, ok, err := service.WorkspaceIDForOwner(context.Background(), "u2")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id FROM workspaces WHERE owner_id = \$1`).
			WithArgs("u3").
			WillReturnError(fmt.Errorf("database connection error"))

		_, _, err := service.WorkspaceIDForOwner(context.Background(), "u3")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to look up workspace owner")

		require.NoError(t, mock.ExpectationsWereMet())
	})
}
