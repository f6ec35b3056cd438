// AngelaMos | 2026
// activity_test.go

package activity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "pgx")), mock
}

func TestRecorderLog(t *testing.T) {
	repo, mock := newMock(t)
	rec := NewRecorder(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO activity_log")).
		WithArgs(sqlmock.AnyArg(), "ws-1", "u-1", ActionMemberInvited,
			"u-2", `{"role":"editor"}`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	rec.Log(context.Background(), Event{
		WorkspaceID: "ws-1",
		UserID:      "u-1",
		Action:      ActionMemberInvited,
		Subject:     "u-2",
		Metadata:    map[string]any{"role": "editor"},
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorderLogSwallowsFailure(t *testing.T) {
	repo, mock := newMock(t)
	rec := NewRecorder(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO activity_log")).
		WithArgs(sqlmock.AnyArg(), "ws-1", "u-1", ActionWorkspaceCreated, "ws-1", "{}").
		WillReturnError(errors.New("connection reset"))

	assert.NotPanics(t, func() {
		rec.Log(context.Background(), Event{
			WorkspaceID: "ws-1",
			UserID:      "u-1",
			Action:      ActionWorkspaceCreated,
			Subject:     "ws-1",
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListIsScoped(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM activity_log WHERE workspace_id = $1")).
		WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE workspace_id = $1")).
		WithArgs("ws-1", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "workspace_id", "user_id", "action", "subject", "metadata", "created_at",
		}).AddRow("a-1", "ws-1", "u-1", ActionWorkspaceCreated, "ws-1", "{}", now))

	entries, total, err := repo.List(context.Background(), "ws-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.JSONEq(t, "{}", string(entries[0].Metadata))
	assert.NoError(t, mock.ExpectationsWereMet())
}
