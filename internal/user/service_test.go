// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
}

func TestServiceCreateDefaultsName(t *testing.T) {
	repo, mock := newMockRepo(t)
	svc := NewService(repo)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "grace@example.com", "hash", "grace", RoleUser).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(now, now))

	info, err := svc.Create(context.Background(), "Grace@Example.com", "hash", "")
	require.NoError(t, err)
	assert.Equal(t, "grace", info.Name)
	assert.Equal(t, "grace@example.com", info.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceFindIDByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	svc := NewService(repo)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"u-1", "ada@example.com", "hash", "ada", RoleUser, now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("who@example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	id, err := svc.FindIDByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)

	_, err = svc.FindIDByEmail(context.Background(), "who@example.com")
	assert.Equal(t, core.CodeUserNotFound, core.Classify(err).Code)
}

func TestServiceUpdateMe(t *testing.T) {
	repo, mock := newMockRepo(t)
	svc := NewService(repo)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"u-1", "ada@example.com", "hash", "ada", RoleUser, now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("SET name = $2")).
		WithArgs("u-1", "Ada Lovelace").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	name := "  Ada Lovelace "
	u, err := svc.UpdateMe(context.Background(), "u-1", UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = svc.UpdateMe(context.Background(), "", UpdateUserRequest{})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestServiceChangeRole(t *testing.T) {
	now := time.Now()
	byID := regexp.QuoteMeta("FROM users WHERE id = $1")
	setRole := regexp.QuoteMeta("SET role = $2")

	t.Run("promotes user", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		svc := NewService(repo)
		mock.ExpectQuery(byID).WithArgs("u-2").
			WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
				"u-2", "bob@example.com", "hash", "bob", RoleUser, now, now,
			))
		mock.ExpectQuery(setRole).WithArgs("u-2", RoleAdmin).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

		u, err := svc.ChangeRole(context.Background(), "u-1", "u-2",
			ChangeRoleRequest{Role: RoleAdmin})
		require.NoError(t, err)
		assert.True(t, u.IsAdmin())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses self", func(t *testing.T) {
		repo, _ := newMockRepo(t)
		_, err := NewService(repo).ChangeRole(context.Background(), "u-1", "u-1",
			ChangeRoleRequest{Role: RoleUser})
		assert.Equal(t, core.CodeValidation, core.Classify(err).Code)
		assert.Equal(t, "cannot change your own role", core.Classify(err).Message)
	})

	t.Run("demotes another admin", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(byID).WithArgs("u-2").
			WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
				"u-2", "root@example.com", "hash", "root", RoleAdmin, now, now,
			))
		mock.ExpectQuery(setRole).WithArgs("u-2", RoleUser).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

		u, err := NewService(repo).ChangeRole(context.Background(), "u-1", "u-2",
			ChangeRoleRequest{Role: RoleUser})
		require.NoError(t, err)
		assert.False(t, u.IsAdmin())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown target", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(byID).WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := NewService(repo).ChangeRole(context.Background(), "u-1", "ghost",
			ChangeRoleRequest{Role: RoleAdmin})
		assert.Equal(t, core.CodeUserNotFound, core.Classify(err).Code)
	})
}
