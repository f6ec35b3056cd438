// AngelaMos | 2026
// settings_test.go

package settings

import (
	"encoding/json"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/module"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/modules/moduletest"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

var settingColumns = []string{"id", "workspace_id", "key", "value", "updated_at"}

func newModule(t *testing.T, role tenant.Role) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := moduletest.NewDB(t)
	desc, err := New(module.Deps{DB: db})
	require.NoError(t, err)
	return moduletest.Router(t, desc, role), mock
}

func TestPutSettingUpserts(t *testing.T) {
	h, mock := newModule(t, tenant.RoleEditor)
	upsert := regexp.QuoteMeta("ON CONFLICT (workspace_id, key)")

	mock.ExpectQuery(upsert).
		WithArgs(sqlmock.AnyArg(), moduletest.WorkspaceID, "theme", `{"mode":"dark"}`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectQuery(upsert).
		WithArgs(sqlmock.AnyArg(), moduletest.WorkspaceID, "theme", `"light"`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	rec := moduletest.Do(t, h, http.MethodPut, "/theme",
		map[string]any{"value": map[string]string{"mode": "dark"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mode":"dark"}`,
		string(extract(t, moduletest.Decode(t, rec).Data)))

	rec = moduletest.Do(t, h, http.MethodPut, "/theme", map[string]any{"value": "light"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func extract(t *testing.T, data []byte) []byte {
	t.Helper()
	var resp SettingResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp.Value
}

func TestPutSettingRejects(t *testing.T) {
	t.Run("viewer", func(t *testing.T) {
		h, _ := newModule(t, tenant.RoleViewer)
		rec := moduletest.Do(t, h, http.MethodPut, "/theme", map[string]any{"value": 1})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing value", func(t *testing.T) {
		h, _ := newModule(t, tenant.RoleOwner)
		rec := moduletest.Do(t, h, http.MethodPut, "/theme", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, core.CodeValidation, moduletest.Decode(t, rec).Error.Code)
	})
}

func TestGetSetting(t *testing.T) {
	h, mock := newModule(t, tenant.RoleViewer)
	query := regexp.QuoteMeta("WHERE workspace_id = $1 AND key = $2")

	mock.ExpectQuery(query).WithArgs(moduletest.WorkspaceID, "theme").
		WillReturnRows(sqlmock.NewRows(settingColumns).
			AddRow("s-1", moduletest.WorkspaceID, "theme", `"dark"`, time.Now()))
	mock.ExpectQuery(query).WithArgs(moduletest.WorkspaceID, "missing").
		WillReturnRows(sqlmock.NewRows(settingColumns))

	rec := moduletest.Do(t, h, http.MethodGet, "/theme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"dark"`, string(extract(t, moduletest.Decode(t, rec).Data)))

	rec = moduletest.Do(t, h, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAndDeleteSettings(t *testing.T) {
	h, mock := newModule(t, tenant.RoleOwner)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE workspace_id = $1 ORDER BY key ASC")).
		WithArgs(moduletest.WorkspaceID).
		WillReturnRows(sqlmock.NewRows(settingColumns).
			AddRow("s-1", moduletest.WorkspaceID, "a", "1", time.Now()).
			AddRow("s-2", moduletest.WorkspaceID, "b", "true", time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM settings WHERE workspace_id = $1 AND key = $2")).
		WithArgs(moduletest.WorkspaceID, "a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := moduletest.Do(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []SettingResponse
	require.NoError(t, json.Unmarshal(moduletest.Decode(t, rec).Data, &items))
	assert.Len(t, items, 2)

	rec = moduletest.Do(t, h, http.MethodDelete, "/a", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
