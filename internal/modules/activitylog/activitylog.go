// AngelaMos | 2026
// activitylog.go

package activitylog

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/activity"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/module"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

const ID = "activity"

type EntryResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Action    string          `json:"action"`
	Subject   string          `json:"subject"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// New exposes the workspace audit trail. The activity_log table is part of
// the core schema, so the module declares no tables of its own.
func New(deps module.Deps) (*module.Descriptor, error) {
	if deps.Activity == nil {
		return nil, errors.New("activity: recorder required")
	}

	return &module.Descriptor{
		ID:   ID,
		Name: "Activity",
		Routes: func(r chi.Router) {
			r.Get("/", list(deps.Activity))
		},
	}, nil
}

func list(recorder *activity.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := tenant.MustFromContext(r.Context())
		page := module.PageFromQuery(r)

		entries, total, err := recorder.List(
			r.Context(),
			scope.WorkspaceID,
			page.PageSize,
			page.Offset(),
		)
		if err != nil {
			core.JSONError(w, err)
			return
		}

		out := make([]EntryResponse, 0, len(entries))
		for _, e := range entries {
			meta := json.RawMessage(e.Metadata)
			if len(meta) == 0 {
				meta = json.RawMessage("{}")
			}
			out = append(out, EntryResponse{
				ID:        e.ID,
				UserID:    e.UserID,
				Action:    e.Action,
				Subject:   e.Subject,
				Metadata:  meta,
				CreatedAt: e.CreatedAt,
			})
		}
		core.Paginated(w, out, page.Page, page.PageSize, total)
	}
}
