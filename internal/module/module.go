// AngelaMos | 2026
// module.go

package module

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/activity"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/metrics"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/provider"
)

// Deps is everything a module constructor may use.
type Deps struct {
	DB        *sqlx.DB
	Logger    *slog.Logger
	Generator provider.Generator
	Activity  *activity.Recorder
	Metrics   *metrics.Metrics

	// GenerationLimiter wraps endpoints that call the provider.
	GenerationLimiter func(http.Handler) http.Handler
}

// Descriptor is what a module exposes to the registry. Routes are mounted
// below MountPrefix and always behind the registry's gate.
type Descriptor struct {
	ID          string
	Name        string
	MountPrefix string

	// Tables lists tenant-scoped tables the module owns.
	Tables []string

	// InitSchema must be idempotent; it runs on every boot.
	InitSchema func(ctx context.Context, db core.DBTX) error
	Routes     func(r chi.Router)
}

type Constructor func(deps Deps) (*Descriptor, error)

// Entry is one slot in the static discovery list.
type Entry struct {
	ID  string
	New Constructor
}

type State string

const (
	StateLoaded State = "loaded"
	StateReady  State = "ready"
	StateFailed State = "failed"
)

type ManifestEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Status struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	MountPrefix string `json:"mount_prefix,omitempty"`
	State       State  `json:"state"`
	Stage       string `json:"stage,omitempty"`
	Error       string `json:"error,omitempty"`
}
