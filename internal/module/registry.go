// AngelaMos | 2026
// registry.go

package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

var ErrNoGate = errors.New("module registry has no request gate")

type slot struct {
	id    string
	desc  *Descriptor
	state State
	stage string
	err   error
}

// Registry loads capability modules from a static list and isolates their
// failures from each other and from the process.
type Registry struct {
	mu     sync.RWMutex
	deps   Deps
	gate   []func(http.Handler) http.Handler
	slots  []*slot
	logger *slog.Logger
}

// NewRegistry builds a registry whose mounted routes all pass through gate,
// in order. Authentication then workspace resolution is the expected chain.
func NewRegistry(deps Deps, gate ...func(http.Handler) http.Handler) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		deps:   deps,
		gate:   gate,
		logger: logger.With("component", "module_registry"),
	}
}

// Load constructs every entry not listed in disabled. Constructor errors and
// panics mark that module failed and loading continues. Two loaded modules
// claiming the same mount prefix is a configuration error.
func (r *Registry) Load(ctx context.Context, entries []Entry, disabled []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefixes := make(map[string]string)
	for _, entry := range entries {
		if slices.Contains(disabled, entry.ID) {
			r.logger.InfoContext(ctx, "module disabled", "module", entry.ID)
			continue
		}

		s := &slot{id: entry.ID}
		r.slots = append(r.slots, s)

		desc, err := r.construct(entry)
		if err != nil {
			r.markFailed(ctx, s, "load", err)
			continue
		}
		normalize(desc, entry.ID)
		s.id = desc.ID
		s.desc = desc
		s.state = StateLoaded

		if owner, taken := prefixes[desc.MountPrefix]; taken {
			return fmt.Errorf(
				"modules %q and %q both claim mount prefix %q",
				owner,
				desc.ID,
				desc.MountPrefix,
			)
		}
		prefixes[desc.MountPrefix] = desc.ID
	}

	return nil
}

func (r *Registry) construct(entry Entry) (desc *Descriptor, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("constructor panic: %v", p)
		}
	}()

	if entry.New == nil {
		return nil, errors.New("no constructor")
	}
	desc, err = entry.New(r.deps)
	if err == nil && desc == nil {
		err = errors.New("constructor returned no descriptor")
	}
	return desc, err
}

func normalize(desc *Descriptor, fallbackID string) {
	if desc.ID == "" {
		desc.ID = fallbackID
	}
	if desc.Name == "" {
		desc.Name = desc.ID
	}
	if desc.MountPrefix == "" {
		desc.MountPrefix = "/" + desc.ID
	}
	desc.MountPrefix = "/" + strings.Trim(desc.MountPrefix, "/")
}

// TenantTables lists the tables declared by every loaded module.
func (r *Registry) TenantTables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tables []string
	for _, s := range r.slots {
		if s.state != StateLoaded {
			continue
		}
		for _, t := range s.desc.Tables {
			if !slices.Contains(tables, t) {
				tables = append(tables, t)
			}
		}
	}
	return tables
}

// Init runs each loaded module's schema hook. A failing hook only takes its
// own module out.
func (r *Registry) Init(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if s.state != StateLoaded {
			continue
		}

		if err := r.initOne(ctx, s.desc); err != nil {
			r.markFailed(ctx, s, "init", err)
			continue
		}
		s.state = StateReady
		r.logger.InfoContext(ctx, "module ready",
			"module", s.id,
			"prefix", s.desc.MountPrefix,
		)
	}

	r.recordGauge()
}

func (r *Registry) initOne(ctx context.Context, desc *Descriptor) (err error) {
	ctx, span := core.StartSpan(ctx, "module.init",
		core.AttrModuleID.String(desc.ID),
	)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("schema init panic: %v", p)
		}
		core.EndSpan(span, err)
	}()

	if desc.InitSchema == nil {
		return nil
	}
	return desc.InitSchema(ctx, r.deps.DB)
}

// Mount attaches every ready module's routes to router behind the gate.
func (r *Registry) Mount(router chi.Router) error {
	if len(r.gate) == 0 {
		return ErrNoGate
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if s.state != StateReady || s.desc.Routes == nil {
			continue
		}
		if err := r.mountOne(router, s.desc); err != nil {
			r.markFailed(context.Background(), s, "mount", err)
		}
	}

	r.recordGauge()
	return nil
}

func (r *Registry) mountOne(router chi.Router, desc *Descriptor) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("route mount panic: %v", p)
		}
	}()

	sub := chi.NewRouter()
	sub.Use(r.gate...)
	desc.Routes(sub)
	router.Mount(desc.MountPrefix, sub)
	return nil
}

func (r *Registry) markFailed(ctx context.Context, s *slot, stage string, err error) {
	s.state = StateFailed
	s.stage = stage
	s.err = err
	r.logger.ErrorContext(ctx, "module failed",
		"module", s.id,
		"stage", stage,
		"error", err,
	)
}

func (r *Registry) recordGauge() {
	if r.deps.Metrics == nil {
		return
	}

	counts := map[State]int{StateReady: 0, StateFailed: 0}
	for _, s := range r.slots {
		counts[s.state]++
	}
	for state, n := range counts {
		r.deps.Metrics.Modules.WithLabelValues(string(state)).Set(float64(n))
	}
}

// Manifest lists ready modules.
func (r *Registry) Manifest() []ManifestEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ManifestEntry, 0, len(r.slots))
	for _, s := range r.slots {
		if s.state == StateReady {
			out = append(out, ManifestEntry{ID: s.desc.ID, Name: s.desc.Name})
		}
	}
	return out
}

func (r *Registry) ManifestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		core.OK(w, r.Manifest())
	}
}

// Status reports every module that was not disabled, including failures.
func (r *Registry) Status() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.slots))
	for _, s := range r.slots {
		st := Status{ID: s.id, State: s.state, Stage: s.stage}
		if s.desc != nil {
			st.Name = s.desc.Name
			st.MountPrefix = s.desc.MountPrefix
		}
		if s.err != nil {
			st.Error = s.err.Error()
		}
		out = append(out, st)
	}
	return out
}
