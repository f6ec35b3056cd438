// AngelaMos | 2026
// backfill.go

package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/config"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/metrics"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/workspace"
)

const (
	tenantColumn         = "workspace_id"
	defaultWorkspaceName = "Default Workspace"
)

const (
	outcomeAltered   = "altered"
	outcomeFilled    = "filled"
	outcomePending   = "pending"
	outcomeRepaired  = "repaired"
	outcomeIndexed   = "indexed"
	outcomeSkipped   = "skipped"
	outcomeUnchanged = "unchanged"
	outcomeFailed    = "failed"
)

// Core tables are never retrofitted.
var reservedTables = []string{
	"users",
	"refresh_tokens",
	"workspaces",
	"workspace_members",
	"activity_log",
	migrationsTable,
}

// KeyRef names a column whose uniqueness must hold per workspace.
type KeyRef struct {
	Table  string
	Column string
}

// ParseKeyRefs reads "table:column" pairs.
func ParseKeyRefs(specs []string) ([]KeyRef, error) {
	refs := make([]KeyRef, 0, len(specs))
	for _, spec := range specs {
		table, column, ok := strings.Cut(spec, ":")
		table, column = strings.TrimSpace(table), strings.TrimSpace(column)
		if !ok || table == "" || column == "" {
			return nil, fmt.Errorf("invalid key reference %q, want table:column", spec)
		}
		refs = append(refs, KeyRef{Table: table, Column: column})
	}
	return refs, nil
}

// Report lists tables by what the run did to them. Pending tables still hold
// rows without a workspace because no default workspace could be chosen; the
// next run fills them.
type Report struct {
	Altered  []string `json:"altered"`
	Filled   []string `json:"filled"`
	Pending  []string `json:"pending"`
	Repaired []string `json:"repaired"`
	Indexed  []string `json:"indexed"`
	Skipped  []string `json:"skipped"`
	Failed   []string `json:"failed"`
}

func (r Report) Changed() bool {
	return len(r.Altered)+len(r.Filled)+len(r.Repaired)+len(r.Indexed) > 0
}

// columnPlan is a table whose tenant column is missing, or present with
// rows that were never assigned a workspace.
type columnPlan struct {
	table     string
	hasColumn bool
}

// Backfill retrofits a workspace_id column onto pre-existing tables and
// rescopes their unique keys. Every step inspects the schema first, so a
// repeated run issues no DDL and no UPDATE.
type Backfill struct {
	db         *sqlx.DB
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tables     []string
	scopedKeys []KeyRef
	settings   []KeyRef
}

// NewBackfill covers cfg.TenantTables, every table named by the scoped and
// settings keys, and extraTables (declared by loaded modules).
func NewBackfill(
	db *sqlx.DB,
	cfg config.MigrationConfig,
	extraTables []string,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*Backfill, error) {
	scoped, err := ParseKeyRefs(cfg.ScopedKeys)
	if err != nil {
		return nil, fmt.Errorf("migration.scoped_keys: %w", err)
	}
	settings, err := ParseKeyRefs(cfg.SettingsTables)
	if err != nil {
		return nil, fmt.Errorf("migration.settings_tables: %w", err)
	}

	var tables []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || slices.Contains(reservedTables, name) || slices.Contains(tables, name) {
			return
		}
		tables = append(tables, name)
	}
	for _, t := range cfg.TenantTables {
		add(t)
	}
	for _, t := range extraTables {
		add(t)
	}
	for _, ref := range slices.Concat(scoped, settings) {
		add(ref.Table)
	}

	return &Backfill{
		db:         db,
		logger:     logger.With("component", "tenant_backfill"),
		metrics:    m,
		tables:     tables,
		scopedKeys: scoped,
		settings:   settings,
	}, nil
}

// Run never returns an error: each table succeeds or fails on its own and
// failures are logged and reported.
func (b *Backfill) Run(ctx context.Context) Report {
	ctx, span := core.StartSpan(ctx, "migrate.backfill",
		attribute.Int("backfill.tables", len(b.tables)),
	)
	defer span.End()

	var report Report

	b.retrofitColumns(ctx, &report)

	for _, ref := range b.scopedKeys {
		b.step(ctx, &report, ref.Table, "scoped_key", func(tx *sqlx.Tx) (string, error) {
			return rescopeUnique(ctx, tx, ref)
		})
	}

	for _, ref := range b.settings {
		b.step(ctx, &report, ref.Table, "settings_key", func(tx *sqlx.Tx) (string, error) {
			return ensureCompoundIndex(ctx, tx, ref)
		})
	}

	b.logger.InfoContext(ctx, "tenant backfill finished",
		"altered", report.Altered,
		"filled", report.Filled,
		"pending", report.Pending,
		"repaired", report.Repaired,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report
}

// retrofitColumns adds the tenant column where it is missing and assigns
// unowned rows to the default workspace. When the default workspace cannot
// be looked up, the planned tables fail untouched so the next run retries
// them.
func (b *Backfill) retrofitColumns(ctx context.Context, report *Report) {
	plans := b.planColumns(ctx, report)
	if len(plans) == 0 {
		return
	}

	tenantID, err := b.defaultTenant(ctx)
	if err != nil {
		for _, p := range plans {
			b.fail(ctx, report, p.table, "default_workspace", err)
		}
		return
	}

	for _, p := range plans {
		b.step(ctx, report, p.table, "column", func(tx *sqlx.Tx) (string, error) {
			if !p.hasColumn {
				return outcomeAltered, addTenantColumn(ctx, tx, p.table, tenantID)
			}
			if tenantID == "" {
				return outcomePending, nil
			}
			return outcomeFilled, fillTenantColumn(ctx, tx, p.table, tenantID)
		})
	}
}

// planColumns inspects every existing table. A table with the tenant column
// is planned only while some of its rows have no workspace.
func (b *Backfill) planColumns(ctx context.Context, report *Report) []columnPlan {
	var plans []columnPlan
	for _, table := range b.tables {
		plan, ok, err := b.inspectColumn(ctx, table)
		switch {
		case err != nil:
			b.fail(ctx, report, table, "inspect", err)
		case !ok:
			report.Skipped = appendOnce(report.Skipped, table)
			b.record(outcomeSkipped)
		case plan == nil:
			b.record(outcomeUnchanged)
		default:
			plans = append(plans, *plan)
		}
	}
	return plans
}

func (b *Backfill) inspectColumn(ctx context.Context, table string) (*columnPlan, bool, error) {
	exists, err := tableExists(ctx, b.db, table)
	if err != nil || !exists {
		return nil, false, err
	}

	has, err := columnExists(ctx, b.db, table, tenantColumn)
	if err != nil {
		return nil, true, err
	}
	if !has {
		return &columnPlan{table: table}, true, nil
	}

	unowned, err := hasUnownedRows(ctx, b.db, table)
	if err != nil || !unowned {
		return nil, true, err
	}
	return &columnPlan{table: table, hasColumn: true}, true, nil
}

func (b *Backfill) step(
	ctx context.Context,
	report *Report,
	table, stage string,
	fn func(tx *sqlx.Tx) (string, error),
) {
	if slices.Contains(report.Failed, table) {
		return
	}

	ctx, span := core.StartSpan(ctx, "migrate.backfill_table",
		core.AttrTable.String(table),
		attribute.String("backfill.stage", stage),
	)

	var outcome string
	err := core.InTx(ctx, b.db, func(tx *sqlx.Tx) error {
		var err error
		outcome, err = fn(tx)
		return err
	})
	core.EndSpan(span, err)

	if err != nil {
		b.fail(ctx, report, table, stage, err)
		return
	}

	b.record(outcome)
	switch outcome {
	case outcomeAltered:
		report.Altered = appendOnce(report.Altered, table)
		b.logger.InfoContext(ctx, "tenant column added", "table", table)
	case outcomeFilled:
		report.Filled = appendOnce(report.Filled, table)
		b.logger.InfoContext(ctx, "unowned rows assigned to default workspace", "table", table)
	case outcomePending:
		report.Pending = appendOnce(report.Pending, table)
		b.logger.WarnContext(ctx, "rows await a default workspace", "table", table)
	case outcomeRepaired:
		report.Repaired = appendOnce(report.Repaired, table)
		b.logger.InfoContext(ctx, "unique key rescoped to workspace", "table", table)
	case outcomeIndexed:
		report.Indexed = appendOnce(report.Indexed, table)
		b.logger.InfoContext(ctx, "workspace key index created", "table", table)
	case outcomeSkipped:
		report.Skipped = appendOnce(report.Skipped, table)
	}
}

func (b *Backfill) fail(ctx context.Context, report *Report, table, stage string, err error) {
	report.Failed = appendOnce(report.Failed, table)
	b.record(outcomeFailed)
	b.logger.WarnContext(ctx, "tenant backfill step failed",
		"table", table,
		"stage", stage,
		"error", err,
	)
}

func (b *Backfill) record(outcome string) {
	if b.metrics != nil {
		b.metrics.BackfillTables.WithLabelValues(outcome).Inc()
	}
}

// defaultTenant picks the earliest workspace. With none and at least one
// user, a default workspace owned by the earliest user is created. With no
// users there is nothing to own existing rows and "" is returned.
func (b *Backfill) defaultTenant(ctx context.Context) (string, error) {
	var id string
	err := b.db.GetContext(ctx, &id,
		`SELECT id FROM workspaces ORDER BY created_at ASC, id ASC LIMIT 1`)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("find default workspace: %w", err)
	}

	var ownerID string
	err = b.db.GetContext(ctx, &ownerID,
		`SELECT id FROM users ORDER BY created_at ASC, id ASC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find default workspace owner: %w", err)
	}

	slug, err := workspace.NewSlug(defaultWorkspaceName)
	if err != nil {
		return "", err
	}
	ws := &workspace.Workspace{
		ID:      uuid.New().String(),
		Name:    defaultWorkspaceName,
		Slug:    slug,
		OwnerID: ownerID,
	}
	if err := workspace.NewRepository(b.db).Create(ctx, ws); err != nil {
		return "", err
	}

	b.logger.InfoContext(ctx, "default workspace created",
		"workspace_id", ws.ID,
		"owner_id", ownerID,
	)
	return ws.ID, nil
}

func addTenantColumn(ctx context.Context, tx *sqlx.Tx, table, tenantID string) error {
	t := ident(table)

	if _, err := tx.ExecContext(ctx,
		`ALTER TABLE `+t+` ADD COLUMN IF NOT EXISTS `+tenantColumn+` UUID`,
	); err != nil {
		return fmt.Errorf("add tenant column: %w", err)
	}

	if tenantID != "" {
		if err := fillTenantColumn(ctx, tx, table, tenantID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS `+ident(tenantIndexName(table))+
			` ON `+t+` (`+tenantColumn+`)`,
	); err != nil {
		return fmt.Errorf("index tenant column: %w", err)
	}
	return nil
}

func fillTenantColumn(ctx context.Context, tx *sqlx.Tx, table, tenantID string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE `+ident(table)+` SET `+tenantColumn+` = $1 WHERE `+tenantColumn+` IS NULL`,
		tenantID,
	); err != nil {
		return fmt.Errorf("backfill tenant column: %w", err)
	}
	return nil
}

// rescopeUnique installs the (workspace_id, column) unique index, then drops
// single-column unique keys on column. Both happen in the same transaction.
func rescopeUnique(ctx context.Context, tx *sqlx.Tx, ref KeyRef) (string, error) {
	ready, err := keyTableReady(ctx, tx, ref)
	if err != nil || !ready {
		return outcomeSkipped, err
	}

	legacy, err := singleColumnUniques(ctx, tx, ref.Table, ref.Column)
	if err != nil {
		return "", err
	}

	created, err := createCompoundIndex(ctx, tx, ref)
	if err != nil {
		return "", err
	}

	for _, idx := range legacy {
		stmt := `DROP INDEX IF EXISTS ` + ident(idx.Index)
		if idx.Constraint != "" {
			stmt = `ALTER TABLE ` + ident(ref.Table) +
				` DROP CONSTRAINT IF EXISTS ` + ident(idx.Constraint)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return "", fmt.Errorf("drop global unique key %s: %w", idx.Index, err)
		}
	}

	if !created && len(legacy) == 0 {
		return outcomeUnchanged, nil
	}
	return outcomeRepaired, nil
}

// ensureCompoundIndex adds the (workspace_id, key) unique index and leaves
// the primary key alone.
func ensureCompoundIndex(ctx context.Context, tx *sqlx.Tx, ref KeyRef) (string, error) {
	ready, err := keyTableReady(ctx, tx, ref)
	if err != nil || !ready {
		return outcomeSkipped, err
	}

	created, err := createCompoundIndex(ctx, tx, ref)
	if err != nil {
		return "", err
	}
	if !created {
		return outcomeUnchanged, nil
	}
	return outcomeIndexed, nil
}

// keyTableReady reports whether the table and key column exist. A table that
// exists without the tenant column is an error: its column step failed.
func keyTableReady(ctx context.Context, tx *sqlx.Tx, ref KeyRef) (bool, error) {
	exists, err := tableExists(ctx, tx, ref.Table)
	if err != nil || !exists {
		return false, err
	}

	hasKey, err := columnExists(ctx, tx, ref.Table, ref.Column)
	if err != nil {
		return false, err
	}
	if !hasKey {
		return false, fmt.Errorf("column %s.%s does not exist", ref.Table, ref.Column)
	}

	hasTenant, err := columnExists(ctx, tx, ref.Table, tenantColumn)
	if err != nil {
		return false, err
	}
	if !hasTenant {
		return false, fmt.Errorf("table %s has no %s column", ref.Table, tenantColumn)
	}
	return true, nil
}

func createCompoundIndex(ctx context.Context, tx *sqlx.Tx, ref KeyRef) (bool, error) {
	name := compoundIndexName(ref.Table, ref.Column)

	exists, err := indexExists(ctx, tx, ref.Table, name)
	if err != nil || exists {
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		`CREATE UNIQUE INDEX `+ident(name)+
			` ON `+ident(ref.Table)+` (`+tenantColumn+`, `+ident(ref.Column)+`)`,
	)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", name, err)
	}
	return true, nil
}

func appendOnce(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
