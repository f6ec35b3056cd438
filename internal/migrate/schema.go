// AngelaMos | 2026
// schema.go

package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

const migrationsTable = "schema_migrations"

// Migration is one forward-only step of the core schema.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

var coreMigrations = []Migration{
	{
		Version:     1,
		Description: "users and refresh tokens",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL DEFAULT 'user',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS refresh_tokens (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				token_hash TEXT NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				user_agent TEXT NOT NULL DEFAULT '',
				ip_address TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id
				ON refresh_tokens (user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires_at
				ON refresh_tokens (expires_at)`,
		},
	},
	{
		Version:     2,
		Description: "workspaces and memberships",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS workspaces (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL,
				slug TEXT NOT NULL UNIQUE,
				owner_id UUID NOT NULL REFERENCES users(id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE IF NOT EXISTS workspace_members (
				workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				role TEXT NOT NULL CHECK (role IN ('owner', 'editor', 'viewer')),
				joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workspace_id, user_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_workspace_members_user
				ON workspace_members (user_id, joined_at)`,
		},
	},
	{
		Version:     3,
		Description: "workspace activity log",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS activity_log (
				id UUID PRIMARY KEY,
				workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
				user_id UUID,
				action TEXT NOT NULL,
				subject TEXT NOT NULL DEFAULT '',
				metadata JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_activity_log_workspace_id
				ON activity_log (workspace_id, created_at DESC)`,
		},
	},
}

// CoreMigrations returns the core schema in version order.
func CoreMigrations() []Migration {
	return coreMigrations
}

// Schema applies versioned migrations, each in its own transaction, and
// records them in schema_migrations.
type Schema struct {
	db         *sqlx.DB
	logger     *slog.Logger
	migrations []Migration
}

func NewSchema(db *sqlx.DB, logger *slog.Logger, migrations ...Migration) *Schema {
	if len(migrations) == 0 {
		migrations = coreMigrations
	}
	return &Schema{db: db, logger: logger, migrations: migrations}
}

// Up applies every pending migration in order and returns how many ran.
// Unlike the backfill, a failure here stops the boot.
func (s *Schema) Up(ctx context.Context) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return 0, fmt.Errorf("ensure %s: %w", migrationsTable, err)
	}

	var versions []int
	err = s.db.SelectContext(ctx, &versions,
		`SELECT version FROM `+migrationsTable+` ORDER BY version`)
	if err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	count := 0
	for _, m := range s.migrations {
		if applied[m.Version] {
			continue
		}

		err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
			for _, stmt := range m.Statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO `+migrationsTable+` (version, description) VALUES ($1, $2)`,
				m.Version,
				m.Description,
			)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		count++
		s.logger.InfoContext(ctx, "migration applied",
			"version", m.Version,
			"description", m.Description,
		)
	}

	return count, nil
}
