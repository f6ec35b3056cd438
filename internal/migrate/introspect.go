// AngelaMos | 2026
// introspect.go

package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

const (
	tableExistsQuery = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`

	columnExistsQuery = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema()
			  AND table_name = $1 AND column_name = $2
		)`

	indexExistsQuery = `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = current_schema()
			  AND tablename = $1 AND indexname = $2
		)`

	// Unique, non-primary indexes covering exactly one column, with the
	// owning constraint name when the index backs a UNIQUE constraint.
	singleColumnUniqueQuery = `
		SELECT i.relname AS index_name,
		       COALESCE(c.conname, '') AS constraint_name
		FROM pg_index x
		JOIN pg_class t ON t.oid = x.indrelid
		JOIN pg_class i ON i.oid = x.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = x.indkey[0]
		LEFT JOIN pg_constraint c ON c.conindid = x.indexrelid AND c.contype = 'u'
		WHERE n.nspname = current_schema()
		  AND t.relname = $1
		  AND a.attname = $2
		  AND x.indisunique
		  AND NOT x.indisprimary
		  AND x.indnatts = 1
		ORDER BY i.relname`
)

type uniqueIndex struct {
	Index      string `db:"index_name"`
	Constraint string `db:"constraint_name"`
}

func tableExists(ctx context.Context, db core.DBTX, table string) (bool, error) {
	var ok bool
	if err := db.GetContext(ctx, &ok, tableExistsQuery, table); err != nil {
		return false, fmt.Errorf("inspect table %s: %w", table, err)
	}
	return ok, nil
}

func columnExists(ctx context.Context, db core.DBTX, table, column string) (bool, error) {
	var ok bool
	if err := db.GetContext(ctx, &ok, columnExistsQuery, table, column); err != nil {
		return false, fmt.Errorf("inspect column %s.%s: %w", table, column, err)
	}
	return ok, nil
}

func indexExists(ctx context.Context, db core.DBTX, table, index string) (bool, error) {
	var ok bool
	if err := db.GetContext(ctx, &ok, indexExistsQuery, table, index); err != nil {
		return false, fmt.Errorf("inspect index %s: %w", index, err)
	}
	return ok, nil
}

func hasUnownedRows(ctx context.Context, db core.DBTX, table string) (bool, error) {
	var ok bool
	query := `SELECT EXISTS (SELECT 1 FROM ` + ident(table) + ` WHERE ` + tenantColumn + ` IS NULL)`
	if err := db.GetContext(ctx, &ok, query); err != nil {
		return false, fmt.Errorf("inspect unowned rows in %s: %w", table, err)
	}
	return ok, nil
}

func singleColumnUniques(
	ctx context.Context,
	db core.DBTX,
	table, column string,
) ([]uniqueIndex, error) {
	var out []uniqueIndex
	if err := db.SelectContext(ctx, &out, singleColumnUniqueQuery, table, column); err != nil {
		return nil, fmt.Errorf("inspect unique keys on %s.%s: %w", table, column, err)
	}
	return out, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func tenantIndexName(table string) string {
	return "idx_" + table + "_" + tenantColumn
}

func compoundIndexName(table, column string) string {
	return "uq_" + table + "_workspace_" + column
}
