package postgres

import (
	"context"
	_ "embed"

	ierr "github.com/flexprice/billingcore/internal/errors"
)

//go:embed migrations/central.sql
var centralSchema string

//go:embed migrations/tenant.sql
var tenantSchema string

// MigrateCentral creates the tenant directory tables
func MigrateCentral(ctx context.Context, db *DB) error {
	return migrate(ctx, db, "central", centralSchema)
}

// MigrateTenant creates the billing tables in the schema db points at
func MigrateTenant(ctx context.Context, db *DB) error {
	return migrate(ctx, db, "tenant", tenantSchema)
}

// Schema returns the DDL applied for name, "central" or "tenant"
func Schema(name string) (string, bool) {
	switch name {
	case "central":
		return centralSchema, true
	case "tenant":
		return tenantSchema, true
	}
	return "", false
}

func migrate(ctx context.Context, db *DB, name, schema string) error {
	db.logger.Infow("applying schema", "schema", name, "tenant_id", db.tenantID)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to apply %s schema", name).
			Mark(ierr.ErrDatabase)
	}
	return nil
}
