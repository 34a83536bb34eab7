package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/repository"
	_ "github.com/lib/pq"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	tenantID := flag.String("tenant", "", "Migrate only this tenant's schema")
	flag.Parse()

	if *dryRun {
		for _, name := range []string{"central", "tenant"} {
			schema, _ := postgres.Schema(name)
			fmt.Printf("-- %s\n%s\n", name, schema)
		}
		return
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger.Infow("connecting to database", "host", cfg.Postgres.Host)
	central, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("failed to connect to postgres", "error", err)
	}
	defer central.Close()

	if err := postgres.MigrateCentral(ctx, central); err != nil {
		logger.Fatalw("failed to migrate central schema", "error", err)
	}

	tenants, err := repository.NewTenantRepository(central, logger).ListActive(ctx)
	if err != nil {
		logger.Fatalw("failed to list tenants", "error", err)
	}

	migrated := 0
	for _, t := range tenants {
		if *tenantID != "" && t.ID != *tenantID {
			continue
		}
		db, err := postgres.OpenTenant(cfg, t, logger)
		if err != nil {
			logger.Fatalw("failed to connect to tenant schema", "tenant_id", t.ID, "error", err)
		}
		err = postgres.MigrateTenant(ctx, db)
		db.Close()
		if err != nil {
			logger.Fatalw("failed to migrate tenant schema", "tenant_id", t.ID, "error", err)
		}
		migrated++
	}

	logger.Infow("migration completed", "tenants", migrated)
}
