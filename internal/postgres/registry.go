package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/tenant"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/types"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// closeDelay lets statements already started on an evicted pool finish
const closeDelay = 30 * time.Second

// Opener opens a pool on the given tenant schema
type Opener func(ctx context.Context, t *tenant.Tenant) (*DB, error)

// TenantRegistry holds one connection pool per tenant schema. Pools are bounded
// in number and lifetime; an evicted pool is closed.
type TenantRegistry struct {
	tenants tenant.Repository
	open    Opener
	pools   *lru.LRU[string, *DB]
	logger  *logger.Logger
	metrics *metrics.Metrics

	// mu serializes pool creation so concurrent first requests open one pool
	mu      sync.Mutex
	closing atomic.Bool
}

func NewTenantRegistry(
	cfg *config.Configuration,
	tenants tenant.Repository,
	logger *logger.Logger,
	m *metrics.Metrics,
) *TenantRegistry {
	pc := cfg.TenantPool
	opener := func(ctx context.Context, t *tenant.Tenant) (*DB, error) {
		db, err := OpenTenant(cfg, t, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.AutoMigrate {
			if err := MigrateTenant(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		return db, nil
	}
	return NewTenantRegistryWithOpener(pc.MaxTenants, pc.IdleTTL, tenants, opener, logger, m)
}

// OpenTenant connects to the schema of t
func OpenTenant(cfg *config.Configuration, t *tenant.Tenant, logger *logger.Logger) (*DB, error) {
	maxOpen := cfg.TenantPool.MaxOpenConn
	if maxOpen <= 0 {
		maxOpen = cfg.Postgres.MaxOpenConns
	}
	return open(cfg.Postgres.GetTenantDSN(t.Schema), maxOpen, maxOpen,
		time.Duration(cfg.Postgres.ConnMaxLifetimeMinutes)*time.Minute, logger, t.ID)
}

func NewTenantRegistryWithOpener(
	maxTenants int,
	ttl time.Duration,
	tenants tenant.Repository,
	opener Opener,
	logger *logger.Logger,
	m *metrics.Metrics,
) *TenantRegistry {
	r := &TenantRegistry{
		tenants: tenants,
		open:    opener,
		logger:  logger,
		metrics: m,
	}
	r.pools = lru.NewLRU[string, *DB](maxTenants, r.onEvict, ttl)
	return r
}

func (r *TenantRegistry) onEvict(tenantID string, db *DB) {
	r.logger.Infow("closing tenant pool", "tenant_id", tenantID)
	if r.closing.Load() {
		db.Close()
		return
	}
	time.AfterFunc(closeDelay, db.Close)
}

// ForTenant returns the pool of tenantID, opening it on first use
func (r *TenantRegistry) ForTenant(ctx context.Context, tenantID string) (*DB, error) {
	if tenantID == "" {
		return nil, ierr.NewError("tenant id is required").
			WithHint("The request is not bound to a tenant").
			Mark(ierr.ErrValidation)
	}

	if db, ok := r.pools.Get(tenantID); ok {
		return db, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.pools.Get(tenantID); ok {
		return db, nil
	}

	t, err := r.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if t.Status != types.StatusPublished {
		return nil, ierr.NewError("tenant is not active").
			WithReportableDetails(map[string]interface{}{"tenant_id": tenantID}).
			Mark(ierr.ErrPermissionDenied)
	}

	db, err := r.open(ctx, t)
	if err != nil {
		return nil, err
	}

	r.pools.Add(tenantID, db)
	r.metrics.SetTenantPools(r.pools.Len())
	r.logger.Infow("opened tenant pool", "tenant_id", tenantID, "schema", t.Schema)
	return db, nil
}

// ForContext resolves the pool of the tenant carried by ctx
func (r *TenantRegistry) ForContext(ctx context.Context) (*DB, error) {
	return r.ForTenant(ctx, types.GetTenantID(ctx))
}

// Evict drops the pool of tenantID if one is held
func (r *TenantRegistry) Evict(tenantID string) {
	r.pools.Remove(tenantID)
	r.metrics.SetTenantPools(r.pools.Len())
}

func (r *TenantRegistry) Len() int {
	return r.pools.Len()
}

// Close releases every pool immediately
func (r *TenantRegistry) Close() {
	r.closing.Store(true)
	r.pools.Purge()
	r.metrics.SetTenantPools(0)
}

// Router is the IClient that routes every call to the tenant pool named by ctx
type Router struct {
	registry *TenantRegistry
}

func NewRouter(registry *TenantRegistry) *Router {
	return &Router{registry: registry}
}

func (c *Router) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	db, err := c.registry.ForContext(ctx)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, fn)
}

func (c *Router) Querier(ctx context.Context) (Querier, error) {
	db, err := c.registry.ForContext(ctx)
	if err != nil {
		return nil, err
	}
	if tx, ok := GetTx(ctx); ok && tx.tenantID != db.tenantID {
		return nil, ierr.NewError("transaction belongs to another tenant").Mark(ierr.ErrInvalidOperation)
	}
	return db.GetQuerier(ctx), nil
}
