package types

import (
	"context"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxTenantID  ContextKey = "ctx_tenant_id"
	CtxActor     ContextKey = "ctx_actor"

	HeaderRequestID = "X-Request-ID"
	HeaderTenantID  = "X-Tenant-ID"

	// SystemActor is recorded in created_by/updated_by for writes made by
	// workers and sweeps rather than an API caller
	SystemActor = "system"
	// APIActor is recorded for writes made through the HTTP surface
	APIActor = "api"
)

// GetActor returns who the current write is attributed to
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(CtxActor).(string); ok {
		return actor
	}
	return ""
}

func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(CtxTenantID).(string); ok {
		return tenantID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, CtxTenantID, tenantID)
}

func SetActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, CtxActor, actor)
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

// WithTenant scopes ctx to the tenant. Workers use it to restore the tenant
// carried on a queued message; writes default to the system actor.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	ctx = SetTenantID(ctx, tenantID)
	if GetActor(ctx) == "" {
		ctx = SetActor(ctx, SystemActor)
	}
	return ctx
}
