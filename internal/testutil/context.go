package testutil

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
)

const TestTenantID = "tenant_test"

func SetupContext() context.Context {
	ctx := types.WithTenant(context.Background(), TestTenantID)
	ctx = types.SetActor(ctx, types.SystemActor)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
