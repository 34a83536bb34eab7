package pdf

import (
	"context"
	"encoding/json"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/typst"
)

const invoiceTemplate = "invoice.typ"

type document struct {
	Tenant   interface{} `json:"tenant"`
	Customer interface{} `json:"customer"`
	Invoice  interface{} `json:"invoice"`
}

// Renderer renders invoice snapshots to PDF through typst
type Renderer struct {
	typst  typst.Compiler
	logger *logger.Logger
}

var _ interfaces.DocumentRenderer = (*Renderer)(nil)

func NewRenderer(compiler typst.Compiler, logger *logger.Logger) *Renderer {
	return &Renderer{typst: compiler, logger: logger}
}

func (r *Renderer) Render(ctx context.Context, snapshot interfaces.DocumentSnapshot) ([]byte, error) {
	if snapshot.Invoice == nil {
		return nil, ierr.NewError("invoice is required").
			WithHint("A document needs an invoice to render").
			Mark(ierr.ErrValidation)
	}

	data, err := json.Marshal(document{
		Tenant:   snapshot.Tenant,
		Customer: snapshot.Customer,
		Invoice:  snapshot.Invoice,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to marshal invoice data").
			Mark(ierr.ErrSystem)
	}

	out, err := r.typst.CompileTemplate(ctx, invoiceTemplate, data)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to compile invoice template").
			Mark(ierr.ErrSystem)
	}

	r.logger.WithContext(ctx).Debugw("rendered invoice document", "bytes", len(out))
	return out, nil
}
