package pdf

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/flexprice/billingcore/internal/domain/invoice"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCompiler struct {
	mock.Mock
}

func (m *MockCompiler) CompileTemplate(ctx context.Context, templateName string, data []byte) ([]byte, error) {
	args := m.Called(ctx, templateName, data)
	return args.Get(0).([]byte), args.Error(1)
}

func TestRenderInvoice(t *testing.T) {
	compiler := new(MockCompiler)
	renderer := NewRenderer(compiler, logger.NewNoopLogger())

	inv := &invoice.Invoice{ID: "inv_1", InvoiceNumber: "INV-000001", Currency: "usd"}
	expected := []byte("%PDF-1.7")

	compiler.On("CompileTemplate", mock.Anything, "invoice.typ", mock.MatchedBy(func(data []byte) bool {
		var doc struct {
			Tenant  string `json:"tenant"`
			Invoice struct {
				InvoiceNumber string `json:"invoice_number"`
			} `json:"invoice"`
		}
		return json.Unmarshal(data, &doc) == nil &&
			doc.Tenant == "tenant_a" &&
			doc.Invoice.InvoiceNumber == "INV-000001"
	})).Return(expected, nil)

	out, err := renderer.Render(context.Background(), interfaces.DocumentSnapshot{
		Invoice: inv,
		Tenant:  "tenant_a",
	})

	assert.NoError(t, err)
	assert.Equal(t, expected, out)
	compiler.AssertExpectations(t)
}

func TestRenderInvoiceCompileError(t *testing.T) {
	compiler := new(MockCompiler)
	renderer := NewRenderer(compiler, logger.NewNoopLogger())

	compileErr := ierr.NewError("compilation error").Mark(ierr.ErrSystem)
	compiler.On("CompileTemplate", mock.Anything, "invoice.typ", mock.Anything).Return([]byte(nil), compileErr)

	out, err := renderer.Render(context.Background(), interfaces.DocumentSnapshot{Invoice: &invoice.Invoice{ID: "inv_1"}})

	assert.Error(t, err)
	assert.ErrorIs(t, err, compileErr)
	assert.Nil(t, out)
}

func TestRenderRequiresInvoice(t *testing.T) {
	renderer := NewRenderer(new(MockCompiler), logger.NewNoopLogger())

	_, err := renderer.Render(context.Background(), interfaces.DocumentSnapshot{})
	assert.True(t, ierr.IsValidation(err))
}
