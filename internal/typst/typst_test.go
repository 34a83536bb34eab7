package typst

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/stretchr/testify/suite"
)

type TypstCompilerSuite struct {
	suite.Suite
	tempDir  string
	compiler Compiler
}

func TestTypstCompiler(t *testing.T) {
	suite.Run(t, new(TypstCompilerSuite))
}

func (s *TypstCompilerSuite) SetupTest() {
	var err error
	s.tempDir, err = os.MkdirTemp("", "typst-test-*")
	s.Require().NoError(err)

	currentDir, err := os.Getwd()
	s.Require().NoError(err)
	s.compiler = NewCompiler(logger.NewNoopLogger(), "typst", "", filepath.Join(currentDir, "templates"), s.tempDir)
}

func (s *TypstCompilerSuite) TearDownTest() {
	os.RemoveAll(s.tempDir)
}

func (s *TypstCompilerSuite) requireTypst() {
	if _, err := exec.LookPath("typst"); err != nil {
		s.T().Skip("Skipping because typst is not available in the system")
	}
}

func (s *TypstCompilerSuite) TestDefaults() {
	c := NewCompiler(logger.NewNoopLogger(), "", "", "templates", "").(*compiler)
	s.Equal("typst", c.binaryPath)
	s.Equal(os.TempDir(), c.workDir)
}

func (s *TypstCompilerSuite) TestMissingTemplateIsConfigurationError() {
	_, err := s.compiler.CompileTemplate(context.Background(), "credit_note.typ", []byte(`{}`))
	s.Error(err)
	s.True(ierr.IsConfiguration(err))
}

func (s *TypstCompilerSuite) TestTemporaryFilesAreRemoved() {
	s.requireTypst()

	_, _ = s.compiler.CompileTemplate(context.Background(), "invoice.typ", []byte(`{}`))

	entries, err := os.ReadDir(s.tempDir)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *TypstCompilerSuite) TestInvoiceCompilation() {
	s.requireTypst()

	data := []byte(`{
		"tenant": "tenant_test",
		"customer": {"name": "Acme Corp", "email": "billing@acme.test"},
		"invoice": {
			"invoice_number": "INV-000001",
			"invoice_status": "FINALIZED",
			"currency": "usd",
			"amount": "120.50",
			"period_start": "2024-02-01T00:00:00Z",
			"period_end": "2024-03-01T00:00:00Z",
			"line_items": [
				{"display_name": "Basic plan", "quantity": "1", "unit_amount": "100", "amount": "100"},
				{"display_name": "API calls", "quantity": "41", "unit_amount": "0.5", "amount": "20.50"}
			]
		}
	}`)

	pdf, err := s.compiler.CompileTemplate(context.Background(), "invoice.typ", data)
	s.Require().NoError(err)
	s.True(len(pdf) > 4)
	s.Equal("%PDF", string(pdf[:4]))
}

func (s *TypstCompilerSuite) TestMalformedDataFails() {
	s.requireTypst()

	_, err := s.compiler.CompileTemplate(context.Background(), "invoice.typ", []byte(`{}`))
	s.Error(err)
}
