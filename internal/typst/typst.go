package typst

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
)

type Compiler interface {
	// CompileTemplate compiles templateName with data exposed to the template
	// as a JSON file whose path is passed in sys.inputs.path:
	//
	//	#let data = json(sys.inputs.path)
	CompileTemplate(ctx context.Context, templateName string, data []byte) ([]byte, error)
}

// compiler shells out to the typst binary
type compiler struct {
	logger      *logger.Logger
	binaryPath  string
	fontDir     string
	templateDir string
	workDir     string
}

// NewCompiler creates a new Typst compiler
func NewCompiler(logger *logger.Logger, binaryPath, fontDir, templateDir, workDir string) Compiler {
	if binaryPath == "" {
		binaryPath = "typst"
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &compiler{
		logger:      logger,
		binaryPath:  binaryPath,
		fontDir:     fontDir,
		templateDir: templateDir,
		workDir:     workDir,
	}
}

// NewCompilerFromConfig builds a compiler from the documents section of the configuration
func NewCompilerFromConfig(cfg *config.Configuration, logger *logger.Logger) Compiler {
	return NewCompiler(logger, cfg.Documents.TypstBinary, cfg.Documents.FontDir, cfg.Documents.TemplateDir, "")
}

func (c *compiler) CompileTemplate(ctx context.Context, templateName string, data []byte) ([]byte, error) {
	templatePath, err := filepath.Abs(filepath.Join(c.templateDir, templateName))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Invalid template path %s", templateName).
			Mark(ierr.ErrConfiguration)
	}
	if _, err := os.Stat(templatePath); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Template %s not found", templateName).
			Mark(ierr.ErrConfiguration)
	}

	input, err := c.tempFile("typst-*.json", data)
	if err != nil {
		return nil, err
	}
	defer os.Remove(input)

	output, err := c.tempFile("typst-*.pdf", nil)
	if err != nil {
		return nil, err
	}
	defer os.Remove(output)

	args := []string{"compile", "--root", "/"}
	if c.fontDir != "" {
		args = append(args, "--font-path", c.fontDir)
	}
	args = append(args, "--input", "path="+input, templatePath, output)

	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		c.logger.Errorw("typst compilation failed",
			"template", templateName,
			"error", err,
			"stderr", stderr.String(),
		)
		return nil, ierr.WithError(err).
			WithMessage("typst compilation failed").
			WithHint("Failed to compile document template").
			WithReportableDetails(map[string]any{
				"template": templateName,
				"stderr":   stderr.String(),
			}).
			Mark(ierr.ErrSystem)
	}

	return os.ReadFile(output)
}

func (c *compiler) tempFile(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(c.workDir, pattern)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to create temporary file").
			Mark(ierr.ErrSystem)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", ierr.WithError(err).
			WithHint("Failed to write temporary file").
			Mark(ierr.ErrSystem)
	}
	return filepath.Abs(f.Name())
}
