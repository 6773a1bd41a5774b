package textextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoText is returned when pdftotext succeeds but yields only whitespace.
var ErrNoText = errors.New("no text in document")

type Config struct {
	PDFToText string // binary, default "pdftotext"
	TempDir   string
}

// PDFText extracts the text layer of a PDF with pdftotext.
type PDFText struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func New(cfg Config, runner Runner, logger *slog.Logger) *PDFText {
	if cfg.PDFToText == "" {
		cfg.PDFToText = "pdftotext"
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFText{cfg: cfg, runner: runner, logger: logger}
}

// Text writes the document to a temp file and returns its layout text.
func (p *PDFText) Text(ctx context.Context, document []byte) (string, error) {
	f, err := os.CreateTemp(p.cfg.TempDir, "it-text-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("textextract.cleanup_failed", "path", path, "error", err)
		}
	}()

	if _, err := f.Write(document); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := p.runner.Run(ctx, p.cfg.PDFToText, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return "", fmt.Errorf("extract text: %w: %s", err, clip(msg, 512))
		}
		return "", fmt.Errorf("extract text: %w", err)
	}
	text := string(out)
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	p.logger.Debug("textextract.ok", "chars", len(text), "pages", 1+strings.Count(text, "\f"))
	return text, nil
}

// PageCount reads the page count of a PDF in relaxed validation mode.
func PageCount(document []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(document), conf)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return n, nil
}
