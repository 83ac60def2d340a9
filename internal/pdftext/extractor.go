// internal/pdftext/extractor.go
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// ErrNoText is returned for PDFs without a text layer, such as scans.
var ErrNoText = errors.New("o PDF não contém texto extraível")

// PageBreak separates pages in the extracted text.
const PageBreak = "\f"

// Extractor turns a PDF into plain text.
type Extractor interface {
	Extract(ctx context.Context, r io.ReadSeeker) (string, error)
}

type extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a pdfcpu backed extractor.
func NewExtractor(logger *zap.Logger) Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &extractor{logger: logger}
}

// Extract reads every page content stream and joins the page texts with a
// form feed.
func (e *extractor) Extract(ctx context.Context, r io.ReadSeeker) (text string, err error) {
	// pdfcpu may panic on malformed input.
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("pdfcpu falhou ao ler o PDF", zap.Any("panic", rec))
			text, err = "", fmt.Errorf("PDF inválido: %v", rec)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadValidateAndOptimize(r, conf)
	if err != nil {
		return "", fmt.Errorf("falha ao ler e validar o PDF: %w", err)
	}

	pages := make([]string, 0, pdfCtx.PageCount)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil {
			e.logger.Debug("página sem conteúdo legível", zap.Int("page", pageNr), zap.Error(err))
			pages = append(pages, "")
			continue
		}
		if content == nil {
			pages = append(pages, "")
			continue
		}
		raw, err := io.ReadAll(content)
		if err != nil {
			return "", fmt.Errorf("falha ao ler a página %d: %w", pageNr, err)
		}
		pages = append(pages, contentText(raw))
	}

	text = strings.Join(pages, PageBreak)
	if strings.TrimSpace(strings.ReplaceAll(text, PageBreak, "")) == "" {
		return "", ErrNoText
	}
	e.logger.Debug("texto extraído do PDF", zap.Int("pages", pdfCtx.PageCount), zap.Int("chars", len(text)))
	return text, nil
}
