// -----------------------------------------------------------------------
// PDF Extractor - first-page text extraction for classifier input
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/interfaces"
)

// Extractor implements interfaces.PDFTextExtractor using pdfcpu. It
// exposes a single operation, first-page text, for freshly-downloaded
// bytes that are never stored as a PDF corpus.
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

var _ interfaces.PDFTextExtractor = (*Extractor)(nil)

// NewExtractor creates a PDF extractor service.
func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "docharvest-pdf")
	os.MkdirAll(tempDir, 0755)
	return &Extractor{logger: logger, tempDir: tempDir}
}

// ExtractFirstPageText extracts text from page 1 of pdfContent. It is
// best-effort: the Classifier falls back to filename-only input on error.
func (e *Extractor) ExtractFirstPageText(ctx context.Context, pdfContent []byte) (string, error) {
	tempFile := filepath.Join(e.tempDir, fmt.Sprintf("extract_%s.pdf", uuid.NewString()))
	if err := os.WriteFile(tempFile, pdfContent, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	defer os.Remove(tempFile)

	conf := model.NewDefaultConfiguration()
	if _, err := api.ReadContextFile(tempFile); err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}

	outDir := filepath.Join(e.tempDir, fmt.Sprintf("page1_%s", uuid.NewString()))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(tempFile, outDir, []string{"1"}, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF page 1 content: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction dir: %w", err)
	}

	var text strings.Builder
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		text.Write(content)
	}

	return text.String(), nil
}
