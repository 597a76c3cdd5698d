package interfaces

import "context"

// PDFTextExtractor pulls text out of raw PDF bytes for the classifier. It
// is intentionally narrow: the classifier only ever needs the first page,
// best-effort, falling back to filename-only classification on error.
type PDFTextExtractor interface {
	// ExtractFirstPageText returns the text content of page 1 of the PDF.
	// A non-nil error means extraction failed; callers should fall back
	// to filename-only classification rather than fail the artifact.
	ExtractFirstPageText(ctx context.Context, pdfBytes []byte) (string, error)
}
