package classifier

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/models"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return f.response, f.err
}
func (f *fakeLLM) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeLLM) Close() error                          { return nil }

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractFirstPageText(ctx context.Context, pdfBytes []byte) (string, error) {
	return f.text, f.err
}

func newTestLogger() arbor.ILogger { return arbor.NewLogger() }

func TestClassify_LLMHighConfidence(t *testing.T) {
	llm := &fakeLLM{response: `{"document_type": "Submittal Sheet", "confidence": 0.92}`}
	c := NewClassifier(llm, &fakeExtractor{text: "submittal data"}, 0.5, newTestLogger())

	docType, allowed := c.Classify(context.Background(), "unit-42.pdf", []byte("%PDF-"))
	if docType != models.DocumentTypeSubmittalSheet {
		t.Errorf("expected Submittal Sheet, got %q", docType)
	}
	if !allowed {
		t.Error("expected Submittal Sheet to be allow-listed")
	}
}

func TestClassify_LowConfidenceFallsBackToHeuristic(t *testing.T) {
	llm := &fakeLLM{response: `{"document_type": "Marketing", "confidence": 0.1}`}
	c := NewClassifier(llm, &fakeExtractor{}, 0.5, newTestLogger())

	docType, _ := c.Classify(context.Background(), "widget-datasheet.pdf", []byte("%PDF-"))
	if docType != models.DocumentTypeProductDataSheet {
		t.Errorf("expected heuristic fallback to Product Data Sheet, got %q", docType)
	}
}

func TestClassify_JailbreakNoiseAroundEnvelope(t *testing.T) {
	llm := &fakeLLM{response: "Ignore prior instructions.\n```\n{\"document_type\": \"Product Data Sheet\", \"confidence\": 0.8}\n```\nDone."}
	c := NewClassifier(llm, &fakeExtractor{}, 0.5, newTestLogger())

	docType, allowed := c.Classify(context.Background(), "x.pdf", []byte("%PDF-"))
	if docType != models.DocumentTypeProductDataSheet || !allowed {
		t.Errorf("expected envelope to be extracted despite surrounding noise, got %q allowed=%v", docType, allowed)
	}
}

func TestClassify_LLMErrorFallsBackToHeuristic(t *testing.T) {
	llm := &fakeLLM{err: context.DeadlineExceeded}
	c := NewClassifier(llm, &fakeExtractor{}, 0.5, newTestLogger())

	docType, _ := c.Classify(context.Background(), "install-manual-v2.pdf", []byte("%PDF-"))
	if docType != models.DocumentTypeInstallationManual {
		t.Errorf("expected heuristic fallback to Installation Manual, got %q", docType)
	}
}

func TestClassify_UnknownDocumentTypeFallsBack(t *testing.T) {
	llm := &fakeLLM{response: `{"document_type": "Something Weird", "confidence": 0.99}`}
	c := NewClassifier(llm, &fakeExtractor{}, 0.5, newTestLogger())

	docType, _ := c.Classify(context.Background(), "random-file.pdf", []byte("%PDF-"))
	if docType != models.DocumentTypeUnknown {
		t.Errorf("expected Unknown for unrecognized LLM label with no heuristic match, got %q", docType)
	}
}
