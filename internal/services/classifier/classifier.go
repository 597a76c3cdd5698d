// -----------------------------------------------------------------------
// Classifier - LLM-with-fallback document type decision pipeline.
// -----------------------------------------------------------------------

package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docharvest/internal/interfaces"
	"github.com/ternarybob/docharvest/internal/models"
)

// jsonEnvelopePattern extracts the span from the first '{' to the last '}'
// of an LLM response, resisting jailbreak noise around the envelope.
var jsonEnvelopePattern = regexp.MustCompile(`(?s)\{.*\}`)

type llmDecision struct {
	DocumentType string  `json:"document_type"`
	Confidence   float64 `json:"confidence"`
}

// Classifier decides a DiscoveredPdf's document_type and is_technical
// flag via an LLM call with a filename-heuristic fallback, using the
// same timeout-context pattern as the LLM client it calls into.
type Classifier struct {
	llm                 interfaces.LLMService
	extractor           interfaces.PDFTextExtractor
	confidenceThreshold float64
	logger              arbor.ILogger
}

// NewClassifier builds a Classifier. extractor may be nil, in which case
// only the filename is sent to the LLM.
func NewClassifier(llm interfaces.LLMService, extractor interfaces.PDFTextExtractor, confidenceThreshold float64, logger arbor.ILogger) *Classifier {
	return &Classifier{llm: llm, extractor: extractor, confidenceThreshold: confidenceThreshold, logger: logger}
}

// Classify decides the document type for one downloaded PDF, returning
// the type and whether it is upload-eligible (type ∈ allow-list).
func (c *Classifier) Classify(ctx context.Context, filename string, pdfBytes []byte) (models.DocumentType, bool) {
	docType, ok := c.classifyWithLLM(ctx, filename, pdfBytes)
	if !ok {
		docType = ClassifyByFilename(filename)
		c.logger.Debug().Str("filename", filename).Str("document_type", string(docType)).Msg("classified via filename heuristic fallback")
	}
	return docType, docType.IsAllowListed()
}

func (c *Classifier) classifyWithLLM(ctx context.Context, filename string, pdfBytes []byte) (models.DocumentType, bool) {
	firstPageText := ""
	if c.extractor != nil {
		text, err := c.extractor.ExtractFirstPageText(ctx, pdfBytes)
		if err != nil {
			c.logger.Debug().Str("filename", filename).Err(err).Msg("first-page extraction failed, using filename only")
		} else {
			firstPageText = text
		}
	}

	prompt := buildClassificationPrompt(filename, firstPageText)

	llmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	response, err := c.llm.Chat(llmCtx, []interfaces.Message{
		{Role: "system", Content: "You classify manufacturer PDF documents. Respond with a single JSON object only."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("filename", filename).Msg("LLM classification call failed, falling back to heuristic")
		return "", false
	}

	decision, err := parseLLMDecision(response)
	if err != nil {
		c.logger.Warn().Err(err).Str("filename", filename).Msg("LLM response did not contain a valid JSON envelope, falling back to heuristic")
		return "", false
	}

	if decision.Confidence < c.confidenceThreshold {
		c.logger.Debug().Str("filename", filename).Float64("confidence", decision.Confidence).Msg("LLM confidence below threshold, falling back to heuristic")
		return "", false
	}

	docType := models.DocumentType(decision.DocumentType)
	if !isKnownDocumentType(docType) {
		return "", false
	}

	return docType, true
}

func buildClassificationPrompt(filename, firstPageText string) string {
	base := fmt.Sprintf(
		"Classify this manufacturer document into exactly one of: Product Data Sheet, "+
			"Specification Sheet, Submittal Sheet, Technical Data Sheet, Installation Manual, "+
			"Operation & Maintenance, Engineering Diagram, Marketing, Unknown.\n\n"+
			"Filename: %s\n", filename)
	if firstPageText != "" {
		base += fmt.Sprintf("First page text:\n%s\n\n", truncate(firstPageText, 4000))
	}
	base += `Respond with a JSON object: {"document_type": "<type>", "confidence": <0..1>}`
	return base
}

func parseLLMDecision(response string) (*llmDecision, error) {
	match := jsonEnvelopePattern.FindString(response)
	if match == "" {
		return nil, fmt.Errorf("no JSON envelope found in LLM response")
	}
	var decision llmDecision
	if err := json.Unmarshal([]byte(match), &decision); err != nil {
		return nil, fmt.Errorf("failed to parse JSON envelope: %w", err)
	}
	return &decision, nil
}

func isKnownDocumentType(t models.DocumentType) bool {
	switch t {
	case models.DocumentTypeProductDataSheet, models.DocumentTypeSpecificationSheet,
		models.DocumentTypeSubmittalSheet, models.DocumentTypeTechnicalDataSheet,
		models.DocumentTypeInstallationManual, models.DocumentTypeOperationMaintenance,
		models.DocumentTypeEngineeringDiagram, models.DocumentTypeMarketing, models.DocumentTypeUnknown:
		return true
	default:
		return false
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
