package classifier

import (
	"strings"

	"github.com/ternarybob/docharvest/internal/models"
)

// heuristicRule maps a filename substring to a document type. Rules are
// evaluated in order; the first match wins.
type heuristicRule struct {
	substring string
	docType   models.DocumentType
}

var heuristicRules = []heuristicRule{
	{"install", models.DocumentTypeInstallationManual},
	{"iom", models.DocumentTypeInstallationManual},
	{"submittal", models.DocumentTypeSubmittalSheet},
	{"datasheet", models.DocumentTypeProductDataSheet},
	{"spec", models.DocumentTypeSpecificationSheet},
	{"catalog", models.DocumentTypeMarketing},
	{"brochure", models.DocumentTypeMarketing},
}

// ClassifyByFilename applies the filename-substring heuristic fallback.
// If no rule matches, it returns DocumentTypeUnknown.
func ClassifyByFilename(filename string) models.DocumentType {
	lower := strings.ToLower(filename)
	for _, rule := range heuristicRules {
		if strings.Contains(lower, rule.substring) {
			return rule.docType
		}
	}
	return models.DocumentTypeUnknown
}
