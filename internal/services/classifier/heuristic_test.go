package classifier

import (
	"testing"

	"github.com/ternarybob/docharvest/internal/models"
)

func TestClassifyByFilename(t *testing.T) {
	cases := []struct {
		filename string
		want     models.DocumentType
	}{
		{"Widget_Install_Guide.pdf", models.DocumentTypeInstallationManual},
		{"widget-iom-2024.pdf", models.DocumentTypeInstallationManual},
		{"Widget_Submittal.pdf", models.DocumentTypeSubmittalSheet},
		{"widget_datasheet.pdf", models.DocumentTypeProductDataSheet},
		{"widget_spec_sheet.pdf", models.DocumentTypeSpecificationSheet},
		{"2024-catalog.pdf", models.DocumentTypeMarketing},
		{"product-brochure.pdf", models.DocumentTypeMarketing},
		{"random-file-name.pdf", models.DocumentTypeUnknown},
	}
	for _, c := range cases {
		if got := ClassifyByFilename(c.filename); got != c.want {
			t.Errorf("ClassifyByFilename(%q) = %q, want %q", c.filename, got, c.want)
		}
	}
}

func TestClassifyByFilename_AllowListSplit(t *testing.T) {
	// Mirrors the S1 scenario mix: 2 install manuals, 3 datasheets, 3
	// submittals, 2 brochures -> only the 6 datasheets+submittals upload.
	files := []string{
		"install-1.pdf", "iom-2.pdf",
		"datasheet-1.pdf", "datasheet-2.pdf", "datasheet-3.pdf",
		"submittal-1.pdf", "submittal-2.pdf", "submittal-3.pdf",
		"brochure-1.pdf", "catalog-2.pdf",
	}
	uploaded := 0
	for _, f := range files {
		if ClassifyByFilename(f).IsAllowListed() {
			uploaded++
		}
	}
	if uploaded != 6 {
		t.Errorf("expected 6 allow-listed documents, got %d", uploaded)
	}
}
