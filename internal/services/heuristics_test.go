package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lexohub/docclassify/internal/models"
)

func TestClassifyFilename(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"intake/Invoice_2041.pdf", "invoice"},
		{"intake/receipt-77.pdf", "invoice"},
		{"intake/Agreement_acme.pdf", "contract"},
		{"intake/motion-to-dismiss.pdf", "court_filing"},
		{"intake/letter_2026-08.pdf", "correspondence"},
		{"intake/appellate_brief.pdf", "pleading"},
		{"intake/scan0001.pdf", ""},
	}
	for _, c := range cases {
		t.Run(c.key, func(t *testing.T) {
			assert.Equal(t, c.want, ClassifyFilename(c.key))
		})
	}
}

func TestClassifyFilename_FirstPatternWins(t *testing.T) {
	// Matches both the invoice and contract patterns; the ordered list
	// resolves to invoice.
	assert.Equal(t, "invoice", ClassifyFilename("intake/invoice_42_agreement.pdf"))
}

func TestAnalyzeContent_KeywordSets(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		wantType  string
		wantScore float64
	}{
		{"invoice", "INVOICE #2041\nBill To: Acme Corp\nAmount Due: $1,200", "invoice", 0.7},
		{"contract", "This Agreement is entered into by the undersigned", "contract", 0.7},
		{"litigation", "IN THE SUPERIOR COURT\nPlaintiff v. Defendant", "court_filing", 0.8},
		{"undetermined", "Quarterly planning notes", "", 0.6},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			analysis := AnalyzeContent(&models.PageProfile{PageCount: 2, Text: c.text})
			assert.Equal(t, c.wantType, analysis.DocumentType)
			assert.Equal(t, c.wantScore, analysis.Confidence)
			assert.Equal(t, 2, analysis.PageCount)
		})
	}
}

func TestAnalyzeContent_FirstSetWins(t *testing.T) {
	// Contains invoice and litigation keywords; the ordered sets resolve to
	// invoice with no confidence blending.
	analysis := AnalyzeContent(&models.PageProfile{PageCount: 1, Text: "invoice for court reporting services"})
	assert.Equal(t, "invoice", analysis.DocumentType)
	assert.Equal(t, 0.7, analysis.Confidence)
}

func TestAnalyzeContent_NilProfileFallback(t *testing.T) {
	analysis := AnalyzeContent(nil)

	assert.Zero(t, analysis.PageCount)
	assert.False(t, analysis.HasTables)
	assert.False(t, analysis.HasForms)
	assert.Empty(t, analysis.DocumentType)
	assert.Equal(t, 0.3, analysis.Confidence)
}

func TestDecideTier(t *testing.T) {
	trusted := &models.TemplateCacheEntry{StructuralHash: "abc", Confidence: 0.9}
	weak := &models.TemplateCacheEntry{StructuralHash: "abc", Confidence: 0.85}

	cases := []struct {
		name     string
		template *models.TemplateCacheEntry
		analysis models.ContentAnalysis
		want     int
	}{
		{"trusted template", trusted, models.ContentAnalysis{PageCount: 2, Confidence: 0.6}, 0},
		{"trusted template overrides size", trusted, models.ContentAnalysis{PageCount: 20, Confidence: 0.3}, 0},
		{"threshold is exclusive", weak, models.ContentAnalysis{PageCount: 2, Confidence: 0.6}, 1},
		{"short simple doc", nil, models.ContentAnalysis{PageCount: 2, Confidence: 0.6}, 1},
		{"short doc with tables escalates", nil, models.ContentAnalysis{PageCount: 2, HasTables: true, Confidence: 0.6}, 2},
		{"tables regardless of confidence", nil, models.ContentAnalysis{PageCount: 5, HasTables: true, Confidence: 0.9}, 2},
		{"forms", nil, models.ContentAnalysis{PageCount: 5, HasForms: true, Confidence: 0.6}, 2},
		{"large doc despite high confidence", nil, models.ContentAnalysis{PageCount: 15, Confidence: 0.9}, 3},
		{"low confidence", nil, models.ContentAnalysis{PageCount: 5, Confidence: 0.3}, 3},
		{"medium fairly confident default", nil, models.ContentAnalysis{PageCount: 7, Confidence: 0.6}, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := DecideTier(c.template, c.analysis)
			assert.Equal(t, c.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 3)
		})
	}
}
