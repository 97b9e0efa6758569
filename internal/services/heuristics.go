package services

import (
	"path"
	"regexp"
	"strings"

	"github.com/lexohub/docclassify/internal/models"
)

// Tier policy thresholds. These are domain constants, not tuning knobs:
// the template cache is only trusted outright above templateTrustThreshold,
// and documents that are large or poorly understood escalate to the
// highest-scrutiny tier.
const (
	templateTrustThreshold = 0.85
	simplePageLimit        = 3
	largePageLimit         = 10
	lowConfidenceFloor     = 0.5
)

// Content-analysis confidence levels.
const (
	baseContentConfidence     = 0.6
	fallbackContentConfidence = 0.3
)

// filenamePatterns maps filename keywords to document types. Order matters:
// the first matching pattern wins.
var filenamePatterns = []struct {
	docType string
	re      *regexp.Regexp
}{
	{"invoice", regexp.MustCompile(`(invoice|bill|receipt)[-_]?\d+`)},
	{"contract", regexp.MustCompile(`(contract|agreement)[-_]?[a-z0-9]+`)},
	{"court_filing", regexp.MustCompile(`(motion|petition|complaint|answer)[-_]?`)},
	{"correspondence", regexp.MustCompile(`(letter|memo|email)[-_]?`)},
	{"pleading", regexp.MustCompile(`(pleading|brief|memorandum)[-_]?`)},
}

// contentKeywords maps first-page keyword sets to document types. Ordered;
// the first set with any hit wins, no blending of confidences.
var contentKeywords = []struct {
	docType    string
	confidence float64
	keywords   []string
}{
	{"invoice", 0.7, []string{"invoice", "bill to", "amount due"}},
	{"contract", 0.7, []string{"agreement", "contract", "parties"}},
	{"court_filing", 0.8, []string{"court", "plaintiff", "defendant"}},
}

// ClassifyFilename matches the lowercased object key's base name against
// the named patterns. Returns "" when no pattern matches.
func ClassifyFilename(key string) string {
	filename := strings.ToLower(path.Base(key))
	for _, p := range filenamePatterns {
		if p.re.MatchString(filename) {
			return p.docType
		}
	}
	return ""
}

// AnalyzeContent reads the classifier signals out of a first-page profile.
// A nil profile means feature extraction failed; the analysis then reports
// the maximally conservative read: zero pages, no structural signals, and
// the lowest confidence.
func AnalyzeContent(profile *models.PageProfile) models.ContentAnalysis {
	if profile == nil {
		return models.ContentAnalysis{Confidence: fallbackContentConfidence}
	}

	analysis := models.ContentAnalysis{
		PageCount:  profile.PageCount,
		HasTables:  profile.HasTables,
		HasForms:   profile.HasForms,
		Confidence: baseContentConfidence,
	}

	text := strings.ToLower(profile.Text)
	for _, set := range contentKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(text, kw) {
				analysis.DocumentType = set.docType
				analysis.Confidence = set.confidence
				return analysis
			}
		}
	}
	return analysis
}

// DecideTier assigns a processing tier, first satisfied rule wins:
//
//  1. trusted template match             -> tier 0
//  2. short, no tables, no forms         -> tier 1
//  3. tables or forms present            -> tier 2
//  4. large or low-confidence            -> tier 3
//  5. medium, fairly confident           -> tier 2
//
// Template trust overrides everything, simplicity is checked before the
// moderate default, structural complexity pre-empts the catch-all, and
// extreme size or uncertainty escalates regardless of structure.
func DecideTier(template *models.TemplateCacheEntry, analysis models.ContentAnalysis) int {
	if TrustedTemplate(template) {
		return 0
	}
	if analysis.PageCount <= simplePageLimit && !analysis.HasTables && !analysis.HasForms {
		return 1
	}
	if analysis.HasTables || analysis.HasForms {
		return 2
	}
	if analysis.PageCount > largePageLimit || analysis.Confidence < lowConfidenceFloor {
		return 3
	}
	return 2
}

// TrustedTemplate reports whether a cache entry is confident enough to
// route on without running the heuristic classifier at all.
func TrustedTemplate(template *models.TemplateCacheEntry) bool {
	return template != nil && template.Confidence > templateTrustThreshold
}
