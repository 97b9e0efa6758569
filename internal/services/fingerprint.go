package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lexohub/docclassify/internal/models"
)

// fingerprintBlockLimit caps how many leading text blocks contribute to the
// structural fingerprint. Recurring templates (letterheads, court forms)
// are recognizable from the first few blocks alone, and a small cap keeps
// the fingerprint stable against body-content variation.
const fingerprintBlockLimit = 5

// StructuralFingerprint derives a stable hash from a document's first-page
// layout: the top block origins in page order, then page count and integer
// page dimensions. Identical layouts produce identical fingerprints; any
// change to the feature extraction invalidates every cached template.
func StructuralFingerprint(profile *models.PageProfile) string {
	features := make([]string, 0, fingerprintBlockLimit+3)

	origins := profile.BlockOrigins
	if len(origins) > fingerprintBlockLimit {
		origins = origins[:fingerprintBlockLimit]
	}
	for _, o := range origins {
		features = append(features, fmt.Sprintf("%d,%d", o.X, o.Y))
	}
	features = append(features,
		fmt.Sprintf("pages:%d", profile.PageCount),
		fmt.Sprintf("width:%d", profile.PageWidth),
		fmt.Sprintf("height:%d", profile.PageHeight),
	)

	sum := sha256.Sum256([]byte(strings.Join(features, "|")))
	return hex.EncodeToString(sum[:])
}

// KeyFingerprint is the degraded fingerprint for documents whose features
// could not be extracted. Hashing the object key cannot collide with a
// legitimate structural fingerprint, so the template lookup is a guaranteed
// miss and the document proceeds through the heuristic path.
func KeyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
