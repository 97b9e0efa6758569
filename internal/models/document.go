package models

import (
	"path"
	"time"
)

// Job statuses persisted in the document metadata collection. A document
// moves from PROCESSING to exactly one terminal state; this service never
// transitions a terminal state back.
const (
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// DocumentRef identifies the source bytes of a document in object storage.
type DocumentRef struct {
	Bucket string `json:"bucket" firestore:"bucket"`
	Key    string `json:"key" firestore:"key"`
}

// DocumentID returns the stable per-document identity used to key the
// metadata collection and to correlate extraction jobs: the final path
// segment of the object key.
func (r DocumentRef) DocumentID() string {
	return path.Base(r.Key)
}

// URI returns the gs:// form of the reference.
func (r DocumentRef) URI() string {
	return "gs://" + r.Bucket + "/" + r.Key
}

// ClassificationMetadata carries the structural signals the heuristic
// classifier derived from the first page.
type ClassificationMetadata struct {
	PageCount int  `json:"pageCount" firestore:"pageCount"`
	HasTables bool `json:"hasTables" firestore:"hasTables"`
	HasForms  bool `json:"hasForms" firestore:"hasForms"`
}

// ClassificationResult is the routing decision for a single intake record.
// It is created once per record, never mutated, and fully determines which
// tier queue receives the document.
type ClassificationResult struct {
	DocumentRef

	Tier           int                    `json:"tier" firestore:"tier"`
	StructuralHash string                 `json:"structuralHash" firestore:"structuralHash"`
	DocumentType   string                 `json:"documentType" firestore:"documentType"`
	Confidence     float64                `json:"confidence" firestore:"confidence"`
	TemplateID     string                 `json:"templateId,omitempty" firestore:"templateId,omitempty"`
	Metadata       ClassificationMetadata `json:"metadata" firestore:"metadata"`
}

// TemplateCacheEntry is a previously confirmed fingerprint -> classification
// mapping. Entries are written by the downstream template feedback loop;
// this service only reads them.
type TemplateCacheEntry struct {
	StructuralHash string            `firestore:"structuralHash"`
	DocumentType   string            `firestore:"documentType"`
	Confidence     float64           `firestore:"confidence"`
	FieldMappings  map[string]string `firestore:"fieldMappings,omitempty"`
	UpdatedAt      time.Time         `firestore:"updatedAt"`
}

// BlockOrigin is the integer top-left coordinate of a text block on the
// first page.
type BlockOrigin struct {
	X int
	Y int
}

// PageProfile is the first-page feature set produced by the PDF inspector.
// Coordinates and dimensions are truncated to integers so that the derived
// fingerprint is stable across float jitter in the producing system.
type PageProfile struct {
	PageCount    int
	PageWidth    int
	PageHeight   int
	BlockOrigins []BlockOrigin
	Text         string
	HasTables    bool
	HasForms     bool
}

// ContentAnalysis is the heuristic classifier's read of a document. An
// empty DocumentType means undetermined.
type ContentAnalysis struct {
	PageCount    int
	HasTables    bool
	HasForms     bool
	DocumentType string
	Confidence   float64
}

// Text block types emitted by the OCR collaborator.
const (
	BlockTypeLine = "LINE"
	BlockTypeWord = "WORD"
)

// TextBlock is a single OCR result item. Confidence is the service-native
// 0-100 scale; aggregation normalizes to [0,1].
type TextBlock struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// JobNotification is the completion message for an extraction job. The
// documentId echoes the correlation tag attached at job start.
type JobNotification struct {
	JobID      string `json:"jobId"`
	Status     string `json:"status"`
	DocumentID string `json:"documentId"`
}

// JobSucceeded is the terminal status a successful extraction job reports.
const JobSucceeded = "SUCCEEDED"

// ExtractionJob is the shape of a document's metadata record as persisted.
// It is assembled incrementally by sparse patches; the store is the single
// source of truth for job state between invocations.
type ExtractionJob struct {
	Status         string                `firestore:"status"`
	JobID          string                `firestore:"jobId,omitempty"`
	Tier           int                   `firestore:"tier,omitempty"`
	Classification *ClassificationResult `firestore:"classification,omitempty"`
	ExtractedText  string                `firestore:"extractedText,omitempty"`
	Confidence     float64               `firestore:"confidence,omitempty"`
	ErrorMessage   string                `firestore:"errorMessage,omitempty"`
	CompletionTime time.Time             `firestore:"completionTime,omitempty"`
	UpdatedAt      time.Time             `firestore:"updatedAt"`
}

// MetadataPatch is a sparse update to a document's metadata record. Status
// is always set; every other field is written only when non-nil, so a patch
// never clobbers fields a previous invocation persisted.
type MetadataPatch struct {
	Status         string
	JobID          *string
	Tier           *int
	Classification *ClassificationResult
	ExtractedText  *string
	Confidence     *float64
	ErrorMessage   *string
	CompletionTime *time.Time
}

// Fields flattens the patch into the named fields the store should merge.
// Absent fields are omitted entirely, which is what makes repeated delivery
// of an identical patch a no-op.
func (p MetadataPatch) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"status": p.Status,
	}
	if p.JobID != nil {
		fields["jobId"] = *p.JobID
	}
	if p.Tier != nil {
		fields["tier"] = *p.Tier
	}
	if p.Classification != nil {
		fields["classification"] = p.Classification
	}
	if p.ExtractedText != nil {
		fields["extractedText"] = *p.ExtractedText
	}
	if p.Confidence != nil {
		fields["confidence"] = *p.Confidence
	}
	if p.ErrorMessage != nil {
		fields["errorMessage"] = *p.ErrorMessage
	}
	if p.CompletionTime != nil {
		fields["completionTime"] = *p.CompletionTime
	}
	return fields
}
