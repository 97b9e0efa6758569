package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/lexohub/docclassify/internal/gcp"
	"github.com/lexohub/docclassify/internal/models"
)

// OCRClient is the asynchronous text-extraction collaborator. StartTextDetection
// tags the job with the document id so the completion notification can be
// correlated back; NextResultPage walks the job's result set one page at a
// time, returning an empty token when exhausted.
type OCRClient interface {
	StartTextDetection(ctx context.Context, ref models.DocumentRef, documentID string) (jobID string, err error)
	NextResultPage(ctx context.Context, jobID, pageToken string) ([]models.TextBlock, string, error)
}

// MetadataStore merges a sparse patch into a document's persisted metadata.
// Fields the patch does not carry are left untouched.
type MetadataStore interface {
	Apply(ctx context.Context, documentID string, patch models.MetadataPatch) error
}

// ExtractorConfig holds the extractor function's environment settings.
type ExtractorConfig struct {
	ProjectID          string
	MetadataCollection string
	ProcessorName      string
	OutputBucket       string
	Tier               int
}

// ExtractorFunction coordinates the lifecycle of asynchronous extraction
// jobs: it starts a job per routed document and later reconciles the job's
// completion notification into the document's metadata record. It holds no
// job state in memory; the metadata store is the single source of truth
// between invocations.
type ExtractorFunction struct {
	ocr      OCRClient
	metadata MetadataStore
	tier     int
}

// NewExtractor wires the extractor against live GCP clients, configured
// from the environment.
func NewExtractor(ctx context.Context) (*ExtractorFunction, error) {
	config, err := loadExtractorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	ocr, err := gcp.NewDocAIClient(ctx, config.ProcessorName, config.OutputBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	metadata, err := gcp.NewMetadataStore(ctx, config.ProjectID, config.MetadataCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata store: %w", err)
	}

	f := &ExtractorFunction{
		ocr:      ocr,
		metadata: metadata,
		tier:     config.Tier,
	}
	slog.Info("Extractor initialized.", "processor", config.ProcessorName, "tier", config.Tier)
	return f, nil
}

func loadExtractorConfig() (*ExtractorConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	processor := gcp.GetEnv("DOCAI_PROCESSOR", "")
	if processor == "" {
		return nil, fmt.Errorf("DOCAI_PROCESSOR environment variable must be set")
	}
	outputBucket := gcp.GetEnv("OCR_OUTPUT_BUCKET", "")
	if outputBucket == "" {
		return nil, fmt.Errorf("OCR_OUTPUT_BUCKET environment variable must be set")
	}

	return &ExtractorConfig{
		ProjectID:          projectID,
		MetadataCollection: gcp.GetEnv("FIRESTORE_METADATA_COLLECTION", "documentMetadata"),
		ProcessorName:      processor,
		OutputBucket:       outputBucket,
		Tier:               1,
	}, nil
}

// StartJob requests an asynchronous extraction job for a routed document
// and records PROCESSING with the job id and classification snapshot. A
// start failure is recorded as FAILED and returned: the caller must know
// intake did not produce a job.
func (f *ExtractorFunction) StartJob(ctx context.Context, result *models.ClassificationResult) error {
	documentID := result.DocumentID()
	logCtx := slog.With("documentId", documentID, "gcsKey", result.Key)

	jobID, err := f.ocr.StartTextDetection(ctx, result.DocumentRef, documentID)
	if err != nil {
		logCtx.Error("Failed to start extraction job", "error", err)
		message := err.Error()
		failure := models.MetadataPatch{
			Status:       models.StatusFailed,
			ErrorMessage: &message,
		}
		if applyErr := f.metadata.Apply(ctx, documentID, failure); applyErr != nil {
			logCtx.Error("CRITICAL: Failed to record FAILED status after a job-start error.", "updateError", applyErr)
		}
		return fmt.Errorf("failed to start extraction job for %s: %w", documentID, err)
	}

	tier := f.tier
	patch := models.MetadataPatch{
		Status:         models.StatusProcessing,
		JobID:          &jobID,
		Tier:           &tier,
		Classification: result,
	}
	if err := f.metadata.Apply(ctx, documentID, patch); err != nil {
		logCtx.Error("Failed to record PROCESSING status", "error", err, "jobId", jobID)
		return fmt.Errorf("failed to record job start for %s: %w", documentID, err)
	}

	logCtx.Info("Started extraction job.", "jobId", jobID)
	return nil
}

// HandleCompletion reconciles a job's completion notification. Non-success
// outcomes are logged and dropped without touching metadata; they are
// expected results of the external job, not system errors. Success drains
// every result page, concatenates the line text, and persists COMPLETED.
// The sparse merge makes a duplicate delivery of the same notification a
// no-op.
func (f *ExtractorFunction) HandleCompletion(ctx context.Context, n models.JobNotification) error {
	logCtx := slog.With("jobId", n.JobID, "documentId", n.DocumentID)

	if n.Status != models.JobSucceeded {
		logCtx.Warn("Extraction job did not succeed; leaving metadata untouched.", "status", n.Status)
		return nil
	}

	blocks, err := f.collectResults(ctx, n.JobID)
	if err != nil {
		logCtx.Error("Failed to fetch extraction results", "error", err)
		return fmt.Errorf("failed to fetch results for job %s: %w", n.JobID, err)
	}

	documentID := n.DocumentID
	if documentID == "" {
		documentID = n.JobID
	}

	text := extractedText(blocks)
	confidence := aggregateConfidence(blocks)
	now := time.Now().UTC()
	patch := models.MetadataPatch{
		Status:         models.StatusCompleted,
		ExtractedText:  &text,
		Confidence:     &confidence,
		CompletionTime: &now,
	}
	if err := f.metadata.Apply(ctx, documentID, patch); err != nil {
		logCtx.Error("Failed to record COMPLETED status", "error", err)
		return fmt.Errorf("failed to record completion for %s: %w", documentID, err)
	}

	logCtx.Info("Extraction complete.", "confidence", confidence, "blockCount", len(blocks))
	return nil
}

// collectResults pages through the job's result set until no continuation
// token remains. This is the only loop in the service that runs to
// exhaustion within one invocation.
func (f *ExtractorFunction) collectResults(ctx context.Context, jobID string) ([]models.TextBlock, error) {
	var blocks []models.TextBlock
	var token string
	for {
		page, next, err := f.ocr.NextResultPage(ctx, jobID, token)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, page...)
		if next == "" {
			return blocks, nil
		}
		token = next
	}
}

// extractedText concatenates line-level blocks in emission order.
func extractedText(blocks []models.TextBlock) string {
	var lines []string
	for _, b := range blocks {
		if b.Type == models.BlockTypeLine {
			lines = append(lines, b.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// aggregateConfidence is the mean of all line- and word-level confidence
// scores, normalized from the service's 0-100 scale to [0,1] and rounded to
// 4 decimal places. No scoring blocks means 0.0.
func aggregateConfidence(blocks []models.TextBlock) float64 {
	var sum float64
	var count int
	for _, b := range blocks {
		if b.Type == models.BlockTypeLine || b.Type == models.BlockTypeWord {
			sum += b.Confidence
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	mean := sum / float64(count) / 100
	return math.Round(mean*10000) / 10000
}
