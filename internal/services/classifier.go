package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lexohub/docclassify/internal/gcp"
	"github.com/lexohub/docclassify/internal/models"
	"github.com/lexohub/docclassify/internal/pdfinspect"
)

// intakeConcurrency bounds how many records of one intake batch are
// classified at a time.
const intakeConcurrency = 4

// ObjectFetcher reads a document's raw bytes out of object storage.
type ObjectFetcher interface {
	Fetch(ctx context.Context, ref models.DocumentRef) ([]byte, error)
}

// TemplateStore looks up the most recent template cache entry for a
// structural fingerprint. A nil entry with nil error is a miss.
type TemplateStore interface {
	Lookup(ctx context.Context, structuralHash string) (*models.TemplateCacheEntry, error)
}

// PageInspector extracts the first-page feature profile from raw bytes.
type PageInspector interface {
	Profile(data []byte) (*models.PageProfile, error)
}

// ClassifierConfig holds the classifier function's environment settings.
type ClassifierConfig struct {
	ProjectID          string
	TemplateCollection string
	TierTopics         [4]string
}

// ClassifierFunction classifies intake documents and routes them to the
// tier queue matching their estimated extraction difficulty.
type ClassifierFunction struct {
	fetcher   ObjectFetcher
	inspector PageInspector
	templates TemplateStore
	router    *TierRouter
}

// NewClassifier wires the classifier against live GCP clients, configured
// from the environment.
func NewClassifier(ctx context.Context) (*ClassifierFunction, error) {
	config, err := loadClassifierConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	fetcher, err := gcp.NewObjectFetcher(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage fetcher: %w", err)
	}
	templates, err := gcp.NewTemplateCache(ctx, config.ProjectID, config.TemplateCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}
	publisher, err := gcp.NewQueuePublisher(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue publisher: %w", err)
	}

	f := &ClassifierFunction{
		fetcher:   fetcher,
		inspector: pdfinspect.NewInspector(),
		templates: templates,
		router:    NewTierRouter(publisher, config.TierTopics),
	}
	slog.Info("Classifier initialized.", "templateCollection", config.TemplateCollection)
	return f, nil
}

func loadClassifierConfig() (*ClassifierConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := &ClassifierConfig{
		ProjectID:          projectID,
		TemplateCollection: gcp.GetEnv("FIRESTORE_TEMPLATE_COLLECTION", "templateCache"),
	}
	topicVars := [4]string{"TIER0_TOPIC", "TIER1_TOPIC", "TIER2_TOPIC", "TIER3_TOPIC"}
	for i, v := range topicVars {
		config.TierTopics[i] = gcp.GetEnv(v, "")
		if config.TierTopics[i] == "" {
			return nil, fmt.Errorf("%s environment variable must be set", v)
		}
	}
	return config, nil
}

// Process classifies and routes every record of an intake batch. Records
// are independent documents, so they run concurrently; the first fatal
// error fails the invocation so the platform can redrive the batch.
func (f *ClassifierFunction) Process(ctx context.Context, e models.IntakeEvent) error {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(intakeConcurrency)

	for _, record := range e.Records {
		eg.Go(func() error {
			ref, err := record.DocumentRef()
			if err != nil {
				slog.Error("Failed to normalize intake record", "error", err)
				return err
			}
			result, err := f.Classify(gctx, ref)
			if err != nil {
				slog.Error("Failed to classify document", "error", err, "gcsKey", ref.Key)
				return fmt.Errorf("classify %s: %w", ref.Key, err)
			}
			if err := f.router.Route(gctx, result); err != nil {
				slog.Error("Failed to route document", "error", err, "gcsKey", ref.Key, "tier", result.Tier)
				return fmt.Errorf("route %s: %w", ref.Key, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// Classify fetches a document and produces its routing decision. Storage
// failures are fatal for the record; feature-extraction and cache failures
// degrade to conservative defaults and classification continues.
func (f *ClassifierFunction) Classify(ctx context.Context, ref models.DocumentRef) (*models.ClassificationResult, error) {
	logCtx := slog.With("gcsBucket", ref.Bucket, "gcsKey", ref.Key)

	data, err := f.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document bytes: %w", err)
	}

	profile, err := f.inspector.Profile(data)
	if err != nil {
		// Malformed or unsupported document. The key fingerprint guarantees
		// a cache miss and the nil profile yields the lowest-confidence
		// analysis; classification continues on those degraded signals.
		logCtx.Warn("First-page inspection failed; continuing with degraded signals.", "error", err)
		profile = nil
	}

	structuralHash := KeyFingerprint(ref.Key)
	if profile != nil {
		structuralHash = StructuralFingerprint(profile)
	}
	logCtx = logCtx.With("structuralHash", structuralHash)

	template, err := f.templates.Lookup(ctx, structuralHash)
	if err != nil {
		// A cache outage must never block intake.
		logCtx.Warn("Template cache lookup failed; treating as miss.", "error", err)
		template = nil
	}

	if TrustedTemplate(template) {
		logCtx.Info("Trusted template match.", "documentType", template.DocumentType, "confidence", template.Confidence)
		return &models.ClassificationResult{
			DocumentRef:    ref,
			Tier:           0,
			StructuralHash: structuralHash,
			DocumentType:   template.DocumentType,
			Confidence:     template.Confidence,
			TemplateID:     template.StructuralHash,
		}, nil
	}

	filenameType := ClassifyFilename(ref.Key)
	analysis := AnalyzeContent(profile)
	tier := DecideTier(template, analysis)

	documentType := filenameType
	if documentType == "" {
		documentType = analysis.DocumentType
	}
	if documentType == "" {
		documentType = "unknown"
	}

	logCtx.Info("Document classified.", "tier", tier, "documentType", documentType, "confidence", analysis.Confidence)
	return &models.ClassificationResult{
		DocumentRef:    ref,
		Tier:           tier,
		StructuralHash: structuralHash,
		DocumentType:   documentType,
		Confidence:     analysis.Confidence,
		Metadata: models.ClassificationMetadata{
			PageCount: analysis.PageCount,
			HasTables: analysis.HasTables,
			HasForms:  analysis.HasForms,
		},
	}, nil
}
