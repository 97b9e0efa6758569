package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/documentai/v1"
	"google.golang.org/api/iterator"

	"github.com/lexohub/docclassify/internal/models"
)

// ocrOutputPrefix roots all batch output objects in the output bucket.
// Document AI appends the operation id, which is how result pages are
// found again from the job id alone.
const ocrOutputPrefix = "ocr"

// resultPageSize bounds how many output shards one result page covers.
const resultPageSize = 20

// DocAIClient adapts Document AI batch processing to the extraction
// pipeline's job model: a started job is a long-running operation whose
// name serves as the job id, and result pages are paginated listings of the
// JSON shards the operation writes to the output bucket.
type DocAIClient struct {
	service      *documentai.Service
	storage      *storage.Client
	processor    string
	outputBucket string
}

// NewDocAIClient creates an adapter for the given processor resource name
// (projects/{p}/locations/{l}/processors/{id}) and output bucket.
func NewDocAIClient(ctx context.Context, processor, outputBucket string) (*DocAIClient, error) {
	service, err := documentai.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI service: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return &DocAIClient{
		service:      service,
		storage:      storageClient,
		processor:    processor,
		outputBucket: outputBucket,
	}, nil
}

// StartTextDetection kicks off an asynchronous batch OCR job for the
// document. The document id travels as a label so the operation watcher can
// echo it back in the completion notification.
func (c *DocAIClient) StartTextDetection(ctx context.Context, ref models.DocumentRef, documentID string) (string, error) {
	req := &documentai.GoogleCloudDocumentaiV1BatchProcessRequest{
		InputDocuments: &documentai.GoogleCloudDocumentaiV1BatchDocumentsInputConfig{
			GcsDocuments: &documentai.GoogleCloudDocumentaiV1GcsDocuments{
				Documents: []*documentai.GoogleCloudDocumentaiV1GcsDocument{
					{GcsUri: ref.URI(), MimeType: "application/pdf"},
				},
			},
		},
		DocumentOutputConfig: &documentai.GoogleCloudDocumentaiV1DocumentOutputConfig{
			GcsOutputConfig: &documentai.GoogleCloudDocumentaiV1DocumentOutputConfigGcsOutputConfig{
				GcsUri: fmt.Sprintf("gs://%s/%s/", c.outputBucket, ocrOutputPrefix),
			},
		},
		Labels: map[string]string{"document-id": sanitizeLabel(documentID)},
	}

	op, err := c.service.Projects.Locations.Processors.BatchProcess(c.processor, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to start batch processing for %s: %w", ref.URI(), err)
	}
	return op.Name, nil
}

// sanitizeLabel squeezes a document id into the label character set:
// lowercase letters, digits, dash and underscore.
func sanitizeLabel(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, s)
	if len(mapped) > 63 {
		mapped = mapped[:63]
	}
	return mapped
}

// NextResultPage lists one page of the job's output shards and converts
// their contents to text blocks. An empty returned token means the result
// set is exhausted.
func (c *DocAIClient) NextResultPage(ctx context.Context, jobID, pageToken string) ([]models.TextBlock, string, error) {
	prefix := fmt.Sprintf("%s/%s/", ocrOutputPrefix, path.Base(jobID))
	it := c.storage.Bucket(c.outputBucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var attrs []*storage.ObjectAttrs
	next, err := iterator.NewPager(it, resultPageSize, pageToken).NextPage(&attrs)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list output shards for job %s: %w", jobID, err)
	}

	var blocks []models.TextBlock
	for _, attr := range attrs {
		if !strings.HasSuffix(attr.Name, ".json") {
			continue
		}
		shard, err := c.readShard(ctx, attr.Name)
		if err != nil {
			return nil, "", err
		}
		blocks = append(blocks, shardBlocks(shard)...)
	}
	return blocks, next, nil
}

func (c *DocAIClient) readShard(ctx context.Context, object string) (*documentai.GoogleCloudDocumentaiV1Document, error) {
	reader, err := c.storage.Bucket(c.outputBucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open output shard %s: %w", object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read output shard %s: %w", object, err)
	}

	var doc documentai.GoogleCloudDocumentaiV1Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode output shard %s: %w", object, err)
	}
	return &doc, nil
}

// shardBlocks flattens a result document into line and word blocks in
// emission order, scaling confidences to the pipeline's 0-100 convention.
func shardBlocks(doc *documentai.GoogleCloudDocumentaiV1Document) []models.TextBlock {
	var blocks []models.TextBlock
	for _, page := range doc.Pages {
		for _, line := range page.Lines {
			blocks = append(blocks, layoutBlock(models.BlockTypeLine, doc.Text, line.Layout))
		}
		for _, token := range page.Tokens {
			blocks = append(blocks, layoutBlock(models.BlockTypeWord, doc.Text, token.Layout))
		}
	}
	return blocks
}

func layoutBlock(blockType, docText string, layout *documentai.GoogleCloudDocumentaiV1DocumentPageLayout) models.TextBlock {
	block := models.TextBlock{Type: blockType}
	if layout == nil {
		return block
	}
	block.Text = anchorText(docText, layout.TextAnchor)
	block.Confidence = layout.Confidence * 100
	return block
}

// anchorText resolves a text anchor against the document's full text. The
// segment indices are byte offsets.
func anchorText(docText string, anchor *documentai.GoogleCloudDocumentaiV1DocumentTextAnchor) string {
	if anchor == nil {
		return ""
	}
	var b strings.Builder
	for _, segment := range anchor.TextSegments {
		start, end := segment.StartIndex, segment.EndIndex
		if start < 0 || end > int64(len(docText)) || start > end {
			continue
		}
		b.WriteString(docText[start:end])
	}
	return strings.TrimRight(b.String(), "\n")
}
