package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/lexohub/docclassify/internal/models"
	"github.com/lexohub/docclassify/internal/services"
)

var (
	extractorInstance *services.ExtractorFunction
	once              sync.Once
	initErr           error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ExtractText", extractText)
}

// main is required by the Go Functions Framework.
func main() {}

// extractText is the Cloud Function entry point for the tier-1 queue
// subscription and the extraction-completion topic. A message carrying a
// job id is a completion notification; anything else is a routed
// classification result and starts a new job.
func extractText(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		extractorInstance, initErr = services.NewExtractor(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var envelope models.PubSubEnvelope
	if err := json.Unmarshal(e.Data(), &envelope); err != nil {
		slog.Error("Failed to unmarshal Pub/Sub envelope", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	body := envelope.Message.Data

	var notification models.JobNotification
	if err := json.Unmarshal(body, &notification); err == nil && notification.JobID != "" {
		return extractorInstance.HandleCompletion(ctx, notification)
	}

	var result models.ClassificationResult
	if err := json.Unmarshal(body, &result); err != nil {
		slog.Error("Failed to unmarshal classification result", "error", err, "data", string(body))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return extractorInstance.StartJob(ctx, &result)
}
