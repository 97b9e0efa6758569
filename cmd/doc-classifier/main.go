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
	classifierInstance *services.ClassifierFunction
	once               sync.Once
	initErr            error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ClassifyAndRoute", classifyAndRoute)
}

// main is required by the Go Functions Framework.
func main() {}

// classifyAndRoute is the Cloud Function entry point for intake events.
func classifyAndRoute(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		classifierInstance, initErr = services.NewClassifier(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var intake models.IntakeEvent
	if err := json.Unmarshal(e.Data(), &intake); err != nil {
		slog.Error("Failed to unmarshal intake event", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged with document context inside Process; returning one
	// marks the invocation as failed so the platform can redrive.
	return classifierInstance.Process(ctx, intake)
}
