package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lexohub/docclassify/internal/models"
)

// fallbackTier is the destination for tier numbers outside the configured
// range. Routing to the moderate-complexity queue is a safe default; a hard
// failure here would strand an already classified document.
const fallbackTier = 2

// QueuePublisher sends one message to a named topic.
type QueuePublisher interface {
	Publish(ctx context.Context, topic string, data []byte, attributes map[string]string) error
}

// TierRouter dispatches classification results to the queue bound to the
// chosen tier. The full result is the message payload; tier and document
// type ride along as attributes so consumers can filter without
// deserializing.
type TierRouter struct {
	publisher QueuePublisher
	topics    [4]string
}

// NewTierRouter returns a router over the four tier topics, indexed by tier
// number.
func NewTierRouter(publisher QueuePublisher, topics [4]string) *TierRouter {
	return &TierRouter{publisher: publisher, topics: topics}
}

// Route publishes exactly one message for the result. Duplicate intake
// events produce duplicate publishes; de-duplication is the consumers'
// concern.
func (r *TierRouter) Route(ctx context.Context, result *models.ClassificationResult) error {
	tier := result.Tier
	if tier < 0 || tier >= len(r.topics) {
		slog.Warn("Unknown tier; routing to fallback destination.", "tier", tier, "gcsKey", result.Key)
		tier = fallbackTier
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal classification result for %s: %w", result.Key, err)
	}

	attributes := map[string]string{
		"tier":         strconv.Itoa(result.Tier),
		"documentType": result.DocumentType,
	}
	if err := r.publisher.Publish(ctx, r.topics[tier], payload, attributes); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.topics[tier], err)
	}

	slog.Info("Routed document.", "gcsKey", result.Key, "tier", result.Tier, "topic", r.topics[tier])
	return nil
}
