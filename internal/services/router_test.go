package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexohub/docclassify/internal/models"
)

func classifiedResult(tier int) *models.ClassificationResult {
	return &models.ClassificationResult{
		DocumentRef:    models.DocumentRef{Bucket: "intake-bucket", Key: "intake/scan0001.pdf"},
		Tier:           tier,
		StructuralHash: "deadbeef",
		DocumentType:   "contract",
		Confidence:     0.7,
		Metadata:       models.ClassificationMetadata{PageCount: 5},
	}
}

func TestRoute_TierDestinations(t *testing.T) {
	for tier := 0; tier <= 3; tier++ {
		publisher := &fakePublisher{}
		router := NewTierRouter(publisher, testTopics)

		require.NoError(t, router.Route(context.Background(), classifiedResult(tier)))
		require.Len(t, publisher.messages, 1)
		assert.Equal(t, testTopics[tier], publisher.messages[0].topic)
	}
}

func TestRoute_PayloadAndAttributes(t *testing.T) {
	publisher := &fakePublisher{}
	router := NewTierRouter(publisher, testTopics)
	result := classifiedResult(2)

	require.NoError(t, router.Route(context.Background(), result))
	require.Len(t, publisher.messages, 1)
	msg := publisher.messages[0]

	assert.Equal(t, map[string]string{"tier": "2", "documentType": "contract"}, msg.attributes)

	var decoded models.ClassificationResult
	require.NoError(t, json.Unmarshal(msg.data, &decoded))
	assert.Equal(t, *result, decoded)
}

func TestRoute_UnknownTierFallsBack(t *testing.T) {
	for _, tier := range []int{-1, 4, 7} {
		publisher := &fakePublisher{}
		router := NewTierRouter(publisher, testTopics)

		require.NoError(t, router.Route(context.Background(), classifiedResult(tier)))
		require.Len(t, publisher.messages, 1)
		assert.Equal(t, testTopics[2], publisher.messages[0].topic)
		// The attribute still reports the classifier's tier so the anomaly
		// stays visible downstream.
		assert.Equal(t, strconv.Itoa(tier), publisher.messages[0].attributes["tier"])
	}
}

func TestRoute_PublishFailurePropagates(t *testing.T) {
	router := NewTierRouter(&fakePublisher{err: errors.New("topic unavailable")}, testTopics)

	err := router.Route(context.Background(), classifiedResult(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic unavailable")
}
