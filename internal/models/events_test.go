package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntakeRecord_DirectNotification(t *testing.T) {
	raw := `{"records":[{"bucket":"intake-bucket","name":"intake/scan0001.pdf"}]}`
	var event IntakeEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	require.Len(t, event.Records, 1)

	ref, err := event.Records[0].DocumentRef()
	require.NoError(t, err)
	assert.Equal(t, DocumentRef{Bucket: "intake-bucket", Key: "intake/scan0001.pdf"}, ref)
}

func TestIntakeRecord_RelayedWrapper(t *testing.T) {
	raw := `{"records":[{"source":"storage.relay","detail":{"bucket":{"name":"intake-bucket"},"object":{"key":"intake/scan0001.pdf"}}}]}`
	var event IntakeEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	require.Len(t, event.Records, 1)

	ref, err := event.Records[0].DocumentRef()
	require.NoError(t, err)
	assert.Equal(t, DocumentRef{Bucket: "intake-bucket", Key: "intake/scan0001.pdf"}, ref)
}

func TestIntakeRecord_NeitherShape(t *testing.T) {
	_, err := IntakeRecord{}.DocumentRef()
	assert.Error(t, err)
}

func TestPubSubEnvelope_DecodesBase64Data(t *testing.T) {
	// "{"jobId":"op-1"}" base64-encoded, as Pub/Sub push delivers it.
	raw := `{"message":{"data":"eyJqb2JJZCI6Im9wLTEifQ==","messageId":"42"},"subscription":"s"}`
	var envelope PubSubEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &envelope))

	var notification JobNotification
	require.NoError(t, json.Unmarshal(envelope.Message.Data, &notification))
	assert.Equal(t, "op-1", notification.JobID)
}
