package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexohub/docclassify/internal/models"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ models.DocumentRef) ([]byte, error) {
	return f.data, f.err
}

type fakeInspector struct {
	profile *models.PageProfile
	err     error
}

func (f *fakeInspector) Profile(_ []byte) (*models.PageProfile, error) {
	return f.profile, f.err
}

type fakeTemplates struct {
	entry    *models.TemplateCacheEntry
	err      error
	lookedUp []string
}

func (f *fakeTemplates) Lookup(_ context.Context, structuralHash string) (*models.TemplateCacheEntry, error) {
	f.lookedUp = append(f.lookedUp, structuralHash)
	return f.entry, f.err
}

type publishedMessage struct {
	topic      string
	data       []byte
	attributes map[string]string
}

type fakePublisher struct {
	messages []publishedMessage
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, data []byte, attributes map[string]string) error {
	f.messages = append(f.messages, publishedMessage{topic: topic, data: data, attributes: attributes})
	return f.err
}

var testTopics = [4]string{"tier0-queue", "tier1-queue", "tier2-queue", "tier3-queue"}

func newTestClassifier(fetcher *fakeFetcher, inspector *fakeInspector, templates *fakeTemplates, publisher *fakePublisher) *ClassifierFunction {
	return &ClassifierFunction{
		fetcher:   fetcher,
		inspector: inspector,
		templates: templates,
		router:    NewTierRouter(publisher, testTopics),
	}
}

func intakeRef() models.DocumentRef {
	return models.DocumentRef{Bucket: "intake-bucket", Key: "intake/scan0001.pdf"}
}

func TestClassify_TrustedTemplateShortCircuits(t *testing.T) {
	profile := letterheadProfile()
	templates := &fakeTemplates{entry: &models.TemplateCacheEntry{
		StructuralHash: StructuralFingerprint(profile),
		DocumentType:   "invoice",
		Confidence:     0.92,
	}}
	f := newTestClassifier(
		&fakeFetcher{data: []byte("pdf")},
		&fakeInspector{profile: profile},
		templates,
		&fakePublisher{},
	)

	result, err := f.Classify(context.Background(), intakeRef())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Tier)
	assert.Equal(t, "invoice", result.DocumentType)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, StructuralFingerprint(profile), result.TemplateID)
	// The heuristic signals are never computed on the trusted path.
	assert.Zero(t, result.Metadata)
}

func TestClassify_TemplateOverridesSize(t *testing.T) {
	profile := letterheadProfile()
	profile.PageCount = 20
	templates := &fakeTemplates{entry: &models.TemplateCacheEntry{
		StructuralHash: StructuralFingerprint(profile),
		DocumentType:   "court_filing",
		Confidence:     0.9,
	}}
	f := newTestClassifier(&fakeFetcher{data: []byte("pdf")}, &fakeInspector{profile: profile}, templates, &fakePublisher{})

	result, err := f.Classify(context.Background(), intakeRef())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Tier)
}

func TestClassify_FetchFailureIsFatal(t *testing.T) {
	f := newTestClassifier(
		&fakeFetcher{err: errors.New("object not found")},
		&fakeInspector{},
		&fakeTemplates{},
		&fakePublisher{},
	)

	_, err := f.Classify(context.Background(), intakeRef())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object not found")
}

func TestClassify_MalformedDocumentDegrades(t *testing.T) {
	templates := &fakeTemplates{}
	f := newTestClassifier(
		&fakeFetcher{data: []byte("not a pdf")},
		&fakeInspector{err: errors.New("corrupt xref table")},
		templates,
		&fakePublisher{},
	)
	ref := intakeRef()

	result, err := f.Classify(context.Background(), ref)
	require.NoError(t, err)

	// The degraded fingerprint is derived from the key and the lookup ran
	// against it (a guaranteed miss in a real cache).
	require.Len(t, templates.lookedUp, 1)
	assert.Equal(t, KeyFingerprint(ref.Key), templates.lookedUp[0])
	assert.Equal(t, KeyFingerprint(ref.Key), result.StructuralHash)

	// The conservative analysis reports zero pages and no signals, which
	// the decision list resolves to the simple-extraction tier.
	assert.Equal(t, 1, result.Tier)
	assert.Equal(t, 0.3, result.Confidence)
	assert.Equal(t, "unknown", result.DocumentType)
}

func TestClassify_CacheOutageDegradesToMiss(t *testing.T) {
	profile := letterheadProfile()
	profile.PageCount = 2
	f := newTestClassifier(
		&fakeFetcher{data: []byte("pdf")},
		&fakeInspector{profile: profile},
		&fakeTemplates{err: errors.New("deadline exceeded")},
		&fakePublisher{},
	)

	result, err := f.Classify(context.Background(), intakeRef())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tier)
}

func TestClassify_FilenameTypeWinsOverContent(t *testing.T) {
	profile := letterheadProfile()
	profile.PageCount = 2
	profile.Text = "This Agreement is made between the parties"
	f := newTestClassifier(&fakeFetcher{data: []byte("pdf")}, &fakeInspector{profile: profile}, &fakeTemplates{}, &fakePublisher{})

	result, err := f.Classify(context.Background(), models.DocumentRef{Bucket: "b", Key: "intake/letter_045.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "correspondence", result.DocumentType)
	// Confidence still comes from the content analysis.
	assert.Equal(t, 0.7, result.Confidence)
}

func TestProcess_NormalizesBothRecordShapes(t *testing.T) {
	profile := letterheadProfile()
	profile.PageCount = 2
	publisher := &fakePublisher{}
	f := newTestClassifier(&fakeFetcher{data: []byte("pdf")}, &fakeInspector{profile: profile}, &fakeTemplates{}, publisher)

	relayed := models.IntakeRecord{Source: "storage.relay", Detail: &models.IntakeDetail{}}
	relayed.Detail.Bucket.Name = "intake-bucket"
	relayed.Detail.Object.Key = "intake/relayed.pdf"
	event := models.IntakeEvent{Records: []models.IntakeRecord{
		{Bucket: "intake-bucket", Name: "intake/direct.pdf"},
		relayed,
	}}

	require.NoError(t, f.Process(context.Background(), event))
	require.Len(t, publisher.messages, 2)

	keys := map[string]bool{}
	for _, m := range publisher.messages {
		var result models.ClassificationResult
		require.NoError(t, json.Unmarshal(m.data, &result))
		keys[result.Key] = true
	}
	assert.True(t, keys["intake/direct.pdf"])
	assert.True(t, keys["intake/relayed.pdf"])
}

func TestProcess_MalformedRecordFailsInvocation(t *testing.T) {
	f := newTestClassifier(&fakeFetcher{data: []byte("pdf")}, &fakeInspector{profile: letterheadProfile()}, &fakeTemplates{}, &fakePublisher{})

	err := f.Process(context.Background(), models.IntakeEvent{Records: []models.IntakeRecord{{}}})
	require.Error(t, err)
}
