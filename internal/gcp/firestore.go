package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/lexohub/docclassify/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the
// given project ID. It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// TemplateCache reads previously confirmed fingerprint -> classification
// mappings. The collection is written by the downstream template feedback
// loop; this service never writes it.
type TemplateCache struct {
	client     *firestore.Client
	collection string
}

// NewTemplateCache creates a cache reader over the given collection.
func NewTemplateCache(ctx context.Context, projectID, collection string) (*TemplateCache, error) {
	client, err := NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &TemplateCache{client: client, collection: collection}, nil
}

// Lookup returns the most recently written entry for the fingerprint, or
// nil on a miss. Ties on the hash resolve to the latest write.
func (c *TemplateCache) Lookup(ctx context.Context, structuralHash string) (*models.TemplateCacheEntry, error) {
	docs, err := c.client.Collection(c.collection).
		Where("structuralHash", "==", structuralHash).
		OrderBy("updatedAt", firestore.Desc).
		Limit(1).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query template cache: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var entry models.TemplateCacheEntry
	if err := docs[0].DataTo(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode template cache entry %s: %w", docs[0].Ref.ID, err)
	}
	return &entry, nil
}

// MetadataStore persists per-document extraction state, keyed by document
// id. Updates are sparse merges: only the fields a patch carries are set,
// so the start and completion invocations never clobber each other.
type MetadataStore struct {
	client     *firestore.Client
	collection string
}

// NewMetadataStore creates a store over the given collection.
func NewMetadataStore(ctx context.Context, projectID, collection string) (*MetadataStore, error) {
	client, err := NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &MetadataStore{client: client, collection: collection}, nil
}

// Apply merges the patch into the document's record, stamping updatedAt.
// Concurrent applies to different document ids need no coordination.
func (s *MetadataStore) Apply(ctx context.Context, documentID string, patch models.MetadataPatch) error {
	fields := patch.Fields()
	fields["updatedAt"] = time.Now().UTC()

	_, err := s.client.Collection(s.collection).Doc(documentID).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update metadata for %s: %w", documentID, err)
	}
	return nil
}
