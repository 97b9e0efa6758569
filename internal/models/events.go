package models

import "fmt"

// IntakeEvent is the batch payload delivered to the classifier function.
// Each record arrives in one of two shapes: a direct storage notification
// carrying bucket/name at the top level, or a relayed event wrapper nesting
// the same pair one level deeper under detail. Both normalize to a
// DocumentRef at this boundary; nothing past it branches on event shape.
type IntakeEvent struct {
	Records []IntakeRecord `json:"records"`
}

// IntakeRecord holds the superset of both record shapes.
type IntakeRecord struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`

	Source string        `json:"source,omitempty"`
	Detail *IntakeDetail `json:"detail,omitempty"`
}

// IntakeDetail is the nested payload of a relayed event.
type IntakeDetail struct {
	Bucket struct {
		Name string `json:"name"`
	} `json:"bucket"`
	Object struct {
		Key string `json:"key"`
	} `json:"object"`
}

// DocumentRef normalizes the record. Relayed wrappers win when present;
// otherwise the top-level pair is used. A record carrying neither shape is
// malformed and fails the invocation.
func (r IntakeRecord) DocumentRef() (DocumentRef, error) {
	if r.Detail != nil && r.Detail.Bucket.Name != "" && r.Detail.Object.Key != "" {
		return DocumentRef{Bucket: r.Detail.Bucket.Name, Key: r.Detail.Object.Key}, nil
	}
	if r.Bucket != "" && r.Name != "" {
		return DocumentRef{Bucket: r.Bucket, Key: r.Name}, nil
	}
	return DocumentRef{}, fmt.Errorf("intake record carries neither a storage notification nor a relayed event payload")
}

// PubSubEnvelope is the push wrapper Pub/Sub delivers to the extractor
// function. Data is base64 on the wire; encoding/json decodes it into the
// byte slice directly.
type PubSubEnvelope struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
}

// PubSubMessage is the inner Pub/Sub message.
type PubSubMessage struct {
	Data        []byte            `json:"data"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	MessageID   string            `json:"messageId"`
	PublishTime string            `json:"publishTime"`
}
