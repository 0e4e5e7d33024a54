package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/documentocr/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
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

// FindJobByHash returns the ID of an existing job record for fileHash, or ""
// if there is none.
func FindJobByHash(ctx context.Context, coll *firestore.CollectionRef, fileHash string) (string, error) {
	docs, err := coll.Where("fileHash", "==", fileHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return "", fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].Ref.ID, nil
}

// CreateJob adds a new job record to coll.
func CreateJob(ctx context.Context, coll *firestore.CollectionRef, doc models.Document) (*firestore.DocumentRef, error) {
	ref, _, err := coll.Add(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create job record: %w", err)
	}
	return ref, nil
}

// UpdateJobStatus sets the status of a job record, and its error details when
// errDetails is non-empty.
func UpdateJobStatus(ctx context.Context, ref *firestore.DocumentRef, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := ref.Update(ctx, updates)
	return err
}
