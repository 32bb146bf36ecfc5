package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/ports"

	"github.com/google/uuid"
)

// ErrNoSnapshot is returned when a lead has never been submitted.
var ErrNoSnapshot = errors.New("no order snapshot archived for lead")

// SnapshotArchive writes one JSON object per win attempt under
// {organization}/{lead}/{unix nanos}.json.
type SnapshotArchive struct {
	store  ObjectStore
	bucket string
}

var _ ports.SnapshotArchiver = (*SnapshotArchive)(nil)

func NewSnapshotArchive(store ObjectStore, bucket string) *SnapshotArchive {
	return &SnapshotArchive{store: store, bucket: bucket}
}

func snapshotPrefix(organizationID, leadID uuid.UUID) string {
	return organizationID.String() + "/" + leadID.String() + "/"
}

// SnapshotKey is zero-padded so lexical order matches creation order.
func SnapshotKey(snapshot domain.OrderSnapshot) string {
	return fmt.Sprintf("%s%020d.json", snapshotPrefix(snapshot.OrganizationID(), snapshot.LeadID()), snapshot.CreatedAt().UnixNano())
}

func (a *SnapshotArchive) ArchiveSnapshot(ctx context.Context, snapshot domain.OrderSnapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return a.store.PutObject(ctx, a.bucket, SnapshotKey(snapshot), "application/json", bytes.NewReader(body), int64(len(body)))
}

// LatestSnapshotURL presigns the most recent snapshot for a lead.
func (a *SnapshotArchive) LatestSnapshotURL(ctx context.Context, organizationID, leadID uuid.UUID) (*PresignedURL, error) {
	key, err := a.store.LatestKey(ctx, a.bucket, snapshotPrefix(organizationID, leadID))
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrNoSnapshot
	}
	return a.store.GenerateDownloadURL(ctx, a.bucket, key)
}
