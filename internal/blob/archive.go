package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zonecore/pkg/domain"
)

// ArchiveVersion is the current archive payload version.
const ArchiveVersion = 1

// archivePrefix groups archive objects under one key namespace.
const archivePrefix = "archives/"

// Archive is a point-in-time export of the whole engine state, suitable for
// backup or for moving state between deployments.
type Archive struct {
	Version    int                        `json:"version"`
	CreatedAt  time.Time                  `json:"created_at"`
	Workspaces []domain.WorkspaceSnapshot `json:"workspaces"`
	Sessions   []domain.SessionSnapshot   `json:"sessions"`
}

// WriteArchive serializes the archive as JSON and stores it under a
// timestamped, collision-free key. The key is returned.
func WriteArchive(ctx context.Context, store Store, arch Archive) (string, error) {
	if arch.Version == 0 {
		arch.Version = ArchiveVersion
	}
	if arch.CreatedAt.IsZero() {
		arch.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(arch)
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}
	key := fmt.Sprintf("%s%s-%s.json", archivePrefix, arch.CreatedAt.Format("20060102T150405Z"), uuid.NewString())
	if _, err := store.Put(ctx, key, bytes.NewReader(payload), PutOptions{ContentType: "application/json"}); err != nil {
		return "", fmt.Errorf("store archive: %w", err)
	}
	return key, nil
}

// ReadArchive loads and decodes one archive object.
func ReadArchive(ctx context.Context, store Store, key string) (Archive, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return Archive{}, err
	}
	defer func() { _ = rc.Close() }()
	var arch Archive
	if err := json.NewDecoder(rc).Decode(&arch); err != nil {
		return Archive{}, fmt.Errorf("decode archive %s: %w", key, err)
	}
	if arch.Version != ArchiveVersion {
		return Archive{}, fmt.Errorf("unsupported archive version %d", arch.Version)
	}
	return arch, nil
}

// ListArchives returns the stored archive objects, oldest first.
func ListArchives(ctx context.Context, store Store) ([]Info, error) {
	return store.List(ctx, archivePrefix)
}
