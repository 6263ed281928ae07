package blob

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"zonecore/pkg/domain"
)

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	arch := Archive{
		Workspaces: []domain.WorkspaceSnapshot{{
			Version: domain.SchemaVersion,
			ID:      "ws",
			Regions: map[domain.RegionID]domain.Region{1: {ID: 1, Name: "Mining", Order: 1}},
		}},
		Sessions: []domain.SessionSnapshot{{Version: 1, UserID: "u", WorkspaceID: "ws"}},
	}
	key, err := WriteArchive(ctx, store, arch)
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	if !strings.HasPrefix(key, "archives/") || !strings.HasSuffix(key, ".json") {
		t.Fatalf("key = %q", key)
	}

	loaded, err := ReadArchive(ctx, store, key)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if loaded.Version != ArchiveVersion {
		t.Fatalf("version = %d, want %d", loaded.Version, ArchiveVersion)
	}
	if len(loaded.Workspaces) != 1 || loaded.Workspaces[0].ID != "ws" {
		t.Fatalf("workspaces = %+v", loaded.Workspaces)
	}
	if len(loaded.Sessions) != 1 || loaded.Sessions[0].UserID != "u" {
		t.Fatalf("sessions = %+v", loaded.Sessions)
	}
}

func TestWriteArchiveKeysNeverCollide(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		key, err := WriteArchive(ctx, store, Archive{})
		if err != nil {
			t.Fatalf("WriteArchive: %v", err)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestListArchivesIgnoresOtherObjects(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := WriteArchive(ctx, store, Archive{}); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	if _, err := store.Put(ctx, "unrelated/object", bytes.NewReader([]byte("x")), PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	infos, err := ListArchives(ctx, store)
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d archives, want 1", len(infos))
	}
}

func TestReadArchiveUnsupportedVersion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.Put(ctx, "archives/bad.json", strings.NewReader(`{"version":99}`), PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := ReadArchive(ctx, store, "archives/bad.json"); err == nil {
		t.Fatal("expected error for unsupported archive version")
	}
}

func TestReadArchiveMissingKey(t *testing.T) {
	if _, err := ReadArchive(context.Background(), NewMemoryStore(), "archives/none"); err == nil {
		t.Fatal("expected error for missing archive")
	}
}
