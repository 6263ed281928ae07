package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	return map[string]Store{
		"memory":     NewMemoryStore(),
		"filesystem": fsStore,
	}
}

func TestStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			info, err := store.Put(ctx, "dir/key.json", strings.NewReader("payload"), PutOptions{ContentType: "application/json"})
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if info.Key != "dir/key.json" || info.Size != int64(len("payload")) {
				t.Fatalf("info = %+v", info)
			}

			_, rc, err := store.Get(ctx, "dir/key.json")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil || string(data) != "payload" {
				t.Fatalf("read = (%q, %v)", data, err)
			}

			if err := store.Delete(ctx, "dir/key.json"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, _, err := store.Get(ctx, "dir/key.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get after delete: err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStorePutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Put(ctx, "key", strings.NewReader("one"), PutOptions{}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if _, err := store.Put(ctx, "key", strings.NewReader("two"), PutOptions{}); err == nil {
				t.Fatal("overwrite succeeded, want create-only error")
			}
		})
	}
}

func TestStoreListByPrefix(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"archives/b", "archives/a", "other/c"} {
				if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
					t.Fatalf("Put(%s): %v", key, err)
				}
			}
			infos, err := store.List(ctx, "archives/")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(infos) != 2 || infos[0].Key != "archives/a" || infos[1].Key != "archives/b" {
				t.Fatalf("infos = %+v", infos)
			}
		})
	}
}

func TestStoreDeleteMissing(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Delete(ctx, "absent"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Delete(absent): err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestFilesystemStoreRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	for _, key := range []string{"../escape", "/abs/path", "."} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("Put(%q) accepted a traversal key", key)
		}
	}
}
