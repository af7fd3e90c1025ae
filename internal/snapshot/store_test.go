package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDeleteLogsImageCleanupFailureWhenImageMissing(t *testing.T) {
	dir := t.TempDir()
	store := &Store{dir: dir}
	id := "123e4567-e89b-12d3-a456-426614174000"
	jsonPath := filepath.Join(dir, id+".json")

	meta := Meta{
		ID:     id,
		Format: "png",
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	if err := os.WriteFile(jsonPath, metaBytes, 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete() = %v; want nil", err)
	}

	if !strings.Contains(buf.String(), "snapshot image cleanup failed") {
		t.Fatalf("expected image cleanup debug log, got %q", buf.String())
	}
	if _, err := os.Stat(jsonPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("meta file still present: %v", err)
	}
}

func TestCreateGetReadImage(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "snaps"))
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}
	img := []byte("\x89PNG fake")
	meta, err := store.Create(Meta{SessionID: "s1", Ticker: "AAPL", Format: "png", Width: 1280, Height: 800}, img)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if meta.ID == "" || meta.SizeBytes != len(img) || meta.CreatedAt.IsZero() {
		t.Fatalf("meta = %+v", meta)
	}

	got, err := store.Get(meta.ID)
	if err != nil || got.Ticker != "AAPL" {
		t.Fatalf("Get() = %+v, %v", got, err)
	}
	data, format, err := store.ReadImage(meta.ID)
	if err != nil || format != "png" || !bytes.Equal(data, img) {
		t.Fatalf("ReadImage() = %q, %q, %v", data, format, err)
	}
}

func TestListFiltersAndSortsNewestFirst(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{
		"11111111-1111-4111-8111-111111111111",
		"22222222-2222-4222-8222-222222222222",
		"33333333-3333-4333-8333-333333333333",
	}
	for i, id := range ids {
		session := "a"
		if i == 2 {
			session = "b"
		}
		m := Meta{ID: id, SessionID: session, Format: "png", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.Save(m, []byte("x")); err != nil {
			t.Fatalf("Save(%s) = %v", id, err)
		}
	}

	all, err := store.List("")
	if err != nil || len(all) != 3 || all[0].ID != ids[2] {
		t.Fatalf("List(\"\") = %+v, %v", all, err)
	}
	onlyA, _ := store.List("a")
	if len(onlyA) != 2 || onlyA[0].ID != ids[1] {
		t.Fatalf("List(a) = %+v", onlyA)
	}
}

func TestRejectsBadIDsAndFormats(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	if err := store.Save(Meta{ID: "../../etc/passwd", Format: "png"}, nil); err == nil {
		t.Fatal("Save accepted path traversal id")
	}
	if err := store.Save(Meta{ID: "11111111-1111-4111-8111-111111111111", Format: "gif"}, nil); err == nil {
		t.Fatal("Save accepted gif")
	}
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(nope) = %v", err)
	}
	if _, err := store.Get("11111111-1111-4111-8111-111111111111"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) = %v", err)
	}
}
