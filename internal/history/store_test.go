package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cavacolor/internal/history"
	"cavacolor/internal/playback"
	"cavacolor/internal/testsupport"
)

func TestRecordAndRecent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, track := range []playback.TrackID{"spotify:track:a", "spotify:track:b"} {
		entry, err := store.Record(ctx, history.Entry{
			TrackID:    track,
			Title:      "Song",
			Artist:     "Artist",
			Source:     playback.SourceMPRIS,
			Colors:     []string{"#112233", "#445566", "#778899"},
			ConfigPath: cfg.Visualizer.ConfigPath,
			AppliedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if entry.ID == 0 {
			t.Fatal("expected id assigned")
		}
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].TrackID != "spotify:track:b" {
		t.Fatalf("expected newest first, got %q", entries[0].TrackID)
	}
	if got := entries[1]; len(got.Colors) != 3 || got.Colors[2] != "#778899" || !got.AppliedAt.Equal(base) {
		t.Fatalf("unexpected entry %+v", got)
	}
	if entries[0].Source != playback.SourceMPRIS || entries[0].ConfigPath != cfg.Visualizer.ConfigPath {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestRecordPrunesToKeep(t *testing.T) {
	store, err := history.OpenPath(filepath.Join(t.TempDir(), "history.db"), 3)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := store.Record(ctx, history.Entry{
			TrackID: playback.TrackID("track-" + string(rune('a'+i))),
			Colors:  []string{"#000000"},
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 || entries[0].TrackID != "track-e" || entries[2].TrackID != "track-c" {
		t.Fatalf("unexpected entries after prune: %+v", entries)
	}
}

func TestRecordValidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	if _, err := store.Record(ctx, history.Entry{Colors: []string{"#000000"}}); err == nil {
		t.Fatal("expected error without track id")
	}
	if _, err := store.Record(ctx, history.Entry{TrackID: "x"}); err == nil {
		t.Fatal("expected error without colors")
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenPath(path, 0)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := store.Record(context.Background(), history.Entry{TrackID: "x", Colors: []string{"#010101"}}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := history.OpenPath(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	entries, err := reopened.Recent(context.Background(), 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected persisted entry, got %+v, %v", entries, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenPath(path, 0)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := history.SetSchemaVersionForTest(store, 99); err != nil {
		t.Fatalf("set version: %v", err)
	}
	_ = store.Close()

	if _, err := history.OpenPath(path, 0); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
