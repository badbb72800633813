package collections

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"romm-autosync/cache"
	"romm-autosync/library"
	"romm-autosync/romm"
	"romm-autosync/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func memberGames(n int) []types.Game {
	games := make([]types.Game, n)
	for i := range games {
		games[i] = types.Game{
			ID:           uint(i + 1),
			Name:         fmt.Sprintf("Game %d", i+1),
			FileName:     fmt.Sprintf("rom-%d.sfc", i+1),
			PlatformSlug: "snes",
		}
	}
	return games
}

// collectionServer serves one collection named "Favorites" with the given
// members plus rom content for downloads.
func collectionServer(t *testing.T, members []types.Game) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/collections":
			ids := make([]uint, len(members))
			for i, g := range members {
				ids[i] = g.ID
			}
			json.NewEncoder(w).Encode([]types.Collection{{ID: 5, Name: "Favorites", RomIDs: ids}})
		case r.URL.Path == "/api/roms" && r.URL.Query().Get("collection_id") == "5":
			if r.URL.Query().Get("offset") != "0" {
				w.Write([]byte(`[]`))
				return
			}
			json.NewEncoder(w).Encode(members)
		case r.URL.Path == "/api/roms":
			w.Write([]byte(`[]`))
		default:
			// /api/roms/{id}/content/{file}
			w.Write([]byte("rom-data"))
		}
	}))
}

func newTestLoop(t *testing.T, serverURL string, opts Options) (*Loop, *library.Service, *cache.Store) {
	t.Helper()
	client := romm.NewClient(serverURL, testLogger())
	if err := client.Authenticate(context.Background(), "user", "pass"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	store := cache.NewStore(t.TempDir(), testLogger())
	lib := library.New(client, store, t.TempDir(), testLogger())
	return NewLoop(client, store, lib, opts, testLogger()), lib, store
}

func TestInitializeDownloadsMissing(t *testing.T) {
	members := memberGames(10)
	server := collectionServer(t, members)
	defer server.Close()

	loop, lib, store := newTestLoop(t, server.URL, Options{AutoDownload: true})
	store.SetGames(members)

	// 4 of the 10 already exist locally.
	dir := filepath.Join(lib.Root(), "snes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 4; i++ {
		name := fmt.Sprintf("rom-%d.sfc", i)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("local"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	loop.mu.Lock()
	loop.selected["Favorites"] = true
	loop.mu.Unlock()
	if err := loop.initialize(context.Background(), "Favorites"); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	for i := 1; i <= 10; i++ {
		path := filepath.Join(dir, fmt.Sprintf("rom-%d.sfc", i))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Member %d not present after catch-up: %v", i, err)
		}
	}

	ids, ok := loop.CachedSet("Favorites")
	if !ok || len(ids) != 10 {
		t.Errorf("CachedSet = %v, %v", ids, ok)
	}
	// Progress is transient; the entry is gone once the run completes.
	if _, ok := loop.Progress("Favorites"); ok {
		t.Errorf("Progress entry left behind after completion")
	}
}

func TestInitializeAllPresentIsQuiet(t *testing.T) {
	members := memberGames(2)
	var contentRequests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/collections":
			json.NewEncoder(w).Encode([]types.Collection{{ID: 5, Name: "Favorites", RomIDs: []uint{1, 2}}})
		case r.URL.Path == "/api/roms" && r.URL.Query().Get("collection_id") == "5":
			if r.URL.Query().Get("offset") != "0" {
				w.Write([]byte(`[]`))
				return
			}
			json.NewEncoder(w).Encode(members)
		case r.URL.Path == "/api/roms":
			w.Write([]byte(`[]`))
		default:
			contentRequests++
			w.Write([]byte("rom-data"))
		}
	}))
	defer server.Close()

	loop, lib, store := newTestLoop(t, server.URL, Options{AutoDownload: true})
	store.SetGames(members)
	dir := filepath.Join(lib.Root(), "snes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, g := range members {
		if err := os.WriteFile(filepath.Join(dir, g.FileName), []byte("local"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := loop.initialize(context.Background(), "Favorites"); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if contentRequests != 0 {
		t.Errorf("Expected no downloads, got %d content requests", contentRequests)
	}
}

func TestHandleAddedRespectsAutoDownload(t *testing.T) {
	members := memberGames(1)
	server := collectionServer(t, members)
	defer server.Close()

	loop, lib, store := newTestLoop(t, server.URL, Options{AutoDownload: false})
	store.SetGames(members)

	loop.handleAdded(context.Background(), "Favorites", members, 1)
	if _, err := os.Stat(filepath.Join(lib.Root(), "snes", "rom-1.sfc")); !os.IsNotExist(err) {
		t.Errorf("Download happened with auto-download off")
	}
}

func TestHandleRemovedKeepsSharedGames(t *testing.T) {
	members := memberGames(3)
	server := collectionServer(t, members)
	defer server.Close()

	loop, lib, store := newTestLoop(t, server.URL, Options{AutoDownload: true, AutoDelete: true})
	store.SetGames(members)

	dir := filepath.Join(lib.Root(), "snes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, g := range members {
		if err := os.WriteFile(filepath.Join(dir, g.FileName), []byte("local"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// Game 2 is also a member of another tracked collection and survives.
	loop.mu.Lock()
	loop.selected["Favorites"] = true
	loop.selected["RPGs"] = true
	loop.cached["Favorites"] = []uint{1}
	loop.cached["RPGs"] = []uint{2}
	loop.mu.Unlock()

	loop.handleRemoved("Favorites", []uint{2, 3})

	if _, err := os.Stat(filepath.Join(dir, "rom-2.sfc")); err != nil {
		t.Errorf("Shared game deleted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "rom-3.sfc")); !os.IsNotExist(err) {
		t.Errorf("Removed game not deleted")
	}

	ev, ok := loop.LastRemoval("Favorites")
	if !ok {
		t.Fatal("No removal event recorded")
	}
	if ev.RemovedCount != 2 || ev.DeletedCount != 1 {
		t.Errorf("RemovalEvent = %+v", ev)
	}
}

func TestHandleRemovedRecordsWithoutAutoDelete(t *testing.T) {
	members := memberGames(1)
	server := collectionServer(t, members)
	defer server.Close()

	loop, lib, store := newTestLoop(t, server.URL, Options{AutoDownload: true})
	store.SetGames(members)
	dir := filepath.Join(lib.Root(), "snes")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rom-1.sfc"), []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}

	loop.handleRemoved("Favorites", []uint{1})

	if _, err := os.Stat(filepath.Join(dir, "rom-1.sfc")); err != nil {
		t.Errorf("File deleted without auto-delete: %v", err)
	}
	ev, ok := loop.LastRemoval("Favorites")
	if !ok || ev.RemovedCount != 1 || ev.DeletedCount != 0 {
		t.Errorf("RemovalEvent = %+v, %v", ev, ok)
	}
}

func TestSetSelectedDropsStaleState(t *testing.T) {
	members := memberGames(1)
	server := collectionServer(t, members)
	defer server.Close()

	loop, _, _ := newTestLoop(t, server.URL, Options{AutoDownload: false})
	loop.mu.Lock()
	loop.selected["Old"] = true
	loop.cached["Old"] = []uint{1}
	loop.removals["Old"] = types.RemovalEvent{RemovedCount: 1}
	loop.mu.Unlock()

	loop.SetSelected(context.Background(), nil)

	if _, ok := loop.CachedSet("Old"); ok {
		t.Errorf("Dropped collection kept its cache")
	}
	if _, ok := loop.LastRemoval("Old"); ok {
		t.Errorf("Dropped collection kept its removal event")
	}
	if len(loop.Selected()) != 0 {
		t.Errorf("Selected = %v", loop.Selected())
	}
}
