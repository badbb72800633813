package autosync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"romm-autosync/retroarch"
	"romm-autosync/types"
)

func testInstall(t *testing.T) *retroarch.Installation {
	t.Helper()
	root := t.TempDir()
	install := &retroarch.Installation{
		ConfigDir: root,
		SavesDir:  filepath.Join(root, "saves"),
		StatesDir: filepath.Join(root, "states"),
		Naming:    retroarch.NamingCoreNames,
	}
	for _, dir := range []string{install.SavesDir, install.StatesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return install
}

func newTestReconciler(t *testing.T, serverURL string, hook *testHook, install *retroarch.Installation) (*Reconciler, *Uploader) {
	t.Helper()
	client := authedClient(t, serverURL)
	store := testCache(t)
	uploader := NewUploader(client, store, retroarch.NewNotifier(), hook, testLogger())
	return NewReconciler(client, store, install, uploader, hook, testLogger()), uploader
}

// romDetailsHandler serves a fixed /api/roms/42 payload plus asset content.
func romDetailsHandler(t *testing.T, details string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/roms/42":
			w.Write([]byte(details))
		case r.URL.Path == "/api/roms":
			w.Write([]byte(`[]`))
		case r.Method == http.MethodGet && filepath.Base(r.URL.Path) == "content":
			fmt.Fprintf(w, "content-of-%s", r.URL.Path)
		default:
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
	}
}

func TestSyncRomColdStart(t *testing.T) {
	details := `{
		"id": 42,
		"name": "Super Mario World",
		"fs_name": "SMW.sfc",
		"user_saves": [
			{"id": 1, "file_name": "SMW [2024-01-01 12-00-00-000].srm", "emulator": "snes9x", "updated_at": "2024-01-01T12:00:00Z"},
			{"id": 2, "file_name": "SMW [2024-03-01 12-00-00-000].srm", "emulator": "snes9x", "updated_at": "2024-03-01T12:00:00Z"}
		],
		"user_states": [
			{"id": 3, "file_name": "SMW [2024-03-01 12-00-00-000].state", "emulator": "snes9x", "slot": "quicksave", "updated_at": "2024-03-01T12:00:00Z"},
			{"id": 4, "file_name": "SMW [2024-03-02 12-00-00-000].state.auto", "emulator": "snes9x", "slot": "auto", "updated_at": "2024-03-02T12:00:00Z"}
		]
	}`
	server := httptest.NewServer(romDetailsHandler(t, details))
	defer server.Close()

	install := testInstall(t)
	hook := &testHook{policy: types.PolicySmart}
	rec, uploader := newTestReconciler(t, server.URL, hook, install)

	if err := rec.SyncRom(context.Background(), 42); err != nil {
		t.Fatalf("SyncRom failed: %v", err)
	}

	// Only the newest save lands, under the bracket-stripped local name.
	savePath := filepath.Join(install.SavesDir, "Snes9x", "SMW.srm")
	if _, err := os.Stat(savePath); err != nil {
		t.Errorf("Save not downloaded: %v", err)
	}

	// Quick-save and auto-save land side by side without clobbering.
	statePath := filepath.Join(install.StatesDir, "Snes9x", "SMW.state")
	autoPath := filepath.Join(install.StatesDir, "Snes9x", "SMW.state.auto")
	if _, err := os.Stat(statePath); err != nil {
		t.Errorf("Quick-save state not downloaded: %v", err)
	}
	if _, err := os.Stat(autoPath); err != nil {
		t.Errorf("Auto state not downloaded: %v", err)
	}

	// The downloads are muted so the watcher echo does not re-upload them.
	for _, path := range []string{savePath, statePath, autoPath} {
		ts, ok := uploader.PendingSince(path)
		if !ok {
			t.Errorf("No mute entry for %s", path)
			continue
		}
		if time.Until(ts) < 25*time.Second {
			t.Errorf("Mute for %s too short: %v", path, time.Until(ts))
		}
	}
}

func TestApplyAssetBacksUpLoser(t *testing.T) {
	details := `{
		"id": 42,
		"name": "Super Mario World",
		"fs_name": "SMW.sfc",
		"user_saves": [
			{"id": 1, "file_name": "SMW [2024-03-01 12-00-00-000].srm", "emulator": "snes9x", "updated_at": "2024-03-01T12:00:00Z"}
		]
	}`
	server := httptest.NewServer(romDetailsHandler(t, details))
	defer server.Close()

	install := testInstall(t)
	target := filepath.Join(install.SavesDir, "Snes9x", "SMW.srm")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("local-copy"), 0o644); err != nil {
		t.Fatal(err)
	}

	hook := &testHook{policy: types.PolicyServer}
	rec, _ := newTestReconciler(t, server.URL, hook, install)
	if err := rec.SyncRom(context.Background(), 42); err != nil {
		t.Fatalf("SyncRom failed: %v", err)
	}

	backup, err := os.ReadFile(target + ".backup")
	if err != nil {
		t.Fatalf("Backup missing: %v", err)
	}
	if string(backup) != "local-copy" {
		t.Errorf("Backup content = %q", backup)
	}
	current, _ := os.ReadFile(target)
	if string(current) == "local-copy" {
		t.Errorf("Target not replaced by the server copy")
	}
}

func TestApplyAssetSkipsWhenDeviceCurrent(t *testing.T) {
	details := `{
		"id": 42,
		"name": "Super Mario World",
		"fs_name": "SMW.sfc",
		"user_saves": [
			{"id": 1, "file_name": "SMW [2024-03-01 12-00-00-000].srm", "emulator": "snes9x",
			 "updated_at": "2024-03-01T12:00:00Z",
			 "device_syncs": [{"device_id": "dev-1", "is_current": true}]}
		]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if filepath.Base(r.URL.Path) == "content" {
			t.Errorf("Download issued for an already-current device")
		}
		if r.URL.Path == "/api/roms/42" {
			w.Write([]byte(details))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	install := testInstall(t)
	hook := &testHook{policy: types.PolicySmart, deviceID: "dev-1"}
	rec, _ := newTestReconciler(t, server.URL, hook, install)
	if err := rec.SyncRom(context.Background(), 42); err != nil {
		t.Fatalf("SyncRom failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(install.SavesDir, "Snes9x", "SMW.srm")); !os.IsNotExist(err) {
		t.Errorf("Expected no local write for a skipped asset")
	}
}

func TestSyncRomIgnoresForeignExtensions(t *testing.T) {
	// The newest save record is a stray zip export; the older genuine .srm
	// must win, and the zip must never land in the save slot.
	details := `{
		"id": 42,
		"name": "Super Mario World",
		"fs_name": "SMW.sfc",
		"user_saves": [
			{"id": 1, "file_name": "SMW [2024-03-01 12-00-00-000].srm", "emulator": "snes9x", "updated_at": "2024-03-01T12:00:00Z"},
			{"id": 2, "file_name": "SMW-export [2024-04-01 12-00-00-000].zip", "emulator": "snes9x", "updated_at": "2024-04-01T12:00:00Z"}
		],
		"user_states": [
			{"id": 3, "file_name": "SMW [2024-04-01 12-00-00-000].png", "emulator": "snes9x", "slot": "quicksave", "updated_at": "2024-04-01T12:00:00Z"}
		]
	}`
	server := httptest.NewServer(romDetailsHandler(t, details))
	defer server.Close()

	install := testInstall(t)
	hook := &testHook{policy: types.PolicySmart}
	rec, _ := newTestReconciler(t, server.URL, hook, install)
	if err := rec.SyncRom(context.Background(), 42); err != nil {
		t.Fatalf("SyncRom failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(install.SavesDir, "Snes9x", "SMW.srm"))
	if err != nil {
		t.Fatalf("Genuine save record not applied: %v", err)
	}
	if !strings.Contains(string(data), "/api/saves/1/content") {
		t.Errorf("Save slot holds the wrong record: %q", data)
	}
	if _, err := os.Stat(filepath.Join(install.SavesDir, "Snes9x", "SMW-export.srm")); !os.IsNotExist(err) {
		t.Errorf("Zip record was written into the save slot")
	}
	if _, err := os.Stat(filepath.Join(install.StatesDir, "Snes9x", "SMW.state")); !os.IsNotExist(err) {
		t.Errorf("Png record was written into the state slot")
	}
}

func TestApplyAssetConfinesServerNames(t *testing.T) {
	details := `{
		"id": 42,
		"name": "Super Mario World",
		"fs_name": "SMW.sfc",
		"user_saves": [
			{"id": 1, "file_name": "../../../escaped [2024-03-01 12-00-00-000].srm", "emulator": "snes9x", "updated_at": "2024-03-01T12:00:00Z"}
		]
	}`
	server := httptest.NewServer(romDetailsHandler(t, details))
	defer server.Close()

	install := testInstall(t)
	hook := &testHook{policy: types.PolicySmart}
	rec, _ := newTestReconciler(t, server.URL, hook, install)
	if err := rec.SyncRom(context.Background(), 42); err != nil {
		t.Fatalf("SyncRom failed: %v", err)
	}

	confined := filepath.Join(install.SavesDir, "Snes9x", "escaped.srm")
	if _, err := os.Stat(confined); err != nil {
		t.Errorf("Sanitized record not written inside the saves root: %v", err)
	}
	// Where an unsanitized join of the record name would have landed.
	outside := filepath.Join(install.SavesDir, "Snes9x", "..", "..", "..", "escaped.srm")
	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Errorf("Server-controlled file name escaped the saves root")
	}
}

func TestResolveConflictSmart(t *testing.T) {
	hook := &testHook{policy: types.PolicySmart}
	rec := NewReconciler(nil, nil, testInstall(t), nil, hook, testLogger())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		local    time.Time
		server   time.Time
		download bool
	}{
		{"server much newer", base, base.Add(time.Minute), true},
		{"server barely newer", base, base.Add(5 * time.Second), false},
		{"local much newer", base.Add(2 * time.Minute), base, false},
		{"local barely newer", base.Add(30 * time.Second), base, false},
		{"identical", base, base, false},
	}
	for _, tt := range tests {
		download, _ := rec.resolveConflict(tt.local, tt.server)
		if download != tt.download {
			t.Errorf("%s: download = %v, want %v", tt.name, download, tt.download)
		}
	}
}

func TestResolveConflictPolicies(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	hook := &testHook{policy: types.PolicyLocal}
	rec := NewReconciler(nil, nil, testInstall(t), nil, hook, testLogger())
	if download, _ := rec.resolveConflict(base, base.Add(time.Hour)); download {
		t.Errorf("Local policy downloaded")
	}

	hook.policy = types.PolicyServer
	if download, _ := rec.resolveConflict(base.Add(time.Hour), base); !download {
		t.Errorf("Server policy kept local")
	}

	hook.policy = types.PolicyAsk
	hook.askAnswer = true
	if download, _ := rec.resolveConflict(base, base); !download {
		t.Errorf("Ask policy ignored the user's answer")
	}
	hook.askAnswer = false
	if download, _ := rec.resolveConflict(base, base); download {
		t.Errorf("Ask policy ignored the user's refusal")
	}
}

func TestSyncContentResolvesArchivePaths(t *testing.T) {
	details := `{"id": 42, "name": "Super Mario World", "fs_name": "SMW.sfc", "user_saves": [], "user_states": []}`
	server := httptest.NewServer(romDetailsHandler(t, details))
	defer server.Close()

	install := testInstall(t)
	hook := &testHook{policy: types.PolicySmart}
	rec, _ := newTestReconciler(t, server.URL, hook, install)

	if err := rec.SyncContent(context.Background(), "/roms/snes/SMW.sfc#SMW.sfc"); err != nil {
		t.Errorf("SyncContent failed for archive path: %v", err)
	}
	if err := rec.SyncContent(context.Background(), "/roms/snes/Not In Catalog.sfc"); err == nil {
		t.Errorf("Expected an error for unknown content")
	}
}
