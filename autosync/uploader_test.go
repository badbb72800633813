package autosync

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"romm-autosync/cache"
	"romm-autosync/constants"
	"romm-autosync/retroarch"
	"romm-autosync/romm"
	"romm-autosync/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// testHook is a HostHook with canned answers.
type testHook struct {
	messages  []string
	policy    types.OverwritePolicy
	askAnswer bool
	deviceID  string
}

func (h *testHook) Log(msg string)                         { h.messages = append(h.messages, msg) }
func (h *testHook) AskConflict(_, _ time.Time) bool        { return h.askAnswer }
func (h *testHook) DeviceID() string                       { return h.deviceID }
func (h *testHook) OverwritePolicy() types.OverwritePolicy { return h.policy }

func testCache(t *testing.T) *cache.Store {
	t.Helper()
	store := cache.NewStore(t.TempDir(), testLogger())
	store.SetGames([]types.Game{
		{ID: 42, Name: "Super Mario World", FileName: "SMW.sfc", PlatformSlug: "snes"},
	})
	return store
}

func authedClient(t *testing.T, serverURL string) *romm.Client {
	t.Helper()
	client := romm.NewClient(serverURL, testLogger())
	if err := client.Authenticate(context.Background(), "user", "pass"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	return client
}

func writeSave(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMarkDirtyDebounce(t *testing.T) {
	u := NewUploader(nil, nil, retroarch.NewNotifier(), &testHook{}, testLogger())
	u.MarkDirty("/saves/SMW.srm")

	if due := u.takeDue(time.Now()); len(due) != 0 {
		t.Errorf("Path due before the debounce elapsed: %v", due)
	}
	due := u.takeDue(time.Now().Add(constants.UploadDebounce + time.Second))
	if len(due) != 1 || due[0] != "/saves/SMW.srm" {
		t.Fatalf("Expected the path after the debounce, got %v", due)
	}
	// takeDue removes what it returns.
	if due := u.takeDue(time.Now().Add(time.Hour)); len(due) != 0 {
		t.Errorf("Path returned twice: %v", due)
	}
}

func TestRedirtyKeepsOriginalTimestamp(t *testing.T) {
	u := NewUploader(nil, nil, retroarch.NewNotifier(), &testHook{}, testLogger())
	u.MarkDirty("/saves/SMW.srm")
	first, _ := u.PendingSince("/saves/SMW.srm")

	// A burst of writes within the re-dirty window collapses to one upload.
	u.MarkDirty("/saves/SMW.srm")
	u.MarkDirty("/saves/SMW.srm")
	second, _ := u.PendingSince("/saves/SMW.srm")
	if !second.Equal(first) {
		t.Errorf("Re-dirty moved the debounce: %v -> %v", first, second)
	}
}

func TestMuteAbsorbsDirty(t *testing.T) {
	u := NewUploader(nil, nil, retroarch.NewNotifier(), &testHook{}, testLogger())
	u.Mute("/saves/SMW.srm", constants.PostDownloadMute)

	// The watcher event for our own download lands inside the mute.
	u.MarkDirty("/saves/SMW.srm")

	ts, ok := u.PendingSince("/saves/SMW.srm")
	if !ok {
		t.Fatal("Muted entry missing")
	}
	if time.Until(ts) < constants.PostDownloadMute-time.Second {
		t.Errorf("Mute timestamp not in the future: %v", ts)
	}
	if due := u.takeDue(time.Now()); len(due) != 0 {
		t.Errorf("Muted path drained early: %v", due)
	}
}

func TestClearPending(t *testing.T) {
	u := NewUploader(nil, nil, retroarch.NewNotifier(), &testHook{}, testLogger())
	u.MarkDirty("/saves/SMW.srm")
	u.MarkDirty("/states/SMW.state")
	u.ClearPending()
	if due := u.takeDue(time.Now().Add(time.Hour)); len(due) != 0 {
		t.Errorf("ClearPending left entries: %v", due)
	}
}

func TestUploadFingerprintElision(t *testing.T) {
	var uploads int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/saves" {
			if r.URL.Query().Has("overwrite") {
				t.Errorf("Save upload must not force an overwrite")
			}
			atomic.AddInt32(&uploads, 1)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 7}`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	path := writeSave(t, filepath.Join(t.TempDir(), "Snes9x"), "SMW.srm", "save-v1")
	u := NewUploader(authedClient(t, server.URL), testCache(t), retroarch.NewNotifier(), &testHook{}, testLogger())

	u.uploadOne(context.Background(), path)
	if got := atomic.LoadInt32(&uploads); got != 1 {
		t.Fatalf("Expected 1 upload, got %d", got)
	}

	// Unchanged content is elided on the next drain.
	u.uploadOne(context.Background(), path)
	if got := atomic.LoadInt32(&uploads); got != 1 {
		t.Errorf("Unchanged file re-uploaded, %d uploads", got)
	}

	// A real change goes through.
	if err := os.WriteFile(path, []byte("save-v2-longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	u.uploadOne(context.Background(), path)
	if got := atomic.LoadInt32(&uploads); got != 2 {
		t.Errorf("Changed file not re-uploaded, %d uploads", got)
	}
}

func TestUploadConflictNotFingerprinted(t *testing.T) {
	// The server answers 409 when it holds a newer revision; the conflict is
	// surfaced as-is, for battery saves just like for states.
	var uploads int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/saves" {
			atomic.AddInt32(&uploads, 1)
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	path := writeSave(t, filepath.Join(t.TempDir(), "Snes9x"), "SMW.srm", "stale-save")
	hook := &testHook{}
	u := NewUploader(authedClient(t, server.URL), testCache(t), retroarch.NewNotifier(), hook, testLogger())

	u.uploadOne(context.Background(), path)
	if got := atomic.LoadInt32(&uploads); got != 1 {
		t.Fatalf("Expected 1 attempt, got %d", got)
	}
	if len(hook.messages) == 0 {
		t.Errorf("Conflict not surfaced to the host")
	}

	// No fingerprint was stored, so the same bytes are attempted again after
	// the next dirty event.
	u.uploadOne(context.Background(), path)
	if got := atomic.LoadInt32(&uploads); got != 2 {
		t.Errorf("Conflicted file fingerprinted as synced, %d attempts", got)
	}
}

func TestUploadUnmatchedFileSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			t.Errorf("Unexpected upload for unmatched file")
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	path := writeSave(t, filepath.Join(t.TempDir(), "Snes9x"), "Unknown Game.srm", "data")
	u := NewUploader(authedClient(t, server.URL), testCache(t), retroarch.NewNotifier(), &testHook{}, testLogger())
	u.uploadOne(context.Background(), path)
}
