package autosync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"romm-autosync/cache"
	"romm-autosync/constants"
	"romm-autosync/retroarch"
	"romm-autosync/romm"
	"romm-autosync/types"
	"romm-autosync/utils"
)

// fingerprint identifies the on-disk content of the last successful upload.
type fingerprint struct {
	size  int64
	mtime time.Time
}

// Uploader owns the debounce map and pushes dirty save/state files to the
// server. A single worker loop drains the map at 1 Hz; everything else only
// mutates the map under the mutex, so uploads themselves are never concurrent.
type Uploader struct {
	log      *slog.Logger
	client   *romm.Client
	cache    *cache.Store
	notifier *retroarch.Notifier
	hook     types.HostHook

	mu           sync.Mutex
	pending      map[string]time.Time
	fingerprints map[string]fingerprint
	serverNames  map[string]string
}

// NewUploader wires the upload worker. Call run from the engine.
func NewUploader(client *romm.Client, store *cache.Store, notifier *retroarch.Notifier, hook types.HostHook, log *slog.Logger) *Uploader {
	return &Uploader{
		log:          log.With("component", "uploader"),
		client:       client,
		cache:        store,
		notifier:     notifier,
		hook:         hook,
		pending:      make(map[string]time.Time),
		fingerprints: make(map[string]fingerprint),
		serverNames:  make(map[string]string),
	}
}

// MarkDirty records a local write. A path re-dirtied within the re-dirty
// window keeps its original timestamp so emulators that flush in bursts do
// not push the debounce out forever.
func (u *Uploader) MarkDirty(path string) {
	now := time.Now()
	u.mu.Lock()
	defer u.mu.Unlock()
	if prev, ok := u.pending[path]; ok && now.Sub(prev) < constants.RedirtyWindow {
		return
	}
	u.pending[path] = now
}

// Mute pushes the path's debounce timestamp into the future so writes caused
// by our own downloads do not bounce straight back to the server.
func (u *Uploader) Mute(path string, d time.Duration) {
	u.mu.Lock()
	u.pending[path] = time.Now().Add(d)
	u.mu.Unlock()
}

// ClearPending drops every queued entry. Called when the emulator exits,
// because its shutdown flush would otherwise duplicate uploads.
func (u *Uploader) ClearPending() {
	u.mu.Lock()
	if len(u.pending) > 0 {
		u.log.Debug("clearing pending uploads on emulator exit", "count", len(u.pending))
		u.pending = make(map[string]time.Time)
	}
	u.mu.Unlock()
}

// PendingSince reports the debounce timestamp for a path, if any.
func (u *Uploader) PendingSince(path string) (time.Time, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t, ok := u.pending[path]
	return t, ok
}

// SetServerName records the server-side filename of the latest known record
// for a local save, so the next upload reuses it and the server keeps
// grouping revisions together.
func (u *Uploader) SetServerName(path, name string) {
	u.mu.Lock()
	u.serverNames[path] = name
	u.mu.Unlock()
}

// RecordFingerprint stores the current (size, mtime) of path as already
// synchronized. Used after downloads so the muted debounce entry drains
// without re-uploading.
func (u *Uploader) RecordFingerprint(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	u.mu.Lock()
	u.fingerprints[path] = fingerprint{size: info.Size(), mtime: info.ModTime()}
	u.mu.Unlock()
}

// run drains the debounce map until ctx is cancelled.
func (u *Uploader) run(ctx context.Context) {
	ticker := time.NewTicker(constants.WorkerTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range u.takeDue(time.Now()) {
				u.uploadOne(ctx, path)
			}
		}
	}
}

// takeDue removes and returns every path whose debounce expired.
func (u *Uploader) takeDue(now time.Time) []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	var due []string
	for path, dirtyAt := range u.pending {
		if now.Sub(dirtyAt) >= constants.UploadDebounce {
			due = append(due, path)
			delete(u.pending, path)
		}
	}
	return due
}

func (u *Uploader) uploadOne(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		u.log.Debug("dirty file vanished before upload", "path", path)
		return
	}
	current := fingerprint{size: info.Size(), mtime: info.ModTime()}

	u.mu.Lock()
	last, seen := u.fingerprints[path]
	prevName := u.serverNames[path]
	u.mu.Unlock()
	if seen && last == current {
		u.log.Debug("skipping upload, content unchanged", "path", path)
		return
	}

	game, ok := u.cache.MatchSaveFile(path)
	if !ok {
		u.log.Warn("no catalog match for save file, not uploading", "path", path)
		return
	}

	base := filepath.Base(path)
	kind, slot := retroarch.ParseSlot(base)
	if kind == "" {
		return
	}

	opts := romm.UploadOptions{
		Emulator: retroarch.FolderEmulatorKey(filepath.Base(filepath.Dir(path))),
		DeviceID: u.hook.DeviceID(),
		Slot:     slot,
	}
	if kind == constants.DirSaves {
		opts.PrevFileName = prevName
	} else {
		opts.Autocleanup = true
		opts.AutocleanupLimit = constants.StateAutocleanupLimit
	}

	id, uploadedName, err := u.client.UploadAsset(ctx, kind, game.ID, path, opts)
	switch {
	case err == nil:
		u.mu.Lock()
		u.fingerprints[path] = current
		u.serverNames[path] = uploadedName
		u.mu.Unlock()
		u.log.Info("uploaded", "kind", kind, "path", path, "rom", game.Name, "server_id", id)
		if kind == constants.DirSaves {
			u.notifier.ShowMessage("Save uploaded")
		} else {
			u.notifier.ShowMessage("State uploaded")
			u.attachScreenshot(ctx, game.ID, id, uploadedName, path)
		}
	case errors.Is(err, romm.ErrConflict):
		u.notifier.ShowMessage("Sync conflict")
		u.hook.Log("Upload conflict for " + base + ": a newer version exists on the server")
		u.log.Warn("upload conflict, server has a newer version", "path", path)
	default:
		// Debounce is already cleared; the fingerprint stays so an unchanged
		// retry after the next write is still elided.
		u.log.Error("upload failed", "path", path, "error", err)
		u.hook.Log("Upload failed for " + base)
	}
}

// attachScreenshot probes the sibling naming conventions for a state
// screenshot and uploads the first non-empty hit.
func (u *Uploader) attachScreenshot(ctx context.Context, romID, stateID uint, uploadedName, statePath string) {
	if stateID == 0 {
		return
	}
	candidates := []string{
		statePath + ".png",
		strings.TrimSuffix(statePath, filepath.Ext(statePath)) + ".png",
		filepath.Join(filepath.Dir(statePath), utils.Stem(filepath.Base(statePath))+".png"),
	}
	for _, png := range candidates {
		info, err := os.Stat(png)
		if err != nil || info.Size() == 0 {
			continue
		}
		if err := u.client.UploadScreenshot(ctx, romID, stateID, uploadedName, png); err != nil {
			u.log.Warn("screenshot upload failed", "path", png, "error", err)
		}
		return
	}
}
