package autosync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"romm-autosync/cache"
	"romm-autosync/constants"
	"romm-autosync/retroarch"
	"romm-autosync/romm"
	"romm-autosync/types"
	"romm-autosync/utils"
)

// Reconciler pulls the newest server-side saves and states for a ROM down to
// the local emulator tree, applying the configured conflict policy.
type Reconciler struct {
	log      *slog.Logger
	client   *romm.Client
	cache    *cache.Store
	install  *retroarch.Installation
	uploader *Uploader
	hook     types.HostHook
}

// NewReconciler wires the download side of the sync engine.
func NewReconciler(client *romm.Client, store *cache.Store, install *retroarch.Installation, uploader *Uploader, hook types.HostHook, log *slog.Logger) *Reconciler {
	return &Reconciler{
		log:      log.With("component", "reconciler"),
		client:   client,
		cache:    store,
		install:  install,
		uploader: uploader,
		hook:     hook,
	}
}

// SyncContent resolves an emulator content path (a ROM file, possibly of the
// form "archive.zip#inner") to a catalog entry and reconciles it.
func (r *Reconciler) SyncContent(ctx context.Context, contentPath string) error {
	base := filepath.Base(retroarch.StripArchiveSuffix(contentPath))
	game, ok := r.cache.Lookup(base)
	if !ok {
		game, ok = r.cache.MatchSaveFile(base)
	}
	if !ok {
		return fmt.Errorf("no catalog entry matches %s", base)
	}
	return r.SyncRom(ctx, game.ID)
}

// SyncRom fetches the ROM's save and state records and applies the newest of
// each. The auto-save slot is handled in a separate pass so it never clobbers
// the quick-save slot.
func (r *Reconciler) SyncRom(ctx context.Context, romID uint) error {
	details, err := r.client.GetRom(ctx, romID)
	if err != nil {
		return fmt.Errorf("failed to fetch rom %d: %w", romID, err)
	}

	// The server stores whatever was uploaded; only records with a real save
	// or state extension are eligible.
	saves := filterByName(details.UserSaves, retroarch.IsSaveFile)
	if newest := types.MostRecentAsset(saves); newest != nil {
		if err := r.applyAsset(ctx, constants.DirSaves, romID, newest); err != nil {
			r.log.Warn("save reconciliation failed", "rom", details.Name, "error", err)
		}
	}

	var quick, auto []types.ServerAsset
	for _, st := range filterByName(details.UserStates, retroarch.IsStateFile) {
		if st.Slot == constants.SlotAuto {
			auto = append(auto, st)
		} else {
			quick = append(quick, st)
		}
	}
	if newest := types.MostRecentAsset(quick); newest != nil {
		if err := r.applyAsset(ctx, constants.DirStates, romID, newest); err != nil {
			r.log.Warn("state reconciliation failed", "rom", details.Name, "error", err)
		}
	}
	if newest := types.MostRecentAsset(auto); newest != nil {
		if err := r.applyAsset(ctx, constants.DirStates, romID, newest); err != nil {
			r.log.Warn("auto-state reconciliation failed", "rom", details.Name, "error", err)
		}
	}
	return nil
}

func filterByName(assets []types.ServerAsset, keep func(string) bool) []types.ServerAsset {
	var out []types.ServerAsset
	for _, a := range assets {
		if keep(a.FileName) {
			out = append(out, a)
		}
	}
	return out
}

// applyAsset runs the full pipeline for one server record: optimistic skip,
// conflict policy, backup, download, debounce mute, screenshot.
func (r *Reconciler) applyAsset(ctx context.Context, kind string, romID uint, asset *types.ServerAsset) error {
	deviceID := r.hook.DeviceID()
	if deviceID != "" && r.alreadyCurrent(ctx, kind, romID, asset, deviceID) {
		r.log.Debug("device already has current revision, skipping",
			"kind", kind, "file", asset.FileName)
		return nil
	}

	dir := r.install.StatesDir
	if kind == constants.DirSaves {
		dir = r.install.SavesDir
	}
	// Both names come from the server; confine them to a single path element
	// so a crafted record cannot write outside the saves/states roots.
	fileName := filepath.Base(utils.SanitizePath(asset.FileName))
	folder := filepath.Base(retroarch.EmulatorFolder(asset.Emulator, r.install.Naming))
	destDir := filepath.Join(dir, folder)
	target := filepath.Join(destDir, retroarch.LocalFileName(fileName, kind, asset.Slot))

	if info, err := os.Stat(target); err == nil {
		download, reason := r.resolveConflict(info.ModTime().UTC(), asset.UpdatedTime())
		r.log.Debug("conflict resolved", "file", asset.FileName, "download", download, "reason", reason)
		if !download {
			return nil
		}
		// Preserve the loser for manual recovery.
		backup := target + ".backup"
		os.Remove(backup)
		if err := os.Rename(target, backup); err != nil {
			return fmt.Errorf("failed to back up existing file: %w", err)
		}
	}

	// Staged under the server's own filename; the rename is atomic on the
	// same filesystem, so the emulator never sees a half-written file.
	staged := filepath.Join(destDir, fileName)
	usedPrimary, err := r.client.DownloadAsset(ctx, kind, asset, staged, deviceID)
	if err != nil {
		return err
	}
	if err := os.Rename(staged, target); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	r.log.Info("downloaded", "kind", kind, "file", asset.FileName,
		"target", target, "device_scoped", usedPrimary)

	r.uploader.Mute(target, constants.PostDownloadMute)
	r.uploader.RecordFingerprint(target)
	if kind == constants.DirSaves {
		r.uploader.SetServerName(target, asset.FileName)
	}

	if kind == constants.DirStates && asset.Screenshot != nil {
		if err := r.client.DownloadScreenshot(ctx, asset.Screenshot, target+".png"); err != nil {
			r.log.Warn("screenshot download failed", "file", asset.FileName, "error", err)
		}
	}
	return nil
}

// alreadyCurrent reports whether the server has observed this device on the
// record's current revision, first from the record's own device_syncs, then
// from a device-scoped query.
func (r *Reconciler) alreadyCurrent(ctx context.Context, kind string, romID uint, asset *types.ServerAsset, deviceID string) bool {
	if asset.SyncedByDevice(deviceID) {
		return true
	}
	scoped, err := r.client.ListAssets(ctx, kind, romm.AssetQuery{RomID: romID, DeviceID: deviceID})
	if err != nil {
		return false
	}
	for _, a := range scoped {
		if a.ID == asset.ID {
			return true
		}
	}
	return false
}

// resolveConflict decides whether the server copy replaces the local one.
func (r *Reconciler) resolveConflict(localTS, serverTS time.Time) (download bool, reason string) {
	switch r.hook.OverwritePolicy() {
	case types.PolicyLocal:
		return false, "policy prefers local"
	case types.PolicyServer:
		return true, "policy prefers server"
	case types.PolicyAsk:
		if r.hook.AskConflict(localTS, serverTS) {
			return true, "user chose server"
		}
		return false, "user chose local"
	default:
		if serverTS.After(localTS.Add(constants.SmartServerNewerBy)) {
			return true, "server newer"
		}
		if localTS.After(serverTS.Add(constants.SmartLocalNewerBy)) {
			return false, "local newer"
		}
		return false, "same revision"
	}
}
