package types

import (
	"sort"
	"time"

	"romm-autosync/utils"
)

// Screenshot is a server-side screenshot linked to a save state.
type Screenshot struct {
	ID           uint   `json:"id"`
	FileName     string `json:"file_name"`
	DownloadPath string `json:"download_path"`
}

// DeviceSync records that a device has pulled (or pushed) the current revision
// of an asset; used for optimistic skipping.
type DeviceSync struct {
	DeviceID  string `json:"device_id"`
	IsCurrent bool   `json:"is_current"`
}

// ServerAsset is a save or state record as the server reports it. Timestamps
// stay as the raw ISO-8601 strings; use UpdatedTime for comparisons.
type ServerAsset struct {
	ID            uint         `json:"id"`
	RomID         uint         `json:"rom_id"`
	FileName      string       `json:"file_name"`
	Emulator      string       `json:"emulator"`
	Slot          string       `json:"slot"`
	UpdatedAt     string       `json:"updated_at"`
	CreatedAt     string       `json:"created_at"`
	FileSizeBytes int64        `json:"file_size_bytes"`
	DownloadPath  string       `json:"download_path"`
	Screenshot    *Screenshot  `json:"screenshot"`
	DeviceSyncs   []DeviceSync `json:"device_syncs"`
}

// UpdatedTime parses updated_at, falling back to created_at. Zero time when
// neither parses.
func (a *ServerAsset) UpdatedTime() time.Time {
	if t, err := utils.ParseTimestamp(a.UpdatedAt); err == nil {
		return t
	}
	if t, err := utils.ParseTimestamp(a.CreatedAt); err == nil {
		return t
	}
	return time.Time{}
}

// SyncedByDevice reports whether device_syncs marks deviceID as current.
func (a *ServerAsset) SyncedByDevice(deviceID string) bool {
	for _, ds := range a.DeviceSyncs {
		if ds.DeviceID == deviceID && ds.IsCurrent {
			return true
		}
	}
	return false
}

// MostRecentAsset picks the newest record by updated_at, falling back to
// created_at, falling back to file_name ordering. Returns nil for an empty list.
func MostRecentAsset(assets []ServerAsset) *ServerAsset {
	if len(assets) == 0 {
		return nil
	}
	sorted := make([]ServerAsset, len(assets))
	copy(sorted, assets)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].UpdatedTime(), sorted[j].UpdatedTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return sorted[i].FileName > sorted[j].FileName
	})
	return &sorted[0]
}

// RomDetails is the full /api/roms/{id} payload: the catalog entry plus the
// caller's saves and states.
type RomDetails struct {
	Game
	UserSaves  []ServerAsset `json:"user_saves"`
	UserStates []ServerAsset `json:"user_states"`
}
