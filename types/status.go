package types

// SyncState classifies a collection for the front-end.
type SyncState string

const (
	SyncStateNotSynced SyncState = "not_synced"
	SyncStateSyncing   SyncState = "syncing"
	SyncStateSynced    SyncState = "synced"
)

// CollectionStatus is the per-collection slice of a status snapshot.
type CollectionStatus struct {
	Name          string        `json:"name"`
	AutoSync      bool          `json:"auto_sync"`
	SyncState     SyncState     `json:"sync_state"`
	Downloaded    int           `json:"downloaded"`
	Total         int           `json:"total"`
	Speed         string        `json:"speed,omitempty"`
	DownloadedPct float64       `json:"downloaded_pct,omitempty"`
	LastRemoval   *RemovalEvent `json:"last_removal,omitempty"`
}

// StatusSnapshot is a point-in-time view of the engine for the front-end.
// Assembling it must never trigger I/O beyond an optional collections fetch.
type StatusSnapshot struct {
	Connected      bool               `json:"connected"`
	AutoSyncActive bool               `json:"auto_sync_active"`
	GameCount      int                `json:"game_count"`
	Collections    []CollectionStatus `json:"collections"`
	ConfigWarnings []string           `json:"config_warnings,omitempty"`
}
