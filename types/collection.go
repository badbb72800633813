package types

import "time"

// Collection is a server-side named set of ROMs.
type Collection struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	RomIDs []uint `json:"rom_ids"`
}

// CollectionProgress is the live download state of one tracked collection.
// Downloaded counts ROMs, not bytes.
type CollectionProgress struct {
	Downloaded    int     `json:"downloaded"`
	Total         int     `json:"total"`
	DownloadedPct float64 `json:"downloaded_pct"`
	Speed         string  `json:"speed"`
}

// RemovalEvent records games leaving a tracked collection, surfaced once via
// the status snapshot.
type RemovalEvent struct {
	RemovedCount int       `json:"removed_count"`
	DeletedCount int       `json:"deleted_count"`
	Timestamp    time.Time `json:"timestamp"`
}
