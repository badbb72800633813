// Package status assembles point-in-time snapshots for front-ends. Assembly
// is a pure read of live state; the only I/O it may perform is the optional
// collections fetch when the caller did not supply a known list.
package status

import (
	"context"

	"romm-autosync/cache"
	"romm-autosync/collections"
	"romm-autosync/types"
)

// Inputs is everything a snapshot is computed from.
type Inputs struct {
	Connected      bool
	AutoSyncActive bool
	Cache          *cache.Store
	Loop           *collections.Loop
	// Known, when non-empty, is used instead of fetching the collection list.
	Known            []types.Collection
	FetchCollections func(context.Context) ([]types.Collection, error)
	ConfigWarnings   []string
}

// Assemble builds the snapshot.
func Assemble(ctx context.Context, in Inputs) types.StatusSnapshot {
	snap := types.StatusSnapshot{
		Connected:      in.Connected,
		AutoSyncActive: in.AutoSyncActive,
		ConfigWarnings: in.ConfigWarnings,
	}
	if in.Cache != nil {
		snap.GameCount = in.Cache.Count()
	}

	known := in.Known
	if len(known) == 0 && in.FetchCollections != nil {
		if fetched, err := in.FetchCollections(ctx); err == nil {
			known = fetched
		}
	}
	if len(known) == 0 {
		return snap
	}

	downloadedByID := downloadedIndex(in.Cache)
	for _, col := range known {
		snap.Collections = append(snap.Collections, collectionStatus(col, in.Loop, downloadedByID))
	}
	return snap
}

func collectionStatus(col types.Collection, loop *collections.Loop, downloadedByID map[uint]bool) types.CollectionStatus {
	cs := types.CollectionStatus{Name: col.Name}

	var tracked bool
	if loop != nil {
		for _, name := range loop.Selected() {
			if name == col.Name {
				cs.AutoSync = true
				break
			}
		}
		if p, ok := loop.Progress(col.Name); ok {
			cs.SyncState = types.SyncStateSyncing
			cs.Downloaded = p.Downloaded
			cs.Total = p.Total
			cs.Speed = p.Speed
			cs.DownloadedPct = p.DownloadedPct
			if ev, ok := loop.LastRemoval(col.Name); ok {
				cs.LastRemoval = &ev
			}
			return cs
		}
		if ids, ok := loop.CachedSet(col.Name); ok {
			tracked = true
			cs.Total = len(ids)
			cs.Downloaded = countDownloaded(ids, downloadedByID)
		}
		if ev, ok := loop.LastRemoval(col.Name); ok {
			cs.LastRemoval = &ev
		}
	}
	if !tracked {
		// Not tracked by the loop; counted live from the catalog flags.
		cs.Total = len(col.RomIDs)
		cs.Downloaded = countDownloaded(col.RomIDs, downloadedByID)
	}

	switch {
	case cs.Total > 0 && cs.Downloaded >= cs.Total:
		cs.SyncState = types.SyncStateSynced
	default:
		cs.SyncState = types.SyncStateNotSynced
	}
	return cs
}

func downloadedIndex(store *cache.Store) map[uint]bool {
	idx := make(map[uint]bool)
	if store == nil {
		return idx
	}
	for _, g := range store.Games() {
		if g.IsDownloaded {
			idx[g.ID] = true
		}
	}
	return idx
}

func countDownloaded(ids []uint, downloadedByID map[uint]bool) int {
	n := 0
	for _, id := range ids {
		if downloadedByID[id] {
			n++
		}
	}
	return n
}
