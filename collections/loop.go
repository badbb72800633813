package collections

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"romm-autosync/cache"
	"romm-autosync/constants"
	"romm-autosync/library"
	"romm-autosync/romm"
	"romm-autosync/types"
)

// Options configures the collection sync loop.
type Options struct {
	AutoDownload bool
	AutoDelete   bool
	Interval     time.Duration
}

// Loop mirrors selected server-side collections onto the local library:
// games added to a collection are downloaded, games removed are optionally
// deleted. One goroutine per Start; per-collection initialization runs on its
// own goroutine so reconfiguration never blocks the caller.
type Loop struct {
	log    *slog.Logger
	client *romm.Client
	cache  *cache.Store
	lib    *library.Service
	opts   Options

	mu       sync.Mutex
	selected map[string]bool
	cached   map[string][]uint
	progress map[string]types.CollectionProgress
	removals map[string]types.RemovalEvent

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLoop builds a stopped loop.
func NewLoop(client *romm.Client, store *cache.Store, lib *library.Service, opts Options, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = constants.DefaultSyncInterval
	}
	return &Loop{
		log:      log.With("component", "collections"),
		client:   client,
		cache:    store,
		lib:      lib,
		opts:     opts,
		selected: make(map[string]bool),
		cached:   make(map[string][]uint),
		progress: make(map[string]types.CollectionProgress),
		removals: make(map[string]types.RemovalEvent),
	}
}

// Start launches the loop when at least one collection is selected.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running || len(l.selected) == 0 {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(runCtx)
	}()
}

// Stop halts the loop and waits for in-flight work.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel := l.cancel
	l.mu.Unlock()

	cancel()
	l.wg.Wait()
}

// SetSelected replaces the tracked set. New collections are initialized on
// their own goroutines; dropped ones just lose their cache entry.
func (l *Loop) SetSelected(ctx context.Context, names []string) {
	l.mu.Lock()
	fresh := make(map[string]bool, len(names))
	var added []string
	for _, name := range names {
		fresh[name] = true
		if !l.selected[name] {
			added = append(added, name)
		}
	}
	for name := range l.selected {
		if !fresh[name] {
			delete(l.cached, name)
			delete(l.progress, name)
			delete(l.removals, name)
		}
	}
	l.selected = fresh
	l.mu.Unlock()

	for _, name := range added {
		l.wg.Add(1)
		go func(name string) {
			defer l.wg.Done()
			if err := l.initialize(ctx, name); err != nil {
				l.log.Warn("collection initialization failed", "collection", name, "error", err)
			}
		}(name)
	}
}

// Selected returns the tracked collection names.
func (l *Loop) Selected() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.Keys(l.selected)
}

// Progress returns the live download state for a collection, if any.
func (l *Loop) Progress(name string) (types.CollectionProgress, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.progress[name]
	return p, ok
}

// CachedSet returns the last-seen membership of a tracked collection.
func (l *Loop) CachedSet(name string) ([]uint, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids, ok := l.cached[name]
	if !ok {
		return nil, false
	}
	out := make([]uint, len(ids))
	copy(out, ids)
	return out, true
}

// LastRemoval returns the pending removal event for a collection, if any.
func (l *Loop) LastRemoval(name string) (types.RemovalEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, ok := l.removals[name]
	return ev, ok
}

func (l *Loop) run(ctx context.Context) {
	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.syncOnce(ctx)
		}
	}
}

// initialize fetches a collection's membership, caches it, and performs the
// first-run catch-up download of every member absent locally.
func (l *Loop) initialize(ctx context.Context, name string) error {
	games, err := l.fetchMembers(ctx, name)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.cached[name] = gameIDs(games)
	l.mu.Unlock()

	l.downloadMissing(ctx, name, games, len(games))
	return nil
}

// syncOnce diffs every tracked collection against the server.
func (l *Loop) syncOnce(ctx context.Context) {
	for _, name := range l.Selected() {
		games, err := l.fetchMembers(ctx, name)
		if err != nil {
			l.log.Warn("collection fetch failed", "collection", name, "error", err)
			continue
		}
		freshIDs := gameIDs(games)

		l.mu.Lock()
		cachedIDs := l.cached[name]
		l.cached[name] = freshIDs
		l.mu.Unlock()

		addedIDs, removedIDs := lo.Difference(freshIDs, cachedIDs)
		if len(addedIDs) > 0 {
			addedSet := lo.SliceToMap(addedIDs, func(id uint) (uint, bool) { return id, true })
			added := lo.Filter(games, func(g types.Game, _ int) bool { return addedSet[g.ID] })
			l.handleAdded(ctx, name, added, len(games))
		}
		if len(removedIDs) > 0 {
			l.handleRemoved(name, removedIDs)
		}
	}
}

// fetchMembers resolves a collection by name and pulls its membership.
func (l *Loop) fetchMembers(ctx context.Context, name string) ([]types.Game, error) {
	cols, err := l.client.GetCollections(ctx)
	if err != nil {
		return nil, err
	}
	col, ok := lo.Find(cols, func(c types.Collection) bool { return c.Name == name })
	if !ok {
		return nil, fmt.Errorf("collection %q not found on server", name)
	}
	return l.client.GetRomsByCollection(ctx, col.ID)
}

func (l *Loop) handleAdded(ctx context.Context, name string, added []types.Game, total int) {
	if !l.opts.AutoDownload {
		l.log.Info("auto-download disabled, ignoring added games",
			"collection", name, "count", len(added))
		return
	}
	l.downloadMissing(ctx, name, added, total)
}

// downloadMissing pulls every game in candidates that has no local copy,
// publishing progress under the collection's name.
func (l *Loop) downloadMissing(ctx context.Context, name string, candidates []types.Game, total int) {
	missing := lo.Filter(candidates, func(g types.Game, _ int) bool {
		_, ok := l.lib.IsDownloaded(&g)
		return !ok
	})
	existing := total - len(missing)
	if len(missing) == 0 {
		return
	}
	l.log.Info("downloading collection additions",
		"collection", name, "missing", len(missing), "total", total)

	l.setProgress(name, types.CollectionProgress{Downloaded: existing, Total: total})
	defer l.clearProgress(name)

	for i := range missing {
		if ctx.Err() != nil {
			return
		}
		g := missing[i]
		base := existing + i

		// Bump before the first chunk so the UI shows "working on N" and a
		// non-zero percentage immediately.
		l.setProgress(name, types.CollectionProgress{
			Downloaded:    base + 1,
			Total:         total,
			DownloadedPct: (float64(base) + 0.01) / float64(total) * 100,
		})

		lastTime := time.Now()
		var lastBytes int64
		progress := func(downloaded, size int64) {
			var fraction float64
			if size > 0 {
				fraction = float64(downloaded) / float64(size)
			}
			speed := ""
			if dt := time.Since(lastTime).Seconds(); dt >= 1 {
				rate := float64(downloaded-lastBytes) / dt
				speed = humanize.Bytes(uint64(rate)) + "/s"
				lastTime = time.Now()
				lastBytes = downloaded
			}
			p := types.CollectionProgress{
				Downloaded:    base + 1,
				Total:         total,
				DownloadedPct: (float64(base) + fraction) / float64(total) * 100,
			}
			if speed != "" {
				p.Speed = speed
			} else if prev, ok := l.Progress(name); ok {
				p.Speed = prev.Speed
			}
			l.setProgress(name, p)
		}

		if _, err := l.lib.Download(ctx, &g, progress); err != nil {
			l.log.Warn("collection download failed",
				"collection", name, "rom", g.Name, "error", err)
			continue
		}
	}
}

// handleRemoved records the removal event and, when auto-delete is on,
// unlinks games that are not members of any other tracked collection.
func (l *Loop) handleRemoved(name string, removedIDs []uint) {
	deleted := 0
	if l.opts.AutoDelete {
		keep := l.idsInOtherCollections(name)
		byID := lo.SliceToMap(l.cache.Games(), func(g types.Game) (uint, types.Game) { return g.ID, g })
		for _, id := range removedIDs {
			if keep[id] {
				continue
			}
			g, ok := byID[id]
			if !ok {
				continue
			}
			if err := l.lib.Delete(&g); err != nil {
				l.log.Warn("failed to delete removed game", "rom", g.Name, "error", err)
				continue
			}
			deleted++
		}
	}

	l.mu.Lock()
	l.removals[name] = types.RemovalEvent{
		RemovedCount: len(removedIDs),
		DeletedCount: deleted,
		Timestamp:    time.Now(),
	}
	l.mu.Unlock()
	l.log.Info("games removed from collection",
		"collection", name, "removed", len(removedIDs), "deleted", deleted)
}

// idsInOtherCollections unions the cached membership of every tracked
// collection except the named one.
func (l *Loop) idsInOtherCollections(except string) map[uint]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	keep := make(map[uint]bool)
	for name, ids := range l.cached {
		if name == except {
			continue
		}
		for _, id := range ids {
			keep[id] = true
		}
	}
	return keep
}

func (l *Loop) setProgress(name string, p types.CollectionProgress) {
	l.mu.Lock()
	l.progress[name] = p
	l.mu.Unlock()
}

func (l *Loop) clearProgress(name string) {
	l.mu.Lock()
	delete(l.progress, name)
	l.mu.Unlock()
}

func gameIDs(games []types.Game) []uint {
	return lo.Map(games, func(g types.Game, _ int) uint { return g.ID })
}
