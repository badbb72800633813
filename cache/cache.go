package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"romm-autosync/constants"
	"romm-autosync/types"
	"romm-autosync/utils"
	"romm-autosync/utils/fileio"
)

// Extension variants tried when matching a bare filename against the catalog.
var extensionVariants = []string{".zip", ".7z", ".bin", ".iso", ".chd"}

var regionTagRe = regexp.MustCompile(`\s*\(.*?\)`)

// gamesFile is the on-disk shape of games_data.json.
type gamesFile struct {
	Timestamp int64        `json:"timestamp"`
	Count     int          `json:"count"`
	Games     []types.Game `json:"games"`
}

// Store is the local mirror of the ROM catalog: the game list, a filename
// index, and the platform display-name mapping. One writer (the catalog
// refresh) mutates it; readers take snapshots.
type Store struct {
	dir string
	log *slog.Logger

	mu            sync.RWMutex
	games         []types.Game
	byFile        map[string]int // filename / stem / variant -> index into games
	platformNames map[string]string
	loadedAt      time.Time

	saveWG sync.WaitGroup
}

// NewStore creates a catalog cache rooted at dir (usually <config>/cache).
func NewStore(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	names := make(map[string]string, len(fallbackPlatformNames))
	for k, v := range fallbackPlatformNames {
		names[k] = v
	}
	return &Store{
		dir:           dir,
		log:           log.With("component", "cache"),
		byFile:        make(map[string]int),
		platformNames: names,
	}
}

// Load reads games_data.json and platform_mapping.json. An expired games file
// (older than 24 h) is treated as absent; the platform mapping has no expiry.
func (s *Store) Load() error {
	s.loadPlatformMapping()

	data, err := os.ReadFile(filepath.Join(s.dir, constants.GamesCacheFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read games cache: %w", err)
	}

	var gf gamesFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return fmt.Errorf("failed to parse games cache: %w", err)
	}

	age := time.Since(time.Unix(gf.Timestamp, 0))
	if age > constants.CacheExpiry {
		s.log.Info("games cache expired, ignoring", "age", age.Round(time.Minute))
		return nil
	}

	s.mu.Lock()
	s.games = gf.Games
	s.normalizePlatformsLocked()
	s.rebuildIndexLocked()
	s.loadedAt = time.Unix(gf.Timestamp, 0)
	s.mu.Unlock()

	s.log.Info("games cache loaded", "count", len(gf.Games), "age", age.Round(time.Second))
	return nil
}

func (s *Store) loadPlatformMapping() {
	data, err := os.ReadFile(filepath.Join(s.dir, constants.PlatformCacheFile))
	if err != nil {
		return
	}
	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		return
	}
	s.mu.Lock()
	for slug, name := range stored {
		if moreInformative(slug, name, s.platformNames[slug]) {
			s.platformNames[slug] = name
		}
	}
	s.mu.Unlock()
}

// SetGames replaces the catalog, rebuilds the indexes, and dispatches the
// on-disk save to a background worker so the caller never blocks on disk I/O.
func (s *Store) SetGames(games []types.Game) {
	s.mu.Lock()
	s.games = games
	s.normalizePlatformsLocked()
	s.rebuildIndexLocked()
	s.loadedAt = time.Now()
	snapshot := make([]types.Game, len(s.games))
	copy(snapshot, s.games)
	s.mu.Unlock()

	s.saveWG.Add(1)
	go func() {
		defer s.saveWG.Done()
		s.persist(snapshot)
	}()
}

// MergePlatforms overlays server-supplied platform names onto the fallback
// mapping. A server entry wins only when it is strictly more informative than
// what we already have (a real display string, not the slug itself).
func (s *Store) MergePlatforms(platforms []types.Platform) {
	s.mu.Lock()
	for _, p := range platforms {
		if p.Slug == "" {
			continue
		}
		if moreInformative(p.Slug, p.Name, s.platformNames[p.Slug]) {
			s.platformNames[p.Slug] = p.Name
		}
	}
	s.normalizePlatformsLocked()
	mapping := make(map[string]string, len(s.platformNames))
	for k, v := range s.platformNames {
		mapping[k] = v
	}
	s.mu.Unlock()

	s.saveWG.Add(1)
	go func() {
		defer s.saveWG.Done()
		data, err := json.MarshalIndent(mapping, "", "  ")
		if err != nil {
			return
		}
		if err := fileio.WriteFileAtomic(filepath.Join(s.dir, constants.PlatformCacheFile), data, 0o644); err != nil {
			s.log.Warn("failed to save platform mapping", "error", err)
		}
	}()
}

// moreInformative reports whether candidate is a better display name for slug
// than current: it must be non-empty, differ from the raw slug, and either
// fill a gap or replace a value that is just the slug echoed back.
func moreInformative(slug, candidate, current string) bool {
	if candidate == "" || strings.EqualFold(candidate, slug) {
		return false
	}
	if current == "" {
		return true
	}
	return strings.EqualFold(current, slug)
}

// PlatformName resolves a slug to its display name; unknown slugs come back
// unchanged.
func (s *Store) PlatformName(slug string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.platformNames[slug]; ok {
		return name
	}
	return slug
}

// Games returns a copy of the catalog.
func (s *Store) Games() []types.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Game, len(s.games))
	copy(out, s.games)
	return out
}

// Count returns the number of cached games.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// IsFresh reports whether the cache was populated within the expiry window.
func (s *Store) IsFresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loadedAt.IsZero() && time.Since(s.loadedAt) <= constants.CacheExpiry
}

// Lookup finds a catalog entry for a filename, trying the exact name, the
// stem, and the stem with each common extension variant.
func (s *Store) Lookup(fileName string) (types.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.byFile[strings.ToLower(fileName)]; ok {
		return s.games[idx], true
	}
	return types.Game{}, false
}

// MatchSaveFile identifies the ROM a local save/state file belongs to. The
// timestamp bracket is stripped first; then the base name is compared against
// the catalog's fs_name_no_ext, exact first, then with region tags removed
// from both sides.
func (s *Store) MatchSaveFile(fileName string) (types.Game, bool) {
	base := utils.Stem(utils.StripBracket(filepath.Base(fileName)))

	if g, ok := s.Lookup(base); ok {
		return g, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.games {
		if strings.EqualFold(s.games[i].Stem(), base) {
			return s.games[i], true
		}
	}

	stripped := strings.TrimSpace(regionTagRe.ReplaceAllString(base, ""))
	for i := range s.games {
		candidate := strings.TrimSpace(regionTagRe.ReplaceAllString(s.games[i].Stem(), ""))
		if strings.EqualFold(candidate, stripped) {
			return s.games[i], true
		}
	}
	return types.Game{}, false
}

// UpdateLocalState records download state for a game in the in-memory catalog.
func (s *Store) UpdateLocalState(romID uint, localPath string, localSize int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.games {
		if s.games[i].ID == romID {
			s.games[i].IsDownloaded = localPath != ""
			s.games[i].LocalPath = localPath
			s.games[i].LocalSize = localSize
			return
		}
	}
}

// Flush waits for in-flight background saves. Call on shutdown.
func (s *Store) Flush() {
	s.saveWG.Wait()
}

// normalizePlatformsLocked rewrites each game's displayed platform to the
// mapping's display name, never the raw slug. Caller must hold mu.
func (s *Store) normalizePlatformsLocked() {
	for i := range s.games {
		slug := s.games[i].PlatformSlug
		if name, ok := s.platformNames[slug]; ok {
			s.games[i].PlatformName = name
		} else if s.games[i].PlatformName == "" {
			s.games[i].PlatformName = slug
		}
	}
}

// rebuildIndexLocked rebuilds the filename index. Caller must hold mu.
func (s *Store) rebuildIndexLocked() {
	s.byFile = make(map[string]int, len(s.games)*3)
	for i := range s.games {
		g := &s.games[i]
		if g.FileName == "" {
			continue
		}
		s.indexName(g.FileName, i)
		stem := g.Stem()
		s.indexName(stem, i)
		for _, ext := range extensionVariants {
			s.indexName(stem+ext, i)
		}
	}
}

func (s *Store) indexName(name string, idx int) {
	key := strings.ToLower(name)
	if _, exists := s.byFile[key]; !exists {
		s.byFile[key] = idx
	}
}

// persist writes games_data.json and filename_mapping.json via temp+rename.
func (s *Store) persist(games []types.Game) {
	gf := gamesFile{
		Timestamp: time.Now().Unix(),
		Count:     len(games),
		Games:     games,
	}
	data, err := json.Marshal(gf)
	if err != nil {
		s.log.Error("failed to encode games cache", "error", err)
		return
	}
	if err := fileio.WriteFileAtomic(filepath.Join(s.dir, constants.GamesCacheFile), data, 0o644); err != nil {
		s.log.Warn("failed to save games cache", "error", err)
		return
	}

	// Filename mapping is derived, persisted for offline identification of
	// save files between full syncs.
	mapping := make(map[string]uint, len(games))
	for i := range games {
		if games[i].FileName != "" {
			mapping[games[i].FileName] = games[i].ID
		}
	}
	if data, err := json.MarshalIndent(mapping, "", "  "); err == nil {
		if err := fileio.WriteFileAtomic(filepath.Join(s.dir, constants.FilenameCacheFile), data, 0o644); err != nil {
			s.log.Warn("failed to save filename mapping", "error", err)
		}
	}
	s.log.Debug("games cache saved", "count", len(games))
}
