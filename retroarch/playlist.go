package retroarch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// PlaylistItem is one entry of a RetroArch playlist (.lpl) file.
type PlaylistItem struct {
	Path     string `json:"path"`
	Label    string `json:"label"`
	CorePath string `json:"core_path"`
}

type playlistFile struct {
	Items []PlaylistItem `json:"items"`
}

// ReadPlaylist parses a playlist JSON file.
func ReadPlaylist(path string) ([]PlaylistItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	var pf playlistFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse playlist %s: %w", filepath.Base(path), err)
	}
	return pf.Items, nil
}

// CurrentContent reads the most recent entry from the content history
// playlist. Archive paths of the form "game.zip#inner.rom" are reduced to the
// archive path.
func CurrentContent(configDir string) (string, error) {
	items, err := ReadPlaylist(filepath.Join(configDir, "content_history.lpl"))
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", fmt.Errorf("content history is empty")
	}
	return StripArchiveSuffix(items[0].Path), nil
}

// StripArchiveSuffix removes the "#inner" part of an archive content path.
func StripArchiveSuffix(path string) string {
	if idx := strings.Index(path, "#"); idx >= 0 {
		return path[:idx]
	}
	return path
}

// PlaylistMtimes returns the per-system playlist files under the playlists
// directory and their modification times. Content history is excluded; it is
// polled separately.
func PlaylistMtimes(configDir string) map[string]time.Time {
	dir := filepath.Join(configDir, "playlists")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	mtimes := make(map[string]time.Time)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lpl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mtimes[filepath.Join(dir, e.Name())] = info.ModTime()
	}
	return mtimes
}

// MostRecentEntry returns the playlist entry whose content file was touched
// last, used when a library-initiated launch is inferred from a playlist
// mtime change.
func MostRecentEntry(playlistPath string) (PlaylistItem, error) {
	items, err := ReadPlaylist(playlistPath)
	if err != nil {
		return PlaylistItem{}, err
	}
	if len(items) == 0 {
		return PlaylistItem{}, fmt.Errorf("playlist %s is empty", filepath.Base(playlistPath))
	}
	sort.SliceStable(items, func(i, j int) bool {
		ti, errI := os.Stat(StripArchiveSuffix(items[i].Path))
		tj, errJ := os.Stat(StripArchiveSuffix(items[j].Path))
		if errI != nil || errJ != nil {
			return errJ != nil && errI == nil
		}
		return ti.ModTime().After(tj.ModTime())
	})
	return items[0], nil
}
