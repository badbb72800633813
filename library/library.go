package library

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"romm-autosync/cache"
	"romm-autosync/retroarch"
	"romm-autosync/romm"
	"romm-autosync/types"
)

// ProgressFunc reports download progress after each chunk.
type ProgressFunc func(downloaded, total int64)

// progressWriter counts bytes as they stream through and forwards the running
// totals to the callback.
type progressWriter struct {
	total      int64
	downloaded int64
	progress   ProgressFunc
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)
	if pw.progress != nil {
		pw.progress(pw.downloaded, pw.total)
	}
	return n, nil
}

// Service manages the local ROM library tree: <root>/<platform_slug>/<file>.
type Service struct {
	log    *slog.Logger
	client *romm.Client
	cache  *cache.Store
	root   string
}

// New creates a library service rooted at root.
func New(client *romm.Client, store *cache.Store, root string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		log:    log.With("component", "library"),
		client: client,
		cache:  store,
		root:   root,
	}
}

// Root returns the configured library path.
func (s *Service) Root() string { return s.root }

// RomDir returns the directory a game's files live in.
func (s *Service) RomDir(g *types.Game) string {
	return filepath.Join(s.root, g.PlatformSlug)
}

// RomPath returns the expected on-disk path for a game.
func (s *Service) RomPath(g *types.Game) string {
	return filepath.Join(s.RomDir(g), g.FileName)
}

// IsDownloaded checks for a local copy of the game, trying the exact catalog
// filename first and falling back to any recognizable ROM with the same stem
// (extraction may have changed the extension).
func (s *Service) IsDownloaded(g *types.Game) (string, bool) {
	exact := s.RomPath(g)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return exact, true
	}
	stem := strings.ToLower(g.Stem())
	entries, err := os.ReadDir(s.RomDir(g))
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasPrefix(name, stem) {
			continue
		}
		ext := filepath.Ext(name)
		if _, ok := retroarch.CoreMap[ext]; ok || ext == ".zip" || ext == ".7z" {
			return filepath.Join(s.RomDir(g), e.Name()), true
		}
	}
	return "", false
}

// Download streams a game into the library. Multi-file games arrive as an
// archive and are extracted next to it. Returns the path of the playable file.
func (s *Service) Download(ctx context.Context, g *types.Game, progress ProgressFunc) (string, error) {
	if s.root == "" {
		return "", fmt.Errorf("library path is not configured")
	}

	fileName := g.FileName
	if g.Multi && !isArchiveName(fileName) {
		// The server zips multi-file games on the fly.
		fileName += ".zip"
	}

	reader, total, err := s.client.DownloadRomFile(ctx, g.ID, fileName)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	destDir := s.RomDir(g)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create library directory: %w", err)
	}

	destPath := filepath.Join(destDir, fileName)
	part := destPath + ".part"
	out, err := os.Create(part)
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}

	if total <= 0 {
		total = g.SizeBytes()
	}
	pw := &progressWriter{total: total, progress: progress}
	_, copyErr := io.Copy(io.MultiWriter(out, pw), reader)
	closeErr := out.Close()
	if copyErr != nil {
		if ctx.Err() != nil {
			// A cancelled download keeps its .part file for inspection.
			return "", ctx.Err()
		}
		os.Remove(part)
		return "", fmt.Errorf("failed to save %s: %w", fileName, copyErr)
	}
	if closeErr != nil {
		os.Remove(part)
		return "", fmt.Errorf("failed to close download file: %w", closeErr)
	}
	if err := os.Rename(part, destPath); err != nil {
		os.Remove(part)
		return "", fmt.Errorf("failed to move download into place: %w", err)
	}

	playable := destPath
	if g.Multi && isArchiveName(destPath) {
		extracted, err := Extract(destPath, destDir)
		if err != nil {
			s.log.Warn("extraction failed, keeping archive", "path", destPath, "error", err)
		} else if len(extracted) > 0 {
			if p := pickPlayable(extracted); p != "" {
				playable = p
			}
			os.Remove(destPath)
		}
	}

	info, err := os.Stat(playable)
	var size int64
	if err == nil {
		size = info.Size()
	}
	s.cache.UpdateLocalState(g.ID, playable, size)
	s.log.Info("rom downloaded", "name", g.Name, "path", playable)
	return playable, nil
}

// Delete removes the local copy of a game and clears its catalog state.
func (s *Service) Delete(g *types.Game) error {
	path, ok := s.IsDownloaded(g)
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	s.cache.UpdateLocalState(g.ID, "", 0)
	s.log.Info("rom deleted", "name", g.Name, "path", path)
	return nil
}

func isArchiveName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip", ".7z", ".rar":
		return true
	}
	return false
}

// pickPlayable chooses the file RetroArch should load from an extracted set:
// the first one with a known core extension.
func pickPlayable(paths []string) string {
	for _, p := range paths {
		if _, ok := retroarch.CoreMap[strings.ToLower(filepath.Ext(p))]; ok {
			return p
		}
	}
	return ""
}
