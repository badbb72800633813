package launcher

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"romm-autosync/library"
	"romm-autosync/retroarch"
	"romm-autosync/types"
)

// SyncFunc runs the pre-launch save reconciliation for a ROM.
type SyncFunc func(ctx context.Context, romID uint) error

// Launcher starts games in RetroArch: locate (or fetch) the local ROM, pull
// the latest saves, resolve a core from the extension, exec.
type Launcher struct {
	log       *slog.Logger
	lib       *library.Service
	install   *retroarch.Installation
	preLaunch SyncFunc
}

// New builds a launcher. preLaunch may be nil when no sync engine is running.
func New(lib *library.Service, install *retroarch.Installation, preLaunch SyncFunc, log *slog.Logger) *Launcher {
	if log == nil {
		log = slog.Default()
	}
	return &Launcher{
		log:       log.With("component", "launcher"),
		lib:       lib,
		install:   install,
		preLaunch: preLaunch,
	}
}

// Play launches a game and blocks until the emulator exits.
func (l *Launcher) Play(ctx context.Context, g *types.Game) error {
	if l.install.Executable == "" {
		return fmt.Errorf("no RetroArch executable configured")
	}

	romPath, ok := l.lib.IsDownloaded(g)
	if !ok {
		l.log.Info("rom not present locally, downloading", "name", g.Name)
		var err error
		romPath, err = l.lib.Download(ctx, g, nil)
		if err != nil {
			return fmt.Errorf("failed to download %s: %w", g.Name, err)
		}
	}

	if l.preLaunch != nil {
		if err := l.preLaunch(ctx, g.ID); err != nil {
			// Launch anyway; stale saves beat no game.
			l.log.Warn("pre-launch sync failed", "name", g.Name, "error", err)
		}
	}

	contentPath, corePath, err := l.resolveCore(romPath)
	if err != nil {
		return err
	}

	l.log.Info("launching", "name", g.Name, "core", filepath.Base(corePath), "content", contentPath)
	cmd := exec.CommandContext(ctx, l.install.Executable, "-L", corePath, contentPath)
	cmd.Dir = l.install.ConfigDir
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("retroarch exited with error: %w", err)
	}
	return nil
}

// resolveCore picks the libretro core for a ROM. Zip archives are peeked into
// for the first recognizable inner extension, and the content path takes the
// "archive.zip#inner" form RetroArch expects.
func (l *Launcher) resolveCore(romPath string) (contentPath, corePath string, err error) {
	contentPath = romPath
	ext := strings.ToLower(filepath.Ext(romPath))

	if ext == ".zip" {
		r, err := zip.OpenReader(romPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to open rom archive: %w", err)
		}
		defer r.Close()

		found := ""
		for _, f := range r.File {
			if f.FileInfo().IsDir() {
				continue
			}
			inner := strings.ToLower(filepath.Ext(f.Name))
			if _, ok := retroarch.CoreMap[inner]; ok {
				found = inner
				contentPath = fmt.Sprintf("%s#%s", romPath, f.Name)
				break
			}
		}
		if found == "" {
			return "", "", fmt.Errorf("no recognizable ROM inside %s", filepath.Base(romPath))
		}
		ext = found
	}

	core, ok := retroarch.CoreMap[ext]
	if !ok {
		return "", "", fmt.Errorf("no core mapping for extension %s", ext)
	}
	corePath = filepath.Join(l.install.CoresDir, core+retroarch.CoreExt())
	if _, err := os.Stat(corePath); err != nil {
		return "", "", fmt.Errorf("core %s not installed (expected at %s)", core, corePath)
	}
	return contentPath, corePath, nil
}
