package launcher

import (
	"archive/zip"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"romm-autosync/retroarch"
)

func testLauncher(t *testing.T) *Launcher {
	t.Helper()
	root := t.TempDir()
	install := &retroarch.Installation{
		Executable: filepath.Join(root, "retroarch"),
		ConfigDir:  root,
		CoresDir:   filepath.Join(root, "cores"),
	}
	if err := os.MkdirAll(install.CoresDir, 0o755); err != nil {
		t.Fatal(err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return New(nil, install, nil, log)
}

func installCore(t *testing.T, l *Launcher, core string) string {
	t.Helper()
	path := filepath.Join(l.install.CoresDir, core+retroarch.CoreExt())
	if err := os.WriteFile(path, []byte("elf"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveCorePlainFile(t *testing.T) {
	l := testLauncher(t)
	corePath := installCore(t, l, "snes9x_libretro")

	rom := filepath.Join(t.TempDir(), "SMW.sfc")
	if err := os.WriteFile(rom, []byte("rom"), 0o644); err != nil {
		t.Fatal(err)
	}

	content, core, err := l.resolveCore(rom)
	if err != nil {
		t.Fatalf("resolveCore failed: %v", err)
	}
	if content != rom {
		t.Errorf("Content path = %q", content)
	}
	if core != corePath {
		t.Errorf("Core path = %q, want %q", core, corePath)
	}
}

func TestResolveCoreZipPeek(t *testing.T) {
	l := testLauncher(t)
	installCore(t, l, "mgba_libretro")

	rom := filepath.Join(t.TempDir(), "Game.zip")
	out, err := os.Create(rom)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	f, _ := zw.Create("Game.gba")
	f.Write([]byte("rom"))
	zw.Close()
	out.Close()

	content, core, err := l.resolveCore(rom)
	if err != nil {
		t.Fatalf("resolveCore failed: %v", err)
	}
	if content != rom+"#Game.gba" {
		t.Errorf("Content path = %q, want archive#inner form", content)
	}
	if !strings.Contains(core, "mgba_libretro") {
		t.Errorf("Core path = %q", core)
	}
}

func TestResolveCoreMissing(t *testing.T) {
	l := testLauncher(t)
	rom := filepath.Join(t.TempDir(), "SMW.sfc")
	if err := os.WriteFile(rom, []byte("rom"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := l.resolveCore(rom)
	if err == nil || !strings.Contains(err.Error(), "not installed") {
		t.Errorf("Expected a missing-core error, got %v", err)
	}
}

func TestResolveCoreUnknownExtension(t *testing.T) {
	l := testLauncher(t)
	rom := filepath.Join(t.TempDir(), "save.dat")
	if err := os.WriteFile(rom, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.resolveCore(rom); err == nil {
		t.Errorf("Expected an error for an unmapped extension")
	}
}
