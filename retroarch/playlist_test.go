package retroarch

import (
	"os"
	"path/filepath"
	"testing"
)

func writePlaylist(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCurrentContent(t *testing.T) {
	configDir := t.TempDir()
	writePlaylist(t, filepath.Join(configDir, "content_history.lpl"), `{
		"items": [
			{"path": "/roms/snes/SMW.zip#SMW.sfc", "label": "Super Mario World"},
			{"path": "/roms/snes/Zelda.sfc", "label": "Zelda"}
		]
	}`)

	got, err := CurrentContent(configDir)
	if err != nil {
		t.Fatalf("CurrentContent failed: %v", err)
	}
	if got != "/roms/snes/SMW.zip" {
		t.Errorf("CurrentContent = %q, want archive path without inner part", got)
	}
}

func TestCurrentContentEmpty(t *testing.T) {
	configDir := t.TempDir()
	writePlaylist(t, filepath.Join(configDir, "content_history.lpl"), `{"items": []}`)
	if _, err := CurrentContent(configDir); err == nil {
		t.Errorf("Expected error for empty history")
	}
}

func TestStripArchiveSuffix(t *testing.T) {
	if got := StripArchiveSuffix("/a/b.zip#inner.sfc"); got != "/a/b.zip" {
		t.Errorf("StripArchiveSuffix = %q", got)
	}
	if got := StripArchiveSuffix("/a/b.sfc"); got != "/a/b.sfc" {
		t.Errorf("StripArchiveSuffix changed a plain path: %q", got)
	}
}

func TestPlaylistMtimes(t *testing.T) {
	configDir := t.TempDir()
	writePlaylist(t, filepath.Join(configDir, "playlists", "Nintendo - SNES.lpl"), `{"items": []}`)
	writePlaylist(t, filepath.Join(configDir, "playlists", "notes.txt"), "not a playlist")

	mtimes := PlaylistMtimes(configDir)
	if len(mtimes) != 1 {
		t.Fatalf("Expected 1 playlist, got %d", len(mtimes))
	}
	for path := range mtimes {
		if filepath.Base(path) != "Nintendo - SNES.lpl" {
			t.Errorf("Unexpected playlist %q", path)
		}
	}
}

func TestContentLoaded(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"", false},
		{"N/A", false},
		{"GET_STATUS CONTENTLESS", false},
		{"GET_STATUS PAUSED MENU", false},
		{"GET_STATUS PLAYING super_nes,SMW,crc32=abcd", true},
	}
	for _, tt := range tests {
		if got := ContentLoaded(tt.reply); got != tt.want {
			t.Errorf("ContentLoaded(%q) = %v, want %v", tt.reply, got, tt.want)
		}
	}
}
