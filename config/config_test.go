package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"romm-autosync/types"
)

func TestObscureRevealRoundTrip(t *testing.T) {
	secret := "hunter2"
	stored, err := Obscure(secret)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	if stored == secret {
		t.Errorf("Obscure returned the plaintext")
	}
	if got := Reveal(stored); got != secret {
		t.Errorf("Reveal = %q, want %q", got, secret)
	}
}

func TestObscureEmpty(t *testing.T) {
	stored, err := Obscure("")
	if err != nil || stored != "" {
		t.Errorf("Obscure(\"\") = (%q, %v), want empty", stored, err)
	}
}

func TestRevealPlaintextFallback(t *testing.T) {
	// Settings written before encryption hold plain values; they must survive.
	if got := Reveal("plain-password"); got != "plain-password" {
		t.Errorf("Reveal = %q, want passthrough", got)
	}
}

func TestObscureIsRandomized(t *testing.T) {
	a, _ := Obscure("same")
	b, _ := Obscure("same")
	if a == b {
		t.Errorf("Expected distinct ciphertexts for repeated values")
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Path: filepath.Join(dir, "settings.ini")}

	want := types.Settings{
		Host:                "https://romm.example.com",
		Username:            "alice",
		Password:            "secret",
		LibraryPath:         "/roms",
		AutoDownload:        true,
		AutoDelete:          true,
		BiosDir:             "/bios",
		Enabled:             true,
		OverwriteBehavior:   types.PolicyServer,
		SyncInterval:        90 * time.Second,
		RetroArchPath:       "/opt/retroarch",
		RetroArchExecutable: "/usr/bin/retroarch",
		SelectedCollections: []string{"Favorites", "RPGs"},
		DeviceID:            "dev-1",
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Credentials must not be stored in the clear.
	raw, err := os.ReadFile(store.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if strings.Contains(string(raw), "secret") || strings.Contains(string(raw), "alice") {
		t.Errorf("settings.ini contains plaintext credentials:\n%s", raw)
	}

	fresh := &Store{Path: store.Path}
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := fresh.Get()
	if got.Host != want.Host || got.Username != want.Username || got.Password != want.Password {
		t.Errorf("RomM section mismatch: %+v", got)
	}
	if got.OverwriteBehavior != types.PolicyServer || got.SyncInterval != 90*time.Second {
		t.Errorf("AutoSync section mismatch: %+v", got)
	}
	if len(got.SelectedCollections) != 2 || got.SelectedCollections[0] != "Favorites" {
		t.Errorf("Collections mismatch: %v", got.SelectedCollections)
	}
	if got.DeviceID != "dev-1" {
		t.Errorf("DeviceID mismatch: %q", got.DeviceID)
	}
}

func TestStoreLoadMissingCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Path: filepath.Join(dir, "settings.ini")}
	if err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := store.Get()
	if !got.Enabled || !got.AutoDownload || got.OverwriteBehavior != types.PolicySmart {
		t.Errorf("Unexpected defaults: %+v", got)
	}
	if _, err := os.Stat(store.Path); err != nil {
		t.Errorf("Expected settings.ini to be created: %v", err)
	}
}
