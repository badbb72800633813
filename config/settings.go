package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Unknwon/goconfig"

	"romm-autosync/constants"
	"romm-autosync/types"
)

// INI sections and keys in settings.ini.
const (
	sectionRomM        = "RomM"
	sectionDownload    = "Download"
	sectionBIOS        = "BIOS"
	sectionAutoSync    = "AutoSync"
	sectionSystem      = "System"
	sectionCollections = "Collections"
	sectionDevice      = "Device"
)

// Store handles loading/saving settings.ini. Reads and writes are
// thread-safe; callers get value copies.
type Store struct {
	Path string

	mu       sync.RWMutex
	settings types.Settings
}

// NewStore initializes the store and determines the settings file path.
func NewStore() *Store {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to executable dir if home is not available
		exePath, err := os.Executable()
		if err != nil {
			exePath = "."
		}
		return &Store{Path: filepath.Join(filepath.Dir(exePath), constants.SettingsINI)}
	}
	return &Store{Path: filepath.Join(home, constants.AppDir, constants.ConfigDir, constants.SettingsINI)}
}

// ConfigRoot returns the directory holding settings.ini, which also anchors
// the cache directory and the lock file.
func (s *Store) ConfigRoot() string {
	return filepath.Dir(s.Path)
}

// Load reads settings from disk, creating defaults when the file is missing.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.Path); os.IsNotExist(err) {
		s.settings = defaultSettings()
		return s.save()
	}

	cf, err := goconfig.LoadConfigFile(s.Path)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.Path, err)
	}

	st := defaultSettings()
	st.Host = cf.MustValue(sectionRomM, "host", st.Host)
	st.Username = Reveal(cf.MustValue(sectionRomM, "username", ""))
	st.Password = Reveal(cf.MustValue(sectionRomM, "password", ""))

	st.LibraryPath = cf.MustValue(sectionDownload, "library_path", st.LibraryPath)
	st.AutoDownload = cf.MustBool(sectionDownload, "auto_download", st.AutoDownload)
	st.AutoDelete = cf.MustBool(sectionDownload, "auto_delete", st.AutoDelete)

	st.BiosDir = cf.MustValue(sectionBIOS, "bios_dir", st.BiosDir)

	st.Enabled = cf.MustBool(sectionAutoSync, "enabled", st.Enabled)
	st.OverwriteBehavior = types.ParseOverwritePolicy(
		cf.MustValue(sectionAutoSync, "overwrite_behavior", string(st.OverwriteBehavior)))
	intervalSec := cf.MustInt64(sectionAutoSync, "sync_interval", int64(st.SyncInterval/time.Second))
	if intervalSec > 0 {
		st.SyncInterval = time.Duration(intervalSec) * time.Second
	}

	st.RetroArchPath = cf.MustValue(sectionSystem, "retroarch_path", "")
	st.RetroArchExecutable = cf.MustValue(sectionSystem, "retroarch_executable", "")

	if selected := cf.MustValue(sectionCollections, "selected", ""); selected != "" {
		for _, name := range strings.Split(selected, ",") {
			if name = strings.TrimSpace(name); name != "" {
				st.SelectedCollections = append(st.SelectedCollections, name)
			}
		}
	}

	st.DeviceID = cf.MustValue(sectionDevice, "device_id", "")

	s.settings = st
	return nil
}

// Get returns a copy of the current settings (thread-safe).
func (s *Store) Get() types.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.settings
	st.SelectedCollections = append([]string(nil), s.settings.SelectedCollections...)
	return st
}

// Save persists new settings to disk.
func (s *Store) Save(st types.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = st
	return s.save()
}

// Update applies fn to the current settings and persists the result.
func (s *Store) Update(fn func(*types.Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings)
	return s.save()
}

// save writes settings.ini. Caller must hold mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cf, _ := goconfig.LoadFromReader(strings.NewReader(""))
	st := s.settings

	username, err := Obscure(st.Username)
	if err != nil {
		return err
	}
	password, err := Obscure(st.Password)
	if err != nil {
		return err
	}

	cf.SetValue(sectionRomM, "host", st.Host)
	cf.SetValue(sectionRomM, "username", username)
	cf.SetValue(sectionRomM, "password", password)

	cf.SetValue(sectionDownload, "library_path", st.LibraryPath)
	cf.SetValue(sectionDownload, "auto_download", fmt.Sprintf("%t", st.AutoDownload))
	cf.SetValue(sectionDownload, "auto_delete", fmt.Sprintf("%t", st.AutoDelete))

	cf.SetValue(sectionBIOS, "bios_dir", st.BiosDir)

	cf.SetValue(sectionAutoSync, "enabled", fmt.Sprintf("%t", st.Enabled))
	cf.SetValue(sectionAutoSync, "overwrite_behavior", string(st.OverwriteBehavior))
	cf.SetValue(sectionAutoSync, "sync_interval", fmt.Sprintf("%d", int64(st.SyncInterval/time.Second)))

	cf.SetValue(sectionSystem, "retroarch_path", st.RetroArchPath)
	cf.SetValue(sectionSystem, "retroarch_executable", st.RetroArchExecutable)

	cf.SetValue(sectionCollections, "selected", strings.Join(st.SelectedCollections, ","))

	cf.SetValue(sectionDevice, "device_id", st.DeviceID)

	return goconfig.SaveConfigFile(cf, s.Path)
}

func defaultSettings() types.Settings {
	libraryPath := filepath.Join(".", "Library")
	if home, err := os.UserHomeDir(); err == nil {
		libraryPath = filepath.Join(home, "RomM", "Library")
	}
	return types.Settings{
		LibraryPath:       libraryPath,
		AutoDownload:      true,
		AutoDelete:        false,
		Enabled:           true,
		OverwriteBehavior: types.PolicySmart,
		SyncInterval:      constants.DefaultSyncInterval,
	}
}
