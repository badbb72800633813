package retroarch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"romm-autosync/constants"
)

// InstallKind classifies how RetroArch was installed; it decides which config
// tree holds the save/state directories.
type InstallKind string

const (
	KindNative   InstallKind = "native"
	KindCustom   InstallKind = "custom"
	KindFlatpak  InstallKind = "flatpak"
	KindSnap     InstallKind = "snap"
	KindPortable InstallKind = "portable"
)

// Installation describes a discovered RetroArch installation.
type Installation struct {
	Kind       InstallKind
	Executable string
	ConfigDir  string
	SavesDir   string
	StatesDir  string
	CoresDir   string
	SystemDir  string
	Naming     NamingScheme
}

// candidateRoot pairs a config root with the install kind it implies. Probe
// order is fixed: container sandboxes first, then native config dirs, then
// store trees and portable bundles.
type candidateRoot struct {
	kind InstallKind
	dir  string
}

func candidateRoots() []candidateRoot {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var roots []candidateRoot
	roots = append(roots,
		candidateRoot{KindFlatpak, filepath.Join(home, ".var", "app", "org.libretro.RetroArch", "config", "retroarch")},
		candidateRoot{KindSnap, filepath.Join(home, "snap", "retroarch", "current", ".config", "retroarch")},
	)
	switch runtime.GOOS {
	case "darwin":
		roots = append(roots,
			candidateRoot{KindNative, filepath.Join(home, "Library", "Application Support", "RetroArch")},
		)
	case "windows":
		roots = append(roots,
			candidateRoot{KindNative, filepath.Join(home, "AppData", "Roaming", "RetroArch")},
		)
	default:
		roots = append(roots,
			candidateRoot{KindNative, filepath.Join(home, ".config", "retroarch")},
		)
	}
	roots = append(roots,
		candidateRoot{KindPortable, filepath.Join(home, "RetroArch")},
		candidateRoot{KindPortable, filepath.Join(home, "Applications", "RetroArch")},
	)
	return roots
}

// FindExecutable locates the RetroArch binary. Priority: native binary on
// PATH, the configured custom path, flatpak, snap, then portable bundles.
func FindExecutable(customPath string) (string, InstallKind, error) {
	if p, err := exec.LookPath("retroarch"); err == nil {
		return p, KindNative, nil
	}
	if customPath != "" {
		if _, err := os.Stat(customPath); err == nil {
			return customPath, KindCustom, nil
		}
	}
	if p, err := exec.LookPath("flatpak"); err == nil {
		// flatpak runs the app by ID; existence of the sandbox config tree is
		// the real signal it is installed.
		if _, statErr := os.Stat(filepath.Join(candidateRoots()[0].dir)); statErr == nil {
			return p, KindFlatpak, nil
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		snapBin := filepath.Join("/snap", "bin", "retroarch")
		if _, err := os.Stat(snapBin); err == nil {
			return snapBin, KindSnap, nil
		}
		for _, p := range []string{
			filepath.Join(home, "RetroArch", "retroarch"),
			filepath.Join(home, "Applications", "RetroArch.app", "Contents", "MacOS", "RetroArch"),
		} {
			if _, err := os.Stat(p); err == nil {
				return p, KindPortable, nil
			}
		}
	}
	return "", "", fmt.Errorf("no RetroArch executable found")
}

// Discover probes the candidate config roots and returns the first
// installation whose tree contains saves/ or states/.
func Discover(customExecutable string) (*Installation, error) {
	exe, exeKind, exeErr := FindExecutable(customExecutable)

	for _, root := range candidateRoots() {
		savesDir := filepath.Join(root.dir, constants.DirSaves)
		statesDir := filepath.Join(root.dir, constants.DirStates)
		if !dirExists(savesDir) && !dirExists(statesDir) {
			continue
		}

		inst := &Installation{
			Kind:       root.kind,
			Executable: exe,
			ConfigDir:  root.dir,
			SavesDir:   savesDir,
			StatesDir:  statesDir,
			CoresDir:   filepath.Join(root.dir, "cores"),
			SystemDir:  filepath.Join(root.dir, constants.DirSystem),
		}
		if exeErr == nil && exeKind == KindCustom {
			inst.Kind = KindCustom
		}
		inst.Naming = DetectNamingScheme(inst.SavesDir, inst.StatesDir)
		return inst, nil
	}

	if exeErr != nil {
		return nil, fmt.Errorf("no RetroArch installation found: %w", exeErr)
	}
	return nil, fmt.Errorf("RetroArch executable found but no config tree with saves/ or states/")
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
