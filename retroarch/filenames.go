package retroarch

import (
	"path/filepath"
	"strings"

	"romm-autosync/constants"
	"romm-autosync/utils"
)

// IsSaveFile reports whether name looks like a battery save.
func IsSaveFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range constants.SaveExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// IsStateFile reports whether name looks like a save state. ".state.auto" is
// a compound extension, so the whole lowercased name is checked, not just the
// last extension.
func IsStateFile(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, constants.StateAutoSuffix) {
		return true
	}
	for _, ext := range constants.StateExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// IsSyncable reports whether name is any file the watcher should track.
func IsSyncable(name string) bool {
	return IsSaveFile(name) || IsStateFile(name)
}

// ParseSlot derives the asset kind and server slot from a local filename.
// Battery saves carry no slot; ".state.auto" maps to "auto", ".stateN" to
// "slotN", and a bare ".state" to "quicksave".
func ParseSlot(name string) (kind, slot string) {
	lower := strings.ToLower(name)
	switch {
	case IsSaveFile(lower):
		return constants.DirSaves, ""
	case strings.HasSuffix(lower, constants.StateAutoSuffix):
		return constants.DirStates, constants.SlotAuto
	case strings.HasSuffix(lower, ".state"):
		return constants.DirStates, constants.SlotQuicksave
	}
	ext := filepath.Ext(lower)
	if strings.HasPrefix(ext, ".state") && len(ext) == len(".state")+1 {
		return constants.DirStates, "slot" + ext[len(".state"):]
	}
	return "", ""
}

// LocalFileName converts a server record's filename to the local one:
// the timestamp bracket is stripped, save extensions are preserved (defaulting
// to .srm), and states land in the quick-save slot unless the record's slot is
// "auto", which maps to the compound ".state.auto" name.
func LocalFileName(serverName, kind, slot string) string {
	name := utils.StripBracket(serverName)

	if kind == constants.DirSaves {
		ext := strings.ToLower(filepath.Ext(name))
		base := strings.TrimSuffix(name, filepath.Ext(name))
		switch ext {
		case ".srm", ".sav":
			return base + ext
		default:
			return base + ".srm"
		}
	}

	base := utils.Stem(name)
	if slot == constants.SlotAuto {
		return base + constants.StateAutoSuffix
	}
	// Numbered slots are addressable on the server, but the local default is
	// the quick-save slot so load-state picks the synced file up.
	return base + ".state"
}
