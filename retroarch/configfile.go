package retroarch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"romm-autosync/constants"
)

// retroarch.cfg is INI-like but not strict INI (unquoted '=' values, no
// sections), so it is scanned with a regexp per key.
var cfgLineRe = regexp.MustCompile(`(?m)^([a-z0-9_]+)\s*=\s*"?([^"\r\n]*)"?`)

// ConfigValues returns the keyed values from retroarch.cfg.
func ConfigValues(configPath string) (map[string]string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read retroarch.cfg: %w", err)
	}
	values := make(map[string]string)
	for _, m := range cfgLineRe.FindAllStringSubmatch(string(data), -1) {
		values[m[1]] = m[2]
	}
	return values, nil
}

// ProbeConfig checks the emulator config for the settings the sync engine
// relies on. Mismatches are warnings for the status snapshot, not errors.
func ProbeConfig(configDir string) []string {
	configPath := filepath.Join(configDir, "retroarch.cfg")
	values, err := ConfigValues(configPath)
	if err != nil {
		return []string{fmt.Sprintf("could not read %s: %v", configPath, err)}
	}

	var warnings []string
	if values["network_cmd_enable"] != "true" {
		warnings = append(warnings,
			"network commands are disabled in retroarch.cfg; launch detection and OSD notifications will not work")
	}
	if portStr, ok := values["network_cmd_port"]; ok {
		if port, err := strconv.Atoi(portStr); err == nil && port != constants.UDPPort {
			warnings = append(warnings,
				fmt.Sprintf("network command port is %d, expected %d", port, constants.UDPPort))
		}
	}
	if values["savestate_thumbnail_enable"] != "true" {
		warnings = append(warnings,
			"save-state thumbnails are disabled; states will sync without screenshots")
	}
	return warnings
}
