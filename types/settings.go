package types

import "time"

// OverwritePolicy decides who wins when a local save and the server's latest
// revision disagree. Values are the literal strings persisted in settings.ini.
type OverwritePolicy string

const (
	PolicySmart  OverwritePolicy = "Smart (prefer newer)"
	PolicyLocal  OverwritePolicy = "Always prefer local"
	PolicyServer OverwritePolicy = "Always download from server"
	PolicyAsk    OverwritePolicy = "Ask each time"
)

// ParseOverwritePolicy maps a settings string to a policy, defaulting to Smart.
func ParseOverwritePolicy(s string) OverwritePolicy {
	switch OverwritePolicy(s) {
	case PolicyLocal, PolicyServer, PolicyAsk, PolicySmart:
		return OverwritePolicy(s)
	default:
		return PolicySmart
	}
}

// Settings holds all persisted application settings, one field group per
// settings.ini section.
type Settings struct {
	// [RomM]
	Host     string
	Username string
	Password string

	// [Download]
	LibraryPath  string
	AutoDownload bool
	AutoDelete   bool

	// [BIOS]
	BiosDir string

	// [AutoSync]
	Enabled           bool
	OverwriteBehavior OverwritePolicy
	SyncInterval      time.Duration

	// [System]
	RetroArchPath       string
	RetroArchExecutable string

	// [Collections]
	SelectedCollections []string

	// [Device]
	DeviceID string
}
