package types

import "time"

// HostHook is the small surface the sync engine needs from whoever hosts it
// (GUI, headless daemon, plugin). It breaks the engine/front-end/settings cycle.
type HostHook interface {
	// Log surfaces a user-relevant message.
	Log(msg string)
	// AskConflict resolves an upload/download conflict interactively.
	// Returning true means "download from server". Only consulted under the
	// Ask policy; headless hosts should never report that policy.
	AskConflict(localTS, serverTS time.Time) bool
	// DeviceID returns the registered device identity, or "" when unregistered.
	DeviceID() string
	// OverwritePolicy returns the configured conflict policy.
	OverwritePolicy() OverwritePolicy
}
