package cmd

import (
	"log/slog"
	"time"

	"romm-autosync/types"
)

// cliHook adapts the headless CLI to the engine's host interface. The Ask
// conflict policy needs an interactive front-end, so it degrades to Smart.
type cliHook struct {
	log      *slog.Logger
	settings types.Settings
}

func (h *cliHook) Log(msg string) {
	h.log.Info(msg)
}

func (h *cliHook) AskConflict(localTS, serverTS time.Time) bool {
	// Unreachable while OverwritePolicy never reports Ask.
	return serverTS.After(localTS)
}

func (h *cliHook) DeviceID() string {
	return h.settings.DeviceID
}

func (h *cliHook) OverwritePolicy() types.OverwritePolicy {
	if h.settings.OverwriteBehavior == types.PolicyAsk {
		return types.PolicySmart
	}
	return h.settings.OverwriteBehavior
}
