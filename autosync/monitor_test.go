package autosync

import (
	"testing"
	"time"
)

func TestRecentlySynced(t *testing.T) {
	m := NewMonitor(testInstall(t), nil, nil, nil, testLogger())

	if m.recentlySynced("/roms/snes/SMW.sfc") {
		t.Errorf("Unknown content reported as recently synced")
	}

	m.RecordSynced("/roms/snes/SMW.sfc")
	if !m.recentlySynced("/roms/snes/SMW.sfc") {
		t.Errorf("Fresh sync not reported")
	}
	if m.recentlySynced("/roms/snes/Zelda.sfc") {
		t.Errorf("Different content reported as synced")
	}

	// An old entry falls out of the window.
	m.mu.Lock()
	m.lastSync["/roms/snes/SMW.sfc"] = time.Now().Add(-time.Minute)
	m.mu.Unlock()
	if m.recentlySynced("/roms/snes/SMW.sfc") {
		t.Errorf("Stale sync still reported")
	}
}
