package autosync

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"romm-autosync/constants"
	"romm-autosync/retroarch"
)

// Monitor watches the emulator at 1 Hz through three independent signals: the
// process table, the UDP command port, and the playlist files. Launches
// trigger a pre-launch reconciliation; exits clear the upload debounce so the
// emulator's shutdown flush is not duplicated.
type Monitor struct {
	log        *slog.Logger
	install    *retroarch.Installation
	notifier   *retroarch.Notifier
	uploader   *Uploader
	reconciler *Reconciler

	mu       sync.Mutex
	lastSync map[string]time.Time

	procRunning      bool
	netActive        bool
	noContentRetries int
	playlistMtimes   map[string]time.Time
}

// NewMonitor wires the launch monitor.
func NewMonitor(install *retroarch.Installation, notifier *retroarch.Notifier, uploader *Uploader, reconciler *Reconciler, log *slog.Logger) *Monitor {
	return &Monitor{
		log:        log.With("component", "monitor"),
		install:    install,
		notifier:   notifier,
		uploader:   uploader,
		reconciler: reconciler,
		lastSync:   make(map[string]time.Time),
	}
}

// RecordSynced marks a content path as freshly reconciled, so the monitor's
// own signals do not trigger a second run right after.
func (m *Monitor) RecordSynced(contentPath string) {
	m.mu.Lock()
	m.lastSync[contentPath] = time.Now()
	m.mu.Unlock()
}

func (m *Monitor) recentlySynced(contentPath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.lastSync[contentPath]
	return ok && time.Since(t) < constants.RecentSyncWindow
}

// run polls until ctx is cancelled. The playlist baseline is taken on the
// first tick so pre-existing playlists do not read as launches.
func (m *Monitor) run(ctx context.Context) {
	m.playlistMtimes = retroarch.PlaylistMtimes(m.install.ConfigDir)
	m.procRunning = m.emulatorRunning()

	ticker := time.NewTicker(constants.MonitorTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	running := m.emulatorRunning()
	switch {
	case running && !m.procRunning:
		m.log.Info("emulator started")
		m.onLaunch(ctx)
	case !running && m.procRunning:
		m.log.Info("emulator exited")
		m.uploader.ClearPending()
	}
	m.procRunning = running

	m.checkNetwork(ctx)
	m.checkPlaylists(ctx)
}

// emulatorRunning matches the emulator binary in the process table, skipping
// our own process.
func (m *Monitor) emulatorRunning() bool {
	procs, err := process.Processes()
	if err != nil {
		return m.procRunning
	}
	self := int32(os.Getpid())
	want := "retroarch"
	if m.install.Executable != "" {
		want = strings.TrimSuffix(strings.ToLower(filepath.Base(m.install.Executable)), ".exe")
	}
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		name, err := p.Name()
		if err != nil {
			continue
		}
		name = strings.TrimSuffix(strings.ToLower(name), ".exe")
		if name == want || name == "retroarch" {
			return true
		}
	}
	return false
}

// onLaunch performs the pre-launch sync for whatever content the emulator is
// loading, read from the content history.
func (m *Monitor) onLaunch(ctx context.Context) {
	content, err := retroarch.CurrentContent(m.install.ConfigDir)
	if err != nil {
		m.log.Debug("no content history available at launch", "error", err)
		return
	}
	m.syncContent(ctx, content)
}

// checkNetwork tracks the UDP command port. The inactive-to-active edge means
// content was just loaded; three consecutive failures to identify the content
// stop the retries until the port goes quiet again.
func (m *Monitor) checkNetwork(ctx context.Context) {
	reply, err := m.notifier.GetStatus()
	active := err == nil && retroarch.ContentLoaded(reply)
	if !active {
		m.netActive = false
		m.noContentRetries = 0
		return
	}
	if m.netActive {
		return
	}

	content, err := retroarch.CurrentContent(m.install.ConfigDir)
	if err != nil {
		m.noContentRetries++
		if m.noContentRetries >= constants.NoContentRetryCap {
			m.log.Warn("network active but content undetectable, giving up until idle")
			m.netActive = true
		}
		return
	}
	m.netActive = true
	m.noContentRetries = 0
	if m.recentlySynced(content) {
		m.log.Debug("content already synced", "content", content)
		return
	}
	m.syncContent(ctx, content)
}

// checkPlaylists catches library-initiated launches that bypass the network
// check: a touched per-system playlist means its most recent entry was just
// played.
func (m *Monitor) checkPlaylists(ctx context.Context) {
	current := retroarch.PlaylistMtimes(m.install.ConfigDir)
	for path, mtime := range current {
		if prev, ok := m.playlistMtimes[path]; !ok || mtime.After(prev) {
			if ok {
				m.onPlaylistTouched(ctx, path)
			}
		}
	}
	m.playlistMtimes = current
}

func (m *Monitor) onPlaylistTouched(ctx context.Context, playlistPath string) {
	entry, err := retroarch.MostRecentEntry(playlistPath)
	if err != nil {
		return
	}
	content := retroarch.StripArchiveSuffix(entry.Path)
	if m.recentlySynced(content) {
		return
	}
	m.log.Info("playlist launch detected", "playlist", filepath.Base(playlistPath))
	m.syncContent(ctx, content)
}

func (m *Monitor) syncContent(ctx context.Context, content string) {
	if err := m.reconciler.SyncContent(ctx, content); err != nil {
		m.log.Warn("pre-launch sync failed", "content", content, "error", err)
		return
	}
	m.RecordSynced(content)
}
