package autosync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"romm-autosync/cache"
	"romm-autosync/constants"
	"romm-autosync/retroarch"
	"romm-autosync/romm"
	"romm-autosync/types"
)

// Options carries the engine's collaborators.
type Options struct {
	Client   *romm.Client
	Cache    *cache.Store
	Install  *retroarch.Installation
	Hook     types.HostHook
	Logger   *slog.Logger
	LockPath string
	// Label identifies this instance in the lock file's diagnostics.
	Label string
}

// Engine is the auto-sync core: the instance lock, the filesystem watcher,
// the upload worker, the launch monitor, and the download reconciler, started
// and stopped as one unit.
type Engine struct {
	log  *slog.Logger
	opts Options

	lock       *InstanceLock
	watcher    *Watcher
	uploader   *Uploader
	monitor    *Monitor
	reconciler *Reconciler

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// New builds an engine; nothing runs until Start.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Label == "" {
		opts.Label = "autosync"
	}
	return &Engine{log: opts.Logger.With("component", "engine"), opts: opts}
}

// Start acquires the instance lock and launches the workers. On lock failure
// nothing else is touched.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("engine already running")
	}

	instLock, err := AcquireLock(e.opts.LockPath, e.opts.Label)
	if err != nil {
		e.running.Store(false)
		return err
	}
	e.lock = instLock

	notifier := retroarch.NewNotifier()
	e.uploader = NewUploader(e.opts.Client, e.opts.Cache, notifier, e.opts.Hook, e.opts.Logger)
	e.reconciler = NewReconciler(e.opts.Client, e.opts.Cache, e.opts.Install, e.uploader, e.opts.Hook, e.opts.Logger)
	e.monitor = NewMonitor(e.opts.Install, notifier, e.uploader, e.reconciler, e.opts.Logger)

	roots := []string{e.opts.Install.SavesDir, e.opts.Install.StatesDir}
	watcher, err := NewWatcher(roots, e.uploader.MarkDirty, e.opts.Logger)
	if err != nil {
		e.lock.Release()
		e.running.Store(false)
		return fmt.Errorf("failed to start filesystem watcher: %w", err)
	}
	e.watcher = watcher

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.uploader.run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		e.monitor.run(runCtx)
	}()

	e.log.Info("auto-sync engine started",
		"saves", e.opts.Install.SavesDir, "states", e.opts.Install.StatesDir)
	return nil
}

// Stop cancels the workers, waits a bounded time for them to drain, and
// releases the lock.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	e.cancel()
	e.watcher.Stop()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(constants.StopJoinTimeout):
		e.log.Warn("workers did not stop in time")
	}

	e.lock.Release()
	e.log.Info("auto-sync engine stopped")
}

// Running reports whether the engine is started.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// SyncRom reconciles one catalog entry on demand (used by launchers and the
// collection loop).
func (e *Engine) SyncRom(ctx context.Context, romID uint) error {
	if !e.running.Load() {
		return fmt.Errorf("engine not running")
	}
	return e.reconciler.SyncRom(ctx, romID)
}

// SyncContent reconciles whatever ROM a content path belongs to and records
// it as freshly synced for the launch monitor.
func (e *Engine) SyncContent(ctx context.Context, contentPath string) error {
	if !e.running.Load() {
		return fmt.Errorf("engine not running")
	}
	if err := e.reconciler.SyncContent(ctx, contentPath); err != nil {
		return err
	}
	e.monitor.RecordSynced(contentPath)
	return nil
}
