package cmd

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"romm-autosync/autosync"
	"romm-autosync/collections"
	"romm-autosync/constants"
	"romm-autosync/library"
	"romm-autosync/retroarch"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon until interrupted",
	Long: `Starts the auto-sync engine (filesystem watcher, upload worker, launch
monitor) and, when collections are selected, the collection sync loop.
Stops cleanly on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.cache.Flush()

		if err := a.refreshCatalog(ctx, false); err != nil {
			return err
		}

		install, err := a.discoverInstall()
		if err != nil {
			return err
		}
		for _, warning := range retroarch.ProbeConfig(install.ConfigDir) {
			a.log.Warn(warning)
		}

		hook := &cliHook{log: a.log, settings: a.settings}
		engine := autosync.New(autosync.Options{
			Client:   a.client,
			Cache:    a.cache,
			Install:  install,
			Hook:     hook,
			Logger:   a.log,
			LockPath: filepath.Join(a.store.ConfigRoot(), constants.LockFile),
		})
		if !a.settings.Enabled {
			return fmt.Errorf("auto-sync is disabled in settings")
		}
		if err := engine.Start(ctx); err != nil {
			return err
		}
		defer engine.Stop()

		var loop *collections.Loop
		if len(a.settings.SelectedCollections) > 0 {
			lib := library.New(a.client, a.cache, a.settings.LibraryPath, a.log)
			loop = collections.NewLoop(a.client, a.cache, lib, collections.Options{
				AutoDownload: a.settings.AutoDownload,
				AutoDelete:   a.settings.AutoDelete,
				Interval:     a.settings.SyncInterval,
			}, a.log)
			loop.SetSelected(ctx, a.settings.SelectedCollections)
			loop.Start(ctx)
			defer loop.Stop()
		}

		a.log.Info("daemon running, press Ctrl-C to stop")
		<-ctx.Done()
		a.log.Info("shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
