package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"romm-autosync/autosync"
	"romm-autosync/library"
	"romm-autosync/retroarch"
)

var (
	syncRomID   uint
	syncBios    bool
	syncRefresh bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a one-shot reconciliation",
	Long: `Pulls the newest saves and states down for one ROM (--rom) or for every
ROM that has a local save file. With --bios, firmware files are synced
into the emulator's system directory instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.cache.Flush()

		install, err := a.discoverInstall()
		if err != nil {
			return err
		}

		if syncBios {
			systemDir := a.settings.BiosDir
			if systemDir == "" {
				systemDir = install.SystemDir
			}
			n, err := library.SyncFirmware(ctx, a.client, systemDir, a.log)
			if err != nil {
				return err
			}
			fmt.Printf("Firmware synced, %d file(s) downloaded.\n", n)
			return nil
		}

		if err := a.refreshCatalog(ctx, syncRefresh); err != nil {
			return err
		}

		hook := &cliHook{log: a.log, settings: a.settings}
		uploader := autosync.NewUploader(a.client, a.cache, retroarch.NewNotifier(), hook, a.log)
		reconciler := autosync.NewReconciler(a.client, a.cache, install, uploader, hook, a.log)

		if syncRomID != 0 {
			return reconciler.SyncRom(ctx, syncRomID)
		}

		ids := localRomIDs(a, install)
		if len(ids) == 0 {
			fmt.Println("No local saves or states matched the catalog.")
			return nil
		}
		for _, id := range ids {
			if err := reconciler.SyncRom(ctx, id); err != nil {
				a.log.Warn("reconciliation failed", "rom_id", id, "error", err)
			}
		}
		fmt.Printf("Reconciled %d ROM(s).\n", len(ids))
		return nil
	},
}

// localRomIDs walks the save and state trees and maps every syncable file to
// a catalog entry.
func localRomIDs(a *app, install *retroarch.Installation) []uint {
	seen := make(map[uint]bool)
	var ids []uint
	for _, root := range []string{install.SavesDir, install.StatesDir} {
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !retroarch.IsSyncable(d.Name()) {
				return nil
			}
			game, ok := a.cache.MatchSaveFile(path)
			if !ok || seen[game.ID] {
				return nil
			}
			seen[game.ID] = true
			ids = append(ids, game.ID)
			return nil
		})
	}
	return ids
}

func init() {
	syncCmd.Flags().UintVar(&syncRomID, "rom", 0, "reconcile a single ROM by server ID")
	syncCmd.Flags().BoolVar(&syncBios, "bios", false, "sync firmware files instead of saves")
	syncCmd.Flags().BoolVar(&syncRefresh, "refresh", false, "force a full catalog refresh first")
	rootCmd.AddCommand(syncCmd)
}
