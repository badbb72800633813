package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"romm-autosync/retroarch"
	"romm-autosync/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection, catalog, and collection state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}

		var warnings []string
		if install, err := a.discoverInstall(); err == nil {
			warnings = retroarch.ProbeConfig(install.ConfigDir)
		} else {
			warnings = append(warnings, fmt.Sprintf("RetroArch not found: %v", err))
		}

		snap := status.Assemble(ctx, status.Inputs{
			Connected:        true,
			AutoSyncActive:   a.settings.Enabled,
			Cache:            a.cache,
			FetchCollections: a.client.GetCollections,
			ConfigWarnings:   warnings,
		})

		fmt.Printf("Server:      %s (connected)\n", a.settings.Host)
		fmt.Printf("Auto-sync:   %v\n", snap.AutoSyncActive)
		fmt.Printf("Games:       %d cached\n", snap.GameCount)
		if len(snap.Collections) > 0 {
			fmt.Println("Collections:")
			for _, c := range snap.Collections {
				line := fmt.Sprintf("  %-30s %s %d/%d", c.Name, c.SyncState, c.Downloaded, c.Total)
				if c.Speed != "" {
					line += fmt.Sprintf(" (%.1f%%, %s)", c.DownloadedPct, c.Speed)
				}
				fmt.Println(line)
			}
		}
		for _, w := range snap.ConfigWarnings {
			fmt.Printf("Warning:     %s\n", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
