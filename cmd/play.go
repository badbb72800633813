package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"romm-autosync/autosync"
	"romm-autosync/launcher"
	"romm-autosync/library"
	"romm-autosync/retroarch"
	"romm-autosync/types"
)

var playCmd = &cobra.Command{
	Use:   "play <rom-id | name>",
	Short: "Launch a game with a pre-launch save sync",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.cache.Flush()

		if err := a.refreshCatalog(ctx, false); err != nil {
			return err
		}

		game, err := findGame(a, strings.Join(args, " "))
		if err != nil {
			return err
		}

		install, err := a.discoverInstall()
		if err != nil {
			return err
		}

		hook := &cliHook{log: a.log, settings: a.settings}
		uploader := autosync.NewUploader(a.client, a.cache, retroarch.NewNotifier(), hook, a.log)
		reconciler := autosync.NewReconciler(a.client, a.cache, install, uploader, hook, a.log)
		lib := library.New(a.client, a.cache, a.settings.LibraryPath, a.log)

		l := launcher.New(lib, install, reconciler.SyncRom, a.log)
		return l.Play(ctx, &game)
	},
}

// findGame resolves an argument to a catalog entry, by server ID first, then
// by case-insensitive name or filename match.
func findGame(a *app, arg string) (types.Game, error) {
	if id, err := strconv.ParseUint(arg, 10, 32); err == nil {
		for _, g := range a.cache.Games() {
			if g.ID == uint(id) {
				return g, nil
			}
		}
	}
	if g, ok := a.cache.Lookup(arg); ok {
		return g, nil
	}
	for _, g := range a.cache.Games() {
		if strings.EqualFold(g.Name, arg) {
			return g, nil
		}
	}
	return types.Game{}, fmt.Errorf("no game matches %q", arg)
}

func init() {
	rootCmd.AddCommand(playCmd)
}
