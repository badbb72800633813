package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"romm-autosync/cache"
	"romm-autosync/config"
	"romm-autosync/constants"
	"romm-autosync/retroarch"
	"romm-autosync/romm"
	"romm-autosync/types"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "romm-autosync",
	Short: "Keep a RetroArch library, saves, and states in sync with a RomM server",
	Long: `romm-autosync mirrors your RomM catalog locally, watches RetroArch's
save and state directories, uploads changes as you play, and pulls the
latest revisions down before each launch. Tracked collections are kept
downloaded automatically.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion stamps the CLI and the API client identity.
func SetVersion(v string) {
	rootCmd.Version = v
	romm.ClientVersion = v
}

func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// app bundles the collaborators every command needs.
type app struct {
	log      *slog.Logger
	store    *config.Store
	settings types.Settings
	client   *romm.Client
	cache    *cache.Store
}

// loadApp reads settings, authenticates, and loads the catalog cache.
func loadApp(ctx context.Context) (*app, error) {
	log := newLogger()

	store := config.NewStore()
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	settings := store.Get()
	if settings.Host == "" {
		return nil, fmt.Errorf("no server configured; run `romm-autosync login` first")
	}

	client := romm.NewClient(settings.Host, log)
	if err := client.Authenticate(ctx, settings.Username, settings.Password); err != nil {
		return nil, fmt.Errorf("authentication against %s failed: %w", settings.Host, err)
	}

	cacheStore := cache.NewStore(filepath.Join(store.ConfigRoot(), constants.CacheDir), log)
	if err := cacheStore.Load(); err != nil {
		log.Warn("failed to load catalog cache", "error", err)
	}

	return &app{
		log:      log,
		store:    store,
		settings: settings,
		client:   client,
		cache:    cacheStore,
	}, nil
}

// refreshCatalog performs a full catalog fetch when the cache is stale.
func (a *app) refreshCatalog(ctx context.Context, force bool) error {
	if platforms, err := a.client.GetPlatforms(ctx); err == nil {
		a.cache.MergePlatforms(platforms)
	}
	if a.cache.IsFresh() && !force {
		return nil
	}

	a.log.Info("refreshing catalog")
	progress := &romm.FetchProgress{
		PageDone: func(done, total, items int) {
			a.log.Debug("catalog fetch progress", "pages", fmt.Sprintf("%d/%d", done, total), "items", items)
		},
	}
	games, err := a.client.FetchAllRoms(ctx, progress)
	if err != nil {
		return fmt.Errorf("catalog fetch failed: %w", err)
	}
	a.cache.SetGames(games)
	a.log.Info("catalog refreshed", "games", len(games))
	return nil
}

// discoverInstall locates RetroArch, honoring the configured paths.
func (a *app) discoverInstall() (*retroarch.Installation, error) {
	if a.settings.RetroArchPath != "" {
		root := a.settings.RetroArchPath
		inst := &retroarch.Installation{
			Kind:       retroarch.KindCustom,
			Executable: a.settings.RetroArchExecutable,
			ConfigDir:  root,
			SavesDir:   filepath.Join(root, constants.DirSaves),
			StatesDir:  filepath.Join(root, constants.DirStates),
			CoresDir:   filepath.Join(root, "cores"),
			SystemDir:  filepath.Join(root, constants.DirSystem),
		}
		inst.Naming = retroarch.DetectNamingScheme(inst.SavesDir, inst.StatesDir)
		return inst, nil
	}
	return retroarch.Discover(a.settings.RetroArchExecutable)
}
