package main

import (
	"context"
	"fmt"
	"os"

	"github.com/himanishpuri/barricade/internal/config"
	"github.com/himanishpuri/barricade/pkg/barricade"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/spf13/cobra"
)

// app carries the flags and the service shared by all subcommands.
type app struct {
	configPath string
	dbDriver   string
	dbPath     string
	clipDir    string
	tempDir    string
	mock       bool
	verbose    bool

	// newService is replaced in tests
	newService func(ctx context.Context, a *app) (*barricade.Service, error)
	svc        *barricade.Service
}

func main() {
	a := &app{newService: openService}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "barricade",
		Short:         "Log concerts, keep setlists and identify songs from your clips",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newService(cmd.Context(), a)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			a.svc = svc
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "TOML config file (env: BARRICADE_CONFIG)")
	f.StringVar(&a.dbDriver, "driver", "", "database driver, sqlite or mysql (env: DB_DRIVER)")
	f.StringVar(&a.dbPath, "db", "", "sqlite file or mysql DSN (env: BARRICADE_DB_PATH)")
	f.StringVar(&a.clipDir, "clips", "", "clip directory (env: CLIP_DIR)")
	f.StringVar(&a.tempDir, "temp", "", "directory for temporary audio files (env: BARRICADE_TEMP_DIR)")
	f.BoolVar(&a.mock, "mock", false, "answer every detection with the canned mock match")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newConcertCmd(a),
		newSongCmd(a),
		newDetectCmd(a),
		newCatalogCmd(a),
	)
	return root
}

// close releases the service; it is also called after a failed command,
// which skips the post-run hook.
func (a *app) close() error {
	if a.svc == nil {
		return nil
	}
	err := a.svc.Close()
	a.svc = nil
	return err
}

// openService builds the service from config files, the environment and flags.
func openService(ctx context.Context, a *app) (*barricade.Service, error) {
	if a.configPath != "" {
		os.Setenv("BARRICADE_CONFIG", a.configPath)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if a.dbDriver != "" {
		cfg.Database.Driver = a.dbDriver
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.clipDir != "" {
		cfg.Clips.Dir = a.clipDir
	}
	if a.tempDir != "" {
		cfg.Clips.TempDir = a.tempDir
	}
	if a.mock {
		cfg.Matcher.Mock = true
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}

	log := cfg.Logger()
	logger.SetDefault(log)

	opts, err := cfg.Options(ctx, log)
	if err != nil {
		return nil, err
	}
	return barricade.NewService(opts...)
}
