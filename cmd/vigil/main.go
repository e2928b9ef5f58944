package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/vigil"
	"github.com/jward/vigil/internal/config"
)

var (
	flagConfig  string
	flagDB      string
	flagFormat  string
	flagVerbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "vigil",
	Short:         "Code-aware documentation integrity",
	Long:          "Vigil maintains a live call graph of a codebase, versions function annotations in SQLite, and flags drift when code changes out from under its documentation.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configureLogging()
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (YAML); defaults apply when unset")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(driftCmd)
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(touchedCmd)
}

func configureLogging() {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig builds the effective configuration from the config file,
// flags, and the optional root argument.
func loadConfig(args []string) (*config.Config, error) {
	var cfg *config.Config
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	if len(args) > 0 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return nil, fmt.Errorf("resolving path %q: %w", args[0], err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("directory not found: %s", abs)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("not a directory: %s", abs)
		}
		cfg.Root = abs
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	return cfg, nil
}

func newEngine(args []string) (*vigil.Engine, error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return nil, err
	}
	return vigil.New(cfg)
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a project once and report graph totals",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(args)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.IndexDirectory(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Indexed %d files (%d nodes, %d edges) in %s\n",
			res.Files, res.Nodes, res.Edges, res.Duration.Round(time.Millisecond))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a project and re-analyze on file changes until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(args)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := e.IndexDirectory(ctx); err != nil {
			return err
		}

		go func() {
			for ev := range e.Events() {
				if ev.Type == "change:recorded" && ev.Change != nil {
					fmt.Fprintf(os.Stderr, "%s %s (%d affected, %d drift)\n",
						ev.Change.Op, ev.Change.Path, len(ev.Change.Affected), ev.Change.DriftCount)
				}
			}
		}()

		err = e.Watch(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	},
}
