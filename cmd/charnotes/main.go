package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vonshlovens/charnotes/internal/config"
	"github.com/vonshlovens/charnotes/internal/note"
	"github.com/vonshlovens/charnotes/internal/outbox"
	"github.com/vonshlovens/charnotes/internal/reachability"
	"github.com/vonshlovens/charnotes/internal/remote"
	"github.com/vonshlovens/charnotes/internal/store"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "charnotes",
		Short:   "Offline-first notes for a character catalog",
		Long:    `A CLI client that browses a paginated character catalog and keeps free-text notes locally, replicating note changes to a remote notes service through a durable outbox once connectivity allows.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		daemonCmd(),
		syncCmd(),
		notesCmd(),
		charactersCmd(),
		statusCmd(),
		diagnosticsCmd(),
		initCmd(),
		migrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore loads config and opens the migrated local store
func openStore(ctx context.Context) (*config.Config, *store.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.EnsureDataDir(cfg.Database.Path); err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	return cfg, st, nil
}

func newEngine(cfg *config.Config, st *store.Store) *outbox.Engine {
	client := remote.NewClient(cfg.Remote.BaseURL, time.Duration(cfg.Remote.TimeoutMs)*time.Millisecond)
	return outbox.NewEngine(st, client, outbox.Config{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BackoffStep: cfg.Sync.BackoffStep(),
		BackoffMax:  cfg.Sync.BackoffMax(),
	})
}

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Start the background sync process",
		Long:  `Starts a daemon that watches the local outbox and network reachability, draining queued note mutations against the remote notes service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cfg, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			engine := newEngine(cfg, st)
			engine.Start(ctx)

			prober := reachability.New(cfg.Remote.BaseURL,
				cfg.Sync.ProbeInterval(),
				time.Duration(cfg.Remote.TimeoutMs)*time.Millisecond)
			engine.Observe(prober.Events())
			prober.Start(ctx)

			// Live config reload: most settings need a restart, but a
			// changed file is a good moment to recheck the queue.
			watcher := config.Viper(cfgFile)
			if err := watcher.ReadInConfig(); err == nil {
				watcher.OnConfigChange(func(e fsnotify.Event) {
					slog.Info("config file changed", "file", e.Name)
					if _, err := config.Unmarshal(watcher); err != nil {
						slog.Warn("reloaded config is invalid, keeping current settings", "error", err)
						return
					}
					engine.Trigger()
				})
				watcher.WatchConfig()
			}

			// Handle graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			slog.Info("daemon started", "db", cfg.Database.Path, "remote", cfg.Remote.BaseURL)
			fmt.Println("Watching outbox for changes. Press Ctrl+C to stop.")

			<-sigCh
			slog.Info("shutting down...")
			prober.Stop()
			engine.Stop()
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "One-time outbox drain, then exit",
		Long:  `Performs a single drain pass over the outbox queue against the remote notes service and exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			pending, err := note.NewOutboxRepository(st).Count(ctx)
			if err != nil {
				return err
			}
			if pending == 0 {
				fmt.Println("Outbox is empty, nothing to sync.")
				return nil
			}

			bar := progressbar.NewOptions(pending,
				progressbar.OptionSetDescription("Draining outbox"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionClearOnFinish(),
			)

			engine := newEngine(cfg, st)
			processed, err := engine.RunOnce(ctx, func(done, total int) {
				bar.Set(done)
			})
			bar.Finish()
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			remaining, err := note.NewOutboxRepository(st).Count(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Processed %d entries, %d still pending.\n", processed, remaining)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store and sync status",
		Long:  `Shows the local store location, note counts by sync state, outbox depth, and remote reachability.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			counts, err := note.NewRepository(st).CountByStatus(ctx)
			if err != nil {
				return err
			}
			queued, err := note.NewOutboxRepository(st).Count(ctx)
			if err != nil {
				return err
			}

			fmt.Println("=== Charnotes Status ===")
			fmt.Printf("Store: %s\n", cfg.Database.Path)
			fmt.Printf("Remote: %s\n", cfg.Remote.BaseURL)
			fmt.Println()
			fmt.Printf("Notes:\n")
			fmt.Printf("  %s: %d\n", color.GreenString("synced"), counts[note.StatusSynced])
			fmt.Printf("  %s: %d\n", color.YellowString("pending"), counts[note.StatusPending])
			fmt.Printf("Outbox entries: %d\n", queued)
			fmt.Println()

			probeCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Remote.TimeoutMs)*time.Millisecond)
			defer cancel()
			if probeRemote(probeCtx, cfg.Remote.BaseURL) {
				fmt.Printf("Connectivity: %s\n", color.GreenString("online"))
			} else {
				fmt.Printf("Connectivity: %s\n", color.RedString("offline"))
			}

			return nil
		},
	}
}

func diagnosticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnostics",
		Short: "Dump the outbox queue",
		Long:  `Lists every outbox entry in processing order with its operation, attempt count, and last error. Useful for spotting stuck entries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := note.NewOutboxRepository(st).ListOrdered(ctx)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("Outbox is empty.")
				return nil
			}

			fmt.Printf("%-10s %-8s %-10s %-8s %-22s %s\n",
				"ENTRY", "OP", "NOTE", "ATTEMPT", "LAST ERROR", "CREATED")
			for _, e := range entries {
				lastError := "-"
				if e.LastError != nil {
					lastError = color.RedString(*e.LastError)
				}
				fmt.Printf("%-10s %-8s %-10s %-8d %-22s %s\n",
					shortID(e.ID), e.Op, shortID(e.NoteLocalID), e.Attempt,
					lastError, e.CreatedAt.Local().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long:  `Writes a config file with default settings to the standard config directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := config.GetConfigDir()
			if err != nil {
				return err
			}
			configPath := filepath.Join(configDir, "config.yaml")

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			defaults := config.DefaultConfig()
			content := fmt.Sprintf(`database:
  path: "%s"

remote:
  base_url: "%s"
  timeout_ms: %d

catalog:
  base_url: "%s"
  timeout_ms: %d

sync:
  max_attempts: %d
  backoff_step_ms: %d
  backoff_max_ms: %d
  probe_interval_ms: %d
`,
				defaults.Database.Path,
				defaults.Remote.BaseURL, defaults.Remote.TimeoutMs,
				defaults.Catalog.BaseURL, defaults.Catalog.TimeoutMs,
				defaults.Sync.MaxAttempts, defaults.Sync.BackoffStepMs,
				defaults.Sync.BackoffMaxMs, defaults.Sync.ProbeIntervalMs)

			if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			fmt.Printf("Config file written to: %s\n", configPath)
			fmt.Println("To start syncing in the background, run: charnotes daemon")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply local store migrations",
		Long:  `Applies all pending embedded migrations to the local store and prints the migration status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			return st.MigrationStatus(ctx)
		},
	}
}

func probeRemote(ctx context.Context, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
