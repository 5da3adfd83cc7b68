package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"jch-go/internal/api"
	"jch-go/internal/app"
	"jch-go/internal/config"
	"jch-go/internal/history"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Purge", "Restore").
func newApp(ctx context.Context, operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// user returns the --user flag, falling back to $USER.
func user(cmd *cobra.Command) string {
	u, _ := cmd.Flags().GetString("user")
	if u == "" {
		u = os.Getenv("USER")
	}
	return u
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("a terminal is required to read the passphrase")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// readContent reads a config file argument, "-" meaning stdin.
func readContent(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printConfigs(configs []*history.ConfigInfo) {
	if len(configs) == 0 {
		fmt.Println("No history entries.")
		return
	}
	for _, c := range configs {
		content := " "
		if c.HasContent {
			content = "*"
		}
		fmt.Printf("%s  %-9s %s %-30s  %s\n", c.Timestamp, c.Operation, content, c.ObjectName, c.User)
	}
}

var rootCmd = &cobra.Command{
	Use:          "jch",
	Short:        "Configuration history for jobs and system settings",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("History Root: %s\n", cfg.HistoryRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("History Root:  %s\n", cfg.HistoryRoot)
		fmt.Printf("Objects Dir:   %s\n", cfg.ObjectsDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Max Age:       %q\n", cfg.MaxDaysToKeepEntries)
		fmt.Printf("Exclude:       %s\n", strings.Join(cfg.ExcludePatterns, ", "))
		fmt.Printf("Archive:       enabled=%t type=%s encrypt=%t\n", cfg.Archive.Enabled, cfg.Archive.Type, cfg.Archive.Encrypt)
		fmt.Printf("Listen:        %s\n", cfg.Server.Listen)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List history entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")

		a, err := newApp(cmd.Context(), "List")
		if err != nil {
			return err
		}
		defer a.Close()

		configs, err := a.List(user(cmd), filter)
		if err != nil {
			return err
		}
		printConfigs(configs)
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show the history of a system setting or deleted job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Show")
		if err != nil {
			return err
		}
		defer a.Close()

		configs, err := a.Show(user(cmd), args[0])
		if err != nil {
			return err
		}
		printConfigs(configs)
		return nil
	},
}

// cat command
var catCmd = &cobra.Command{
	Use:   "cat NAME TIMESTAMP",
	Short: "Print a stored snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, _ := cmd.Flags().GetBool("job")

		a, err := newApp(cmd.Context(), "Cat")
		if err != nil {
			return err
		}
		defer a.Close()

		content, err := a.Cat(user(cmd), args[0], args[1], job)
		if err != nil {
			return err
		}
		fmt.Print(content)
		return nil
	},
}

// diff command
var diffCmd = &cobra.Command{
	Use:   "diff NAME TIMESTAMP1 TIMESTAMP2",
	Short: "Compare two snapshots",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, _ := cmd.Flags().GetBool("job")
		unified, _ := cmd.Flags().GetBool("unified")

		a, err := newApp(cmd.Context(), "Diff")
		if err != nil {
			return err
		}
		defer a.Close()

		if unified {
			out, err := a.UnifiedDiff(user(cmd), args[0], args[1], args[2], job)
			if err != nil {
				return err
			}
			os.Stdout.Write(out)
			return nil
		}

		lines, err := a.Diff(user(cmd), args[0], args[1], args[2], job)
		if err != nil {
			return err
		}
		fmt.Print(app.DescribeLines(lines))
		return nil
	},
}

// purge command
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete history entries older than the configured age",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Purge")
		if err != nil {
			return err
		}
		defer a.Close()

		maxAge := a.MaxAgeDays()
		if cmd.Flags().Changed("max-age") {
			maxAge, _ = cmd.Flags().GetInt("max-age")
		}
		if maxAge <= 0 {
			fmt.Println("Purging is disabled.")
			return nil
		}

		result, err := a.Purge(maxAge)
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}

		fmt.Printf("Examined %d object(s), deleted %d record(s), archived %d, failed %d\n",
			result.Objects, result.Deleted, result.Archived, result.Failed)
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore DELETED_NAME",
	Short: "Restore a deleted job from its last snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Restore(user(cmd), args[0])
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored %s as %s from %s\n", args[0], result.Name, result.Source)
		if !result.HistoryMoved {
			fmt.Println("Warning: the old history could not be moved to the restored job.")
		}
		return nil
	},
}

// job command
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage live jobs",
}

var jobSaveCmd = &cobra.Command{
	Use:   "save NAME FILE",
	Short: "Create or update a job from a config file (- for stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}

		a, err := newApp(cmd.Context(), "SaveJob")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.SaveJob(user(cmd), args[0], content)
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Printf("Saved %s\n", args[0])
			return nil
		}
		fmt.Printf("Saved %s (%s at %s)\n", args[0], rec.Operation, rec.Timestamp)
		return nil
	},
}

var jobDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a job, keeping its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeleteJob")
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.DeleteJob(user(cmd), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %s, history kept as %s\n", args[0], deleted)
		return nil
	},
}

var jobRenameCmd = &cobra.Command{
	Use:   "rename OLD NEW",
	Short: "Rename a job together with its history",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "RenameJob")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RenameJob(user(cmd), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %s\n", args[0], args[1])
		return nil
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListJobs")
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.Jobs()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No jobs.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

// system command
var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Manage system settings",
}

var systemSaveCmd = &cobra.Command{
	Use:   "save NAME FILE",
	Short: "Record a new snapshot of a system setting (- for stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}

		a, err := newApp(cmd.Context(), "SaveSystem")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.SaveSystem(user(cmd), args[0], content)
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Printf("%s is excluded from history\n", args[0])
			return nil
		}
		fmt.Printf("Recorded %s at %s\n", args[0], rec.Timestamp)
		return nil
	},
}

// ops command
var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "View maintenance operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "Operations")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.Operations(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the archive of purged records",
}

var archiveInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive key pair and check the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		a, err := newApp(cmd.Context(), "ArchiveInit")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ArchiveInit(passphrase); err != nil {
			return err
		}
		fmt.Println("Archive initialized.")
		return nil
	},
}

var archiveGetCmd = &cobra.Command{
	Use:   "get ROOT NAME TIMESTAMP",
	Short: "Print an archived file of a purged record",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		root, err := app.ParseRoot(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "ArchiveGet")
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.ArchiveEncrypted() {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}
		return a.ArchiveGet(root, args[1], args[2], file, passphrase, os.Stdout)
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the history API and purge periodically",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := a.Config()
		interval, err := cfg.PurgeIntervalDuration()
		if err != nil {
			return err
		}
		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = cfg.Server.Listen
		}

		var metricsHandler http.Handler
		if cfg.Metrics.Enabled {
			metricsHandler = a.Metrics().Handler()
		}
		router := mux.NewRouter()
		api.SetupRoutes(router, api.NewHandler(a.Service(), a.MaxAgeDays, a.Logger()), metricsHandler)

		srv := &http.Server{
			Addr:              listen,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			if err := a.Service().RunPurgeLoop(ctx, interval, a.MaxAgeDays); err != nil {
				a.Logger().Error("purge loop stopped", "error", err)
			}
		}()

		errCh := make(chan error, 1)
		go func() {
			a.Logger().Info("listening", "addr", listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("serving: %w", err)
			}
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.PersistentFlags().String("user", "", "Subject to act as (default $USER)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// job subcommands
	jobCmd.AddCommand(jobSaveCmd)
	jobCmd.AddCommand(jobDeleteCmd)
	jobCmd.AddCommand(jobRenameCmd)
	jobCmd.AddCommand(jobListCmd)

	// system subcommands
	systemCmd.AddCommand(systemSaveCmd)

	// archive subcommands
	archiveCmd.AddCommand(archiveInitCmd)
	archiveCmd.AddCommand(archiveGetCmd)
	archiveGetCmd.Flags().String("file", "config.xml", "Archived file: config.xml or history.xml")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("filter", "f", history.FilterSystem, "system, all, jobs, deleted, created, or a job name")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(catCmd)
	catCmd.Flags().Bool("job", false, "Read from the job's own history")
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().Bool("job", false, "Compare the job's own history")
	diffCmd.Flags().BoolP("unified", "u", false, "Print a unified diff")
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().Int("max-age", 0, "Override max_days_to_keep_entries")
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(systemCmd)
	rootCmd.AddCommand(opsCmd)
	opsCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "Listen address (default from config)")
}
