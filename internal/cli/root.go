// Package cli implements the albedo command line tool. Every command opens
// the bucket named by the --file flag, runs one operation and closes it.
//
// Flags can also be set through ALBEDO_* environment variables, which are
// read from .env and .env.local when present.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vinicius-lino-figueiredo/albedo"
)

// Version is reported by the version command.
const Version = "0.3.0"

type app struct {
	v      *viper.Viper
	logger *slog.Logger
}

// NewRootCmd returns the albedo command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: slog.Default()}

	root := &cobra.Command{
		Use:   "albedo",
		Short: "embedded document bucket",
		Long: fmt.Sprintf(`albedo (v%s)

Inspect and modify albedo buckets, and move replication batches between them.`, Version),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringP("file", "f", "albedo.db", "data file of the bucket")
	flags.Bool("verbose", false, "log debug messages")
	flags.Bool("no-sync", false, "skip fsync after each commit")
	flags.Duration("timeout", time.Second, "how long to wait for the lock of the data file")
	flags.Bool("no-color", false, "disable colored output")

	root.AddCommand(
		a.insertCmd(),
		a.getCmd(),
		a.listCmd(),
		a.countCmd(),
		a.deleteCmd(),
		a.setCmd(),
		a.dropCmd(),
		a.explainCmd(),
		a.indexCmd(),
		a.snapshotCmd(),
		a.applyCmd(),
		a.syncCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of albedo",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "albedo v%s\n", Version)
			},
		},
	)
	return root
}

// Execute runs the albedo command, exiting with a non-zero status on error.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	a.v.SetEnvPrefix("albedo")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	level := slog.LevelWarn
	if a.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if a.v.GetBool("no-color") {
		color.NoColor = true
	}
	return nil
}

func (a *app) open(ctx context.Context, path string) (albedo.Bucket, error) {
	return albedo.Open(ctx, path,
		albedo.WithLogger(a.logger),
		albedo.WithNoSync(a.v.GetBool("no-sync")),
		albedo.WithTimeout(a.v.GetDuration("timeout")),
	)
}

// withBucket opens the bucket of the file flag, runs fn and closes the bucket.
func (a *app) withBucket(cmd *cobra.Command, fn func(context.Context, albedo.Bucket) error) (err error) {
	ctx := cmd.Context()
	b, err := a.open(ctx, a.v.GetString("file"))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, b.Close(ctx))
	}()
	return fn(ctx, b)
}
