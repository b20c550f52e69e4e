package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vinicius-lino-figueiredo/albedo"
)

func (a *app) snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [output]",
		Short: "Write the whole bucket as a replication batch",
		Long: `Write the whole bucket as a replication batch to output, or to stdout when
output is omitted or "-". The batch can seed another bucket with apply.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := stdio
			if len(args) > 0 {
				out = args[0]
			}
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				snap, err := b.Snapshot(ctx)
				if err != nil {
					return err
				}
				return writeAll(ctx, cmd, out, snap)
			})
		},
	}
}

func (a *app) applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <batch>",
		Short: "Apply a replication batch read from a file, or stdin for \"-\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := readAll(ctx, cmd, args[0])
			if err != nil {
				return err
			}
			batch, err := albedo.DecodeBatch(raw)
			if err != nil {
				return err
			}
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				if err := b.ApplyBatch(ctx, raw); err != nil {
					return err
				}
				applied, err := b.Applied(ctx, batch.Source)
				if err != nil {
					return err
				}
				_, err = okColor.Fprintf(cmd.OutOrStdout(), "applied %d records from %s up to %d\n",
					len(batch.Records), batch.Source, applied)
				return err
			})
		},
	}
}

func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <source> <target>",
		Short: "Copy every document of the source bucket into the target bucket",
		Long: `Copy every document of the source bucket into the target bucket by applying
a snapshot of the source. Documents only present in the target are kept.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()

			var src, dst albedo.Bucket
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() (err error) {
				src, err = a.open(gctx, args[0])
				return err
			})
			g.Go(func() (err error) {
				dst, err = a.open(gctx, args[1])
				return err
			})
			openErr := g.Wait()
			defer func() {
				for _, b := range []albedo.Bucket{src, dst} {
					if b != nil {
						err = errors.Join(err, b.Close(ctx))
					}
				}
			}()
			if openErr != nil {
				return openErr
			}

			snap, err := src.Snapshot(ctx)
			if err != nil {
				return err
			}
			if err := dst.ApplyBatch(ctx, snap); err != nil {
				return err
			}
			n, err := dst.Count(ctx)
			if err != nil {
				return err
			}
			_, err = okColor.Fprintf(cmd.OutOrStdout(), "%s now holds %d documents\n", args[1], n)
			return err
		},
	}
}
