package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vinicius-lino-figueiredo/albedo"
)

func (a *app) indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the indexes of a bucket",
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				indexes, err := b.ListIndexes(ctx)
				if err != nil {
					return err
				}
				return writeIndexes(cmd.OutOrStdout(), indexes)
			})
		},
	}

	ensure := &cobra.Command{
		Use:   "ensure <field>",
		Short: "Create or redefine the index over a field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := albedo.IndexOptions{
				Unique:  a.v.GetBool("unique"),
				Sparse:  a.v.GetBool("sparse"),
				Reverse: a.v.GetBool("reverse"),
			}
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				info, err := b.EnsureIndex(ctx, args[0], opts)
				if err != nil {
					return err
				}
				_, err = okColor.Fprintf(cmd.OutOrStdout(), "index %s ready\n", info.Name)
				return err
			})
		},
	}
	ensure.Flags().Bool("unique", false, "reject documents sharing a value")
	ensure.Flags().Bool("sparse", false, "skip documents without the field")
	ensure.Flags().Bool("reverse", false, "iterate in descending order")

	drop := &cobra.Command{
		Use:   "drop <field>",
		Short: "Drop the index over a field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				if err := b.DropIndex(ctx, args[0]); err != nil {
					return err
				}
				_, err := okColor.Fprintf(cmd.OutOrStdout(), "index %s dropped\n", args[0])
				return err
			})
		},
	}

	cmd.AddCommand(ls, ensure, drop)
	return cmd
}
