package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vinicius-lino-figueiredo/albedo"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
)

func (a *app) insertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert [document...]",
		Short: "Insert JSON documents",
		Long: `Insert JSON documents given as arguments. Without arguments, documents are
read from --input, one per line. All documents are inserted or none is.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				docs, err := a.insertInput(ctx, cmd, args)
				if err != nil {
					return err
				}
				ids, err := b.Insert(ctx, docs...)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				_, err = okColor.Fprintf(cmd.ErrOrStderr(), "inserted %d documents\n", len(ids))
				return err
			})
		},
	}
	cmd.Flags().StringP("input", "i", stdio, "file with one JSON document per line")
	return cmd
}

func (a *app) insertInput(ctx context.Context, cmd *cobra.Command, args []string) ([]any, error) {
	if len(args) > 0 {
		docs := make([]any, len(args))
		for n, arg := range args {
			doc, err := data.DocumentFromJSON([]byte(arg))
			if err != nil {
				return nil, fmt.Errorf("document %d: %w", n+1, err)
			}
			docs[n] = doc
		}
		return docs, nil
	}
	r, closeFn, err := openInput(ctx, cmd, a.v.GetString("input"))
	if err != nil {
		return nil, err
	}
	docs, err := readDocuments(r)
	return docs, errors.Join(err, closeFn())
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print the document with the given id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := albedo.ParseObjectID(args[0])
			if err != nil {
				return err
			}
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				doc, ok, err := b.Get(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", albedo.ErrNotFound, id)
				}
				return writeJSONLines(cmd.OutOrStdout(), []albedo.Document{doc})
			})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List the documents matching a query",
		Long: `List the documents matching a query, given in the JSON form
{"query": {...}, "sort": {"asc": "field"}, "sector": {"offset": 0, "limit": 10},
"projection": {"include": ["field"]}}. Every key is optional.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions(args)
			if err != nil {
				return err
			}
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				cur, err := b.List(ctx, opts...)
				if err != nil {
					return err
				}
				var docs []albedo.Document
				for d, err := range cur.All() {
					if err != nil {
						return err
					}
					docs = append(docs, d)
				}
				if a.v.GetBool("json") {
					return writeJSONLines(cmd.OutOrStdout(), docs)
				}
				return writeDocuments(cmd.OutOrStdout(), docs)
			})
		},
	}
	cmd.Flags().Bool("json", false, "print one JSON document per line instead of a table")
	return cmd
}

func (a *app) countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count [query]",
		Short: "Count the documents matching a query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions(args)
			if err != nil {
				return err
			}
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				n, err := b.Count(ctx, opts...)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <query>",
		Short: "Delete every document matching a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions(args)
			if err != nil {
				return err
			}
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				n, err := b.Delete(ctx, opts...)
				if err != nil {
					return err
				}
				_, err = okColor.Fprintf(cmd.OutOrStdout(), "deleted %d documents\n", n)
				return err
			})
		},
	}
}

func (a *app) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <query> <fields>",
		Short: "Set fields on every document matching a query",
		Long: `Set the fields of a JSON document on every document matching a query. Each
document is replaced before the next one is read.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions(args[:1])
			if err != nil {
				return err
			}
			fields, err := data.DocumentFromJSON([]byte(args[1]))
			if err != nil {
				return fmt.Errorf("reading fields: %w", err)
			}
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				var n int
				err := b.TransformFunc(ctx, func(d albedo.Document) (albedo.Decision, error) {
					for k, v := range fields.Iter() {
						d.Set(k, data.CloneValue(v))
					}
					n++
					return albedo.Replace(d), nil
				}, opts...)
				if err != nil {
					return err
				}
				_, err = okColor.Fprintf(cmd.OutOrStdout(), "updated %d documents\n", n)
				return err
			})
		},
	}
}

func (a *app) explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [query]",
		Short: "Show how a query would be executed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := queryOptions(args)
			if err != nil {
				return err
			}
			return a.withBucket(cmd, func(ctx context.Context, b albedo.Bucket) error {
				plan, err := b.Explain(ctx, opts...)
				if err != nil {
					return err
				}
				if plan.DriveField == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "full scan")
				} else if plan.DriveOperator == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "scan index %s\n", plan.DriveField)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "index %s %s\n", plan.DriveField, plan.DriveOperator)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sorted by index: %t\n", plan.IndexOrder)
				return nil
			})
		},
	}
}

func (a *app) dropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete the bucket file and every document in it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file := a.v.GetString("file")
			if !a.v.GetBool("yes") {
				return fmt.Errorf("refusing to drop %s without --yes", file)
			}
			ctx := cmd.Context()
			b, err := a.open(ctx, file)
			if err != nil {
				return err
			}
			if err := b.Drop(ctx); err != nil {
				return err
			}
			_, err = okColor.Fprintf(cmd.OutOrStdout(), "dropped %s\n", file)
			return err
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "confirm the drop")
	return cmd
}
