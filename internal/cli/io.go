package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dolmen-go/contextio"
	"github.com/spf13/cobra"

	"github.com/vinicius-lino-figueiredo/albedo"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/querier"
)

const stdio = "-"

// maxLine is the largest JSON document accepted on a single input line.
const maxLine = 16 << 20

// openInput returns stdin for "-" and the named file otherwise. Reads fail
// once ctx is done.
func openInput(ctx context.Context, cmd *cobra.Command, path string) (io.Reader, func() error, error) {
	if path == stdio {
		return contextio.NewReader(ctx, cmd.InOrStdin()), func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return contextio.NewReader(ctx, f), f.Close, nil
}

func readAll(ctx context.Context, cmd *cobra.Command, path string) (b []byte, err error) {
	r, closeFn, err := openInput(ctx, cmd, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, closeFn())
	}()
	return io.ReadAll(r)
}

func writeAll(ctx context.Context, cmd *cobra.Command, path string, b []byte) (err error) {
	var w io.Writer = cmd.OutOrStdout()
	if path != stdio {
		f, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if openErr != nil {
			return openErr
		}
		defer func() {
			err = errors.Join(err, f.Close())
		}()
		w = f
	}
	_, err = contextio.NewWriter(ctx, w).Write(b)
	return err
}

// readDocuments reads one JSON document per line, skipping blank lines.
func readDocuments(r io.Reader) ([]any, error) {
	var docs []any
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for line := 1; sc.Scan(); line++ {
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		doc, err := data.DocumentFromJSON(b)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	return docs, sc.Err()
}

// queryOptions reads the optional query argument, written in the JSON form
// {"query": {...}, "sort": {"asc": field}, "sector": {"offset": n, "limit": n},
// "projection": {"include": [fields]}}.
func queryOptions(args []string) ([]albedo.QueryOption, error) {
	if len(args) == 0 {
		return nil, nil
	}
	doc, err := data.DocumentFromJSON([]byte(args[0]))
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}
	q, err := querier.ParseQuery(doc)
	if err != nil {
		return nil, err
	}
	return []albedo.QueryOption{albedo.WithQuery(q)}, nil
}
