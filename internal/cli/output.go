package cli

import (
	"io"
	"slices"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/vinicius-lino-figueiredo/albedo"
	"github.com/vinicius-lino-figueiredo/albedo/adapter/data"
	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

var (
	okColor   = color.New(color.FgGreen)
	infoColor = color.New(color.FgCyan)
)

// writeJSONLines writes one JSON document per line.
func writeJSONLines(w io.Writer, docs []albedo.Document) error {
	for _, d := range docs {
		b, err := data.MarshalJSON(d)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// writeDocuments renders docs as a table with a column per field, in the
// order fields are first seen.
func writeDocuments(w io.Writer, docs []albedo.Document) error {
	var headers []string
	for _, d := range docs {
		for k := range d.Keys() {
			if !slices.Contains(headers, k) {
				headers = append(headers, k)
			}
		}
	}

	table := tablewriter.NewTable(w, tablewriter.WithHeaderAutoFormat(tw.Off))
	table.Header(headers)
	for _, d := range docs {
		row := make([]string, len(headers))
		for n, h := range headers {
			if !d.Has(h) {
				continue
			}
			cell, err := formatValue(d.Get(h))
			if err != nil {
				return err
			}
			row[n] = cell
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := infoColor.Fprintf(w, "%d documents\n", len(docs))
	return err
}

func formatValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case domain.ObjectID:
		return t.String(), nil
	}
	b, err := data.MarshalJSON(v)
	return string(b), err
}

func writeIndexes(w io.Writer, indexes map[string]albedo.IndexInfo) error {
	names := make([]string, 0, len(indexes))
	for name := range indexes {
		names = append(names, name)
	}
	slices.Sort(names)

	table := tablewriter.NewTable(w, tablewriter.WithHeaderAutoFormat(tw.Off))
	table.Header([]string{"index", "unique", "sparse", "reverse"})
	for _, name := range names {
		info := indexes[name]
		row := []string{
			name,
			strconv.FormatBool(info.Unique),
			strconv.FormatBool(info.Sparse),
			strconv.FormatBool(info.Reverse),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
