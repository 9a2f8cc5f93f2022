package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// resolveFormat picks table output for terminals and JSON for pipes when
// no format was requested.
func resolveFormat(requested string, out io.Writer) (string, error) {
	switch requested {
	case formatTable, formatJSON, formatYAML:
		return requested, nil
	case "":
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return formatTable, nil
		}
		return formatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", requested)
	}
}

// render writes v in the given format. header and rows are used for table
// output only.
func render(out io.Writer, format string, v any, header []string, rows [][]string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		writeRow(tw, header)
		for _, r := range rows {
			writeRow(tw, r)
		}
		return tw.Flush()
	}
}

func writeRow(w io.Writer, cols []string) {
	for i, c := range cols {
		if i > 0 {
			_, _ = io.WriteString(w, "\t")
		}
		_, _ = io.WriteString(w, c)
	}
	_, _ = io.WriteString(w, "\n")
}
