package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// outputFormat returns the validated --format value.
func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case formatText, formatJSON:
		return format, nil
	}
	return "", fmt.Errorf("invalid format %q (must be text or json)", format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable writes an aligned table with a row count footer.
func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
	fmt.Fprintf(w, "(%d row%s)\n", len(rows), plural(len(rows)))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func decimal(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
