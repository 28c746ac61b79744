package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/marker-api/internal/history"
	"github.com/pdiddy/marker-api/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent conversions recorded by the server",
	Long: `History reads the SQLite database the server records every upload in and
prints the newest conversions first, as a table, JSON, or YAML.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", history.DefaultLimit, "maximum number of records")
	historyCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	historyCmd.Flags().String("history-db", "", "SQLite file to read (default: server.history_db)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")
	path, _ := cmd.Flags().GetString("history-db")
	if path == "" {
		path = cfg.Server.HistoryDB
	}
	if path == "" {
		return history.ErrDisabled
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no history at %s: %w", path, err)
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return writeRecords(os.Stdout, records, format)
}

func writeRecords(w io.Writer, records []types.ConversionRecord, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tFILE\tBACKEND\tSTATUS\tPAGES\tH1/H2/H3\tTIME")
		for _, r := range records {
			status := "ok"
			if !r.Success {
				status = "failed"
			}
			pages := "-"
			if r.PagesCount != nil {
				pages = strconv.Itoa(*r.PagesCount)
			}
			s := r.StructureStats
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d/%d\t%s\n",
				r.CreatedAt.Local().Format(time.DateTime), r.Filename, r.Backend, status, pages,
				s.H1Count, s.H2Count, s.H3Count,
				(time.Duration(r.ProcessingTimeMS) * time.Millisecond).String())
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (want table, json, or yaml)", format)
	}
}
