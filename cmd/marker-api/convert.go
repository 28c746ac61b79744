package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/marker-api/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert [pdfs or directories...]",
	Short: "Convert local PDF files to structured Markdown",
	Long: `Convert runs the configured Marker backend over local PDFs and writes
one Markdown file per PDF into --out-dir, with YAML frontmatter carrying the
title, page count, and heading summary. Directories are expanded to the
PDFs they contain. Existing Markdown is skipped unless --force is set.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("out-dir", "markdown", "directory for the Markdown output")
	convertCmd.Flags().Bool("force", false, "overwrite existing Markdown")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more PDF files or directories")
	}
	outDir, _ := cmd.Flags().GetString("out-dir")
	force, _ := cmd.Flags().GetBool("force")

	paths, err := expandPDFs(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files found in %s", strings.Join(args, ", "))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	conv, err := newConverter(ctx, cfg)
	if err != nil {
		return err
	}
	if err := conv.Load(ctx); err != nil {
		return fmt.Errorf("loading marker: %w", err)
	}

	result := convert.ConvertBatch(ctx, conv, paths, outDir, force, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d PDF(s) failed conversion", result.Failed)
	}
	return nil
}

// expandPDFs replaces each directory argument with the PDFs directly inside
// it, sorted by name. File arguments pass through unchanged.
func expandPDFs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		slices.Sort(found)
		paths = append(paths, found...)
	}
	return paths, nil
}
