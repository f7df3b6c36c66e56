package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dqcheck-cli/internal/dedupe"
)

var (
	dupInput      inputFlags
	dupFlags      dedupeFlags
	dupFormat     string
	dupOutputPath string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe <file>",
	Short: "Find near-duplicate rows with fuzzy matching",
	Long: `Find near-duplicate rows. Selected columns are normalized and joined into a key,
rows are bucketed by key prefix, compared pairwise within a bucket and clustered
transitively into duplicate groups.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := dupFlags.options(cmd.Flags())
		if err != nil {
			return err
		}
		t, err := loadTable(cmd.Context(), args[0], &dupInput)
		if err != nil {
			return err
		}
		res, err := dedupe.FindDuplicates(t, opt)
		if err != nil {
			return err
		}
		logDedupeStats(args[0], res.Stats)

		var buf bytes.Buffer
		switch strings.ToLower(dupFormat) {
		case "", "markdown", "md":
			buf.WriteString(res.Markdown())
		case "csv":
			err = res.WriteCSV(&buf)
		case "json":
			err = res.WriteJSON(&buf)
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown|csv|json)", dupFormat)
		}
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), dupOutputPath, "duplicates", buf.Bytes())
	},
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
	dupInput.register(dedupeCmd.Flags())
	dupFlags.register(dedupeCmd.Flags())
	dedupeCmd.Flags().StringVar(&dupFormat, "format", "markdown", "output format: markdown|csv|json")
	dedupeCmd.Flags().StringVarP(&dupOutputPath, "output", "o", "", "optional path to write the result")
}
