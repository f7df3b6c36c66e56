package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJob   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded scans, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		scans, err := st.ListScans(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tJOB\tRUN AT\tROWS\tSCORE\tDUPLICATES\tOUTLIERS\tSOURCE")
		n := 0
		for _, sc := range scans {
			if historyJob != "" && sc.Job != historyJob {
				continue
			}
			n++
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%d\t%d\t%s\n",
				shortID(sc.ID), sc.Job, sc.RunAt.Local().Format(time.DateTime), sc.Rows, sc.Score, sc.Duplicates, sc.Outliers, sc.Source)
		}
		if n == 0 {
			fmt.Fprintln(out, "(no scans)")
			return nil
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the stored report of one scan (id or unique prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		sc, err := st.GetScan(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, sc.Report, "", "  "); err != nil {
			return fmt.Errorf("decode stored report: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Scan %s (job %s) at %s\n", sc.ID, sc.Job, sc.RunAt.Format(time.RFC3339))
		fmt.Fprintf(out, "Source: %s\nRows: %d; Score: %.2f; Duplicates: %d; Outliers: %d\n\n",
			sc.Source, sc.Rows, sc.Score, sc.Duplicates, sc.Outliers)
		buf.WriteByte('\n')
		_, err = out.Write(buf.Bytes())
		return err
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one scan from history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		sc, err := st.GetScan(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if err := st.DeleteScan(cmd.Context(), sc.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted scan %s\n", shortID(sc.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd, historyDeleteCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum scans to list (0 = all)")
	historyCmd.Flags().StringVar(&historyJob, "job", "", "only show scans of this job")
}
