package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dqcheck-cli/internal/analysis"
	"github.com/KaramelBytes/dqcheck-cli/internal/utils"
)

var (
	profInput      inputFlags
	profOutputPath string
	profFormat     string
	profSampleRows int
	profOutliers   bool
	profOutlierThr float64
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Profile a CSV/TSV/XLSX/SQLite dataset and print its quality score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(cmd.Context(), args[0], &profInput)
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		opt.SampleRows = profSampleRows
		opt.Outliers = profOutliers
		opt.OutlierThreshold = cfg.OutlierThreshold
		if cmd.Flags().Changed("outlier-threshold") {
			opt.OutlierThreshold = profOutlierThr
		}
		rep := analysis.Profile(t, opt)
		score := analysis.Breakdown(rep)

		var body []byte
		switch strings.ToLower(profFormat) {
		case "", "markdown", "md":
			body = []byte(rep.Markdown() + fmt.Sprintf("\n[DATA QUALITY SCORE]\nScore: %.2f / 100\n", score.Score))
		case "json":
			body, err = utils.PrettyJSON(struct {
				Profile *analysis.Report        `json:"profile"`
				Score   analysis.ScoreBreakdown `json:"score"`
			}{rep, score})
			if err != nil {
				return err
			}
			body = append(body, '\n')
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown|json)", profFormat)
		}
		return emit(cmd.OutOrStdout(), profOutputPath, "profile", body)
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profInput.register(profileCmd.Flags())
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "optional path to write the profile")
	profileCmd.Flags().StringVar(&profFormat, "format", "markdown", "output format: markdown|json")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 5, "number of sample rows to include")
	profileCmd.Flags().BoolVar(&profOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (default from config)")
}
