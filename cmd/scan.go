package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dqcheck-cli/internal/report"
	"github.com/KaramelBytes/dqcheck-cli/internal/store"
	"github.com/KaramelBytes/dqcheck-cli/internal/utils"
)

var (
	scanInput      inputFlags
	scanDedupe     dedupeFlags
	scanJob        string
	scanNoSave     bool
	scanNoDedupe   bool
	scanOutputDir  string
	scanQuiet      bool
	scanFailOnErr  bool
	scanOutlierThr float64
)

var scanCmd = &cobra.Command{
	Use:   "scan <files...>",
	Short: "Run a full quality scan over one or more files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		files, err := utils.ExpandGlobs(args)
		if err != nil {
			return err
		}
		dopt, err := scanDedupe.options(cmd.Flags())
		if err != nil {
			return err
		}
		opt := report.DefaultOptions()
		opt.Dedupe = dopt
		opt.SkipDuplicates = scanNoDedupe
		opt.Profile.OutlierThreshold = cfg.OutlierThreshold
		if cmd.Flags().Changed("outlier-threshold") {
			opt.Profile.OutlierThreshold = scanOutlierThr
		}

		var st *store.Store
		if !scanNoSave {
			if st, err = openStore(); err != nil {
				return err
			}
			defer st.Close()
			saved, err := st.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			if len(saved) > 0 {
				opt.Rules = saved
			}
		}

		total := len(files)
		failed := 0
		for i, path := range files {
			if !scanQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			if err := scanOne(cmd, path, opt, st); err != nil {
				if scanFailOnErr {
					return fmt.Errorf("%s: %w", path, err)
				}
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", path, err)
				zap.L().Warn("scan: file failed", zap.String("path", path), zap.Error(err))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, total)
		}
		return nil
	},
}

func scanOne(cmd *cobra.Command, path string, opt report.Options, st *store.Store) error {
	out := cmd.OutOrStdout()
	t, err := loadTable(cmd.Context(), path, &scanInput)
	if err != nil {
		return err
	}
	rep, err := report.Run(t, opt)
	if err != nil {
		return err
	}
	if rep.Duplicates != nil {
		logDedupeStats(path, rep.Duplicates.Stats)
	}
	md := rep.Markdown()

	if st != nil {
		b, err := json.Marshal(rep.Summary())
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		sc, err := st.SaveScan(cmd.Context(), store.Scan{
			Job:        scanJob,
			Source:     path,
			Rows:       rep.Rows,
			Score:      rep.Score.Score,
			Duplicates: rep.DuplicateCount(),
			Outliers:   len(rep.OutlierRows),
			Report:     b,
		})
		if err != nil {
			return err
		}
		zap.L().Info("scan: saved", zap.String("id", sc.ID), zap.String("job", sc.Job), zap.String("path", path))
		if !scanQuiet {
			fmt.Fprintf(out, "✓ Saved scan %s (score %.2f)\n", shortID(sc.ID), sc.Score)
		}
	}

	if scanOutputDir != "" {
		base := filepath.Base(path)
		name := strings.TrimSuffix(base, filepath.Ext(base)) + ".report.md"
		dest := uniquePath(filepath.Join(scanOutputDir, name))
		if err := utils.SafeWriteFile(dest, []byte(md)); err != nil {
			return err
		}
		if !scanQuiet {
			fmt.Fprintf(out, "✓ Wrote report to %s\n", dest)
		}
		return nil
	}
	if !scanQuiet {
		fmt.Fprintln(out, md)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanInput.register(scanCmd.Flags())
	scanDedupe.register(scanCmd.Flags())
	scanCmd.Flags().StringVar(&scanJob, "job", "default", "job name recorded in scan history")
	scanCmd.Flags().BoolVar(&scanNoSave, "no-save", false, "do not record scans in history")
	scanCmd.Flags().BoolVar(&scanNoDedupe, "no-dedupe", false, "skip duplicate detection")
	scanCmd.Flags().StringVar(&scanOutputDir, "output-dir", "", "write one <name>.report.md per file instead of printing")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "suppress progress and report output")
	scanCmd.Flags().BoolVar(&scanFailOnErr, "fail-fast", false, "stop at the first file that fails")
	scanCmd.Flags().Float64Var(&scanOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (default from config)")
}
