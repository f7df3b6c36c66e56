package cmd

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dqcheck-cli/internal/analysis"
	"github.com/KaramelBytes/dqcheck-cli/internal/rules"
)

var (
	rulesInput    inputFlags
	rulesUseLLM   bool
	rulesProvider string
	rulesModel    string
	rulesAppend   bool
	rulesDryRun   bool

	rulesExportFormat string
	rulesExportPath   string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Suggest, list and export validation rules",
}

var rulesSuggestCmd = &cobra.Command{
	Use:   "suggest <file>",
	Short: "Suggest validation rules for a dataset and store them as the active rule set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(cmd.Context(), args[0], &rulesInput)
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		opt.OutlierThreshold = cfg.OutlierThreshold
		prof := analysis.Profile(t, opt)

		var suggested []rules.Rule
		if rulesUseLLM {
			rt, err := runtimeFromConfig(rulesProvider)
			if err != nil {
				return err
			}
			model := rulesModel
			if model == "" {
				model = cfg.DefaultModel
			}
			s := &rules.Suggester{Runtime: rt, Model: model}
			suggested = s.Suggest(cmd.Context(), prof)
		} else {
			suggested = rules.Heuristic(prof)
		}

		out := cmd.OutOrStdout()
		if rulesDryRun {
			printRules(out, suggested)
			return nil
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		final := suggested
		if rulesAppend {
			existing, err := st.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			final = rules.Merge(existing, suggested)
		}
		if err := st.SaveRules(cmd.Context(), final); err != nil {
			return err
		}
		zap.L().Info("rules: saved", zap.Int("suggested", len(suggested)), zap.Int("active", len(final)))
		printRules(out, final)
		fmt.Fprintf(out, "✓ Saved %d rules\n", len(final))
		return nil
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active rule set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		rs, err := st.LoadRules(cmd.Context())
		if err != nil {
			return err
		}
		if len(rs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No rules configured. Run 'dqcheck rules suggest <file>'.")
			return nil
		}
		printRules(cmd.OutOrStdout(), rs)
		return nil
	},
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the active rule set as json, yaml or toml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		rs, err := st.LoadRules(cmd.Context())
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := rules.Export(&buf, rs, strings.ToLower(rulesExportFormat)); err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), rulesExportPath, "rules", buf.Bytes())
	},
}

var rulesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all active rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveRules(cmd.Context(), nil); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared rules")
		return nil
	},
}

func printRules(w io.Writer, rs []rules.Rule) {
	if len(rs) == 0 {
		fmt.Fprintln(w, "No rules suggested.")
		return
	}
	for _, r := range rs {
		fmt.Fprintf(w, "- %s\n", r)
	}
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesSuggestCmd, rulesListCmd, rulesExportCmd, rulesClearCmd)

	rulesInput.register(rulesSuggestCmd.Flags())
	rulesSuggestCmd.Flags().BoolVar(&rulesUseLLM, "llm", false, "ask an LLM for rules (falls back to heuristics)")
	rulesSuggestCmd.Flags().StringVar(&rulesProvider, "provider", "", "LLM provider: openrouter|ollama (default from config)")
	rulesSuggestCmd.Flags().StringVar(&rulesModel, "model", "", "model name (default from config)")
	rulesSuggestCmd.Flags().BoolVar(&rulesAppend, "append", false, "merge with the active rules instead of replacing them")
	rulesSuggestCmd.Flags().BoolVar(&rulesDryRun, "dry-run", false, "print suggestions without saving them")

	rulesExportCmd.Flags().StringVar(&rulesExportFormat, "format", "json", "export format: "+strings.Join(rules.Formats, "|"))
	rulesExportCmd.Flags().StringVarP(&rulesExportPath, "output", "o", "", "write to a file instead of stdout")
}
