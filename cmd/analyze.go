package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/repolens/internal/analyzer"
	"github.com/joescharf/repolens/internal/models"
	"github.com/joescharf/repolens/internal/output"
)

var (
	analyzeFileLimit int
	analyzeOutput    string
	analyzePaths     []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <repo>",
	Short: "Analyze a GitHub repository's code quality",
	Long: `Analyze fetches the most analysis-worthy files of a public GitHub
repository and scores each one. <repo> is a full URL or owner/name.

Without an Anthropic API key configured, analysis runs in demo mode
using lexical heuristics instead of the live provider.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyzeRun(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().IntVarP(&analyzeFileLimit, "limit", "l", analyzer.DefaultFileLimit, "Maximum number of files to analyze (1-50)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "table", "Output format: table, json, yaml")
	analyzeCmd.Flags().StringSliceVar(&analyzePaths, "path", nil, "Analyze only these explicit paths (repeatable)")
}

func analyzeRun(ctx context.Context, repo string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	svc := buildService()
	if viper.GetString("anthropic.api_key") == "" {
		ui.Warning("No Anthropic API key configured; running in demo mode")
	}

	req := analyzer.Request{
		RepoURL:   repo,
		FileLimit: &analyzeFileLimit,
		FilePaths: analyzePaths,
	}

	ui.Info("Analyzing %s", output.Cyan(repo))
	report, err := svc.Analyze(ctx, req)
	if err != nil {
		return err
	}

	switch analyzeOutput {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(ui.Out)
		defer func() { _ = enc.Close() }()
		return enc.Encode(report)
	case "table":
		renderReport(report)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", analyzeOutput)
	}
}

func renderReport(report *models.AnalysisReport) {
	ui.Success("Analyzed %d of %d code files, overall quality %s",
		report.Summary.FilesAnalyzed,
		report.Summary.TotalCodeFiles,
		output.ScoreColor(report.Summary.OverallQuality),
	)

	table := ui.Table([]string{"File", "Score"})
	for _, f := range report.Files {
		_ = table.Append([]string{f.File, strconv.Itoa(f.Score)})
	}
	_ = table.Render()

	if len(report.Quality.TopIssues) > 0 {
		ui.Info("Top issues (%d total):", report.Quality.IssueCount)
		for _, issue := range report.Quality.TopIssues {
			fmt.Fprintf(ui.Out, "  - %s: %s\n", issue.File, issue.Issue)
		}
	}
}
