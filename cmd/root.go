package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/repolens/internal/analyzer"
	"github.com/joescharf/repolens/internal/cache"
	"github.com/joescharf/repolens/internal/github"
	"github.com/joescharf/repolens/internal/llm"
	"github.com/joescharf/repolens/internal/output"
)

// Set from main via Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui      *output.UI
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "repolens",
	Short: "Repolens - AI code quality analysis for GitHub repositories",
	Long: `repolens fetches the most important files of a public GitHub
repository, runs each through an AI quality assessment, and aggregates
the results into a single report. It runs as a one-shot CLI, an HTTP
service with live progress streaming, or an MCP stdio server.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/repolens/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "repolens")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("REPOLENS")
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "repolens")

	viper.SetDefault("github.token", "")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("quota.db_path", filepath.Join(defaultConfigDir, "quota.db"))
	viper.SetDefault("quota.free_limit", 5)
	viper.SetDefault("quota.window", "24h")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("analysis.pacing", "500ms")
	viper.SetDefault("dev_mode", false)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// buildService wires the analyzer from configuration. The standard
// analyzer is live when a system provider key is configured and demo
// otherwise; override-credential calls always go through the live path.
func buildService(opts ...analyzer.ServiceOption) *analyzer.Service {
	gh := github.NewClient(viper.GetString("github.token"))

	client := llm.NewClient(viper.GetString("anthropic.api_key"), viper.GetString("anthropic.model"))
	live := llm.NewLiveAnalyzer(client)

	var standard llm.Analyzer = live
	if viper.GetString("anthropic.api_key") == "" {
		standard = llm.NewDemoAnalyzer()
	}

	if pacing, err := time.ParseDuration(viper.GetString("analysis.pacing")); err == nil {
		opts = append(opts, analyzer.WithPacing(pacing))
	}

	return analyzer.NewService(gh, standard, live, cache.New(), opts...)
}
