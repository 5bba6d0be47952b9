// Package commands implements the CLI commands for crawlcore.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "crawlcore",
	Short: "Browser-driven crawler and structured-data extractor",
	Long: `crawlcore fetches pages through a pooled, signature-keyed browser
engine and turns them into markdown, media/link inventories, and
structured records via CSS, XPath, or LLM-backed extraction strategies.

Examples:
  # Fetch a single page and emit markdown + link/media inventories
  crawlcore crawl -u "https://example.com/article"

  # Extract structured records with a CSS field schema
  crawlcore crawl -u "https://example.com/listing" --schema schema.json --strategy css

  # Deep-crawl from a seed URL, best-first, up to depth 2
  crawlcore crawl -u "https://example.com" --deep-crawl best-first --max-depth 2

  # Extract with an LLM provider, using an output-record schema
  crawlcore crawl -u "https://example.com/article" --strategy llm --schema record.yaml -p anthropic -m claude-sonnet-4-20250514`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.crawlcore.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".crawlcore")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CRAWLCORE")
	viper.AutomaticEnv()

	_ = viper.BindEnv("api_key", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY")

	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
