// Package commands implements the CLI commands for govextract.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/govextract/internal/logger"
	"github.com/jmylchreest/govextract/pkg/govextract"
	"github.com/jmylchreest/govextract/pkg/llm"
)

var rootCmd = &cobra.Command{
	Use:   "govextract",
	Short: "Extract costs and organisations from Flemish government service descriptions",
	Long: `govextract prompts a language model to extract structured fields from
service descriptions of the Flemish government and validates the answer
against a fixed schema.

Two kinds are built in:
  cost          the cost of the service, as a number and as written
  organisation  the organisations mentioned, split into name and abbreviation

Examples:
  # Extract the cost from a text using a local Ollama mistral model
  govextract extract -k cost -t "De aanvraag kost twintig euro."

  # Extract organisations from a web page
  govextract extract -k organisation -u "https://www.vlaanderen.be/..."

  # Serve the HTTP API
  govextract serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(logger.Options{
			Debug:  viper.GetBool("debug"),
			Quiet:  viper.GetBool("quiet"),
			JSON:   viper.GetBool("log_json"),
			Level:  viper.GetString("log_level"),
			Output: cmd.ErrOrStderr(),
		})
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := govextract.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	// Global flags
	flags.String("config", "", "config file (default $HOME/.govextract.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("log-level", "", "log level: debug, info, warn, error (overrides --debug and --quiet)")

	// LLM settings
	flags.StringP("provider", "p", defaults.Provider, "LLM provider: ollama, openai, anthropic")
	flags.StringP("model", "m", "", "model name (default depends on provider, mistral for ollama)")
	flags.String("api-key", "", "API key (or use OPENAI_API_KEY / ANTHROPIC_API_KEY)")
	flags.String("base-url", "", "custom API base URL")
	flags.Float64("temperature", defaults.Temperature, "sampling temperature")
	flags.Int("max-tokens", defaults.MaxTokens, "maximum output tokens per call")
	flags.Duration("timeout", defaults.Timeout, "timeout per generation call")
	flags.Int("max-retries", defaults.MaxRetries, "retries after a failed attempt")
	flags.Duration("retry-delay", defaults.RetryDelay, "pause between attempts")

	for key, flag := range map[string]string{
		"config":      "config",
		"debug":       "debug",
		"quiet":       "quiet",
		"log_json":    "log-json",
		"log_level":   "log-level",
		"provider":    "provider",
		"model":       "model",
		"api_key":     "api-key",
		"base_url":    "base-url",
		"temperature": "temperature",
		"max_tokens":  "max-tokens",
		"timeout":     "timeout",
		"max_retries": "max-retries",
		"retry_delay": "retry-delay",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
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
		viper.SetConfigName(".govextract")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. GOVEXTRACT_BASE_URL
	viper.SetEnvPrefix("GOVEXTRACT")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		logError("%v", err)
		return err
	}
	return nil
}

// loadConfig builds the service configuration from flags, environment and
// config file.
func loadConfig() govextract.Config {
	return govextract.Config{
		Provider:    viper.GetString("provider"),
		Model:       viper.GetString("model"),
		APIKey:      viper.GetString("api_key"),
		BaseURL:     viper.GetString("base_url"),
		Temperature: viper.GetFloat64("temperature"),
		MaxTokens:   viper.GetInt("max_tokens"),
		Timeout:     viper.GetDuration("timeout"),
		MaxRetries:  viper.GetInt("max_retries"),
		RetryDelay:  viper.GetDuration("retry_delay"),
	}
}

func newService() (*govextract.Service, error) {
	cfg := loadConfig()
	start := time.Now()
	var opts []govextract.Option
	// Per-attempt logging when debug output is on
	if logger.Logger().Enabled(context.Background(), slog.LevelDebug) {
		opts = append(opts, govextract.WithObserver(llm.LogObserver{}))
	}
	svc, err := govextract.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("service ready",
		"provider", svc.Provider(),
		"model", svc.Model(),
		"setup", time.Since(start))
	return svc, nil
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
