package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/grievance/internal/logging"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/pipeline"
	"github.com/ppiankov/grievance/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "grievance",
	Short: "Grievance - civic complaint intake, deduplication and prioritization",
	Long: `Grievance turns call transcripts into structured civic grievances.

Each submission is normalized, screened for spam and jurisdiction,
merged into an existing case when it reports the same incident, and
the case collection is periodically classified and prioritized by
department.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "grievance %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.grievance/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// envKeys are nested settings that can be set from GRIEVANCE_* variables
// without appearing in a config file
var envKeys = []string{
	"store.driver", "store.path", "store.dsn",
	"similarity.provider", "similarity.model", "similarity.api_key", "similarity.base_url",
	"slotfill.provider", "slotfill.model", "slotfill.api_key", "slotfill.base_url",
	"log.level", "log.format",
	"telemetry.endpoint", "telemetry.insecure",
	"server.addr",
	"cache.enabled", "cache.dir",
	"concurrency.workers",
	"catalog_path",
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".grievance"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// GRIEVANCE_STORE_DRIVER -> store.driver
	viper.SetEnvPrefix("GRIEVANCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and environment over the defaults.
// Provider API keys fall back to the vendors' usual variables.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Similarity.APIKey = firstNonEmpty(cfg.Similarity.APIKey, providerKey(cfg.Similarity.Provider))
	cfg.SlotFill.APIKey = firstNonEmpty(cfg.SlotFill.APIKey, providerKey(cfg.SlotFill.Provider))
	if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
		if strings.EqualFold(cfg.Similarity.Provider, "ollama") && cfg.Similarity.BaseURL == "" {
			cfg.Similarity.BaseURL = base
		}
		if strings.EqualFold(cfg.SlotFill.Provider, "ollama") && cfg.SlotFill.BaseURL == "" {
			cfg.SlotFill.BaseURL = base
		}
	}

	if viper.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func providerKey(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// session is everything a command needs to drive the pipeline
type session struct {
	config   *model.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	shutdown telemetry.ShutdownFunc
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	p, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	return &session{config: cfg, logger: logger, pipeline: p, shutdown: shutdown}, nil
}

func (r *session) Close(ctx context.Context) {
	if err := r.pipeline.Close(); err != nil {
		r.logger.Warn("close case store", zap.Error(err))
	}
	if err := r.shutdown(ctx); err != nil {
		r.logger.Warn("flush traces", zap.Error(err))
	}
	_ = r.logger.Sync()
}

// readInput reads a file argument, or stdin when the argument is "-" or absent
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
