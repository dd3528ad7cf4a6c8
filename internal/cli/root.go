package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/varscore/internal/config"
	"github.com/ppiankov/varscore/internal/logging"
	"github.com/ppiankov/varscore/internal/metrics"
	"github.com/ppiankov/varscore/internal/pipeline"
)

// Version is set at build time
var Version = "0.3.0"

var (
	cfgFile string
	verbose bool
	noCache bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "varscore",
	Short: "varscore - genomic variant annotation and pathogenicity scoring",
	Long: `varscore annotates genomic variants from public knowledge sources and
combines the evidence into a composite pathogenicity score.

Sources: MyVariant.info (CADD, ClinVar, gnomAD), Ensembl VEP, NCBI ClinVar,
UCSC PhyloP and PhastCons conservation.

Scores are research aids, not clinical interpretations.`,
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
	Long:  `Display the version number of varscore.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "varscore v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.varscore/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.BoolVar(&noCache, "no-cache", false, "disable the in-process annotation memo")
	flags.String("genome", "", "reference assembly (hg38, hg19)")
	flags.StringSlice("sources", nil, "enabled sources in consultation order")
	flags.Int("workers", 0, "concurrent variants in a batch")
	flags.Int("max-retries", 0, "retries per source request")
	flags.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	flags.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	flags.String("log-format", "", "log format (console, json)")

	// Bind flags to viper
	bindFlag("genome", "genome")
	bindFlag("enabled_sources", "sources")
	bindFlag("worker_concurrency", "workers")
	bindFlag("max_retries", "max-retries")
	bindFlag("proxy.http", "http-proxy")
	bindFlag("proxy.https", "https-proxy")
	bindFlag("log.format", "log-format")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

func bindFlag(key, flag string) {
	_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.varscore")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match VARSCORE_*
	viper.SetEnvPrefix("VARSCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("ncbi_api_key", "VARSCORE_NCBI_API_KEY", "NCBI_API_KEY")

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file, env and flags
func loadConfig() (config.Config, error) {
	if noCache {
		viper.Set("cache.enabled", false)
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logging.New(level, cfg.Log.Format)
}

// newPipeline loads configuration and builds the logger and pipeline
func newPipeline() (*pipeline.Pipeline, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	metrics.Register()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("create pipeline: %w", err)
	}
	return p, logger, nil
}
