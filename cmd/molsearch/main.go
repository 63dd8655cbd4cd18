// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the molsearch CLI, a client for the
// Search Service submit/poll/fetch job protocol.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/molsearch/internal/catalog"
	"github.com/pdiddy/molsearch/internal/jobs"
	"github.com/pdiddy/molsearch/internal/ledger"
	"github.com/pdiddy/molsearch/internal/logging"
	"github.com/pdiddy/molsearch/internal/metrics"
	"github.com/pdiddy/molsearch/internal/secrets"
	"github.com/pdiddy/molsearch/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const secretsDir = ".secrets"

// app is the state shared by every command, built before each run.
type app struct {
	cfg      types.Config
	apiKey   string
	logger   *slog.Logger
	closeLog func() error
	catalog  *catalog.Catalog
	metrics  *metrics.Metrics
}

var env *app

// newService builds the job client. Tests substitute a fake.
var newService = func(a *app) jobs.Service {
	return jobs.New(a.cfg.Client,
		jobs.WithLogger(a.logger),
		jobs.WithCatalog(a.catalog),
		jobs.WithRecorder(a.metrics),
	)
}

// rootCmd is the base command for the molsearch CLI.
var rootCmd = &cobra.Command{
	Use:   "molsearch",
	Short: "Submit molecular similarity searches and collect filtered hits",
	Long: `molsearch submits search-and-filter jobs to the Search Service, waits for
them to finish, and writes the hits that pass the similarity threshold and
property ranges to a JSON or CSV file.

Every submission is recorded in a local ledger, so jobs can be checked and
fetched again later with the status, fetch and history commands.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)
	cobra.OnFinalize(finish)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./molsearch.yaml or ~/.config/molsearch/config.yaml)")
	pf.String("api-key", "", "Search Service API key (or CHEESE_API_KEY, or .secrets/cheese-api-key)")
	pf.String("base-url", "", "Search Service base URL (default "+types.DefaultBaseURL+")")
	pf.Duration("poll-interval", 0, "base delay between status checks (default 1s)")
	pf.Duration("max-wait", 0, "give up on a job that is not finished after this long (default 10m)")
	pf.Float64("rps", 0, "limit outbound requests per second (0 = unlimited)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
	pf.String("log-output", "", "log destination: stderr, stdout or a file path")
	pf.String("ledger", "", "run ledger database (default "+ledger.DefaultPath+")")
	pf.String("metrics-file", "", "write Prometheus text metrics here when the command ends")
	pf.String("properties-file", "", "YAML property catalog replacing the built-in one")

	bindings := map[string]string{
		"api_key":                    "api-key",
		"client.base_url":            "base-url",
		"client.poll_interval":       "poll-interval",
		"client.max_wait":            "max-wait",
		"client.requests_per_second": "rps",
		"log.level":                  "log-level",
		"log.format":                 "log-format",
		"log.output":                 "log-output",
		"ledger_path":                "ledger",
		"metrics_file":               "metrics-file",
		"properties_file":            "properties-file",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// initConfig wires the configuration sources. Precedence, highest first:
// flags, environment, .env, config file, defaults.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("molsearch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "molsearch"))
		}
	}

	viper.SetEnvPrefix("MOLSEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("api_key", "MOLSEARCH_API_KEY", "CHEESE_API_KEY")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Ignoring config file:", err)
		}
	}
}

// setDefaults registers every key so AutomaticEnv can reach it through
// Unmarshal.
func setDefaults() {
	viper.SetDefault("api_key", "")
	viper.SetDefault("client.base_url", types.DefaultBaseURL)
	viper.SetDefault("client.timeout", types.DefaultTimeout)
	viper.SetDefault("client.user_agent", "molsearch/"+version)
	viper.SetDefault("client.max_retries", 5)
	viper.SetDefault("client.requests_per_second", 0)
	viper.SetDefault("client.poll_interval", types.DefaultPollInterval)
	viper.SetDefault("client.max_poll_interval", types.DefaultMaxPollInterval)
	viper.SetDefault("client.max_wait", types.DefaultMaxWait)
	viper.SetDefault("client.page_size", types.DefaultPageSize)
	viper.SetDefault("client.max_pages", types.DefaultMaxPages)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stderr")
	viper.SetDefault("ledger_path", ledger.DefaultPath)
	viper.SetDefault("properties_file", "")
	viper.SetDefault("metrics_file", "")
}

// setup builds the shared app state: config, logger, secrets, catalog and
// metrics.
func setup(cmd *cobra.Command, _ []string) error {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	cfg.Client = cfg.Client.WithDefaults()

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if f := viper.ConfigFileUsed(); f != "" {
		logger.Debug("using config file", slog.String("path", f))
	}

	loaded, err := secrets.Load(secretsDir, logger)
	if err != nil {
		closeLog()
		return err
	}
	if len(loaded) > 0 {
		names := make([]string, 0, len(loaded))
		for k := range loaded {
			names = append(names, k)
		}
		sort.Strings(names)
		logger.Debug("loaded secrets", slog.Any("names", names))
	}

	cat, err := catalog.Load(cfg.PropertiesFile)
	if err != nil {
		closeLog()
		return err
	}

	env = &app{
		cfg:      cfg,
		apiKey:   secrets.FirstNonEmpty(viper.GetString("api_key"), loaded[secrets.APIKeyName]),
		logger:   logger,
		closeLog: closeLog,
		catalog:  cat,
		metrics:  metrics.New(),
	}
	return nil
}

// finish writes the metrics file whatever the outcome of the command.
func finish() {
	if env == nil {
		return
	}
	if path := env.cfg.MetricsFile; path != "" {
		if err := env.metrics.WriteTextfile(path); err != nil {
			env.logger.Warn("writing metrics", slog.Any("error", err))
		}
	}
}

func openLedger() (*ledger.Ledger, error) {
	return ledger.Open(env.cfg.LedgerPath)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		slog.Error("molsearch failed", slog.Any("error", err))
	}
	if env != nil {
		env.closeLog()
	}
	if err != nil {
		stop()
		os.Exit(1)
	}
}
