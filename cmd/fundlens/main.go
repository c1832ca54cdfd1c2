package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/app"
	"github.com/ternarybob/fundlens/internal/common"
	"github.com/ternarybob/fundlens/internal/models"
	"github.com/ternarybob/fundlens/internal/services/pipeline"
)

// multiFlag is a custom flag type that allows a flag to be repeated
type multiFlag []string

func (m *multiFlag) String() string {
	return fmt.Sprintf("%v", *m)
}

func (m *multiFlag) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*m = append(*m, part)
		}
	}
	return nil
}

var (
	// Command-line flags
	configFiles  multiFlag // Multiple -config flags supported
	fundCodes    multiFlag // Repeatable -fund flag, comma separated lists accepted
	mode         = flag.String("mode", "pre", "Report mode: pre or post")
	fundsFile    = flag.String("funds", "", "Fund list file (overrides config)")
	outputDir    = flag.String("out", "", "Report output directory (overrides config)")
	provider     = flag.String("provider", "", "LLM provider: gemini, openai or claude (overrides config)")
	period       = flag.String("period", "", "Holdings disclosure quarter, e.g. 2024Q2 (default: latest disclosed)")
	schedule     = flag.Bool("schedule", false, "Run pre and post reports on the configured cron schedule")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
	flag.Var(&fundCodes, "fund", "Fund code to report on (repeatable, default: every configured fund)")
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Fundlens version %s\n", common.GetFullVersion())
		return 0
	}

	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	// 5. Validate credentials
	if len(configFiles) == 0 {
		if _, err := os.Stat("fundlens.toml"); err == nil {
			configFiles = append(configFiles, "fundlens.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		common.GetLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		return 1
	}

	common.ApplyFlagOverrides(config, *fundsFile, *outputDir, *provider, *period)

	logger := common.InitLogger(config)

	common.PrintBanner(common.GetVersion())

	if err := config.ValidateCredentials(); err != nil {
		logger.Error().Err(err).Msg("Configuration incomplete")
		return 1
	}

	reportMode, err := models.ParseReportType(*mode)
	if err != nil && !*schedule {
		logger.Error().Err(err).Msg("Invalid mode")
		return 1
	}

	logger.Info().
		Strs("config_files", configFiles).
		Str("llm_provider", string(config.LLM.Provider)).
		Str("search_provider", config.Search.Provider).
		Str("funds_file", config.Funds.File).
		Str("output_dir", config.Output.Dir).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	if *schedule {
		if err := runSchedule(ctx, application, fundCodes); err != nil {
			logger.Error().Err(err).Msg("Scheduler failed")
			return 1
		}
		return 0
	}

	outcomes := application.RunReport(ctx, reportMode, fundCodes)
	return summarize(logger, outcomes)
}

// summarize logs one line per fund and returns the process exit code.
func summarize(logger arbor.ILogger, outcomes []models.Outcome) int {
	for _, o := range outcomes {
		if o.OK() {
			logger.Info().
				Str("fund", o.FundCode).
				Str("path", o.Result.Path).
				Msg("Report generated")
		}
	}

	failures := pipeline.Failed(outcomes)
	for _, f := range failures {
		logger.Error().
			Str("fund", f.FundCode).
			Str("stage", string(f.Stage)).
			Str("reason", f.Reason).
			Bool("cancelled", errors.Is(f, context.Canceled)).
			Msg("Report failed")
	}

	if len(failures) > 0 {
		return 1
	}
	return 0
}
