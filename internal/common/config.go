package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// ErrMissingCredential is returned when the selected provider has no API key.
var ErrMissingCredential = errors.New("missing required credential")

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig  `toml:"logging"`
	Funds       FundsConfig    `toml:"funds"`
	Output      OutputConfig   `toml:"output"`
	Market      MarketConfig   `toml:"market"`
	EODHD       EODHDConfig    `toml:"eodhd"`
	Cache       CacheConfig    `toml:"cache"`
	Search      SearchConfig   `toml:"search"`
	LLM         LLMConfig      `toml:"llm"`
	Gemini      GeminiConfig   `toml:"gemini"`
	OpenAI      OpenAIConfig   `toml:"openai"`
	Claude      ClaudeConfig   `toml:"claude"`
	Pipeline    PipelineConfig `toml:"pipeline"`
	Schedule    ScheduleConfig `toml:"schedule"`
	Mailer      MailerConfig   `toml:"mailer"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
	Dir    string   `toml:"dir"`    // Log directory (default: logs/ beside the executable)
}

// FundsConfig points at the fund list file (JSON, YAML or TOML)
type FundsConfig struct {
	File string `toml:"file"`
}

// OutputConfig controls where markdown reports are written
type OutputConfig struct {
	Dir string `toml:"dir"`
}

// MarketConfig contains market data provider configuration
type MarketConfig struct {
	Provider         string `toml:"provider"`          // Domestic data provider: "eastmoney" (default)
	OverseasProvider string `toml:"overseas_provider"` // Overseas index/FX provider: "eastmoney" (default) or "eodhd"
	FundBaseURL      string `toml:"fund_base_url"`     // Fund archive pages (holdings)
	NAVBaseURL       string `toml:"nav_base_url"`      // Fund NAV history API
	QuoteBaseURL     string `toml:"quote_base_url"`    // Quote/board/flow API
	RateLimit        int    `toml:"rate_limit"`        // Requests per second
	Timeout          string `toml:"timeout"`           // Per-request timeout (default: "30s")
	MaxPriorPeriods  int    `toml:"max_prior_periods"` // Holdings fallback depth (default: 4)
}

// EODHDConfig contains EODHD API configuration
type EODHDConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
}

// CacheConfig controls the badger-backed holdings cache
type CacheConfig struct {
	Enabled         bool   `toml:"enabled"`
	Path            string `toml:"path"`             // Database directory path
	StalenessWindow string `toml:"staleness_window"` // Entries older than this are flagged stale (default: "2880h")
	ResetOnStartup  bool   `toml:"reset_on_startup"` // Delete cache on startup for clean test runs
}

// SearchConfig contains open-intelligence search configuration
type SearchConfig struct {
	Provider    string   `toml:"provider"`     // "tavily" (default), "gemini" or "rss"
	APIKey      string   `toml:"api_key"`      // Tavily API key
	BaseURL     string   `toml:"base_url"`     // Tavily API base URL
	MaxResults  int      `toml:"max_results"`  // Results per query (default: 3)
	Recency     string   `toml:"recency"`      // Pre-market news recency window (default: "24h")
	Timeout     string   `toml:"timeout"`      // Per-query timeout (default: "30s")
	MaxAttempts int      `toml:"max_attempts"` // Attempts per query (default: 3)
	RSSFeeds    []string `toml:"rss_feeds"`    // Feeds consulted by the rss provider
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderOpenAI uses an OpenAI-compatible chat completion API
	LLMProviderOpenAI LLMProvider = "openai"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the backend used for report generation
type LLMConfig struct {
	Provider    LLMProvider `toml:"provider"`     // "gemini" (default), "openai" or "claude"
	MaxRetries  int         `toml:"max_retries"`  // Retries on transient failures (default: 3)
	BaseBackoff string      `toml:"base_backoff"` // First retry delay (default: "1s")
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`      // Google Gemini API key
	BaseURL     string  `toml:"base_url"`     // Custom API endpoint (proxy or gateway), empty for Google's
	Model       string  `toml:"model"`        // Model for report generation (default: "gemini-2.5-flash")
	SearchModel string  `toml:"search_model"` // Model for grounded search (default: Model)
	Temperature float32 `toml:"temperature"`  // Completion temperature (default: 0.7)
}

// OpenAIConfig contains OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`    // Override for compatible endpoints (e.g. DeepSeek)
	Model       string  `toml:"model"`       // default: "gpt-4o-mini"
	Temperature float32 `toml:"temperature"` // default: 0.7
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	BaseURL     string  `toml:"base_url"`    // Custom API endpoint, empty for Anthropic's
	Model       string  `toml:"model"`       // default: "claude-sonnet-4-20250514"
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
	Temperature float32 `toml:"temperature"` // default: 0.7
}

// PipelineConfig controls report assembly
type PipelineConfig struct {
	Concurrency        int     `toml:"concurrency"`         // Funds processed in parallel (default: 1 = sequential)
	DataTimeout        string  `toml:"data_timeout"`        // Market data and search calls (default: "30s")
	LLMTimeout         string  `toml:"llm_timeout"`         // LLM generation (default: "60s")
	RunTimeout         string  `toml:"run_timeout"`         // Whole batch, empty = unbounded
	MaxHoldings        int     `toml:"max_holdings"`        // Top-N holdings (default: 10)
	DeviationThreshold float64 `toml:"deviation_threshold"` // Culprit search threshold in percentage points (default: 2.0)
	ContextBudget      int     `toml:"context_budget"`      // Prompt context budget in characters (default: 24000)
	Timezone           string  `toml:"timezone"`            // Market timezone (default: "Asia/Shanghai")
	MarketCloseHour    int     `toml:"market_close_hour"`   // Post-market analyses the previous day before this hour (default: 15)
	HoldingsPeriod     string  `toml:"holdings_period"`     // Disclosure quarter to request, e.g. "2024Q2" (default: latest)
}

// ScheduleConfig holds cron expressions for the schedule command
type ScheduleConfig struct {
	Pre  string `toml:"pre"`  // default: "0 8 * * 1-5"
	Post string `toml:"post"` // default: "30 15 * * 1-5"
}

// MailerConfig holds SMTP delivery settings
type MailerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Host     string   `toml:"host"`
	Port     int      `toml:"port"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	From     string   `toml:"from"`
	FromName string   `toml:"from_name"`
	To       []string `toml:"to"`
	UseTLS   bool     `toml:"use_tls"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Funds: FundsConfig{
			File: "funds.json",
		},
		Output: OutputConfig{
			Dir: "./reports",
		},
		Market: MarketConfig{
			Provider:         "eastmoney",
			OverseasProvider: "eastmoney",
			FundBaseURL:      "https://fundf10.eastmoney.com",
			NAVBaseURL:       "https://api.fund.eastmoney.com",
			QuoteBaseURL:     "https://push2.eastmoney.com",
			RateLimit:        5,
			Timeout:          "30s",
			MaxPriorPeriods:  4,
		},
		EODHD: EODHDConfig{
			BaseURL:   "https://eodhd.com/api",
			RateLimit: 10,
		},
		Cache: CacheConfig{
			Enabled:         true,
			Path:            "./data/cache",
			StalenessWindow: "2880h", // 120 days
		},
		Search: SearchConfig{
			Provider:    "tavily",
			BaseURL:     "https://api.tavily.com",
			MaxResults:  3,
			Recency:     "24h",
			Timeout:     "30s",
			MaxAttempts: 3,
		},
		LLM: LLMConfig{
			Provider:    LLMProviderGemini,
			MaxRetries:  3,
			BaseBackoff: "1s",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.7,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   8192,
			Temperature: 0.7,
		},
		Pipeline: PipelineConfig{
			Concurrency:        1,
			DataTimeout:        "30s",
			LLMTimeout:         "60s",
			MaxHoldings:        10,
			DeviationThreshold: 2.0,
			ContextBudget:      24000,
			Timezone:           "Asia/Shanghai",
			MarketCloseHour:    15,
		},
		Schedule: ScheduleConfig{
			Pre:  "0 8 * * 1-5",
			Post: "30 15 * * 1-5",
		},
		Mailer: MailerConfig{
			Port:     587,
			UseTLS:   true,
			FromName: "Fundlens",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FUNDLENS_ENV"); env != "" {
		config.Environment = env
	}

	// Logging configuration
	if level := os.Getenv("FUNDLENS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FUNDLENS_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// Paths
	if file := os.Getenv("FUNDLENS_FUNDS_FILE"); file != "" {
		config.Funds.File = file
	}
	if dir := os.Getenv("FUNDLENS_OUTPUT_DIR"); dir != "" {
		config.Output.Dir = dir
	}

	// Market configuration
	if provider := os.Getenv("FUNDLENS_MARKET_OVERSEAS_PROVIDER"); provider != "" {
		config.Market.OverseasProvider = provider
	}
	if apiKey := os.Getenv("EODHD_API_KEY"); apiKey != "" {
		config.EODHD.APIKey = apiKey
	}
	if apiKey := os.Getenv("FUNDLENS_EODHD_API_KEY"); apiKey != "" {
		config.EODHD.APIKey = apiKey // FUNDLENS_ prefix takes priority
	}

	// Cache configuration
	if enabled := os.Getenv("FUNDLENS_CACHE_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Cache.Enabled = b
		}
	}
	if path := os.Getenv("FUNDLENS_CACHE_PATH"); path != "" {
		config.Cache.Path = path
	}

	// Search configuration
	if provider := os.Getenv("FUNDLENS_SEARCH_PROVIDER"); provider != "" {
		config.Search.Provider = provider
	}
	if apiKey := os.Getenv("TAVILY_API_KEY"); apiKey != "" {
		config.Search.APIKey = apiKey
	}
	if apiKey := os.Getenv("FUNDLENS_SEARCH_API_KEY"); apiKey != "" {
		config.Search.APIKey = apiKey
	}

	// LLM provider configuration
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = LLMProvider(strings.ToLower(provider))
	}
	if provider := os.Getenv("FUNDLENS_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = LLMProvider(strings.ToLower(provider))
	}

	// Gemini configuration
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("FUNDLENS_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if baseURL := os.Getenv("GEMINI_API_ENDPOINT"); baseURL != "" {
		config.Gemini.BaseURL = baseURL
	}
	if baseURL := os.Getenv("FUNDLENS_GEMINI_BASE_URL"); baseURL != "" {
		config.Gemini.BaseURL = baseURL
	}
	if model := os.Getenv("FUNDLENS_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// OpenAI configuration
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("FUNDLENS_OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("FUNDLENS_OPENAI_MODEL"); model != "" {
		config.OpenAI.Model = model
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("FUNDLENS_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if baseURL := os.Getenv("FUNDLENS_CLAUDE_BASE_URL"); baseURL != "" {
		config.Claude.BaseURL = baseURL
	}
	if model := os.Getenv("FUNDLENS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// Pipeline configuration
	if concurrency := os.Getenv("FUNDLENS_PIPELINE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil && c > 0 {
			config.Pipeline.Concurrency = c
		}
	}
	if budget := os.Getenv("FUNDLENS_PIPELINE_CONTEXT_BUDGET"); budget != "" {
		if b, err := strconv.Atoi(budget); err == nil && b > 0 {
			config.Pipeline.ContextBudget = b
		}
	}

	// Mailer configuration
	if password := os.Getenv("FUNDLENS_MAILER_PASSWORD"); password != "" {
		config.Mailer.Password = password
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, fundsFile, outputDir, provider, period string) {
	// Command-line flags have highest priority
	if fundsFile != "" {
		config.Funds.File = fundsFile
	}
	if outputDir != "" {
		config.Output.Dir = outputDir
	}
	if provider != "" {
		config.LLM.Provider = LLMProvider(strings.ToLower(provider))
	}
	if period != "" {
		config.Pipeline.HoldingsPeriod = period
	}
}

// ValidateCredentials checks that every provider selected by the configuration
// has the API key it needs. A missing key is a fatal startup error.
func (c *Config) ValidateCredentials() error {
	var missing []string

	switch c.LLM.Provider {
	case LLMProviderGemini:
		if c.Gemini.APIKey == "" {
			missing = append(missing, "gemini.api_key")
		}
	case LLMProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			missing = append(missing, "openai.api_key")
		}
	case LLMProviderClaude:
		if c.Claude.APIKey == "" {
			missing = append(missing, "claude.api_key")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Search.Provider {
	case "tavily":
		if c.Search.APIKey == "" {
			missing = append(missing, "search.api_key")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			missing = append(missing, "gemini.api_key (search)")
		}
	case "rss":
		if len(c.Search.RSSFeeds) == 0 {
			return fmt.Errorf("search provider rss requires search.rss_feeds")
		}
	default:
		return fmt.Errorf("unknown search provider %q", c.Search.Provider)
	}

	if c.Market.OverseasProvider == "eodhd" && c.EODHD.APIKey == "" {
		missing = append(missing, "eodhd.api_key")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateSchedule validates the cron expressions of the schedule section
func (c *Config) ValidateSchedule() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for name, expr := range map[string]string{"pre": c.Schedule.Pre, "post": c.Schedule.Post} {
		if expr == "" {
			continue
		}
		if _, err := parser.Parse(expr); err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", name, expr, err)
		}
	}
	return nil
}

// Location returns the market timezone, falling back to a fixed UTC+8 zone
// when the tz database is unavailable.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Pipeline.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*3600)
}

// ParseDuration parses a duration setting, returning fallback when empty or invalid
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
