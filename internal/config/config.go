// Package config handles configuration loading for goldenkey.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/seenimoa/goldenkey/pkg/models"
)

// Config represents the complete application configuration.
type Config struct {
	Scan    ScanConfig         `mapstructure:"scan"    yaml:"scan"`
	Sources SourcesConfig      `mapstructure:"sources" yaml:"sources"`
	Indices []models.IndexSpec `mapstructure:"indices" yaml:"indices"`
	Themes  []models.IndexSpec `mapstructure:"themes"  yaml:"themes"`
	LLM     LLMConfig          `mapstructure:"llm"     yaml:"llm"`
	API     APIConfig          `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// ScanConfig holds the knobs of one scan cycle.
type ScanConfig struct {
	Exclusions       []string         `mapstructure:"exclusions"         yaml:"exclusions"`
	MinChangePercent float64          `mapstructure:"min_change_percent" yaml:"min_change_percent"`
	TopN             int              `mapstructure:"top_n"              yaml:"top_n"`
	RequestDelay     time.Duration    `mapstructure:"request_delay"      yaml:"request_delay"`
	MaxHeadlines     int              `mapstructure:"max_headlines"      yaml:"max_headlines"`
	MinHeadlines     int              `mapstructure:"min_headlines"      yaml:"min_headlines"`
	FallbackSector   string           `mapstructure:"fallback_sector"    yaml:"fallback_sector"`
	MergePolicy      string           `mapstructure:"merge_policy"       yaml:"merge_policy"` // "overwrite" or "union"
	ThemeDB          string           `mapstructure:"theme_db"           yaml:"theme_db"`
	Rules            []RuleConfig     `mapstructure:"rules"              yaml:"rules"`
	Overrides        []OverrideConfig `mapstructure:"overrides"          yaml:"overrides"`
}

// RuleConfig is one keyword rule. Rules are evaluated in list order.
type RuleConfig struct {
	Tag      string   `mapstructure:"tag"      yaml:"tag"`
	Keywords []string `mapstructure:"keywords" yaml:"keywords"`
}

// OverrideConfig pins one instrument to a sector regardless of rules.
// A list is used instead of a map because viper lowercases map keys.
type OverrideConfig struct {
	Name   string `mapstructure:"name"   yaml:"name"`
	Sector string `mapstructure:"sector" yaml:"sector"`
}

// OverrideMap returns the overrides keyed by instrument name.
func (s ScanConfig) OverrideMap() map[string]string {
	m := make(map[string]string, len(s.Overrides))
	for _, o := range s.Overrides {
		if o.Name != "" && o.Sector != "" {
			m[o.Name] = o.Sector
		}
	}
	return m
}

// SourcesConfig holds upstream endpoints.
type SourcesConfig struct {
	ListingURL      string        `mapstructure:"listing_url"       yaml:"listing_url"`
	DefaultCharset  string        `mapstructure:"default_charset"   yaml:"default_charset"`
	NaverIndexURL   string        `mapstructure:"naver_index_url"   yaml:"naver_index_url"`
	YahooChartURL   string        `mapstructure:"yahoo_chart_url"   yaml:"yahoo_chart_url"`
	NewsSearchURL   string        `mapstructure:"news_search_url"   yaml:"news_search_url"`
	NewsRSSURL      string        `mapstructure:"news_rss_url"      yaml:"news_rss_url"`
	NewsQueryPrefix string        `mapstructure:"news_query_prefix" yaml:"news_query_prefix"`
	Timeout         time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	IndexCacheTTL   time.Duration `mapstructure:"index_cache_ttl"   yaml:"index_cache_ttl"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary       string  `mapstructure:"primary"         yaml:"primary"` // "openai", "gemini", "anthropic"
	OpenAIKey     string  `mapstructure:"openai_key"      yaml:"openai_key"`
	OpenAIBaseURL string  `mapstructure:"openai_base_url" yaml:"openai_base_url"`
	GeminiKey     string  `mapstructure:"gemini_key"      yaml:"gemini_key"`
	AnthropicKey  string  `mapstructure:"anthropic_key"   yaml:"anthropic_key"`
	Model         string  `mapstructure:"model"           yaml:"model"`
	GeminiModel   string  `mapstructure:"gemini_model"    yaml:"gemini_model"`
	ClaudeModel   string  `mapstructure:"claude_model"    yaml:"claude_model"`
	Temperature   float64 `mapstructure:"temperature"     yaml:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"      yaml:"max_tokens"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
	File   string `mapstructure:"file"   yaml:"file"`
}

const envPrefix = "GOLDENKEY"

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.goldenkey/config.yaml (home directory)
//  3. /etc/goldenkey/config.yaml (system)
//
// A .env file in the working directory is loaded first when present.
// Environment variables override config file values.
// Format: GOLDENKEY_<SECTION>_<KEY>, e.g., GOLDENKEY_LLM_OPENAI_KEY
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".goldenkey"))
	v.AddConfigPath("/etc/goldenkey")
	bindEnv(v)

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if len(cfg.Indices) == 0 {
		cfg.Indices = append([]models.IndexSpec(nil), models.DefaultIndices...)
	}
	if len(cfg.Themes) == 0 {
		cfg.Themes = append([]models.IndexSpec(nil), models.DefaultThemeProxies...)
	}
	if len(cfg.Scan.Rules) == 0 {
		cfg.Scan.Rules = append([]RuleConfig(nil), DefaultRules...)
	}
	if cfg.Scan.Overrides == nil {
		cfg.Scan.Overrides = append([]OverrideConfig(nil), DefaultOverrides...)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// DefaultRules is the ordered keyword table. Earlier rules win.
var DefaultRules = []RuleConfig{
	{Tag: "반도체", Keywords: []string{"반도체", "HBM", "CXL", "온디바이스", "메모리", "NPU", "유리기판"}},
	{Tag: "2차전지", Keywords: []string{"2차전지", "리튬", "전고체", "배터리", "LFP", "양극재"}},
	{Tag: "바이오", Keywords: []string{"바이오", "제약", "신약", "임상"}},
	{Tag: "로봇/AI", Keywords: []string{"로봇", "AI", "인공지능", "챗봇"}},
	{Tag: "전력/원전", Keywords: []string{"전력", "전선", "원자력", "변압기"}},
	{Tag: "방산/우주", Keywords: []string{"방산", "우주", "항공"}},
	{Tag: "금융/지주", Keywords: []string{"지주사", "은행", "보험", "증권", "밸류업"}},
}

// DefaultOverrides pins instruments whose names and themes mislead the keyword rules.
var DefaultOverrides = []OverrideConfig{
	{Name: "온코닉테라퓨틱스", Sector: "바이오"},
	{Name: "현대ADM", Sector: "바이오"},
}

// DefaultExclusions drops ETFs, ETNs and SPACs from the ranking.
var DefaultExclusions = []string{"KODEX", "TIGER", "KBSTAR", "ACE", "SOL", "스팩", "ETN"}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Scan defaults
	v.SetDefault("scan.exclusions", DefaultExclusions)
	v.SetDefault("scan.min_change_percent", 4.0)
	v.SetDefault("scan.top_n", 100)
	v.SetDefault("scan.request_delay", "300ms")
	v.SetDefault("scan.max_headlines", 10)
	v.SetDefault("scan.min_headlines", 3)
	v.SetDefault("scan.fallback_sector", models.FallbackSector)
	v.SetDefault("scan.merge_policy", "overwrite")
	v.SetDefault("scan.theme_db", "data/themes.csv")

	// Upstream sources
	v.SetDefault("sources.listing_url", "https://finance.naver.com/sise/sise_quant.naver")
	v.SetDefault("sources.default_charset", "euc-kr")
	v.SetDefault("sources.naver_index_url", "https://finance.naver.com/sise/sise_index.naver")
	v.SetDefault("sources.yahoo_chart_url", "https://query1.finance.yahoo.com/v8/finance/chart/")
	v.SetDefault("sources.news_search_url", "https://search.naver.com/search.naver")
	v.SetDefault("sources.news_rss_url", "https://news.google.com/rss/search")
	v.SetDefault("sources.news_query_prefix", "특징주 ")
	v.SetDefault("sources.timeout", "10s")
	v.SetDefault("sources.index_cache_ttl", "60s")

	// LLM defaults
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.gemini_model", "gemini-2.5-flash")
	v.SetDefault("llm.claude_model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4096)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("GOLDENKEY_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv("GOLDENKEY_LLM_GEMINI_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if key := os.Getenv("GOLDENKEY_LLM_ANTHROPIC_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	}
	if url := os.Getenv("GOLDENKEY_LLM_OPENAI_BASE_URL"); url != "" {
		cfg.LLM.OpenAIBaseURL = url
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
