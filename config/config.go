package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Retry    RetryConfig    `yaml:"retry"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Sheets   SheetsConfig   `yaml:"sheets"`
}

// BrowserConfig controls how each isolated Chromium session is launched
type BrowserConfig struct {
	Debug          bool          `yaml:"debug"` // visible window plus slow motion
	Bin            string        `yaml:"bin"`
	UserDataDir    string        `yaml:"user_data_dir"` // base for per-session profile directories
	UserAgent      string        `yaml:"user_agent"`
	AcceptLanguage string        `yaml:"accept_language"`
	ViewportWidth  int           `yaml:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height"`
	SlowMotion     time.Duration `yaml:"slow_motion"`
}

// ScraperConfig holds the delays and timeouts of the navigation flow
type ScraperConfig struct {
	EntryURL string `yaml:"entry_url"`

	SettleDelay    time.Duration `yaml:"settle_delay"`
	ToggleDelay    time.Duration `yaml:"toggle_delay"`
	ClickDelay     time.Duration `yaml:"click_delay"`
	KeystrokeDelay time.Duration `yaml:"keystroke_delay"`
	ScrollDelay    time.Duration `yaml:"scroll_delay"`
	DetailDelay    time.Duration `yaml:"detail_delay"`
	BackDelay      time.Duration `yaml:"back_delay"`
	JitterMin      time.Duration `yaml:"jitter_min"`
	JitterMax      time.Duration `yaml:"jitter_max"`

	FormTimeout     time.Duration `yaml:"form_timeout"`
	FillTimeout     time.Duration `yaml:"fill_timeout"`
	ResultsTimeout  time.Duration `yaml:"results_timeout"`
	DetailTimeout   time.Duration `yaml:"detail_timeout"`
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
}

// RetryConfig bounds whole-session retries on connection failures
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffStep time.Duration `yaml:"backoff_step"`
	JitterMin   time.Duration `yaml:"jitter_min"`
	JitterMax   time.Duration `yaml:"jitter_max"`
}

// ServerConfig is the HTTP API surface
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig points at the Postgres request queue
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// TelegramConfig configures the chat front-end
type TelegramConfig struct {
	Token        string        `yaml:"token"`
	PollInterval time.Duration `yaml:"poll_interval"`
	AllowedUsers []int64       `yaml:"allowed_users"` // empty allows everyone
	AdminChatID  int64         `yaml:"admin_chat_id"` // receives the startup notice when set
}

// SheetsConfig configures bulk input and result export
type SheetsConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"-"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	InputRange      string `yaml:"input_range"`
	InputColumn     string `yaml:"input_column"`
}

// LoadConfig loads configuration from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	cfg := &Config{}

	cfg.Browser.UserDataDir = "/tmp/sunat-data"
	cfg.Browser.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	cfg.Browser.AcceptLanguage = "es-ES,es;q=0.8,en-US;q=0.5,en;q=0.3"
	cfg.Browser.ViewportWidth = 1366
	cfg.Browser.ViewportHeight = 768
	cfg.Browser.SlowMotion = 500 * time.Millisecond

	cfg.Scraper.EntryURL = "https://e-consultaruc.sunat.gob.pe/cl-ti-itmrconsruc/FrameCriterioBusquedaWeb.jsp"
	cfg.Scraper.SettleDelay = 1500 * time.Millisecond
	cfg.Scraper.ToggleDelay = 500 * time.Millisecond
	cfg.Scraper.ClickDelay = 300 * time.Millisecond
	cfg.Scraper.KeystrokeDelay = 50 * time.Millisecond
	cfg.Scraper.ScrollDelay = 300 * time.Millisecond
	cfg.Scraper.DetailDelay = time.Second
	cfg.Scraper.BackDelay = 500 * time.Millisecond
	cfg.Scraper.JitterMin = time.Second
	cfg.Scraper.JitterMax = 2500 * time.Millisecond
	cfg.Scraper.FormTimeout = 30 * time.Second
	cfg.Scraper.FillTimeout = 10 * time.Second
	cfg.Scraper.ResultsTimeout = 20 * time.Second
	cfg.Scraper.DetailTimeout = 15 * time.Second
	cfg.Scraper.RecoveryTimeout = 5 * time.Second

	cfg.Retry.MaxAttempts = 3
	cfg.Retry.BackoffStep = 1500 * time.Millisecond
	cfg.Retry.JitterMin = 500 * time.Millisecond
	cfg.Retry.JitterMax = 2 * time.Second

	cfg.Server.Addr = ":8000"

	cfg.Telegram.PollInterval = 5 * time.Second

	cfg.Sheets.InputRange = "A:Z"
	cfg.Sheets.InputColumn = "razon_social"

	return cfg
}

// ApplyEnv overrides settings from the environment. It is read once at startup.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SUNAT_DEBUG"); v != "" {
		c.Browser.Debug = isTruthy(v)
	}
	if v := os.Getenv("BOT_DATA_DIR"); v != "" {
		c.Browser.UserDataDir = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("SUNAT_KEY_TG"); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS")); v != "" {
		c.Sheets.CredentialsJSON = v
	}
	if v := os.Getenv("SPREADSHEET_ID"); v != "" {
		c.Sheets.SpreadsheetID = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
}

// Validate rejects settings the scraper cannot run with
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.JitterMax < c.Retry.JitterMin {
		return fmt.Errorf("retry.jitter_max (%s) is lower than retry.jitter_min (%s)", c.Retry.JitterMax, c.Retry.JitterMin)
	}
	if c.Scraper.JitterMax < c.Scraper.JitterMin {
		return fmt.Errorf("scraper.jitter_max (%s) is lower than scraper.jitter_min (%s)", c.Scraper.JitterMax, c.Scraper.JitterMin)
	}
	if c.Scraper.EntryURL == "" {
		return fmt.Errorf("scraper.entry_url is required")
	}

	timeouts := map[string]time.Duration{
		"scraper.form_timeout":     c.Scraper.FormTimeout,
		"scraper.fill_timeout":     c.Scraper.FillTimeout,
		"scraper.results_timeout":  c.Scraper.ResultsTimeout,
		"scraper.detail_timeout":   c.Scraper.DetailTimeout,
		"scraper.recovery_timeout": c.Scraper.RecoveryTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	return nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "si", "sí", "on":
		return true
	}
	return false
}
