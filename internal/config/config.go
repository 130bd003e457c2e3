package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dshills/mrscan/internal/logging"
	"github.com/dshills/mrscan/internal/orchestrator"
	"github.com/dshills/mrscan/internal/review"
)

// DotEnvFile is read into the environment by Load when present.
var DotEnvFile = ".env"

// Config represents the mrscan configuration.
type Config struct {
	GitLab GitLabConfig `json:"gitlab" yaml:"gitlab"`
	GitHub GitHubConfig `json:"github" yaml:"github"`
	Review ReviewConfig `json:"review" yaml:"review"`
	// Rules replaces the built-in rules when set. RulesFile takes
	// precedence over it.
	Rules     *review.RuleSpec `json:"rules,omitempty" yaml:"rules,omitempty"`
	RulesFile string           `json:"rulesFile,omitempty" yaml:"rulesFile,omitempty"`
	Server    ServerConfig     `json:"server" yaml:"server"`
	Log       LogConfig        `json:"log" yaml:"log"`
}

// GitLabConfig holds the GitLab connection.
type GitLabConfig struct {
	URL            string `json:"url" yaml:"url"`
	Token          string `json:"token,omitempty" yaml:"token,omitempty"`
	WebhookSecret  string `json:"webhookSecret,omitempty" yaml:"webhookSecret,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// GitHubConfig holds the GitHub connection.
type GitHubConfig struct {
	APIURL        string `json:"apiUrl,omitempty" yaml:"apiUrl,omitempty"`
	Token         string `json:"token,omitempty" yaml:"token,omitempty"`
	WebhookSecret string `json:"webhookSecret,omitempty" yaml:"webhookSecret,omitempty"`
}

// ReviewConfig is the review policy.
type ReviewConfig struct {
	Enabled              bool `json:"enabled" yaml:"enabled"`
	AutoApproveThreshold int  `json:"autoApproveThreshold" yaml:"autoApproveThreshold"`
	// MinReviewers is accepted for compatibility and not enforced.
	MinReviewers      int `json:"minReviewers" yaml:"minReviewers"`
	MaxInlineComments int `json:"maxInlineComments" yaml:"maxInlineComments"`
	DelaySeconds      int `json:"delaySeconds" yaml:"delaySeconds"`
}

// ServerConfig controls the webhook server.
type ServerConfig struct {
	ListenAddr string `json:"listenAddr" yaml:"listenAddr"`
	Workers    int    `json:"workers" yaml:"workers"`
	// MaxPending caps reviews waiting to run; zero means no cap.
	MaxPending int `json:"maxPending,omitempty" yaml:"maxPending,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns a Config with all defaults applied. Review is disabled
// until explicitly enabled.
func Default() Config {
	return Config{
		GitLab: GitLabConfig{
			URL:            "https://gitlab.com",
			TimeoutSeconds: 30,
		},
		Review: ReviewConfig{
			AutoApproveThreshold: orchestrator.DefaultAutoApproveThreshold,
			MinReviewers:         1,
			MaxInlineComments:    orchestrator.DefaultMaxInlineComments,
			DelaySeconds:         int(orchestrator.DefaultReviewDelay / time.Second),
		},
		Server: ServerConfig{
			ListenAddr: ":3000",
			Workers:    4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatJSON,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for mrscan.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mrscan"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "mrscan"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "mrscan"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "mrscan"), nil
	default:
		return filepath.Join(home, ".config", "mrscan"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile loads config from the config file. Returns zero Config and nil error if file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, &review.ConfigError{Field: "configFile", Err: fmt.Errorf("parsing %s: %w", path, err)}
	}
	return cfg, nil
}

// Save writes the config to the config file. The file holds tokens, so it
// is created owner-readable only.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	cfg := Default()

	fileCfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, fileCfg)
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadDotEnv sets variables from DotEnvFile without overriding ones already
// in the environment. A missing file is not an error.
func loadDotEnv() error {
	if DotEnvFile == "" {
		return nil
	}
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", DotEnvFile, err)
	}
	return nil
}

func mergeFile(dst *Config, src Config) {
	if src.GitLab.URL != "" {
		dst.GitLab.URL = src.GitLab.URL
	}
	if src.GitLab.Token != "" {
		dst.GitLab.Token = src.GitLab.Token
	}
	if src.GitLab.WebhookSecret != "" {
		dst.GitLab.WebhookSecret = src.GitLab.WebhookSecret
	}
	if src.GitLab.TimeoutSeconds > 0 {
		dst.GitLab.TimeoutSeconds = src.GitLab.TimeoutSeconds
	}
	if src.GitHub.APIURL != "" {
		dst.GitHub.APIURL = src.GitHub.APIURL
	}
	if src.GitHub.Token != "" {
		dst.GitHub.Token = src.GitHub.Token
	}
	if src.GitHub.WebhookSecret != "" {
		dst.GitHub.WebhookSecret = src.GitHub.WebhookSecret
	}
	// The default is disabled, so a false in the file is indistinguishable
	// from an absent key and either leaves review disabled.
	dst.Review.Enabled = src.Review.Enabled || dst.Review.Enabled
	if src.Review.AutoApproveThreshold > 0 {
		dst.Review.AutoApproveThreshold = src.Review.AutoApproveThreshold
	}
	if src.Review.MinReviewers > 0 {
		dst.Review.MinReviewers = src.Review.MinReviewers
	}
	if src.Review.MaxInlineComments > 0 {
		dst.Review.MaxInlineComments = src.Review.MaxInlineComments
	}
	if src.Review.DelaySeconds > 0 {
		dst.Review.DelaySeconds = src.Review.DelaySeconds
	}
	if src.Rules != nil {
		dst.Rules = src.Rules
	}
	if src.RulesFile != "" {
		dst.RulesFile = src.RulesFile
	}
	if src.Server.ListenAddr != "" {
		dst.Server.ListenAddr = src.Server.ListenAddr
	}
	if src.Server.Workers > 0 {
		dst.Server.Workers = src.Server.Workers
	}
	if src.Server.MaxPending > 0 {
		dst.Server.MaxPending = src.Server.MaxPending
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
}

// envKeys maps environment variables to config keys understood by SetField.
var envKeys = []struct{ env, key string }{
	{"GITLAB_URL", "gitlab.url"},
	{"GITLAB_TOKEN", "gitlab.token"},
	{"GITLAB_WEBHOOK_SECRET", "gitlab.webhookSecret"},
	{"GITHUB_API_URL", "github.apiUrl"},
	{"GITHUB_TOKEN", "github.token"},
	{"GITHUB_WEBHOOK_SECRET", "github.webhookSecret"},
	{"AUTO_APPROVE_THRESHOLD", "review.autoApproveThreshold"},
	{"MIN_REVIEWERS", "review.minReviewers"},
	{"MRSCAN_REVIEW_DELAY_SECONDS", "review.delaySeconds"},
	{"MRSCAN_RULES_FILE", "rulesFile"},
	{"MRSCAN_WORKERS", "server.workers"},
	{"MRSCAN_MAX_PENDING", "server.maxPending"},
	{"LOG_LEVEL", "log.level"},
	{"MRSCAN_LOG_FORMAT", "log.format"},
}

func mergeEnv(cfg *Config) error {
	for _, e := range envKeys {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, e.key, v); err != nil {
			return &review.ConfigError{Field: e.env, Err: err}
		}
	}
	// Only the literal "true" enables review.
	if v, ok := os.LookupEnv("REVIEW_ENABLED"); ok {
		cfg.Review.Enabled = v == "true"
	}
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return &review.ConfigError{Field: "PORT", Err: fmt.Errorf("must be an integer: %w", err)}
		}
		cfg.Server.ListenAddr = ":" + v
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for key, v := range overrides {
		if v == "" {
			continue
		}
		if err := SetField(cfg, key, v); err != nil {
			return err
		}
	}
	return nil
}

// SetField sets a single config field by dotted key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "gitlab.url":
		cfg.GitLab.URL = value
	case "gitlab.token":
		cfg.GitLab.Token = value
	case "gitlab.webhookSecret":
		cfg.GitLab.WebhookSecret = value
	case "gitlab.timeoutSeconds":
		return setInt(&cfg.GitLab.TimeoutSeconds, key, value)
	case "github.apiUrl":
		cfg.GitHub.APIURL = value
	case "github.token":
		cfg.GitHub.Token = value
	case "github.webhookSecret":
		cfg.GitHub.WebhookSecret = value
	case "review.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be a boolean: %w", key, err)
		}
		cfg.Review.Enabled = b
	case "review.autoApproveThreshold":
		return setInt(&cfg.Review.AutoApproveThreshold, key, value)
	case "review.minReviewers":
		return setInt(&cfg.Review.MinReviewers, key, value)
	case "review.maxInlineComments":
		return setInt(&cfg.Review.MaxInlineComments, key, value)
	case "review.delaySeconds":
		return setInt(&cfg.Review.DelaySeconds, key, value)
	case "rulesFile":
		cfg.RulesFile = value
	case "server.listenAddr":
		cfg.Server.ListenAddr = value
	case "server.workers":
		return setInt(&cfg.Server.Workers, key, value)
	case "server.maxPending":
		return setInt(&cfg.Server.MaxPending, key, value)
	case "log.level":
		cfg.Log.Level = value
	case "log.format":
		cfg.Log.Format = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks value ranges. It does not compile the rules; see RuleSet.
func (c Config) Validate() error {
	checks := []struct {
		field string
		bad   bool
		msg   string
	}{
		{"review.autoApproveThreshold", c.Review.AutoApproveThreshold < 0 || c.Review.AutoApproveThreshold > review.MaxScore, "must be between 0 and 100"},
		{"review.minReviewers", c.Review.MinReviewers < 0, "must not be negative"},
		{"review.maxInlineComments", c.Review.MaxInlineComments < 0, "must not be negative"},
		{"review.delaySeconds", c.Review.DelaySeconds < 0, "must not be negative"},
		{"gitlab.timeoutSeconds", c.GitLab.TimeoutSeconds <= 0, "must be positive"},
		{"server.workers", c.Server.Workers <= 0, "must be positive"},
		{"server.maxPending", c.Server.MaxPending < 0, "must not be negative"},
		{"log.format", c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatConsole, "must be json or console"},
	}
	for _, chk := range checks {
		if chk.bad {
			return &review.ConfigError{Field: chk.field, Err: errors.New(chk.msg)}
		}
	}
	return nil
}

// RuleSet compiles the configured rules: the rules file when set, else the
// inline rules, else the defaults.
func (c Config) RuleSet() (*review.RuleSet, error) {
	switch {
	case c.RulesFile != "":
		spec, err := review.LoadRules(c.RulesFile)
		if err != nil {
			return nil, err
		}
		return review.NewRuleSet(spec)
	case c.Rules != nil:
		return review.NewRuleSet(*c.Rules)
	default:
		return review.DefaultRuleSet(), nil
	}
}

// ReviewSettings converts the review section to orchestrator settings.
func (c Config) ReviewSettings() orchestrator.Settings {
	return orchestrator.Settings{
		Enabled:              c.Review.Enabled,
		AutoApproveThreshold: c.Review.AutoApproveThreshold,
		MaxInlineComments:    c.Review.MaxInlineComments,
		ReviewDelay:          time.Duration(c.Review.DelaySeconds) * time.Second,
	}
}

// GitLabTimeout returns the GitLab API timeout.
func (c Config) GitLabTimeout() time.Duration {
	return time.Duration(c.GitLab.TimeoutSeconds) * time.Second
}

// Redacted returns a copy with credentials masked, for display.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "****"
		}
	}
	mask(&c.GitLab.Token)
	mask(&c.GitLab.WebhookSecret)
	mask(&c.GitHub.Token)
	mask(&c.GitHub.WebhookSecret)
	return c
}
