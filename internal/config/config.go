package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/young1lin/postfetch/internal/fetcher"
	"github.com/young1lin/postfetch/internal/provider"
)

type Config struct {
	Provider  string                    `mapstructure:"provider"`
	Timeout   int                       `mapstructure:"timeout"` // seconds
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Archive   ArchiveConfig             `mapstructure:"archive"`
}

// ProviderConfig represents one upstream chat-completion provider
type ProviderConfig struct {
	BaseURL    string            `mapstructure:"base_url"`
	PathSuffix string            `mapstructure:"path_suffix"`
	APIKey     string            `mapstructure:"api_key"`
	Model      string            `mapstructure:"model"`
	Headers    map[string]string `mapstructure:"headers"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ArchiveConfig controls the local fetch archive
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// envBindings maps config keys to the variable names operators already use.
// Earlier names win.
var envBindings = map[string][]string{
	"providers.xai.api_key":         {"GROK_API_KEY", "XAI_API_KEY"},
	"providers.xai.model":           {"GROK_MODEL"},
	"providers.xai.base_url":        {"XAI_BASE_URL"},
	"providers.openrouter.api_key":  {"OPENROUTER_API_KEY"},
	"providers.openrouter.model":    {"GROK_MODEL"},
	"providers.openrouter.base_url": {"OPENROUTER_BASE_URL"},
}

// Load reads configuration from .env files, the environment and a YAML file.
// When cfgFile is empty the default locations are searched and a missing file
// is not an error.
func Load(cfgFile string) (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	// Replace . with _ for nested config keys, e.g. POSTFETCH_LOGGING_LEVEL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("POSTFETCH")
	v.AutomaticEnv()

	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("postfetch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.config/postfetch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openrouter")
	v.SetDefault("timeout", 30)

	for _, name := range provider.Names() {
		p, _ := provider.Lookup(name)
		v.SetDefault("providers."+name+".base_url", p.DefaultBaseURL)
		v.SetDefault("providers."+name+".path_suffix", p.DefaultPath)
		v.SetDefault("providers."+name+".model", p.DefaultModel)
	}
	v.SetDefault("providers.openrouter.headers", map[string]string{
		"HTTP-Referer": "https://github.com/everything-claude-code",
		"X-Title":      "X.com Post Fetcher",
	})

	// Logging defaults; warn keeps stderr quiet for the operator
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "./data/postfetch.db")
}

// Problem describes one missing or malformed configuration key
type Problem struct {
	Key    string
	Reason string
}

// ValidationError lists every problem found in a configuration
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("%s: %s", p.Key, p.Reason)
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Validate checks everything needed to call providerName. All problems are
// reported at once.
func (c *Config) Validate(providerName string) error {
	var problems []Problem

	if c.Timeout <= 0 {
		problems = append(problems, Problem{Key: "timeout", Reason: fmt.Sprintf("must be positive, got %d", c.Timeout)})
	}

	profile, err := provider.Lookup(providerName)
	if err != nil {
		problems = append(problems, Problem{Key: "provider", Reason: err.Error()})
		return &ValidationError{Problems: problems}
	}

	key := "providers." + profile.Name
	pc := c.Providers[profile.Name]

	if pc.APIKey == "" {
		problems = append(problems, Problem{Key: key + ".api_key", Reason: "not set" + envHint(key+".api_key")})
	}
	if u, err := url.Parse(pc.BaseURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		problems = append(problems, Problem{Key: key + ".base_url", Reason: fmt.Sprintf("must be an absolute http(s) URL, got %q", pc.BaseURL)})
	}
	if !strings.HasPrefix(pc.PathSuffix, "/") {
		problems = append(problems, Problem{Key: key + ".path_suffix", Reason: fmt.Sprintf("must start with '/', got %q", pc.PathSuffix)})
	}
	for _, name := range profile.ExtraHeaders {
		if HeaderValue(pc.Headers, name) == "" {
			problems = append(problems, Problem{Key: key + ".headers", Reason: fmt.Sprintf("missing required header %q", name)})
		}
	}
	if pc.Model == "" {
		problems = append(problems, Problem{Key: key + ".model", Reason: "not set"})
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// RequestConfig validates the configuration for providerName and builds the
// executor input. modelOverride, when set, replaces the configured model.
func (c *Config) RequestConfig(providerName, modelOverride string) (fetcher.RequestConfig, error) {
	if err := c.Validate(providerName); err != nil {
		return fetcher.RequestConfig{}, err
	}

	profile, _ := provider.Lookup(providerName)
	pc := c.Providers[profile.Name]

	headers := make(map[string]string, len(pc.Headers))
	for k, v := range pc.Headers {
		headers[k] = v
	}
	for _, name := range profile.ExtraHeaders {
		value := HeaderValue(headers, name)
		for k := range headers {
			if strings.EqualFold(k, name) {
				delete(headers, k)
			}
		}
		headers[name] = value
	}

	model := pc.Model
	if modelOverride != "" {
		model = modelOverride
	}

	return fetcher.RequestConfig{
		Profile:    profile,
		BaseURL:    pc.BaseURL,
		PathSuffix: pc.PathSuffix,
		APIKey:     pc.APIKey,
		Model:      model,
		Headers:    headers,
		Timeout:    time.Duration(c.Timeout) * time.Second,
	}, nil
}

// HeaderValue looks up a header by name ignoring case; viper lowercases map keys
func HeaderValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func envHint(key string) string {
	names, ok := envBindings[key]
	if !ok {
		return ""
	}
	return " (set " + strings.Join(names, " or ") + ")"
}
