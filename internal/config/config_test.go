package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate runs the test from an empty directory with no provider variables set
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, names := range envBindings {
		for _, name := range names {
			t.Setenv(name, "")
		}
	}
	t.Setenv("POSTFETCH_PROVIDER", "")
	t.Setenv("POSTFETCH_TIMEOUT", "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if cfg.Provider != "openrouter" {
		t.Errorf("Expected default provider 'openrouter', got '%s'", cfg.Provider)
	}
	if cfg.Timeout != 30 {
		t.Errorf("Expected default timeout 30, got %d", cfg.Timeout)
	}
	if cfg.Providers["xai"].BaseURL != "https://api.x.ai" {
		t.Errorf("Unexpected xai base URL: %s", cfg.Providers["xai"].BaseURL)
	}
	if cfg.Providers["openrouter"].PathSuffix != "/api/v1/chat/completions" {
		t.Errorf("Unexpected openrouter path: %s", cfg.Providers["openrouter"].PathSuffix)
	}
	if got := HeaderValue(cfg.Providers["openrouter"].Headers, "HTTP-Referer"); got != "https://github.com/everything-claude-code" {
		t.Errorf("Expected default HTTP-Referer header, got %q", got)
	}
	if HeaderValue(cfg.Providers["openrouter"].Headers, "X-Title") != "X.com Post Fetcher" {
		t.Errorf("Expected default X-Title header, got %v", cfg.Providers["openrouter"].Headers)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected default log level 'warn', got '%s'", cfg.Logging.Level)
	}
	if cfg.Archive.Enabled {
		t.Error("Expected archive to be disabled by default")
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Run("Grok key takes priority over xAI key", func(t *testing.T) {
		isolate(t)
		t.Setenv("GROK_API_KEY", "grok-key")
		t.Setenv("XAI_API_KEY", "xai-key")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if cfg.Providers["xai"].APIKey != "grok-key" {
			t.Errorf("Expected 'grok-key', got '%s'", cfg.Providers["xai"].APIKey)
		}
	})

	t.Run("xAI key fallback", func(t *testing.T) {
		isolate(t)
		t.Setenv("XAI_API_KEY", "xai-key")

		cfg, _ := Load("")
		if cfg.Providers["xai"].APIKey != "xai-key" {
			t.Errorf("Expected 'xai-key', got '%s'", cfg.Providers["xai"].APIKey)
		}
	})

	t.Run("Model and base URL", func(t *testing.T) {
		isolate(t)
		t.Setenv("GROK_MODEL", "grok-4-fast-non-reasoning")
		t.Setenv("OPENROUTER_BASE_URL", "http://localhost:9999")
		t.Setenv("POSTFETCH_TIMEOUT", "5")

		cfg, _ := Load("")
		if cfg.Providers["xai"].Model != "grok-4-fast-non-reasoning" {
			t.Errorf("Unexpected xai model: %s", cfg.Providers["xai"].Model)
		}
		if cfg.Providers["openrouter"].BaseURL != "http://localhost:9999" {
			t.Errorf("Unexpected openrouter base URL: %s", cfg.Providers["openrouter"].BaseURL)
		}
		if cfg.Timeout != 5 {
			t.Errorf("Expected timeout 5, got %d", cfg.Timeout)
		}
	})

	t.Run("Dotenv file", func(t *testing.T) {
		dir := isolate(t)
		os.Unsetenv("OPENROUTER_API_KEY")
		if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENROUTER_API_KEY=\"sk-or-v1-test\"\n"), 0600); err != nil {
			t.Fatalf("Failed to write .env: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv("OPENROUTER_API_KEY") })

		cfg, _ := Load("")
		if cfg.Providers["openrouter"].APIKey != "sk-or-v1-test" {
			t.Errorf("Expected key from .env, got '%s'", cfg.Providers["openrouter"].APIKey)
		}
	})
}

func TestLoad_File(t *testing.T) {
	t.Run("YAML overrides defaults", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "custom.yaml")
		yaml := `provider: xai
timeout: 12
providers:
  xai:
    api_key: from-file
archive:
  enabled: true
  path: ./fetches.db
`
		if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if cfg.Provider != "xai" || cfg.Timeout != 12 {
			t.Errorf("Unexpected provider/timeout: %s/%d", cfg.Provider, cfg.Timeout)
		}
		if cfg.Providers["xai"].APIKey != "from-file" {
			t.Errorf("Expected api key from file, got '%s'", cfg.Providers["xai"].APIKey)
		}
		if cfg.Providers["xai"].BaseURL != "https://api.x.ai" {
			t.Errorf("Expected default base URL to survive, got '%s'", cfg.Providers["xai"].BaseURL)
		}
		if !cfg.Archive.Enabled || cfg.Archive.Path != "./fetches.db" {
			t.Errorf("Unexpected archive config: %+v", cfg.Archive)
		}
	})

	t.Run("Explicit missing file", func(t *testing.T) {
		dir := isolate(t)
		if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
			t.Error("Expected error for missing explicit config file")
		}
	})
}

func TestValidate(t *testing.T) {
	isolate(t)

	t.Run("Missing API key", func(t *testing.T) {
		cfg, _ := Load("")

		err := cfg.Validate("openrouter")
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Expected ValidationError, got %v", err)
		}
		if len(verr.Problems) != 1 || verr.Problems[0].Key != "providers.openrouter.api_key" {
			t.Fatalf("Unexpected problems: %+v", verr.Problems)
		}
		if !strings.Contains(verr.Problems[0].Reason, "OPENROUTER_API_KEY") {
			t.Errorf("Expected env hint, got '%s'", verr.Problems[0].Reason)
		}
	})

	t.Run("All problems reported", func(t *testing.T) {
		cfg := &Config{
			Timeout: 0,
			Providers: map[string]ProviderConfig{
				"openrouter": {BaseURL: "openrouter.ai", PathSuffix: "api/v1"},
			},
		}

		err := cfg.Validate("openrouter")
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Expected ValidationError, got %v", err)
		}

		keys := map[string]bool{}
		for _, p := range verr.Problems {
			keys[p.Key] = true
		}
		for _, want := range []string{
			"timeout",
			"providers.openrouter.api_key",
			"providers.openrouter.base_url",
			"providers.openrouter.path_suffix",
			"providers.openrouter.headers",
			"providers.openrouter.model",
		} {
			if !keys[want] {
				t.Errorf("Expected problem for %s, got %+v", want, verr.Problems)
			}
		}
	})

	t.Run("Unknown provider", func(t *testing.T) {
		cfg, _ := Load("")
		if err := cfg.Validate("bard"); err == nil {
			t.Error("Expected error for unknown provider")
		}
	})
}

func TestRequestConfig(t *testing.T) {
	isolate(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	t.Run("Defaults", func(t *testing.T) {
		rc, err := cfg.RequestConfig("openrouter", "")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if rc.Endpoint() != "https://openrouter.ai/api/v1/chat/completions" {
			t.Errorf("Unexpected endpoint: %s", rc.Endpoint())
		}
		if rc.APIKey != "sk-or" {
			t.Errorf("Unexpected API key: %s", rc.APIKey)
		}
		if rc.Timeout != 30*time.Second {
			t.Errorf("Unexpected timeout: %s", rc.Timeout)
		}
		if rc.Headers["HTTP-Referer"] == "" || rc.Headers["X-Title"] == "" {
			t.Errorf("Expected attribution headers under canonical names, got %v", rc.Headers)
		}
		if rc.Model != "x-ai/grok-4.1-fast:online" {
			t.Errorf("Unexpected model: %s", rc.Model)
		}
	})

	t.Run("Model override", func(t *testing.T) {
		rc, err := cfg.RequestConfig("openrouter", "x-ai/grok-4-fast:online")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if rc.Model != "x-ai/grok-4-fast:online" {
			t.Errorf("Expected override model, got %s", rc.Model)
		}
	})

	t.Run("Invalid provider config", func(t *testing.T) {
		if _, err := cfg.RequestConfig("xai", ""); err == nil {
			t.Error("Expected error for xai without key")
		}
	})
}
