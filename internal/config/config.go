// Package config loads .promptforge/config.yaml, the working directory's
// .env file and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/saeedalam/promptforge/pkg/types"
)

// Dir is the workspace directory holding config, database and builds.
const Dir = ".promptforge"

// FileName is the config file inside Dir.
const FileName = "config.yaml"

type Config struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	MaxRetries int    `yaml:"max_retries"`
	MaxTokens  int    `yaml:"max_tokens"`
	OutputDir  string `yaml:"output_dir"`
	LogDir     string `yaml:"log_dir"`

	Planning  PlanningConfig      `yaml:"planning"`
	Branding  BrandingConfig      `yaml:"branding"`
	Packagers map[string][]string `yaml:"packagers,omitempty"`
	Artifacts ArtifactConfig      `yaml:"artifacts"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	Logging   LoggingConfig       `yaml:"logging"`

	// Secrets come from the environment only.
	AnthropicAPIKey string `yaml:"-"`
	AnthropicURL    string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
	OllamaHost      string `yaml:"-"`
}

type PlanningConfig struct {
	Enabled bool `yaml:"enabled"`
}

type BrandingConfig struct {
	Marker string `yaml:"marker,omitempty"`
	URL    string `yaml:"url,omitempty"`
}

type ArtifactConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
	File  string `yaml:"file,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Provider:   "anthropic",
		MaxRetries: 3,
		OutputDir:  filepath.Join(Dir, "builds"),
		LogDir:     filepath.Join(Dir, "logs"),
		Planning:   PlanningConfig{Enabled: true},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Path returns the config file location under root.
func Path(root string) string {
	return filepath.Join(root, Dir, FileName)
}

// Load reads the config under root. A missing file yields defaults; .env in
// root is applied to the environment before overrides are read.
func Load(root string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(root, ".env"))

	cfg := Default()
	data, err := os.ReadFile(Path(root))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", Path(root), err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	cfg.resolve(root)
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.Provider = firstNonEmpty(os.Getenv("PROMPTFORGE_PROVIDER"), c.Provider)
	c.Model = firstNonEmpty(os.Getenv("PROMPTFORGE_MODEL"), c.Model)
	if v := strings.TrimSpace(os.Getenv("PROMPTFORGE_MAX_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	c.AnthropicAPIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	c.AnthropicURL = strings.TrimSpace(os.Getenv("PROMPTFORGE_ANTHROPIC_URL"))
	c.GeminiAPIKey = firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
	c.OllamaHost = strings.TrimSpace(os.Getenv("OLLAMA_HOST"))
}

// resolve makes relative directories relative to root.
func (c *Config) resolve(root string) {
	for _, p := range []*string{&c.OutputDir, &c.LogDir, &c.Metrics.Textfile, &c.Logging.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}

// Validate rejects values no build could use.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be >= 0, got %d", c.MaxTokens)
	}
	if strings.ContainsAny(c.Branding.Marker, "\r\n") {
		return fmt.Errorf("branding.marker must be a single line")
	}
	for name := range c.Packagers {
		if _, ok := types.ParseFramework(name); !ok {
			return fmt.Errorf("packagers: unknown framework %q", name)
		}
	}
	return nil
}

// PackagerCommands returns the packager table keyed by framework.
func (c *Config) PackagerCommands() map[types.Framework][]string {
	out := make(map[types.Framework][]string, len(c.Packagers))
	for name, argv := range c.Packagers {
		if fw, ok := types.ParseFramework(name); ok && len(argv) > 0 {
			out[fw] = argv
		}
	}
	return out
}

// Save writes the config to root, creating the workspace directory.
func (c *Config) Save(root string) error {
	if err := os.MkdirAll(filepath.Join(root, Dir), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(root), data, 0644)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
