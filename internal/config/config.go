package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	mysqlstore "github.com/bryanwahyu/saqr/internal/infra/db/mysql"
	pgstore "github.com/bryanwahyu/saqr/internal/infra/db/postgres"
)

// Provider names as used in providers.order.
const (
	Gemini    = "gemini"
	OpenAI    = "openai"
	Anthropic = "anthropic"
)

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"readTimeout"`
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		MaxBodyMB    int           `yaml:"maxBodyMB"`
		CORSOrigins  []string      `yaml:"corsOrigins"`
	} `yaml:"server"`

	Auth struct {
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity        int     `yaml:"capacity"`
		RefillPerSecond float64 `yaml:"refillPerSecond"`
	} `yaml:"rateLimit"`

	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Providers struct {
		Order     []string `yaml:"order"`
		Gemini    Provider `yaml:"gemini"`
		OpenAI    Provider `yaml:"openai"`
		Anthropic Provider `yaml:"anthropic"`
	} `yaml:"providers"`

	Analysis struct {
		MinDeadline   time.Duration `yaml:"minDeadline"`
		MaxDeadline   time.Duration `yaml:"maxDeadline"`
		DeadlinePerMB time.Duration `yaml:"deadlinePerMB"`
		MaxImageMB    int           `yaml:"maxImageMB"`
	} `yaml:"analysis"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Provider is the per-provider section. A provider without apiKey stays out
// of the registry.
type Provider struct {
	APIKey          string   `yaml:"apiKey"`
	BaseURL         string   `yaml:"baseURL"`
	Models          []string `yaml:"models"`
	MaxTokens       int      `yaml:"maxTokens"`
	ConfidenceScale string   `yaml:"confidenceScale"`
}

// Load baca file config.yaml, lalu env override dan default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document and applies env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Providers.Gemini.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Providers.Anthropic.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Analysis.MinDeadline == 0 {
		c.Analysis.MinDeadline = 30 * time.Second
	}
	if c.Analysis.MaxDeadline == 0 {
		c.Analysis.MaxDeadline = 120 * time.Second
	}
	if c.Analysis.DeadlinePerMB == 0 {
		c.Analysis.DeadlinePerMB = 15 * time.Second
	}
	if c.Analysis.MaxImageMB == 0 {
		c.Analysis.MaxImageMB = 20
	}
	// the handler must outlive the slowest analysis
	if c.Server.WriteTimeout <= c.Analysis.MaxDeadline {
		c.Server.WriteTimeout = c.Analysis.MaxDeadline + 15*time.Second
	}
	if c.Server.MaxBodyMB == 0 {
		// base64 inflates binary payloads by a third
		c.Server.MaxBodyMB = c.Analysis.MaxImageMB*4/3 + 1
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 30
	}
	if c.RateLimit.RefillPerSecond == 0 {
		c.RateLimit.RefillPerSecond = 0.5
	}
	if len(c.Providers.Order) == 0 {
		c.Providers.Order = []string{Gemini, OpenAI, Anthropic}
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "mysql":
			c.Database.Port = 3306
		case "postgres":
			c.Database.Port = 5432
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Analysis.MinDeadline > c.Analysis.MaxDeadline {
		return fmt.Errorf("analysis.minDeadline %s exceeds maxDeadline %s", c.Analysis.MinDeadline, c.Analysis.MaxDeadline)
	}
	seen := make(map[string]bool, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		if _, ok := c.Provider(name); !ok {
			return fmt.Errorf("unknown provider %q in providers.order", name)
		}
		if seen[name] {
			return fmt.Errorf("provider %q listed twice in providers.order", name)
		}
		seen[name] = true
	}
	for _, name := range []string{Gemini, OpenAI, Anthropic} {
		p, _ := c.Provider(name)
		switch p.ConfidenceScale {
		case "", "percent", "unit":
		default:
			return fmt.Errorf("providers.%s.confidenceScale must be percent or unit", name)
		}
	}
	return nil
}

// Provider returns the section for a provider name.
func (c *Config) Provider(name string) (Provider, bool) {
	switch name {
	case Gemini:
		return c.Providers.Gemini, true
	case OpenAI:
		return c.Providers.OpenAI, true
	case Anthropic:
		return c.Providers.Anthropic, true
	}
	return Provider{}, false
}

// DSN builds the connection string for the configured driver.
func (c *Config) DSN() string {
	db := c.Database
	if db.Driver == "postgres" {
		return pgstore.DSN(db.User, db.Password, db.Host, db.Port, db.Name, db.SSLMode)
	}
	return c.MySQLDSN()
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	db := c.Database
	return mysqlstore.DSN(db.User, db.Password, db.Host, db.Port, db.Name)
}

// MaxBodyBytes is the request body limit in bytes.
func (c *Config) MaxBodyBytes() int64 {
	return int64(c.Server.MaxBodyMB) << 20
}
