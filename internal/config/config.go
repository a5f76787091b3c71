package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Addr        string
	DBPath      string // CVE store
	AuditDBPath string // audit log and scan run history

	OllamaURL       string
	OllamaModel     string
	ProbeTimeout    time.Duration
	GenerateTimeout time.Duration
	RetryDelay      time.Duration
	ProbeTTL        time.Duration
	Temperature     float64
	MaxTokens       int

	Debug bool
	Trace bool
}

// fileConfig mirrors Config in the YAML file named by ZT_CONFIG.
type fileConfig struct {
	Addr        string `yaml:"addr"`
	DBPath      string `yaml:"db_path"`
	AuditDBPath string `yaml:"audit_db_path"`
	Ollama      struct {
		URL             string  `yaml:"url"`
		Model           string  `yaml:"model"`
		ProbeTimeout    string  `yaml:"probe_timeout"`
		GenerateTimeout string  `yaml:"generate_timeout"`
		RetryDelay      string  `yaml:"retry_delay"`
		ProbeTTL        string  `yaml:"probe_ttl"`
		Temperature     float64 `yaml:"temperature"`
		MaxTokens       int     `yaml:"max_tokens"`
	} `yaml:"ollama"`
	Debug *bool `yaml:"debug"`
	Trace *bool `yaml:"trace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := getDefaultDataDir()
	return &Config{
		Addr:            ":8080",
		DBPath:          filepath.Join(dir, "cve_database.db"),
		AuditDBPath:     filepath.Join(dir, "audit.db"),
		OllamaURL:       "http://localhost:11434",
		OllamaModel:     "llama3",
		ProbeTimeout:    5 * time.Second,
		GenerateTimeout: 30 * time.Second,
		RetryDelay:      time.Second,
		Temperature:     0.7,
		MaxTokens:       300,
	}
}

// Load reads .env, then resolves configuration from os.Args.
// Flags take precedence over environment variables, which take precedence over
// the YAML file named by ZT_CONFIG.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, err := Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Parse builds a Config from defaults, the ZT_CONFIG file, ZT_* variables and args.
func Parse(args []string) (*Config, error) {
	cfg := Default()

	if path := os.Getenv("ZT_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	// Environment Variables
	cfg.Addr = getEnv("ZT_ADDR", cfg.Addr)
	cfg.DBPath = getEnv("ZT_DB", cfg.DBPath)
	cfg.AuditDBPath = getEnv("ZT_AUDIT_DB", cfg.AuditDBPath)
	cfg.OllamaURL = getEnv("ZT_OLLAMA_URL", cfg.OllamaURL)
	cfg.OllamaModel = getEnv("ZT_OLLAMA_MODEL", cfg.OllamaModel)
	cfg.ProbeTimeout = getEnvDuration("ZT_PROBE_TIMEOUT", cfg.ProbeTimeout)
	cfg.GenerateTimeout = getEnvDuration("ZT_GENERATE_TIMEOUT", cfg.GenerateTimeout)
	cfg.RetryDelay = getEnvDuration("ZT_RETRY_DELAY", cfg.RetryDelay)
	cfg.ProbeTTL = getEnvDuration("ZT_PROBE_TTL", cfg.ProbeTTL)
	cfg.Temperature = getEnvFloat("ZT_TEMPERATURE", cfg.Temperature)
	cfg.MaxTokens = int(getEnvFloat("ZT_MAX_TOKENS", float64(cfg.MaxTokens)))
	cfg.Debug = getEnvBool("ZT_DEBUG", cfg.Debug)
	cfg.Trace = getEnvBool("ZT_TRACE", cfg.Trace)

	// Command Line Flags (Override Env)
	fs := flag.NewFlagSet("zerotrace", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the CVE SQLite database")
	fs.StringVar(&cfg.AuditDBPath, "audit-db", cfg.AuditDBPath, "Path to the audit SQLite database")
	fs.StringVar(&cfg.OllamaURL, "ollama-url", cfg.OllamaURL, "Ollama base URL")
	fs.StringVar(&cfg.OllamaModel, "model", cfg.OllamaModel, "Ollama model name")
	fs.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "Ollama availability probe timeout")
	fs.DurationVar(&cfg.GenerateTimeout, "generate-timeout", cfg.GenerateTimeout, "Action plan generation timeout")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Pause before retrying a failed generation")
	fs.DurationVar(&cfg.ProbeTTL, "probe-ttl", cfg.ProbeTTL, "Cache a successful probe for this long (0 disables)")
	fs.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature")
	fs.IntVar(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, "Maximum tokens per action plan")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")
	fs.BoolVar(&cfg.Trace, "trace", cfg.Trace, "Export traces to stdout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Addr, fc.Addr)
	setString(&c.DBPath, fc.DBPath)
	setString(&c.AuditDBPath, fc.AuditDBPath)
	setString(&c.OllamaURL, fc.Ollama.URL)
	setString(&c.OllamaModel, fc.Ollama.Model)

	durations := []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&c.ProbeTimeout, fc.Ollama.ProbeTimeout, "ollama.probe_timeout"},
		{&c.GenerateTimeout, fc.Ollama.GenerateTimeout, "ollama.generate_timeout"},
		{&c.RetryDelay, fc.Ollama.RetryDelay, "ollama.retry_delay"},
		{&c.ProbeTTL, fc.Ollama.ProbeTTL, "ollama.probe_ttl"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}

	if fc.Ollama.Temperature != 0 {
		c.Temperature = fc.Ollama.Temperature
	}
	if fc.Ollama.MaxTokens > 0 {
		c.MaxTokens = fc.Ollama.MaxTokens
	}
	if fc.Debug != nil {
		c.Debug = *fc.Debug
	}
	if fc.Trace != nil {
		c.Trace = *fc.Trace
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getDefaultDataDir returns ~/.zerotrace, creating it if needed.
// Falls back to the current directory.
func getDefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "."
	}

	dir := filepath.Join(home, ".zerotrace")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .zerotrace directory, using current dir: %v", err)
		return "."
	}

	return dir
}
