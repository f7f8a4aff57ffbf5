package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Blob       BlobConfig          `yaml:"blob" mapstructure:"blob"`
	Sheet      SheetConfig         `yaml:"sheet" mapstructure:"sheet"`
	Anthropic  AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Audit      AuditConfig         `yaml:"audit" mapstructure:"audit"`
	Report     ReportConfig        `yaml:"report" mapstructure:"report"`
	SMTP       SMTPConfig          `yaml:"smtp" mapstructure:"smtp"`
	Recipients map[string][]string `yaml:"recipients" mapstructure:"recipients"` // obra → emails
	Server     ServerConfig        `yaml:"server" mapstructure:"server"`
	Log        LogConfig           `yaml:"log" mapstructure:"log"`
}

// BlobConfig selects and configures the object store backend.
type BlobConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "fs", "sqlite" or "ftp"
	Root   string `yaml:"root" mapstructure:"root"`     // fs directory or ftp remote root
	DSN    string `yaml:"dsn" mapstructure:"dsn"`       // sqlite file path

	FTPHost     string `yaml:"ftp_host" mapstructure:"ftp_host"`
	FTPUser     string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// SheetConfig configures the tabular source the reference rows come from.
type SheetConfig struct {
	ExportURL   string  `yaml:"export_url" mapstructure:"export_url"` // xlsx/csv export endpoint
	SheetName   string  `yaml:"sheet_name" mapstructure:"sheet_name"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	Model          string `yaml:"model" mapstructure:"model"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	PromptCacheTTL string `yaml:"prompt_cache_ttl" mapstructure:"prompt_cache_ttl"`
}

// AuditConfig holds the decision-engine knobs. The prompt revisions
// historically disagreed on thresholds, so none of these are hard-coded.
type AuditConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	DateToleranceDays   int     `yaml:"date_tolerance_days" mapstructure:"date_tolerance_days"`
	QuantityEpsilon     float64 `yaml:"quantity_epsilon" mapstructure:"quantity_epsilon"`
	MaxRetries          int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs    int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	QualityGate         bool    `yaml:"quality_gate" mapstructure:"quality_gate"`
	TempDir             string  `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// ReportConfig configures XLSX report generation.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// SMTPConfig configures report email delivery.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	From     string `yaml:"from" mapstructure:"from"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VALEAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.root", "./data")
	v.SetDefault("blob.dsn", "./data/vale-audit.db")
	v.SetDefault("sheet.sheet_name", "vales")
	v.SetDefault("sheet.timeout_secs", 60)
	v.SetDefault("sheet.max_retries", 3)
	v.SetDefault("sheet.rate_per_sec", 1.0)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.prompt_cache_ttl", "5m")
	v.SetDefault("audit.confidence_threshold", 0.7)
	v.SetDefault("audit.date_tolerance_days", 2)
	v.SetDefault("audit.quantity_epsilon", 0.01)
	v.SetDefault("audit.max_retries", 4)
	v.SetDefault("audit.initial_backoff_ms", 1000)
	v.SetDefault("audit.quality_gate", true)
	v.SetDefault("report.output_dir", "./reports")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
