package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Encoder    EncoderConfig    `mapstructure:"encoder"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodySize  int64         `mapstructure:"max_body_size"`
}

type OpenSearchConfig struct {
	URL            string        `mapstructure:"url"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TLSSkipVerify  bool          `mapstructure:"tls_skip_verify"`
	IndexName      string        `mapstructure:"index_name"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

type EncoderConfig struct {
	ModelDir         string `mapstructure:"model_dir"`
	LibraryPath      string `mapstructure:"library_path"`
	MaxSeqLength     int    `mapstructure:"max_seq_length"`
	VectorDimensions int    `mapstructure:"vector_dimensions"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file, with environment
// variables (prefix EVENT_INGEST) overriding file values and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_size", 10485760)
	v.SetDefault("opensearch.url", "http://localhost:9200")
	v.SetDefault("opensearch.username", "")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.tls_skip_verify", false)
	v.SetDefault("opensearch.index_name", "events")
	v.SetDefault("opensearch.request_timeout", "30s")
	v.SetDefault("opensearch.max_retries", 3)
	v.SetDefault("encoder.model_dir", "/var/lib/event-ingest/model")
	v.SetDefault("encoder.library_path", "")
	v.SetDefault("encoder.max_seq_length", 512)
	v.SetDefault("encoder.vector_dimensions", 768)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/event-ingest")
	}

	// Environment variables override
	v.SetEnvPrefix("EVENT_INGEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Encoder.VectorDimensions <= 0 {
		return nil, fmt.Errorf("encoder.vector_dimensions must be positive, got %d", cfg.Encoder.VectorDimensions)
	}
	if cfg.Encoder.MaxSeqLength <= 0 {
		return nil, fmt.Errorf("encoder.max_seq_length must be positive, got %d", cfg.Encoder.MaxSeqLength)
	}

	return &cfg, nil
}
