package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. CARPRICE_PORT
const EnvPrefix = "CARPRICE"

// DefaultModelPath is where the trained pipeline is looked up when nothing
// else is configured
const DefaultModelPath = "Model/model_pipeline.json"

// Config holds the application configuration
type Config struct {
	AppName      string   `mapstructure:"app_name"`
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ModelPath    string   `mapstructure:"model_path"`
	TrustedTypes []string `mapstructure:"trusted_types"`
	PresetsDir   string   `mapstructure:"presets_dir"`
	AuditDB      string   `mapstructure:"audit_db"`
	CacheMB      int      `mapstructure:"cache_mb"`
	StatsdAddr   string   `mapstructure:"statsd_addr"`
	LogLevel     string   `mapstructure:"log_level"`
	Version      string   `mapstructure:"-"`
}

// SetDefaults registers the default for every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "carprice")
	v.SetDefault("host", "")
	v.SetDefault("port", 7860)
	v.SetDefault("model_path", DefaultModelPath)
	v.SetDefault("trusted_types", []string{})
	v.SetDefault("presets_dir", "")
	v.SetDefault("audit_db", "")
	v.SetDefault("cache_mb", 0)
	v.SetDefault("statsd_addr", "")
	v.SetDefault("log_level", "INFO")
}

// New returns a viper instance with defaults and environment binding applied
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and decodes the result.
// An empty path looks for carprice.yaml in the working directory and is
// silently skipped when absent.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("carprice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	// comma separated lists arrive as a single string from the environment
	cfg.TrustedTypes = splitList(v.GetStringSlice("trusted_types"))
	return Sanitize(cfg), nil
}

// Sanitize clamps out of range values back to usable ones
func Sanitize(cfg Config) Config {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = 7860
	}
	if cfg.CacheMB < 0 {
		cfg.CacheMB = 0
	}
	if cfg.CacheMB > 1024 {
		cfg.CacheMB = 1024
	}
	if strings.TrimSpace(cfg.ModelPath) == "" {
		cfg.ModelPath = DefaultModelPath
	}
	if strings.TrimSpace(cfg.AppName) == "" {
		cfg.AppName = "carprice"
	}
	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))
	return cfg
}

// Addr returns the listen address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
