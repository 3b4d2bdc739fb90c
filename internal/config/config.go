// Package config carrega a configuração do gateway de admissão: arquivo YAML
// opcional, .env local e variáveis de ambiente com prefixo ADMISSION_.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "ADMISSION"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Stats     StatsConfig     `mapstructure:"stats"`
}

// Load lê a configuração. Com path vazio procura gateway.yaml em ./configs e
// no diretório atual; a ausência do arquivo não é erro.
//
// Variáveis de ambiente sobrescrevem o arquivo: server.listen_addr vira
// ADMISSION_SERVER_LISTEN_ADDR.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("gateway")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.upstream_url", "http://localhost:9000")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	// Rate limit defaults
	v.SetDefault("ratelimit.trust_forwarded_for", true)
	v.SetDefault("ratelimit.principal_header", "")
	v.SetDefault("ratelimit.retain_state", true)
	v.SetDefault("ratelimit.idle_ttl", 15*time.Minute)
	v.SetDefault("ratelimit.cleanup_every", 2*time.Minute)
	v.SetDefault("ratelimit.rules", defaultRules())

	// Stats defaults
	v.SetDefault("stats.enabled", false)
	v.SetDefault("stats.backend", "memory")
	v.SetDefault("stats.redis.addr", "localhost:6379")
	v.SetDefault("stats.redis.password", "")
	v.SetDefault("stats.redis.db", 0)
	v.SetDefault("stats.prefix", "admission:stats")
	v.SetDefault("stats.ttl", 24*time.Hour)
	v.SetDefault("stats.bucket", "minute")
	v.SetDefault("stats.track_keys", false)
}

// defaultRules são as três ações de escrita do fórum.
func defaultRules() []map[string]any {
	return []map[string]any{
		{
			"name":        "comments:create",
			"method":      "POST",
			"pattern":     "/posts/{postID}/comments",
			"strategy":    "token_bucket",
			"max":         10,
			"interval_ms": 60_000,
		},
		{
			"name":        "votes:create",
			"method":      "POST",
			"pattern":     "/posts/{postID}/votes",
			"strategy":    "fixed_window",
			"limit":       30,
			"window_ms":   60_000,
			"extra_param": "postID",
		},
		{
			"name":      "password:reset",
			"method":    "POST",
			"pattern":   "/auth/password/reset",
			"strategy":  "fixed_window",
			"limit":     5,
			"window_ms": 15 * 60_000,
		},
	}
}

// Validate rejeita valores que o gateway não consegue usar.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return errors.New("server.listen_addr is required")
	}
	u, err := url.Parse(c.Server.UpstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.upstream_url must be an absolute URL, got %q", c.Server.UpstreamURL)
	}

	switch strings.ToLower(c.Logger.Format) {
	case "console", "json", "":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}

	if c.RateLimit.IdleTTL <= 0 {
		return errors.New("ratelimit.idle_ttl must be > 0")
	}
	if c.RateLimit.CleanupEvery <= 0 {
		return errors.New("ratelimit.cleanup_every must be > 0")
	}
	if _, err := c.RateLimit.Routes(); err != nil {
		return err
	}

	if c.Stats.Enabled {
		switch c.Stats.Backend {
		case "memory":
		case "redis":
			if strings.TrimSpace(c.Stats.Redis.Addr) == "" {
				return errors.New("stats.redis.addr is required when stats.backend=redis")
			}
		default:
			return fmt.Errorf("stats.backend must be memory or redis, got %q", c.Stats.Backend)
		}
	}
	return nil
}
