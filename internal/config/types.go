package config

import (
	"fmt"
	"strings"
	"time"

	"forum-admission/middleware/ratelimit/application"
	"forum-admission/middleware/ratelimit/domain"
)

type ServerConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	UpstreamURL       string        `mapstructure:"upstream_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RateLimitConfig struct {
	TrustForwardedFor bool          `mapstructure:"trust_forwarded_for"`
	PrincipalHeader   string        `mapstructure:"principal_header"`
	RetainState       bool          `mapstructure:"retain_state"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
	CleanupEvery      time.Duration `mapstructure:"cleanup_every"`
	Rules             []RuleConfig  `mapstructure:"rules"`
}

// RuleConfig descreve uma regra e a rota que ela protege.
//
// Token bucket usa Max/IntervalMs, janela fixa usa Limit/WindowMs.
// ExtraParam é o nome do parâmetro de rota que restringe a chave a um recurso
// (ex.: "postID" para votos por post).
type RuleConfig struct {
	Name       string `mapstructure:"name"`
	Method     string `mapstructure:"method"`
	Pattern    string `mapstructure:"pattern"`
	Strategy   string `mapstructure:"strategy"`
	Max        int    `mapstructure:"max"`
	IntervalMs int    `mapstructure:"interval_ms"`
	Limit      int    `mapstructure:"limit"`
	WindowMs   int    `mapstructure:"window_ms"`
	ExtraParam string `mapstructure:"extra_param"`
}

var _ application.RuleSource = RuleConfig{}

func (rc RuleConfig) Rule(name string) (domain.Rule, error) {
	switch domain.Strategy(strings.ToLower(strings.TrimSpace(rc.Strategy))) {
	case domain.StrategyTokenBucket:
		return application.TokenBucketOptions{Max: rc.Max, IntervalMs: rc.IntervalMs}.Rule(name)
	case domain.StrategyFixedWindow:
		return application.FixedWindowOptions{Limit: rc.Limit, WindowMs: rc.WindowMs}.Rule(name)
	default:
		return domain.Rule{}, fmt.Errorf("rule %q: unknown strategy %q: %w", name, rc.Strategy, domain.ErrInvalidRule)
	}
}

type StatsConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Backend   string        `mapstructure:"backend"`
	Redis     RedisConfig   `mapstructure:"redis"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	Bucket    string        `mapstructure:"bucket"`
	TrackKeys bool          `mapstructure:"track_keys"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Route é uma regra já normalizada junto da rota que ela protege.
type Route struct {
	Method     string
	Pattern    string
	ExtraParam string
	Rule       domain.Rule
}

// Routes normaliza todas as regras configuradas. Nomes repetidos são erro:
// duas rotas com o mesmo nome dividiriam os contadores.
func (c RateLimitConfig) Routes() ([]Route, error) {
	routes := make([]Route, 0, len(c.Rules))
	seen := make(map[string]struct{}, len(c.Rules))

	for i, rc := range c.Rules {
		rule, err := application.Normalize(rc.Name, rc)
		if err != nil {
			return nil, fmt.Errorf("ratelimit.rules[%d]: %w", i, err)
		}
		if _, dup := seen[rule.Name]; dup {
			return nil, fmt.Errorf("ratelimit.rules[%d]: duplicate rule name %q", i, rule.Name)
		}
		seen[rule.Name] = struct{}{}

		method := strings.ToUpper(strings.TrimSpace(rc.Method))
		if method == "" {
			method = "POST"
		}
		pattern := strings.TrimSpace(rc.Pattern)
		if !strings.HasPrefix(pattern, "/") {
			return nil, fmt.Errorf("ratelimit.rules[%d]: pattern %q must start with /", i, rc.Pattern)
		}

		routes = append(routes, Route{
			Method:     method,
			Pattern:    pattern,
			ExtraParam: strings.TrimSpace(rc.ExtraParam),
			Rule:       rule,
		})
	}
	return routes, nil
}
