package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBType   string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN      string `mapstructure:"DSN"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Port     int    `mapstructure:"PORT"`

	// OpTimeoutMS bounds best-effort calls (verification email,
	// post-registration profile write).
	OpTimeoutMS int `mapstructure:"OP_TIMEOUT_MS"`

	// VerifyReturnURL is the link target embedded in verification
	// emails.
	VerifyReturnURL string `mapstructure:"VERIFY_RETURN_URL"`

	// PromptIntervalMin throttles the verify-your-email re-prompt.
	PromptIntervalMin int `mapstructure:"PROMPT_INTERVAL_MIN"`

	// RedisAddr, when set, backs the prompt throttle with Redis
	// instead of process memory.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	// SessionSecret signs the API session tokens.
	SessionSecret string `mapstructure:"SESSION_SECRET"`

	OIDCProviders map[string]OIDCProvider `mapstructure:"OIDC_PROVIDERS"`
}

type OIDCProvider struct {
	Issuer       string `mapstructure:"issuer"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

func (c *Config) OperationLimit() time.Duration {
	return time.Duration(c.OpTimeoutMS) * time.Millisecond
}

func (c *Config) PromptInterval() time.Duration {
	return time.Duration(c.PromptIntervalMin) * time.Minute
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "authsync.db")
	viper.SetDefault("OP_TIMEOUT_MS", 8000)
	viper.SetDefault("VERIFY_RETURN_URL", "/onboarding")
	viper.SetDefault("PROMPT_INTERVAL_MIN", 24*60)
	viper.SetDefault("SESSION_SECRET", "dev-only-secret")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
