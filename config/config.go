package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/firstmakers/fm-api/mailer"
)

// ServerConfig holds all configuration for the API server. Tags use
// mapstructure for viper unmarshalling; every key can be overridden by an
// environment variable of the same name.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	// PublicBaseURL is the frontend origin reset/activation links point at.
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	JWTSecret              string `mapstructure:"JWT_SECRET"`
	AccessTokenTTLMin      int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	ResetTokenTTLMin       int    `mapstructure:"RESET_TOKEN_TTL_MIN"`
	ActivationTokenTTLHour int    `mapstructure:"ACTIVATION_TOKEN_TTL_HOUR"`
	BcryptCost             int    `mapstructure:"BCRYPT_COST"`

	// TokenCache selects the verified-token cache backend: memory | redis.
	TokenCache     string `mapstructure:"TOKEN_CACHE"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	MailProvider     string `mapstructure:"MAIL_PROVIDER"` // sendgrid | mailgun | smtp | log
	SendGridKey      string `mapstructure:"SENDGRID_KEY"`
	SendGridFrom     string `mapstructure:"SENDGRID_FROM"`
	SendGridFromName string `mapstructure:"SENDGRID_FROM_NAME"`
	MailgunKey       string `mapstructure:"MAILGUN_KEY"`
	MailgunDomain    string `mapstructure:"MAILGUN_DOMAIN"`
	MailgunFrom      string `mapstructure:"MAILGUN_FROM"`
	SMTPHost         string `mapstructure:"SMTP_HOST"`
	SMTPPort         string `mapstructure:"SMTP_PORT"`
	SMTPUsername     string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword     string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom         string `mapstructure:"SMTP_FROM"`
}

// Mail assembles the mailer configuration from the flat keys.
func (c *ServerConfig) Mail() mailer.Config {
	return mailer.Config{
		Provider: c.MailProvider,
		SendGrid: &mailer.SendGridConfig{
			Key:      c.SendGridKey,
			From:     c.SendGridFrom,
			FromName: c.SendGridFromName,
		},
		Mailgun: &mailer.MailgunConfig{
			Key:    c.MailgunKey,
			Domain: c.MailgunDomain,
			From:   c.MailgunFrom,
		},
		SMTP: &mailer.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		},
	}
}

// Load reads configuration from config.yaml, environment variables, and
// defaults, in increasing order of precedence for the environment.
func Load() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/fm-api/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/firstmakers")
	v.SetDefault("MONGO_DB_NAME", "firstmakers")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("PUBLIC_BASE_URL", "https://www.firstmakers.com")
	v.SetDefault("JWT_SECRET", "firstmakers_dev_secret_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)
	v.SetDefault("RESET_TOKEN_TTL_MIN", 60)
	v.SetDefault("ACTIVATION_TOKEN_TTL_HOUR", 24*30)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("TOKEN_CACHE", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_KEY_PREFIX", "fm-api")
	v.SetDefault("MAIL_PROVIDER", "log")

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and environment take over.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}
