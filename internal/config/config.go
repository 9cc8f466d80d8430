package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	Server        ServerConfig        `mapstructure:"server"`
	Models        ModelsConfig        `mapstructure:"models"`
	HealthGate    HealthGateConfig    `mapstructure:"health_gate"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Database      DatabaseConfig      `mapstructure:"database"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type ModelsConfig struct {
	Dir                string  `mapstructure:"dir"`
	MaxModels          int     `mapstructure:"max_models"`
	HistorySize        int     `mapstructure:"history_size"`
	BatchWorkers       int     `mapstructure:"batch_workers"`
	RelevanceThreshold float64 `mapstructure:"relevance_threshold"`
}

type HealthGateConfig struct {
	MissingRatioLimit float64 `mapstructure:"missing_ratio_limit"`
	ZScoreLimit       float64 `mapstructure:"z_score_limit"`
	MahalanobisStop   float64 `mapstructure:"mahalanobis_stop"`
	MahalanobisWarn   float64 `mapstructure:"mahalanobis_warn"`
	ConfidenceFloor   float64 `mapstructure:"confidence_floor"`
	ReportPath        string  `mapstructure:"report_path"`
}

type NotificationsConfig struct {
	WebhookURL       string `mapstructure:"webhook_url"`
	WebhookTimeout   string `mapstructure:"webhook_timeout"`
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   int64  `mapstructure:"telegram_chat_id"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      string `mapstructure:"ttl"`
}

type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The health webhook endpoint is environment-level configuration.
	if err := viper.BindEnv("notifications.webhook_url", "HEALTH_WEBHOOK_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind HEALTH_WEBHOOK_URL: %w", err)
	}
	if err := viper.BindEnv("notifications.telegram_bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Notifications.WebhookTimeout != "" {
		if _, err := time.ParseDuration(config.Notifications.WebhookTimeout); err != nil {
			return nil, fmt.Errorf("invalid webhook timeout duration: %w", err)
		}
	}
	if config.Models.MaxModels < 1 {
		return nil, fmt.Errorf("models.max_models must be at least 1, got %d", config.Models.MaxModels)
	}
	if config.Models.BatchWorkers < 1 {
		return nil, fmt.Errorf("models.batch_workers must be at least 1, got %d", config.Models.BatchWorkers)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("models.dir", "./data/models")
	viper.SetDefault("models.max_models", 10)
	viper.SetDefault("models.history_size", 1000)
	viper.SetDefault("models.batch_workers", 4)
	viper.SetDefault("models.relevance_threshold", 0.01)

	viper.SetDefault("health_gate.missing_ratio_limit", 0.10)
	viper.SetDefault("health_gate.z_score_limit", 5.0)
	viper.SetDefault("health_gate.mahalanobis_stop", 25.0)
	viper.SetDefault("health_gate.mahalanobis_warn", 16.0)
	viper.SetDefault("health_gate.confidence_floor", 0.6)
	viper.SetDefault("health_gate.report_path", "./data/health_report.json")

	viper.SetDefault("notifications.webhook_timeout", "5s")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", "10m")

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", "1h")
}
