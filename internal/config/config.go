package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type TelegramConfig struct {
	BotToken     string        `mapstructure:"bot_token"`
	ChatID       int64         `mapstructure:"chat_id"`
	Command      string        `mapstructure:"command"`
	ReplyTimeout time.Duration `mapstructure:"reply_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type MonitorConfig struct {
	RefreshSpec     string        `mapstructure:"refresh_spec"`
	DedupTolerance  time.Duration `mapstructure:"dedup_tolerance"`
	BackfillLimit   int           `mapstructure:"backfill_limit"`
	BackfillOnStart bool          `mapstructure:"backfill_on_start"`
	RefreshOnStart  bool          `mapstructure:"refresh_on_start"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("telegram.command", "/positions")
	v.SetDefault("telegram.reply_timeout", "30s")
	v.SetDefault("telegram.poll_interval", "2s")
	v.SetDefault("monitor.refresh_spec", "@every 5m")
	v.SetDefault("monitor.dedup_tolerance", "5m")
	v.SetDefault("monitor.backfill_limit", 200)
	v.SetDefault("monitor.backfill_on_start", false)
	v.SetDefault("monitor.refresh_on_start", true)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
