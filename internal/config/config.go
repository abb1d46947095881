package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Telegram struct {
		Token    string  `yaml:"token"`
		AdminIDs []int64 `yaml:"admin_ids"`
		Debug    bool    `yaml:"debug"`
	} `yaml:"telegram"`
	Quiz struct {
		Dir               string `yaml:"dir"`
		DelayBetweenPolls string `yaml:"delay_between_polls"`
		SummaryDelay      string `yaml:"summary_delay"`
		QuestionTimeout   string `yaml:"question_timeout"`
		PollRetention     string `yaml:"poll_retention"`
		LeaderboardSize   int    `yaml:"leaderboard_size"`
		RandomCounts      []int  `yaml:"random_counts"`
		FullExamCounts    []int  `yaml:"full_exam_counts"`
		CacheTTL          string `yaml:"cache_ttl"`
	} `yaml:"quiz"`
	Server struct {
		Port       string `yaml:"port"`
		AdminToken string `yaml:"admin_token"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Export struct {
		S3Region        string `yaml:"s3_region"`
		S3Bucket        string `yaml:"s3_bucket"`
		S3Prefix        string `yaml:"s3_prefix"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
		PresignExpiry   string `yaml:"presign_expiry"`
	} `yaml:"export"`
}

// overrides are environment values that win over the YAML file.
type overrides struct {
	TelegramToken string  `env:"TELEGRAM_BOT_TOKEN"`
	AdminIDs      []int64 `env:"QUIZ_ADMIN_IDS" envSeparator:","`
	QuizDir       string  `env:"QUIZ_DIR"`
	Port          string  `env:"PORT"`
	AdminToken    string  `env:"HTTP_ADMIN_TOKEN"`
	RedisAddr     string  `env:"REDIS_ADDR"`
	RedisPassword string  `env:"REDIS_PASSWORD"`
	PostgresURL   string  `env:"POSTGRES_URL"`
	S3Bucket      string  `env:"EXPORT_S3_BUCKET"`
	LogLevel      string  `env:"LOG_LEVEL"`
}

// Load reads YAML config from path, then applies .env and environment overrides.
// A missing file is not an error: defaults plus environment are enough to run.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}

	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the configuration the bot runs with when nothing is set.
func Default() Config {
	cfg := Config{}
	cfg.Log.Level = "info"
	cfg.Quiz.Dir = "quiz_data"
	cfg.Quiz.DelayBetweenPolls = "1s"
	cfg.Quiz.SummaryDelay = "8s"
	cfg.Quiz.QuestionTimeout = "0s"
	cfg.Quiz.LeaderboardSize = 10
	cfg.Quiz.RandomCounts = []int{5, 10, 15, 20}
	cfg.Quiz.FullExamCounts = []int{50, 85, 100}
	cfg.Quiz.CacheTTL = "10m"
	cfg.Server.Port = "8080"
	cfg.Redis.TTL = "6h"
	cfg.Export.S3Prefix = "exports"
	cfg.Export.PresignExpiry = "15m"
	return cfg
}

func applyEnv(cfg *Config) error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	setIf(&cfg.Telegram.Token, o.TelegramToken)
	setIf(&cfg.Quiz.Dir, o.QuizDir)
	setIf(&cfg.Server.Port, o.Port)
	setIf(&cfg.Server.AdminToken, o.AdminToken)
	setIf(&cfg.Redis.Addr, o.RedisAddr)
	setIf(&cfg.Redis.Password, o.RedisPassword)
	setIf(&cfg.Postgres.URL, o.PostgresURL)
	setIf(&cfg.Export.S3Bucket, o.S3Bucket)
	setIf(&cfg.Log.Level, o.LogLevel)
	if len(o.AdminIDs) > 0 {
		cfg.Telegram.AdminIDs = o.AdminIDs
	}
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Duration parses a duration string or returns the fallback if empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
