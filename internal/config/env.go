package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type ExecutorEnv struct {
	Type        string        `envconfig:"EXECUTOR_TYPE" default:"local"`
	URL         string        `envconfig:"EXECUTOR_URL" default:"http://phi4-service:8001"`
	Timeout     time.Duration `envconfig:"EXECUTOR_TIMEOUT" default:"60s"`
	MaxTokens   int           `envconfig:"EXECUTOR_MAX_TOKENS" default:"500"`
	Temperature float64       `envconfig:"EXECUTOR_TEMPERATURE" default:"0.7"`
}

type SchedulerEnv struct {
	Mode string `envconfig:"SCHEDULER_MODE" default:"topological"`
}

type CatalogEnv struct {
	Type  string `envconfig:"CATALOG_TYPE" default:"local"`
	Dir   string `envconfig:"CATALOG_DIR" default:".aistudio/presets"`
	Watch bool   `envconfig:"CATALOG_WATCH" default:"true"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"CATALOG_S3_BUCKET"`
	S3Prefix string `envconfig:"CATALOG_S3_PREFIX" default:"aistudio/presets/"`
	S3Region string `envconfig:"CATALOG_S3_REGION" default:"us-east-1"`
}

type VAPIDEnv struct {
	PublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	PrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	Subscriber string `envconfig:"VAPID_SUBSCRIBER" default:"mailto:ops@aistudio.local"`
}

type Env struct {
	BaseEnv
	ExecutorEnv
	SchedulerEnv
	CatalogEnv
	VAPIDEnv
}

const namespace = "AISTUDIO"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func ExecutorEnvFromEnv(env *Env) *ExecutorEnv {
	return &env.ExecutorEnv
}

func CatalogEnvFromEnv(env *Env) *CatalogEnv {
	return &env.CatalogEnv
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}
