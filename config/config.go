package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App      `json:"app"      toml:"app"`
		HTTP     `json:"http"     toml:"http"`
		DB       `json:"db"       toml:"db"`
		Log      `json:"logger"   toml:"logger"`
		Fraud    `json:"fraud"    toml:"fraud"`
		Dispatch `json:"dispatch" toml:"dispatch"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME"  env-default:"fraud-detector"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME"  env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"     env-default:"false"`
	}

	HTTP struct {
		Port string `json:"port" toml:"port" env:"HTTP_PORT" env-default:"8080"`
	}

	// DB is optional: an empty DatabaseURL runs the service on in-memory stores.
	DB struct {
		DatabaseURL       string `json:"database_url"        toml:"database_url"        env:"DATABASE_URL"`
		MigrationsPath    string `json:"migrations_path"     toml:"migrations_path"     env:"MIGRATIONS_PATH"      env-default:"./migrations"`
		PoolMax           int32  `json:"pool_max"            toml:"pool_max"            env:"PG_POOL_MAX"          env-default:"10"`
		ConnectTimeout    int    `json:"connect_timeout"     toml:"connect_timeout"     env:"PG_POOL_CONN_TIMEOUT" env-default:"5"`
		HealthCheckPeriod int    `json:"health_check_period" toml:"health_check_period" env:"PG_POOL_HEALTHCHECK"  env-default:"1"`
	}

	Log struct {
		Level slog.Level `json:"level" toml:"level" env:"LOG_LEVEL"`
	}

	Fraud struct {
		BurstWindow     time.Duration `json:"burst_window"     toml:"burst_window"     env:"FRAUD_BURST_WINDOW"     env-default:"60s"`
		BurstThreshold  int           `json:"burst_threshold"  toml:"burst_threshold"  env:"FRAUD_BURST_THRESHOLD"  env-default:"3"`
		AmountThreshold float64       `json:"amount_threshold" toml:"amount_threshold" env:"FRAUD_AMOUNT_THRESHOLD" env-default:"5000"`
		GeoWindow       time.Duration `json:"geo_window"       toml:"geo_window"       env:"FRAUD_GEO_WINDOW"       env-default:"300s"`
		SweepInterval   time.Duration `json:"sweep_interval"   toml:"sweep_interval"   env:"FRAUD_SWEEP_INTERVAL"   env-default:"0s"`
	}

	Dispatch struct {
		Workers        int           `json:"workers"         toml:"workers"         env:"DISPATCH_WORKERS"         env-default:"5"`
		QueueSize      int           `json:"queue_size"      toml:"queue_size"      env:"DISPATCH_QUEUE_SIZE"      env-default:"100"`
		Backpressure   string        `json:"backpressure"    toml:"backpressure"    env:"DISPATCH_BACKPRESSURE"    env-default:"block"`
		TaskTimeout    time.Duration `json:"task_timeout"    toml:"task_timeout"    env:"DISPATCH_TASK_TIMEOUT"    env-default:"30s"`
		ForwardTimeout time.Duration `json:"forward_timeout" toml:"forward_timeout" env:"DISPATCH_FORWARD_TIMEOUT" env-default:"10s"`
		// ProcessURL defaults to this instance's /process-fraud endpoint.
		ProcessURL string `json:"process_url" toml:"process_url" env:"DISPATCH_PROCESS_URL"`
	}
)

// LoadConfig reads config.toml (or config.json) next to this package and
// then applies environment overrides.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		err = cleanenv.ReadConfig(configJsonPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	err = cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	if cfg.Dispatch.ProcessURL == "" {
		cfg.Dispatch.ProcessURL = fmt.Sprintf("http://localhost:%s/process-fraud", cfg.HTTP.Port)
	}

	return cfg, nil
}
