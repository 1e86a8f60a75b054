package main

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "IDLE_"

type serverConfig struct {
	Addr       string `env:"ADDR"`
	DataDir    string `env:"DATA_DIR"`
	ConfigDir  string `env:"CONFIG_DIR"`
	TuningPath string `env:"TUNING"`
	Journal    bool   `env:"JOURNAL" envDefault:"true"`
	Metrics    bool   `env:"ENABLE_METRICS" envDefault:"true"`

	Remote remoteConfig `envPrefix:"R2_"`
}

type remoteConfig struct {
	Endpoint        string `env:"ENDPOINT"`
	Bucket          string `env:"BUCKET"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Workers         int    `env:"UPLOAD_WORKERS" envDefault:"2"`
	QueueCapacity   int    `env:"UPLOAD_QUEUE" envDefault:"256"`
}

// overlayEnv fills cfg from IDLE_* variables. Set variables win over flags.
func overlayEnv(cfg serverConfig, environ map[string]string) (serverConfig, error) {
	var fromEnv serverConfig
	opts := env.Options{Prefix: envPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&fromEnv, opts); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if v := strings.TrimSpace(fromEnv.Addr); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(fromEnv.DataDir); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(fromEnv.ConfigDir); v != "" {
		cfg.ConfigDir = v
	}
	if v := strings.TrimSpace(fromEnv.TuningPath); v != "" {
		cfg.TuningPath = v
	}
	cfg.Journal = fromEnv.Journal
	cfg.Metrics = fromEnv.Metrics
	cfg.Remote = fromEnv.Remote
	return cfg, nil
}

func (r remoteConfig) enabled() bool {
	return r.Endpoint != "" || r.Bucket != "" || r.AccessKeyID != "" || r.SecretAccessKey != ""
}

func (r remoteConfig) validate() error {
	if !r.enabled() {
		return nil
	}
	if r.Endpoint == "" || r.Bucket == "" || r.AccessKeyID == "" || r.SecretAccessKey == "" {
		return fmt.Errorf("remote store needs %[1]sR2_ENDPOINT, %[1]sR2_BUCKET, %[1]sR2_ACCESS_KEY_ID and %[1]sR2_SECRET_ACCESS_KEY", envPrefix)
	}
	return nil
}
