package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env-default:"local"`
	Tokens     `yaml:"tokens"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	RabbitMQ   `yaml:"rabbitmq"`
	S3         `yaml:"s3"`
	HTTPServer `yaml:"http_server"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Host     string `yaml:"host" env-default:"postgres"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"password" env-required:"true"`
	DBName   string `yaml:"dbname" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

type Redis struct {
	Addr       string        `yaml:"addr" env-default:"redis:6379"`
	Password   string        `yaml:"password" env-default:""`
	DB         int           `yaml:"db" env-default:"0"`
	ProfileTTL time.Duration `yaml:"profile_ttl" env-default:"5m"`
}

type Tokens struct {
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl" env-required:"true"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl" env-required:"true"`
	AccessTokenSecret  string        `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env-required:"true"`
	QueueName string `yaml:"queue_name" env-required:"true"`
}

type S3 struct {
	Region        string `yaml:"region" env-default:"us-east-1"`
	Endpoint      string `yaml:"endpoint" env-required:"true"`
	Bucket        string `yaml:"bucket" env-required:"true"`
	AccessKey     string `yaml:"access_key" env:"S3_ACCESS_KEY" env-required:"true"`
	SecretKey     string `yaml:"secret_key" env:"S3_SECRET_KEY" env-required:"true"`
	PublicBaseURL string `yaml:"public_base_url" env-required:"true"`
}

func MustLoad(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("Config file does not exist" + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("Failed to read config" + err.Error())
	}

	// An access token that outlives the refresh token would make rotation
	// meaningless, so this is refused at startup.
	if cfg.Tokens.AccessTokenTTL >= cfg.Tokens.RefreshTokenTTL {
		panic("access_token_ttl must be shorter than refresh_token_ttl")
	}

	return &cfg
}
