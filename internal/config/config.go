package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App           App           `yaml:"app"`
	HTTP          HTTP          `yaml:"http"`
	Log           Log           `yaml:"log"`
	Postgres      Postgres      `yaml:"postgres"`
	Redis         Redis         `yaml:"redis"`
	Kafka         Kafka         `yaml:"kafka"`
	Auth          Auth          `yaml:"auth"`
	SMTP          SMTP          `yaml:"smtp"`
	ChatBot       ChatBot       `yaml:"chat_bot"`
	Dispatch      Dispatch      `yaml:"dispatch"`
	Pairing       Pairing       `yaml:"pairing"`
	Notifications Notifications `yaml:"notifications"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"projectflow"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	// Output is one of stdout, file, both.
	Output     string `yaml:"output" env:"LOG_OUTPUT" env-default:"stdout"`
	File       string `yaml:"file" env:"LOG_FILE" env-default:"./logs/app.log"`
	MaxSize    int    `yaml:"max_size" env:"LOG_MAX_SIZE" env-default:"100"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"7"`
	MaxAge     int    `yaml:"max_age" env:"LOG_MAX_AGE" env-default:"7"`
	Compress   bool   `yaml:"compress" env:"LOG_COMPRESS" env-default:"true"`
}

type Postgres struct {
	Host            string        `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port            string        `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User            string        `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName          string        `yaml:"dbname" env:"POSTGRES_DB" env-default:"projectflow"`
	ConnectAttempts int           `yaml:"connect_attempts" env:"POSTGRES_CONNECT_ATTEMPTS" env-default:"5"`
	ConnectDelay    time.Duration `yaml:"connect_delay" env:"POSTGRES_CONNECT_DELAY" env-default:"2s"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers             []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	ProjectTopic        string   `yaml:"project_topic" env:"KAFKA_PROJECT_TOPIC" env-default:"project-events"`
	TaskTopic           string   `yaml:"task_topic" env:"KAFKA_TASK_TOPIC" env-default:"task-events"`
	NotificationsGroup  string   `yaml:"notifications_group" env:"KAFKA_NOTIFICATIONS_GROUP" env-default:"notifications-consumer-group"`
	IntegrationsGroup   string   `yaml:"integrations_group" env:"KAFKA_INTEGRATIONS_GROUP" env-default:"integrations-consumer-group"`
	// StartOffset applies when the group has no committed offset: earliest or latest.
	StartOffset     string        `yaml:"start_offset" env:"KAFKA_START_OFFSET" env-default:"earliest"`
	DeadLetterTopic string        `yaml:"dead_letter_topic" env:"KAFKA_DEAD_LETTER_TOPIC"`
	ConnectAttempts int           `yaml:"connect_attempts" env:"KAFKA_CONNECT_ATTEMPTS" env-default:"30"`
	ConnectDelay    time.Duration `yaml:"connect_delay" env:"KAFKA_CONNECT_DELAY" env-default:"2s"`
	HandleAttempts  int           `yaml:"handle_attempts" env:"KAFKA_HANDLE_ATTEMPTS" env-default:"3"`
	HandleDelay     time.Duration `yaml:"handle_delay" env:"KAFKA_HANDLE_DELAY" env-default:"1s"`
	HandleTimeout   time.Duration `yaml:"handle_timeout" env:"KAFKA_HANDLE_TIMEOUT" env-default:"60s"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" env-default:"change-me"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"smtp.gmail.com"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

type ChatBot struct {
	Token         string `yaml:"token" env:"CHAT_BOT_TOKEN"`
	Username      string `yaml:"username" env:"CHAT_BOT_USERNAME" env-default:"projectflow_bot"`
	APIURL        string `yaml:"api_url" env:"CHAT_BOT_API_URL" env-default:"https://api.telegram.org"`
	WebhookSecret string `yaml:"webhook_secret" env:"CHAT_BOT_WEBHOOK_SECRET"`
}

type Dispatch struct {
	SendTimeout time.Duration `yaml:"send_timeout" env:"DISPATCH_SEND_TIMEOUT" env-default:"10s"`
	Concurrency int           `yaml:"concurrency" env:"DISPATCH_CONCURRENCY" env-default:"8"`
}

type Pairing struct {
	// Backend is memory or redis.
	Backend       string        `yaml:"backend" env:"PAIRING_BACKEND" env-default:"memory"`
	TTL           time.Duration `yaml:"ttl" env:"PAIRING_TTL" env-default:"15m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"PAIRING_SWEEP_INTERVAL" env-default:"1m"`
}

type Notifications struct {
	Dedup bool `yaml:"dedup" env:"NOTIFICATIONS_DEDUP" env-default:"false"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config env override: %w", err)
		}
	}

	return cfg, nil
}

// Topics returns every topic the engine subscribes to.
func (k Kafka) Topics() []string {
	return []string{k.ProjectTopic, k.TaskTopic}
}
