package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App   App   `yaml:"app"`
	HTTP  HTTP  `yaml:"http"`
	Log   Log   `yaml:"log"`
	Kafka Kafka `yaml:"kafka"`
	Mongo Mongo `yaml:"mongo"`
	Redis Redis `yaml:"redis"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"notification-system"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"notifications"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"notification-service-group"`

	// Bounded startup retry. The producer fails fast with few attempts;
	// the consumer is more patient because the broker may still be booting.
	PublisherConnectAttempts int           `yaml:"publisher_connect_attempts" env:"KAFKA_PUBLISHER_CONNECT_ATTEMPTS" env-default:"3"`
	PublisherConnectDelay    time.Duration `yaml:"publisher_connect_delay" env:"KAFKA_PUBLISHER_CONNECT_DELAY" env-default:"5s"`
	ConsumerConnectAttempts  int           `yaml:"consumer_connect_attempts" env:"KAFKA_CONSUMER_CONNECT_ATTEMPTS" env-default:"10"`
	ConsumerConnectDelay     time.Duration `yaml:"consumer_connect_delay" env:"KAFKA_CONSUMER_CONNECT_DELAY" env-default:"3s"`
}

type Mongo struct {
	URI        string `yaml:"uri" env:"MONGODB_URI" env-default:"mongodb://localhost:27017"`
	Database   string `yaml:"database" env:"MONGODB_DATABASE" env-default:"notifications_db"`
	Collection string `yaml:"collection" env:"MONGODB_COLLECTION" env-default:"notifications"`
}

type Redis struct {
	// Optional. When empty the producer runs without the idempotency middleware.
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:""`
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
		cleanenv.ReadEnv(cfg)
	}

	return cfg, nil
}
