package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.topics", "BROKER_KAFKA_TOPICS")
	viper.BindEnv("broker.kafka.workers", "BROKER_KAFKA_WORKERS")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("auth.secret", "AUTH_SECRET")
	viper.BindEnv("auth.audience", "AUTH_AUDIENCE")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if topicsEnv := viper.GetString("BROKER_KAFKA_TOPICS"); topicsEnv != "" {
		topics := strings.Split(topicsEnv, ",")
		for i := range topics {
			topics[i] = strings.TrimSpace(topics[i])
		}
		if len(topics) > 0 && topics[0] != "" {
			cfg.Broker.Kafka.Topics = topics
		}
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Broker.Kafka.Topics) == 0 {
		cfg.Broker.Kafka.Topics = []string{
			"distrischool.auth.user.created",
			"teacher-events",
			"distrischool.events",
		}
	}

	if cfg.Broker.Kafka.Workers <= 0 {
		cfg.Broker.Kafka.Workers = 1
	}

	if cfg.Notifications.SeenCacheTTLSeconds <= 0 {
		cfg.Notifications.SeenCacheTTLSeconds = 86400
	}

	if cfg.Notifications.OnCacheError == "" {
		cfg.Notifications.OnCacheError = "allow"
	}

	if cfg.Stream.Path == "" {
		cfg.Stream.Path = "/ws/notifications"
	}

	if cfg.Stream.SendBufferSize <= 0 {
		cfg.Stream.SendBufferSize = 64
	}

	if cfg.Stream.WriteTimeoutSeconds <= 0 {
		cfg.Stream.WriteTimeoutSeconds = 10
	}
}
