package pubsub

import (
	"fmt"
	"time"
)

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers    string   `mapstructure:"brokers"`
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
	Topics     []string `mapstructure:"topics"`
	// InstanceID is appended to the group ID of pattern subscriptions so
	// every instance receives every event. Generated when empty.
	InstanceID string `mapstructure:"instance_id"`
}

// Config holds the configuration for the pub/sub system.
type Config struct {
	Driver string      `mapstructure:"driver"` // "redis", "kafka", "memory"
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
	// BufferSize is the capacity of each subscription channel.
	BufferSize int `mapstructure:"buffer_size"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

const defaultBufferSize = 100

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Driver: "redis",
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    "localhost:9092",
			GroupID:    "interaction-fanout",
			Partitions: 4,
			Topics:     DefaultTopics(),
		},
		BufferSize: defaultBufferSize,
	}
}

// DefaultTopics lists the Kafka topics backing the interaction channels.
func DefaultTopics() []string {
	return []string{"interaction-target-updates", "interaction-user-notifications"}
}

// NewPubSub creates a new PubSub instance based on the configuration.
func NewPubSub(cfg Config) (PubSub, error) {
	buf := cfg.BufferSize
	if buf <= 0 {
		buf = defaultBufferSize
	}

	switch cfg.Driver {
	case "kafka":
		return NewKafkaPubSub(cfg.Kafka, buf)
	case "redis", "":
		return NewRedisPubSub(cfg.Redis, buf)
	case "memory":
		return NewMemoryPubSub(buf), nil
	default:
		return nil, fmt.Errorf("unsupported pubsub driver: %s", cfg.Driver)
	}
}
