package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/wes-io-social/pkg/config"
	"github.com/weiawesome/wes-io-social/pkg/pubsub"
)

type Config struct {
	Server      ServerConfig
	Live        LiveConfig
	WebSocket   WebSocketConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	PubSub      pubsub.Config `mapstructure:"pubsub"`
	CDC         CDCConfig
	Coordinator CoordinatorConfig
	Broadcast   BroadcastConfig
	Batch       BatchConfig
	Reconciler  ReconcilerConfig
	Auth        AuthConfig
	Log         LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// LiveConfig is the websocket listener.
type LiveConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	MaxWatches     int           `mapstructure:"max_watches"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	TimeZone        string `mapstructure:"timezone"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CountTTL time.Duration `mapstructure:"count_ttl"`
}

// CDCConfig is the Debezium counter-change consumer.
type CDCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type CoordinatorConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	Jitter          float64       `mapstructure:"jitter"`
	ReadBackTimeout time.Duration `mapstructure:"read_back_timeout"`
}

type BroadcastConfig struct {
	NotifyOnUnset bool `mapstructure:"notify_on_unset"`
	QueueSize     int  `mapstructure:"queue_size"`
	Workers       int  `mapstructure:"workers"`
	StreamBuffer  int  `mapstructure:"stream_buffer"`
}

type BatchConfig struct {
	MaxItems          int `mapstructure:"max_items"`
	MaxParallelGroups int `mapstructure:"max_parallel_groups"`
}

type ReconcilerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	TopN     int           `mapstructure:"top_n"`
}

type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	PublicKey     string `mapstructure:"public_key"`
	Issuer        string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

var envBindings = map[string]string{
	"server.port":                "PORT",
	"live.port":                  "LIVE_PORT",
	"database.driver":            "DB_DRIVER",
	"database.host":              "DB_HOST",
	"database.port":              "DB_PORT",
	"database.user":              "DB_USER",
	"database.password":          "DB_PASSWORD",
	"database.dbname":            "DB_NAME",
	"database.sslmode":           "DB_SSLMODE",
	"database.file_path":         "DB_FILE_PATH",
	"database.max_idle_conns":    "DB_MAX_IDLE_CONNS",
	"database.max_open_conns":    "DB_MAX_OPEN_CONNS",
	"database.conn_max_lifetime": "DB_CONN_MAX_LIFETIME",
	"redis.address":              "REDIS_ADDRESS",
	"redis.password":             "REDIS_PASSWORD",
	"redis.db":                   "REDIS_DB",
	"pubsub.driver":              "PUBSUB_DRIVER",
	"pubsub.redis.address":       "PUBSUB_REDIS_ADDRESS",
	"pubsub.kafka.brokers":       "PUBSUB_KAFKA_BROKERS",
	"pubsub.kafka.instance_id":   "INSTANCE_ID",
	"cdc.enabled":                "CDC_ENABLED",
	"cdc.brokers":                "KAFKA_BROKERS",
	"cdc.topic":                  "CDC_TOPIC",
	"cdc.group_id":               "CDC_GROUP_ID",
	"coordinator.max_attempts":   "TOGGLE_MAX_ATTEMPTS",
	"coordinator.base_delay":     "TOGGLE_BASE_DELAY",
	"broadcast.notify_on_unset":  "NOTIFY_ON_UNSET",
	"batch.max_items":            "BATCH_MAX_ITEMS",
	"batch.max_parallel_groups":  "BATCH_MAX_PARALLEL_GROUPS",
	"reconciler.enabled":         "RECONCILER_ENABLED",
	"reconciler.interval":        "RECONCILER_INTERVAL",
	"reconciler.top_n":           "RECONCILER_TOP_N",
	"auth.public_key_path":       "JWT_PUBLIC_KEY_PATH",
	"auth.public_key":            "JWT_PUBLIC_KEY",
	"auth.issuer":                "JWT_ISSUER",
	"log.level":                  "LOG_LEVEL",
	"log.pretty":                 "LOG_PRETTY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8096)
	v.SetDefault("live.host", "0.0.0.0")
	v.SetDefault("live.port", 8097)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.max_watches", 50)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.file_path", "./data/interaction.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.count_ttl", "24h")
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.buffer_size", 100)
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "interaction-fanout")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("pubsub.kafka.topics", pubsub.DefaultTopics())
	v.SetDefault("cdc.enabled", false)
	v.SetDefault("cdc.brokers", "localhost:9092")
	v.SetDefault("cdc.topic", "dbserver1.public.interaction_counters")
	v.SetDefault("cdc.group_id", "interaction-service")
	v.SetDefault("coordinator.max_attempts", 3)
	v.SetDefault("coordinator.base_delay", "20ms")
	v.SetDefault("coordinator.jitter", 0.0)
	v.SetDefault("coordinator.read_back_timeout", "2s")
	v.SetDefault("broadcast.notify_on_unset", false)
	v.SetDefault("broadcast.queue_size", 1024)
	v.SetDefault("broadcast.workers", 4)
	v.SetDefault("broadcast.stream_buffer", 64)
	v.SetDefault("batch.max_items", 100)
	v.SetDefault("batch.max_parallel_groups", 8)
	v.SetDefault("reconciler.enabled", true)
	v.SetDefault("reconciler.interval", "60s")
	v.SetDefault("reconciler.top_n", 100)
	v.SetDefault("auth.public_key_path", "./keys/public.pem")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads ./config/config.yaml (optional) with defaults and env overrides.
func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes cfg from an already loaded viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	if err := pkgconfig.BindEnvs(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Coordinator.BaseDelay = pkgconfig.Duration(v, "coordinator.base_delay", 20*time.Millisecond)
	cfg.Coordinator.ReadBackTimeout = pkgconfig.Duration(v, "coordinator.read_back_timeout", 2*time.Second)
	cfg.Reconciler.Interval = pkgconfig.Duration(v, "reconciler.interval", 60*time.Second)

	return &cfg, nil
}
