package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Database  DatabaseConfig
	Postgres  PostgresConfig
	SQLite    SQLiteConfig
	Loader    LoaderConfig
	Inventory InventoryConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
}

type ServerConfig struct {
	AppEnv   string
	GRPCPort string
	// HTTPAddr serves /metrics, /healthz and the inventory query routes.
	HTTPAddr string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type DatabaseConfig struct {
	Driver string // postgres or sqlite
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type SQLiteConfig struct {
	Path string
}

type LoaderConfig struct {
	SourceDir    string
	SalesFile    string
	ExpenseFile  string
	DeliveryFile string
	ShiftFile    string
	Parallel     bool
}

type InventoryConfig struct {
	DefaultReorderThreshold int
	AllowNegative           bool
	LockBackend             string // memory or redis
	LockTTLSeconds          int
	LockRetries             int
	LockRetryDelayMs        int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	RestockTopic string
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			GRPCPort: getEnv("GRPC_PORT", ":8082"),
			HTTPAddr: getEnv("HTTP_ADDR", ":9102"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_retail"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "retail.db"),
		},
		Loader: LoaderConfig{
			SourceDir:    getEnv("LOADER_SOURCE_DIR", "."),
			SalesFile:    getEnv("LOADER_SALES_FILE", "Sales_Master.csv"),
			ExpenseFile:  getEnv("LOADER_EXPENSE_FILE", "Expense_Master.csv"),
			DeliveryFile: getEnv("LOADER_DELIVERY_FILE", "Delivery_Master.csv"),
			ShiftFile:    getEnv("LOADER_SHIFT_FILE", "Shift_Master.csv"),
			Parallel:     getEnvBool("LOADER_PARALLEL", false),
		},
		Inventory: InventoryConfig{
			DefaultReorderThreshold: getEnvInt("INVENTORY_DEFAULT_REORDER_THRESHOLD", 10),
			AllowNegative:           getEnvBool("INVENTORY_ALLOW_NEGATIVE", true),
			LockBackend:             strings.ToLower(getEnv("INVENTORY_LOCK_BACKEND", "memory")),
			LockTTLSeconds:          getEnvInt("INVENTORY_LOCK_TTL_SECONDS", 5),
			LockRetries:             getEnvInt("INVENTORY_LOCK_RETRIES", 3),
			LockRetryDelayMs:        getEnvInt("INVENTORY_LOCK_RETRY_DELAY_MS", 100),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:        getEnv("KAFKA_TOPIC_EVENTS", "retail.inventory.events"),
			GroupID:      getEnv("KAFKA_GROUP_ID", "retail-loader"),
			RestockTopic: getEnv("KAFKA_TOPIC_RESTOCK", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
