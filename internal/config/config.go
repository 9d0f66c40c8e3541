package config

import "os"

const (
	ServiceName    = "pos-backend"
	ServiceVersion = "0.1.0"
)

// Config is read from the environment at startup. MySQL is required; Redis
// and Kafka are optional transports that stay disabled when unset.
type Config struct {
	HTTPAddr    string
	MySQLDSN    string
	RedisAddr   string
	KafkaBroker string
	EventTopic  string
}

func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MySQLDSN:    getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/pos?parseTime=true"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		KafkaBroker: os.Getenv("KAFKA_BROKER"),
		EventTopic:  getEnv("EVENT_TOPIC", "pos.events"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
