package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Classifier model artifacts
	ModelPath       string
	ModelBackupPath string
	TrainPageSize   int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	RetrainInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/moneta.db"),

		ModelPath:       getEnv("MODEL_PATH", "./data/model.yaml"),
		ModelBackupPath: getEnv("MODEL_BACKUP_PATH", "./data/model.backup.yaml"),
		TrainPageSize:   getEnvInt("TRAIN_PAGE_SIZE", 100),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "moneta"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "classifier_retrain"),

		RetrainInterval: getEnvDuration("RETRAIN_INTERVAL", 30*time.Second),
	}
}

// Validate checks the configuration and returns one error listing every
// problem found.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		problems = append(problems, "SQLite database path cannot be empty")
	}

	if c.ModelPath == "" {
		problems = append(problems, "model path cannot be empty")
	}
	if c.ModelBackupPath == "" {
		problems = append(problems, "model backup path cannot be empty")
	}
	if c.ModelPath != "" && c.ModelPath == c.ModelBackupPath {
		problems = append(problems, "model path and backup path must differ")
	}
	if c.ModelPath != "" && c.ModelBackupPath != "" &&
		filepath.Dir(c.ModelPath) != filepath.Dir(c.ModelBackupPath) {
		problems = append(problems, "model path and backup path must share a directory")
	}

	if c.TrainPageSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid train page size %d: must be positive", c.TrainPageSize))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RetrainInterval < time.Second {
		problems = append(problems, fmt.Sprintf("invalid retrain interval %v: must be at least 1s", c.RetrainInterval))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
