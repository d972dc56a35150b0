package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Qdrant   QdrantConfig
	Gemini   GeminiConfig
	Rabbit   RabbitConfig
	Storage  StorageConfig
	Worker   WorkerConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
}

type RabbitConfig struct {
	URL   string
	Queue string
}

type StorageConfig struct {
	UploadPath string
}

type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
}

// PipelineConfig is the per-role tuning surface: retry policy, scoring
// weights, the positive-emotion set, and media caps. None of these are
// hardcoded in the scorers.
type PipelineConfig struct {
	StageRetryLimit     int
	StageBackoffBase    time.Duration
	StageLease          time.Duration
	WeightPersonality   float64
	WeightResume        float64
	WeightTone          float64
	PositiveEmotions    []string
	TargetTraits        map[string]float64
	RequirementKeywords []string
	MaxMediaDuration    time.Duration
	MaxMediaSize        int64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "smarthire"),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", ""),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "smarthire_requirements"),
		},
		Gemini: GeminiConfig{
			APIKey:     getEnv("GEMINI_API_KEY", ""),
			Model:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbedModel: getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
		},
		Rabbit: RabbitConfig{
			URL:   getEnv("RABBITMQ_URL", ""),
			Queue: getEnv("RABBITMQ_QUEUE", "smarthire_stage_jobs"),
		},
		Storage: StorageConfig{
			UploadPath: getEnv("UPLOAD_PATH", "./uploads"),
		},
		Worker: WorkerConfig{
			Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 3),
			PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", "10s"),
		},
		Pipeline: PipelineConfig{
			StageRetryLimit:     getEnvAsInt("STAGE_RETRY_LIMIT", 5),
			StageBackoffBase:    getEnvAsDuration("STAGE_BACKOFF_BASE", "2s"),
			StageLease:          getEnvAsDuration("STAGE_LEASE", "5m"),
			WeightPersonality:   getEnvAsFloat("SCORING_WEIGHT_PERSONALITY", 0.3),
			WeightResume:        getEnvAsFloat("SCORING_WEIGHT_RESUME", 0.3),
			WeightTone:          getEnvAsFloat("SCORING_WEIGHT_TONE", 0.4),
			PositiveEmotions:    getEnvAsList("POSITIVE_EMOTIONS", "joy,confident,analytical"),
			TargetTraits:        getEnvAsTraits("TARGET_TRAITS", "0.7,0.8,0.6,0.7,0.3"),
			RequirementKeywords: getEnvAsList("REQUIREMENT_KEYWORDS", ""),
			MaxMediaDuration:    getEnvAsDuration("MAX_MEDIA_DURATION", "3m"),
			MaxMediaSize:        getEnvAsInt64("MAX_MEDIA_SIZE", 52428800),
		},
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsList(key string, defaultValue string) []string {
	valueStr := getEnv(key, defaultValue)
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	var values []string
	for _, p := range parts {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			values = append(values, p)
		}
	}
	return values
}

// getEnvAsTraits parses five comma-separated values in OCEAN order.
func getEnvAsTraits(key string, defaultValue string) map[string]float64 {
	names := []string{"openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism"}
	parts := strings.Split(getEnv(key, defaultValue), ",")
	if len(parts) != len(names) {
		parts = strings.Split(defaultValue, ",")
	}
	traits := make(map[string]float64, len(names))
	for i, name := range names {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			v = 0.5
		}
		traits[name] = v
	}
	return traits
}
