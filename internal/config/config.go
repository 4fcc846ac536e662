package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendElasticsearch = "elasticsearch"
	BackendPostgres      = "postgres"
)

// Common contains store and vocabulary parameters shared by every binary.
type Common struct {
	StoreBackend             string
	ElasticsearchAddr        string
	ElasticsearchJobsIndex   string
	ElasticsearchSkillsIndex string
	DatabaseURL              string
	VocabularyPath           string
}

// Kafka is the broker side shared by the collector and the worker.
type Kafka struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// Dedupe configures the cross-batch duplicate store.
type Dedupe struct {
	RedisURL       string
	DedupeCapacity int
	DedupeTTL      time.Duration
}

// Worker holds configuration for the Kafka -> store worker.
type Worker struct {
	Common
	Kafka
	Dedupe
	KafkaConsumer string
	BatchSize     int
	FlushInterval time.Duration
}

// Collector configures the ingestion binary.
type Collector struct {
	Common
	Kafka
	Dedupe
	AdzunaAppID   string
	AdzunaAppKey  string
	AdzunaCountry string
	Queries       []string
	Where         string
	MaxPages      int
	MaxResults    int
	SamplePath    string
	Schedule      string
	Direct        bool
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr    string
	DefaultPage int
	MaxPage     int
}

// Reextract configures the skill re-extraction loop.
type Reextract struct {
	Common
	Interval time.Duration
}

var dotenvOnce sync.Once

// loadDotenv reads .env into the environment once; variables already set win.
func loadDotenv() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load(getEnv("ENV_FILE", ".env"))
	})
}

func loadCommon() (Common, error) {
	loadDotenv()

	c := Common{
		StoreBackend:             strings.ToLower(getEnv("STORE_BACKEND", BackendElasticsearch)),
		ElasticsearchAddr:        getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchJobsIndex:   getEnv("ELASTICSEARCH_JOBS_INDEX", "jobs"),
		ElasticsearchSkillsIndex: getEnv("ELASTICSEARCH_SKILLS_INDEX", "job_skills"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		VocabularyPath:           getEnv("VOCABULARY_PATH", "config/skills.yml"),
	}

	switch c.StoreBackend {
	case BackendElasticsearch:
		if c.ElasticsearchJobsIndex == c.ElasticsearchSkillsIndex {
			return c, fmt.Errorf("ELASTICSEARCH_JOBS_INDEX and ELASTICSEARCH_SKILLS_INDEX must differ")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return c, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return c, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendElasticsearch, BackendPostgres, c.StoreBackend)
	}

	return c, nil
}

func loadKafka(defaultTopic string) (Kafka, error) {
	k := Kafka{
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", defaultTopic),
	}
	if len(k.KafkaBrokers) == 0 {
		return k, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	return k, nil
}

func loadDedupe() (Dedupe, error) {
	d := Dedupe{
		RedisURL:       getEnv("REDIS_URL", ""),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 50000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "720h"),
	}
	if d.DedupeCapacity <= 0 {
		return d, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if d.DedupeTTL <= 0 {
		return d, fmt.Errorf("WORKER_DEDUPE_TTL must be positive")
	}
	return d, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	kafka, err := loadKafka("jobs_raw")
	if err != nil {
		return nil, err
	}
	dedupe, err := loadDedupe()
	if err != nil {
		return nil, err
	}

	c := &Worker{
		Common:        common,
		Kafka:         kafka,
		Dedupe:        dedupe,
		KafkaConsumer: getEnv("KAFKA_CONSUMER_GROUP", "jobs-worker"),
		BatchSize:     getInt("WORKER_BATCH_SIZE", 200),
		FlushInterval: getDuration("WORKER_FLUSH_INTERVAL", "5s"),
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.FlushInterval <= 0 {
		return nil, fmt.Errorf("WORKER_FLUSH_INTERVAL must be positive")
	}

	return c, nil
}

// LoadCollector builds a Collector config from environment variables.
// Adzuna credentials are only required when no sample file is configured.
func LoadCollector() (*Collector, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	kafka, err := loadKafka("jobs_raw")
	if err != nil {
		return nil, err
	}
	dedupe, err := loadDedupe()
	if err != nil {
		return nil, err
	}

	c := &Collector{
		Common:        common,
		Kafka:         kafka,
		Dedupe:        dedupe,
		AdzunaAppID:   getEnv("ADZUNA_APP_ID", ""),
		AdzunaAppKey:  getEnv("ADZUNA_APP_KEY", ""),
		AdzunaCountry: strings.ToLower(getEnv("ADZUNA_COUNTRY", "au")),
		Queries:       splitAndTrim(getEnv("COLLECTOR_QUERIES", "data analyst,data scientist,data engineer")),
		Where:         getEnv("COLLECTOR_WHERE", ""),
		MaxPages:      getInt("COLLECTOR_MAX_PAGES", 5),
		MaxResults:    getInt("COLLECTOR_MAX_RESULTS", 200),
		SamplePath:    getEnv("COLLECTOR_SAMPLE_PATH", ""),
		Schedule:      getEnv("COLLECTOR_SCHEDULE", ""),
		Direct:        getBool("COLLECTOR_DIRECT", false),
	}

	if len(c.Queries) == 0 {
		return nil, fmt.Errorf("COLLECTOR_QUERIES must contain at least one query")
	}
	if c.MaxPages <= 0 {
		return nil, fmt.Errorf("COLLECTOR_MAX_PAGES must be positive")
	}
	if c.MaxResults <= 0 {
		return nil, fmt.Errorf("COLLECTOR_MAX_RESULTS must be positive")
	}
	if c.SamplePath == "" && (c.AdzunaAppID == "" || c.AdzunaAppKey == "") {
		return nil, fmt.Errorf("missing ADZUNA_APP_ID / ADZUNA_APP_KEY (or set COLLECTOR_SAMPLE_PATH)")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:      common,
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage: getInt("API_PAGE_SIZE", 20),
		MaxPage:     getInt("API_MAX_PAGE_SIZE", 100),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

// LoadReextract builds a Reextract config from environment variables.
func LoadReextract() (*Reextract, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Reextract{
		Common:   common,
		Interval: getDuration("REEXTRACT_INTERVAL", "1h"),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("REEXTRACT_INTERVAL must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
