package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soak47/job-market-tracker/internal/config"
)

// clearEnv blanks every variable the loaders read so a developer .env or
// shell export cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV_FILE", "STORE_BACKEND", "ELASTICSEARCH_ADDR", "ELASTICSEARCH_JOBS_INDEX", "ELASTICSEARCH_SKILLS_INDEX",
		"DATABASE_URL", "VOCABULARY_PATH", "KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_CONSUMER_GROUP",
		"REDIS_URL", "WORKER_DEDUPE_CAPACITY", "WORKER_DEDUPE_TTL", "WORKER_BATCH_SIZE", "WORKER_FLUSH_INTERVAL",
		"ADZUNA_APP_ID", "ADZUNA_APP_KEY", "ADZUNA_COUNTRY", "COLLECTOR_QUERIES", "COLLECTOR_WHERE",
		"COLLECTOR_MAX_PAGES", "COLLECTOR_MAX_RESULTS", "COLLECTOR_SAMPLE_PATH", "COLLECTOR_SCHEDULE", "COLLECTOR_DIRECT",
		"API_BIND_ADDR", "API_PAGE_SIZE", "API_MAX_PAGE_SIZE", "REEXTRACT_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadWorkerDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, config.BackendElasticsearch, cfg.StoreBackend)
	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "jobs", cfg.ElasticsearchJobsIndex)
	require.Equal(t, "job_skills", cfg.ElasticsearchSkillsIndex)
	require.Equal(t, "config/skills.yml", cfg.VocabularyPath)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "jobs_raw", cfg.KafkaTopic)
	require.Equal(t, "jobs-worker", cfg.KafkaConsumer)
	require.Equal(t, 200, cfg.BatchSize)
	require.Equal(t, 5*time.Second, cfg.FlushInterval)
	require.Equal(t, 720*time.Hour, cfg.DedupeTTL)
	require.Empty(t, cfg.RedisURL)
}

func TestLoadWorkerOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ELASTICSEARCH_JOBS_INDEX", "j")
	t.Setenv("ELASTICSEARCH_SKILLS_INDEX", "s")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093,")
	t.Setenv("KAFKA_TOPIC", "custom_topic")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")
	t.Setenv("WORKER_BATCH_SIZE", "3")
	t.Setenv("WORKER_FLUSH_INTERVAL", "750ms")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "j", cfg.ElasticsearchJobsIndex)
	require.Equal(t, "s", cfg.ElasticsearchSkillsIndex)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "custom_topic", cfg.KafkaTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 3, cfg.BatchSize)
	require.Equal(t, 750*time.Millisecond, cfg.FlushInterval)
}

func TestLoadWorkerInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "batch size", env: map[string]string{"WORKER_BATCH_SIZE": "0"}, want: "WORKER_BATCH_SIZE"},
		{name: "dedupe capacity", env: map[string]string{"WORKER_DEDUPE_CAPACITY": "-1"}, want: "WORKER_DEDUPE_CAPACITY"},
		{name: "brokers", env: map[string]string{"KAFKA_BROKERS": " , "}, want: "KAFKA_BROKERS"},
		{name: "backend", env: map[string]string{"STORE_BACKEND": "mongo"}, want: "STORE_BACKEND"},
		{name: "postgres without url", env: map[string]string{"STORE_BACKEND": "postgres"}, want: "DATABASE_URL"},
		{name: "same index", env: map[string]string{"ELASTICSEARCH_JOBS_INDEX": "x", "ELASTICSEARCH_SKILLS_INDEX": "x"}, want: "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadWorker()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCollector(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADZUNA_APP_ID", "id")
	t.Setenv("ADZUNA_APP_KEY", "key")
	t.Setenv("ADZUNA_COUNTRY", "GB")
	t.Setenv("COLLECTOR_QUERIES", "analyst, bi developer")
	t.Setenv("COLLECTOR_SCHEDULE", "@every 6h")
	t.Setenv("COLLECTOR_DIRECT", "true")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/jobs")

	cfg, err := config.LoadCollector()
	require.NoError(t, err)

	require.Equal(t, "gb", cfg.AdzunaCountry)
	require.Equal(t, []string{"analyst", "bi developer"}, cfg.Queries)
	require.Equal(t, 5, cfg.MaxPages)
	require.Equal(t, 200, cfg.MaxResults)
	require.Equal(t, "@every 6h", cfg.Schedule)
	require.True(t, cfg.Direct)
	require.Equal(t, config.BackendPostgres, cfg.StoreBackend)
}

func TestLoadCollectorCredentials(t *testing.T) {
	clearEnv(t)

	_, err := config.LoadCollector()
	require.ErrorContains(t, err, "ADZUNA_APP_ID")

	t.Setenv("COLLECTOR_SAMPLE_PATH", "data/sample_adzuna.json")
	cfg, err := config.LoadCollector()
	require.NoError(t, err)
	require.Equal(t, "data/sample_adzuna.json", cfg.SamplePath)
	require.False(t, cfg.Direct)
}

func TestLoadAPI(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)

	t.Setenv("API_PAGE_SIZE", "500")
	_, err = config.LoadAPI()
	require.ErrorContains(t, err, "API_PAGE_SIZE cannot exceed")
}

func TestLoadReextract(t *testing.T) {
	clearEnv(t)
	t.Setenv("REEXTRACT_INTERVAL", "15m")
	t.Setenv("VOCABULARY_PATH", "/etc/jobs/skills.yml")

	cfg, err := config.LoadReextract()
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, cfg.Interval)
	require.Equal(t, "/etc/jobs/skills.yml", cfg.VocabularyPath)

	t.Setenv("REEXTRACT_INTERVAL", "garbage")
	cfg, err = config.LoadReextract()
	require.NoError(t, err)
	require.Equal(t, time.Hour, cfg.Interval)
}
