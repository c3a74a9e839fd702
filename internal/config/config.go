// Package config loads settings from the environment, an optional .env file
// and an optional YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendPostgres  = "postgres"
	BackendSurrealDB = "surrealdb"
)

// Provider names shared by the embedding and LLM settings.
const (
	ProviderBedrock   = "bedrock"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type embedDefault struct {
	model     string
	dimension int
}

// Defaults applied when EMBED_MODEL / EMBED_DIMENSION / LLM_MODEL are unset.
var (
	embedDefaults = map[string]embedDefault{
		ProviderBedrock: {"amazon.titan-embed-text-v2:0", 1024},
		ProviderOllama:  {"mxbai-embed-large", 1024},
		ProviderOpenAI:  {"text-embedding-3-small", 1536},
	}
	llmDefaults = map[string]string{
		ProviderBedrock:   "anthropic.claude-3-haiku-20240307-v1:0",
		ProviderOllama:    "llama3.1",
		ProviderOpenAI:    "gpt-4o-mini",
		ProviderAnthropic: "claude-3-5-haiku-latest",
	}
)

// Config holds all configuration values.
type Config struct {
	// Journal
	JournalPath string
	Collection  string

	// Storage
	Backend  string
	Postgres PostgresConfig

	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Embeddings
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int

	// Language model
	LLMProvider string
	LLMModel    string

	// Provider credentials
	AWSRegion        string
	BedrockAccessKey string
	BedrockSecretKey string
	OllamaHost       string
	OpenAIAPIKey     string
	AnthropicAPIKey  string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// MCP streamable HTTP listen address; stdio when empty.
	HTTPAddr string
}

// PostgresConfig holds the pgvector connection settings.
type PostgresConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	DB       string
	Schema   string
	SSLMode  string
}

// DSN returns a libpq keyword/value connection string. The schema goes first
// on the search_path so unqualified table names resolve into it.
func (p PostgresConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		p.Host, p.User, p.Password, p.DB, p.Port, p.SSLMode)
	if p.Schema != "" {
		dsn += fmt.Sprintf(" search_path=%s,public", p.Schema)
	}
	return dsn
}

// ConfigFileEnv names the optional YAML config file.
const ConfigFileEnv = "LOGSEQ_RAG_CONFIG"

// Load reads configuration. Precedence: environment (including .env),
// then the YAML file named by LOGSEQ_RAG_CONFIG, then defaults.
func Load() Config {
	// A missing .env is normal.
	_ = godotenv.Load()

	file, err := readFile(os.Getenv(ConfigFileEnv))
	if err != nil {
		slog.Warn("ignoring config file", "file", os.Getenv(ConfigFileEnv), "error", err)
	}
	return load(file)
}

func load(file map[string]string) Config {
	get := func(key, defaultVal string) string {
		return getEnv(file, key, defaultVal)
	}
	// Upstream scripts used TEST_-prefixed names for the database.
	pg := func(key, defaultVal string) string {
		return get("PGVECTOR_"+key, get("TEST_PGVECTOR_"+key, defaultVal))
	}

	embedProvider := strings.ToLower(get("EMBED_PROVIDER", ProviderBedrock))
	llmProvider := strings.ToLower(get("LLM_PROVIDER", ProviderBedrock))
	embedDef := embedDefaults[embedProvider]

	return Config{
		JournalPath: get("LOGSEQ_JOURNAL_PATH", ""),
		Collection:  get("LOGSEQ_RAG_COLLECTION", "Logseq Journal"),

		Backend: strings.ToLower(get("LOGSEQ_RAG_BACKEND", BackendPostgres)),
		Postgres: PostgresConfig{
			User:     pg("USERNAME", "postgres"),
			Password: pg("PASSWORD", "postgres"),
			Host:     pg("HOST", "localhost"),
			Port:     pg("PORT", "5432"),
			DB:       pg("DB", "postgres"),
			Schema:   pg("SCHEMA", "logseq"),
			SSLMode:  pg("SSLMODE", "disable"),
		},

		SurrealDBURL:       get("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: get("SURREALDB_NAMESPACE", "logseq"),
		SurrealDBDatabase:  get("SURREALDB_DATABASE", "journal"),
		SurrealDBUser:      get("SURREALDB_USER", "root"),
		SurrealDBPass:      get("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: get("SURREALDB_AUTH_LEVEL", "root"),

		EmbedProvider:  embedProvider,
		EmbedModel:     get("EMBED_MODEL", embedDef.model),
		EmbedDimension: parseInt(get("EMBED_DIMENSION", ""), embedDef.dimension),

		LLMProvider: llmProvider,
		LLMModel:    get("LLM_MODEL", llmDefaults[llmProvider]),

		AWSRegion:        get("AWS_REGION", "us-west-2"),
		BedrockAccessKey: get("BEDROCK_IAM_ACCESS_KEY", ""),
		BedrockSecretKey: get("BEDROCK_IAM_SECRET_KEY", ""),
		OllamaHost:       get("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:     get("OPENAI_API_KEY", ""),
		AnthropicAPIKey:  get("ANTHROPIC_API_KEY", ""),

		LogFile:  get("LOGSEQ_RAG_LOG_FILE", "/tmp/logseq-rag.log"),
		LogLevel: parseLogLevel(get("LOGSEQ_RAG_LOG_LEVEL", "INFO")),

		HTTPAddr: get("LOGSEQ_RAG_HTTP_ADDR", ""),
	}
}

// readFile parses a flat YAML mapping of setting names to values.
func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}

func getEnv(file map[string]string, key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if val, ok := file[key]; ok && val != "" {
		return val
	}
	return defaultVal
}

func parseInt(s string, defaultVal int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
