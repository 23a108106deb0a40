package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Search struct {
	SerperAPIKey string        `env:"SERPER_API_KEY,required,notEmpty"`
	BaseURL      string        `env:"SERPER_BASE_URL"                  envDefault:"https://google.serper.dev"`
	GL           string        `env:"SERPER_GL"                        envDefault:"us"`
	HL           string        `env:"SERPER_HL"                        envDefault:"en"`
	Num          int           `env:"SERPER_NUM"                       envDefault:"10"`
	Timeout      time.Duration `env:"SERPER_TIMEOUT"                   envDefault:"15s"`
}

type Fetch struct {
	Timeout      time.Duration `env:"FETCH_TIMEOUT"        envDefault:"10s"`
	Workers      int           `env:"FETCH_WORKERS"        envDefault:"10"`
	MaxBodyBytes int64         `env:"FETCH_MAX_BODY_BYTES" envDefault:"5242880"`
	UserAgent    string        `env:"FETCH_USER_AGENT"`
}

type LLM struct {
	APIKey     string        `env:"GEMINI_API_KEY,required,notEmpty"`
	BaseURL    string        `env:"LLM_BASE_URL"                     envDefault:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	Model      string        `env:"LLM_MODEL"                        envDefault:"gemini-2.5-pro"`
	MaxRetries int           `env:"LLM_MAX_RETRIES"                  envDefault:"2"`
	Timeout    time.Duration `env:"LLM_TIMEOUT"                      envDefault:"60s"`
}

type QueryLog struct {
	// Path empty disables the query log.
	Path      string        `env:"QUERY_LOG_PATH"`
	Retention time.Duration `env:"QUERY_LOG_RETENTION"  envDefault:"720h"`
	PruneSpec string        `env:"QUERY_LOG_PRUNE_SPEC" envDefault:"0 3 * * *"`
}

// Server configures the serve command.
type Server struct {
	Addr            string        `env:"SERVER_ADDR"          envDefault:"localhost:5001"`
	RateLimit       float64       `env:"SERVER_RATE_LIMIT"    envDefault:"0"`
	AllowOrigins    []string      `env:"SERVER_ALLOW_ORIGINS" envDefault:"*"`
	PipelineTimeout time.Duration `env:"PIPELINE_TIMEOUT"     envDefault:"0s"`
	LogLevel        slog.Level    `env:"LOG_LEVEL"            envDefault:"info"`

	Search   Search
	Fetch    Fetch
	LLM      LLM
	QueryLog QueryLog
}

// Client configures the commands that talk to a running server.
type Client struct {
	BaseURL  string        `env:"RAGSEARCH_URL"  envDefault:"http://localhost:5001"`
	Timeout  time.Duration `env:"CLIENT_TIMEOUT" envDefault:"120s"`
	LogLevel slog.Level    `env:"LOG_LEVEL"      envDefault:"info"`
}

type Bot struct {
	Token         string        `env:"TOKEN,required,notEmpty"`
	AllowedUsers  []int64       `env:"ALLOWED_USERS"`
	QueryInterval time.Duration `env:"BOT_QUERY_INTERVAL"      envDefault:"5s"`

	Client
}

func LoadServer() (Server, error) {
	cfg, err := env.ParseAs[Server]()
	if err != nil {
		return Server{}, fmt.Errorf("parse server config: %w", err)
	}

	return cfg, nil
}

func LoadQueryLog() (QueryLog, error) {
	cfg, err := env.ParseAs[QueryLog]()
	if err != nil {
		return QueryLog{}, fmt.Errorf("parse query log config: %w", err)
	}

	return cfg, nil
}

func LoadClient() (Client, error) {
	cfg, err := env.ParseAs[Client]()
	if err != nil {
		return Client{}, fmt.Errorf("parse client config: %w", err)
	}

	return cfg, nil
}

func LoadBot() (Bot, error) {
	cfg, err := env.ParseAs[Bot]()
	if err != nil {
		return Bot{}, fmt.Errorf("parse bot config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are not an error; variables already set are kept.
func LoadDotEnv(filenames ...string) (bool, error) {
	if err := godotenv.Load(filenames...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("load .env: %w", err)
	}

	return true, nil
}
