// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Solver    SolverConfig    `mapstructure:"solver"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Store     StoreConfig     `mapstructure:"store"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ShutdownSeconds int `mapstructure:"shutdown_seconds"`
}

// IdentityConfig is the student identity included in every submission.
type IdentityConfig struct {
	Email  string `mapstructure:"email"`
	Secret string `mapstructure:"secret"`
}

// LLMConfig configures the model backend.
type LLMConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// SolverConfig governs the quiz-chain engine.
type SolverConfig struct {
	BudgetSeconds        int `mapstructure:"budget_seconds"`
	MaxQuizzes           int `mapstructure:"max_quizzes"`
	MaxWrongRetries      int `mapstructure:"max_wrong_retries"`
	SubmitTimeoutSeconds int `mapstructure:"submit_timeout_seconds"`
	SourceTimeoutSeconds int `mapstructure:"source_timeout_seconds"`
	PDFPreviewBytes      int `mapstructure:"pdf_preview_bytes"`
}

// HTTPConfig configures the plain HTTP fetch path.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MaxParallel   int     `mapstructure:"max_parallel"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS     float64 `mapstructure:"domain_qps"`
}

// WorkerConfig governs dispatcher fan-out.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// StoreConfig selects and configures job persistence.
type StoreConfig struct {
	Provider string         `mapstructure:"provider"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the pgx connection pool.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// StorageConfig selects and configures blob persistence for page snapshots.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"`
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PublisherConfig selects the chain-event publisher.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUIZD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The deployed image configures these three via bare environment
	// variables, so honor both spellings.
	bindEnvs(v, "llm.api_key", "QUIZD_LLM_API_KEY", "GEMINI_API_KEY")
	bindEnvs(v, "identity.email", "QUIZD_IDENTITY_EMAIL", "STUDENT_EMAIL")
	bindEnvs(v, "identity.secret", "QUIZD_IDENTITY_SECRET", "STUDENT_SECRET")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func bindEnvs(v *viper.Viper, key string, envs ...string) {
	args := append([]string{key}, envs...)
	// BindEnv only errors on an empty key.
	_ = v.BindEnv(args...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 7860)
	v.SetDefault("server.shutdown_seconds", 10)
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("solver.budget_seconds", 170)
	v.SetDefault("solver.max_quizzes", 100)
	v.SetDefault("solver.max_wrong_retries", 3)
	v.SetDefault("solver.submit_timeout_seconds", 20)
	v.SetDefault("solver.source_timeout_seconds", 15)
	v.SetDefault("solver.pdf_preview_bytes", 500)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 60)
	v.SetDefault("headless.domain_qps", 0.5)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_depth", 64)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.postgres.table", "quiz_jobs")
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "data/pages")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("publisher.provider", "none")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Solver.BudgetSeconds <= 0 {
		return fmt.Errorf("solver.budget_seconds must be > 0")
	}
	if c.Solver.MaxQuizzes <= 0 {
		return fmt.Errorf("solver.max_quizzes must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Store.Provider {
	case "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store provider: %s", c.Store.Provider)
	}
	switch c.Storage.Provider {
	case "local", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	switch c.Publisher.Provider {
	case "none", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicID == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_id are required for pubsub")
		}
	default:
		return fmt.Errorf("unknown publisher provider: %s", c.Publisher.Provider)
	}
	return nil
}

// ValidateIdentity enforces the credentials the solver needs at runtime.
// Kept separate from Validate so build-time commands can run without them.
func (c Config) ValidateIdentity() error {
	if c.Identity.Email == "" {
		return fmt.Errorf("identity.email is required (STUDENT_EMAIL)")
	}
	if c.Identity.Secret == "" {
		return fmt.Errorf("identity.secret is required (STUDENT_SECRET)")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (GEMINI_API_KEY)")
	}
	return nil
}

// ChainBudget converts the solver budget into a duration.
func (c Config) ChainBudget() time.Duration {
	return time.Duration(c.Solver.BudgetSeconds) * time.Second
}

// SubmitTimeout returns the per-submission HTTP timeout.
func (c Config) SubmitTimeout() time.Duration {
	return time.Duration(c.Solver.SubmitTimeoutSeconds) * time.Second
}

// SourceTimeout returns the per-data-source fetch timeout.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Solver.SourceTimeoutSeconds) * time.Second
}
