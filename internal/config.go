package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron/v3"

	"github.com/starford/playbooksync/internal/models"
)

// Repository drivers.
const (
	DriverFS     = "fs"
	DriverGitHub = "github"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Repository RepositoryConfig  `yaml:"repository"`
	Embedding  EmbeddingConfig   `yaml:"embedding"`
	LLM        LLMConfig         `yaml:"llm"`
	Thresholds ThresholdsConfig  `yaml:"thresholds"`
	Orphans    OrphansConfig     `yaml:"orphans"`
	Modules    []models.Module   `yaml:"modules"`
	Publish    PublishConfig     `yaml:"publish"`
	Schedule   ScheduleConfig    `yaml:"schedule"`
	Run        RunConfig         `yaml:"run"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"sqlite", &c.SQLite},
		{"repository", &c.Repository},
		{"embedding", &c.Embedding},
		{"llm", &c.LLM},
		{"thresholds", &c.Thresholds},
		{"orphans", &c.Orphans},
		{"publish", &c.Publish},
		{"schedule", &c.Schedule},
		{"run", &c.Run},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return validateModules(c.Modules)
}

func validateModules(modules []models.Module) error {
	seen := make(map[string]bool, len(modules))
	for i, m := range modules {
		if m.ID == "" {
			return fmt.Errorf("modules[%d]: id: cannot be blank", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("modules[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// RepositoryConfig selects and configures the document repository.
type RepositoryConfig struct {
	Driver    string       `yaml:"driver"`
	DocsRoot  string       `yaml:"docs_root"`
	IndexFile string       `yaml:"index_file"`
	FS        FSConfig     `yaml:"fs"`
	GitHub    GitHubConfig `yaml:"github"`
}

// FSConfig is the local working-tree driver.
type FSConfig struct {
	Path string `yaml:"path"`
}

// GitHubConfig is the GitHub driver. Commits go straight to Branch.
type GitHubConfig struct {
	Owner  string `yaml:"owner"`
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`
	Token  string `yaml:"token"`
}

// Validate validates the repository configuration.
func (c *RepositoryConfig) Validate() error {
	isFS := c.Driver == DriverFS
	isGitHub := c.Driver == DriverGitHub
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverFS, DriverGitHub)),
		validation.Field(&c.IndexFile, validation.Required),
		validation.Field(&c.FS, validation.By(func(any) error {
			return validation.ValidateStruct(&c.FS,
				validation.Field(&c.FS.Path, validation.When(isFS, validation.Required)),
			)
		})),
		validation.Field(&c.GitHub, validation.By(func(any) error {
			return validation.ValidateStruct(&c.GitHub,
				validation.Field(&c.GitHub.Owner, validation.When(isGitHub, validation.Required)),
				validation.Field(&c.GitHub.Repo, validation.When(isGitHub, validation.Required)),
				validation.Field(&c.GitHub.Token, validation.When(isGitHub, validation.Required)),
			)
		})),
	)
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	MaxChars    int    `yaml:"max_chars"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderOpenAI, ProviderOllama)),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.BaseURL, validation.When(c.Provider == ProviderOllama, validation.Required)),
		validation.Field(&c.APIKey, validation.When(c.Provider == ProviderOpenAI && c.BaseURL == "", validation.Required)),
		validation.Field(&c.BatchSize, validation.Min(0), validation.Max(2048)),
		validation.Field(&c.Concurrency, validation.Min(0), validation.Max(64)),
		validation.Field(&c.MaxChars, validation.Min(0)),
	)
}

// LLMConfig configures the language model used for classification,
// edit synthesis, clustering and drafting.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderOpenAI, ProviderOllama)),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.BaseURL, validation.When(c.Provider == ProviderOllama, validation.Required)),
		validation.Field(&c.APIKey, validation.When(c.Provider == ProviderOpenAI && c.BaseURL == "", validation.Required)),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
	)
}

// ThresholdsConfig holds the similarity cut-offs.
type ThresholdsConfig struct {
	Similarity float64 `yaml:"similarity"`
	FuzzyMatch float64 `yaml:"fuzzy_match"`
}

// Validate validates the thresholds.
func (c *ThresholdsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Similarity, validation.Required, validation.Max(1.0)),
		validation.Field(&c.FuzzyMatch, validation.Required, validation.Max(1.0)),
	)
}

// OrphansConfig controls new document creation.
type OrphansConfig struct {
	MinClusterTrigger int `yaml:"min_cluster_trigger"`
}

// Validate validates the orphan configuration.
func (c *OrphansConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinClusterTrigger, validation.Required, validation.Min(1)),
	)
}

// PublishConfig controls the commit step.
type PublishConfig struct {
	RetryDelay  time.Duration `yaml:"retry_delay"`
	AuthorName  string        `yaml:"author_name"`
	AuthorEmail string        `yaml:"author_email"`
}

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RetryDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.AuthorEmail, validation.When(c.AuthorName != "", validation.Required)),
	)
}

// ScheduleConfig controls the in-process weekly trigger of the serve command.
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// Validate validates the schedule.
func (c *ScheduleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Cron,
			validation.When(c.Enabled, validation.Required),
			validation.By(func(any) error {
				if c.Cron == "" {
					return nil
				}
				if _, err := cron.ParseStandard(c.Cron); err != nil {
					return errors.New("invalid cron expression")
				}
				return nil
			}),
		),
	)
}

// RunConfig bounds a single sync run.
type RunConfig struct {
	MaxDuration time.Duration `yaml:"max_duration"`
}

// Validate validates the run configuration.
func (c *RunConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxDuration, validation.Required, validation.Min(time.Minute)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./playbooksync.db",
		},
		Repository: RepositoryConfig{
			Driver:    DriverFS,
			DocsRoot:  "docs",
			IndexFile: "sidebars.js",
			FS:        FSConfig{Path: "./playbook"},
			GitHub:    GitHubConfig{Branch: "main"},
		},
		Embedding: EmbeddingConfig{
			Provider:    ProviderOpenAI,
			Model:       "text-embedding-3-small",
			BatchSize:   16,
			Concurrency: 4,
			MaxChars:    8000,
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
		},
		Thresholds: ThresholdsConfig{
			Similarity: 0.75,
			FuzzyMatch: 0.4,
		},
		Orphans: OrphansConfig{
			MinClusterTrigger: 3,
		},
		Publish: PublishConfig{
			RetryDelay: 2 * time.Second,
		},
		Schedule: ScheduleConfig{
			Enabled: true,
			Cron:    "0 6 * * 1",
		},
		Run: RunConfig{
			MaxDuration: 2 * time.Hour,
		},
	}
}
