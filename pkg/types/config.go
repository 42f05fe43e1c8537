// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// AIConfig holds shared settings for components that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// EmbeddingBackend selects how text is turned into vectors.
type EmbeddingBackend string

const (
	EmbeddingHash   EmbeddingBackend = "hash"
	EmbeddingOllama EmbeddingBackend = "ollama"
)

// QABackend selects how answers are produced from context.
type QABackend string

const (
	QARules  QABackend = "rules"
	QAClaude QABackend = "claude"
)

// ModelConfig holds settings for the embedding and question answering models.
type ModelConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// ScientificEmbeddings names the embedding model sent to the remote
	// embedding service and used in cache keys.
	ScientificEmbeddings string `json:"scientific_embeddings" yaml:"scientific_embeddings" mapstructure:"scientific_embeddings"`

	// TextModel is recorded with processed papers for provenance.
	TextModel string `json:"text_model" yaml:"text_model" mapstructure:"text_model"`

	EmbeddingBackend EmbeddingBackend `json:"embedding_backend" yaml:"embedding_backend" mapstructure:"embedding_backend"`

	// EmbeddingURL is the base URL of the embedding service (Ollama API).
	EmbeddingURL string `json:"embedding_url" yaml:"embedding_url" mapstructure:"embedding_url"`

	QABackend QABackend `json:"qa_backend" yaml:"qa_backend" mapstructure:"qa_backend"`

	// QA configures the remote answer model used when QABackend is claude.
	QA AIConfig `json:"qa" yaml:"qa" mapstructure:"qa"`

	CacheDir     string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`
	MaxLength    int    `json:"max_length" yaml:"max_length" mapstructure:"max_length"`
	BatchSize    int    `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	EmbeddingDim int    `json:"embedding_dim" yaml:"embedding_dim" mapstructure:"embedding_dim"`
}

// ExtractorBackend selects the document text extractor.
type ExtractorBackend string

const (
	ExtractorNative     ExtractorBackend = "native"
	ExtractorMarkitdown ExtractorBackend = "markitdown"
)

// ProcessingConfig holds settings for document processing.
type ProcessingConfig struct {
	Extractor ExtractorBackend `json:"extractor" yaml:"extractor" mapstructure:"extractor"`

	ExtractTables   bool `json:"extract_tables" yaml:"extract_tables" mapstructure:"extract_tables"`
	ExtractFigures  bool `json:"extract_figures" yaml:"extract_figures" mapstructure:"extract_figures"`
	ParseReferences bool `json:"parse_references" yaml:"parse_references" mapstructure:"parse_references"`

	// MinSectionLength is the content length a section needs before it is
	// quoted in a paper summary.
	MinSectionLength int `json:"min_section_length" yaml:"min_section_length" mapstructure:"min_section_length"`

	MaxFileSize      int64    `json:"max_file_size" yaml:"max_file_size" mapstructure:"max_file_size"`
	SupportedFormats []string `json:"supported_formats" yaml:"supported_formats" mapstructure:"supported_formats"`

	TempDir      string `json:"temp_dir" yaml:"temp_dir" mapstructure:"temp_dir"`
	UploadDir    string `json:"upload_dir" yaml:"upload_dir" mapstructure:"upload_dir"`
	ProcessedDir string `json:"processed_dir" yaml:"processed_dir" mapstructure:"processed_dir"`

	// WatchDebounce delays ingestion of files that appear in a watched inbox.
	WatchDebounce time.Duration `json:"watch_debounce" yaml:"watch_debounce" mapstructure:"watch_debounce"`
}

// VectorDBType selects the vector index implementation.
type VectorDBType string

const (
	VectorSQLite   VectorDBType = "sqlite"
	VectorMemory   VectorDBType = "memory"
	VectorWeaviate VectorDBType = "weaviate"
)

// DatabaseConfig holds settings for metadata and vector storage.
type DatabaseConfig struct {
	VectorDBType VectorDBType `json:"vector_db_type" yaml:"vector_db_type" mapstructure:"vector_db_type"`

	// VectorDBPath is the directory holding the SQLite vector index.
	VectorDBPath   string `json:"vector_db_path" yaml:"vector_db_path" mapstructure:"vector_db_path"`
	CollectionName string `json:"collection_name" yaml:"collection_name" mapstructure:"collection_name"`

	// WeaviateURL is the vector-database sidecar address (e.g. "http://localhost:8002").
	WeaviateURL    string `json:"weaviate_url" yaml:"weaviate_url" mapstructure:"weaviate_url"`
	WeaviateAPIKey string `json:"weaviate_api_key,omitempty" yaml:"weaviate_api_key,omitempty" mapstructure:"weaviate_api_key"`

	MetadataDBPath string `json:"metadata_db_path" yaml:"metadata_db_path" mapstructure:"metadata_db_path"`

	// MaxResults caps search result counts.
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	CacheEnabled bool          `json:"cache_enabled" yaml:"cache_enabled" mapstructure:"cache_enabled"`
	CacheTTL     time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`

	// RedisAddr enables the shared embedding cache when set (host:port).
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db" mapstructure:"redis_db"`
}

// APIConfig holds settings for the HTTP API.
type APIConfig struct {
	Host    string `json:"host" yaml:"host" mapstructure:"host"`
	Port    int    `json:"port" yaml:"port" mapstructure:"port"`
	WebPort int    `json:"web_port" yaml:"web_port" mapstructure:"web_port"`

	// APIVersion mounts every route a second time under /api/<version>.
	APIVersion string `json:"api_version" yaml:"api_version" mapstructure:"api_version"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" mapstructure:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" mapstructure:"cors_origins"`

	RateLimitEnabled  bool          `json:"rate_limit_enabled" yaml:"rate_limit_enabled" mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `json:"rate_limit_requests" yaml:"rate_limit_requests" mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `json:"rate_limit_window" yaml:"rate_limit_window" mapstructure:"rate_limit_window"`

	AuthEnabled bool   `json:"auth_enabled" yaml:"auth_enabled" mapstructure:"auth_enabled"`
	JWTSecret   string `json:"jwt_secret,omitempty" yaml:"jwt_secret,omitempty" mapstructure:"jwt_secret"`

	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// Addr returns the host:port the API listens on.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SectionPattern maps a section type to the header keywords that introduce it.
type SectionPattern struct {
	Type     string   `json:"type" yaml:"type" mapstructure:"type"`
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`
}

// ResearchConfig holds settings for research-specific features.
type ResearchConfig struct {
	// SectionPatterns is ordered; the first matching pattern names a header.
	SectionPatterns []SectionPattern `json:"section_patterns" yaml:"section_patterns" mapstructure:"section_patterns"`

	// QAConfidenceThreshold is the confidence below which a cross-paper
	// answer is retried against the next most similar paper.
	QAConfidenceThreshold float64 `json:"qa_confidence_threshold" yaml:"qa_confidence_threshold" mapstructure:"qa_confidence_threshold"`
	MaxContextLength      int     `json:"max_context_length" yaml:"max_context_length" mapstructure:"max_context_length"`

	ExportFormats []string `json:"export_formats" yaml:"export_formats" mapstructure:"export_formats"`

	// EnrichMetadata fills missing metadata from arXiv, OpenAlex and
	// Semantic Scholar when the paper carries a DOI or arXiv id.
	EnrichMetadata        bool   `json:"enrich_metadata" yaml:"enrich_metadata" mapstructure:"enrich_metadata"`
	OpenAlexEmail         string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty" mapstructure:"openalex_email"`
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`
}

// ArchiveBackend selects where uploaded originals are kept.
type ArchiveBackend string

const (
	ArchiveNone  ArchiveBackend = "none"
	ArchiveLocal ArchiveBackend = "local"
	ArchiveS3    ArchiveBackend = "s3"
)

// ArchiveConfig holds settings for keeping uploaded source files.
type ArchiveConfig struct {
	Backend  ArchiveBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
	Bucket   string         `json:"bucket,omitempty" yaml:"bucket,omitempty" mapstructure:"bucket"`
	Prefix   string         `json:"prefix,omitempty" yaml:"prefix,omitempty" mapstructure:"prefix"`
	Region   string         `json:"region,omitempty" yaml:"region,omitempty" mapstructure:"region"`
	Endpoint string         `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`
}

// TelemetryConfig holds tracing settings. Tracing is off when OTLPEndpoint is empty.
type TelemetryConfig struct {
	OTLPEndpoint string `json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty" mapstructure:"otlp_endpoint"`
	ServiceName  string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	Insecure     bool   `json:"insecure" yaml:"insecure" mapstructure:"insecure"`
}

// Config is the complete application configuration.
type Config struct {
	Debug    bool   `json:"debug" yaml:"debug" mapstructure:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	Models     ModelConfig      `json:"models" yaml:"models" mapstructure:"models"`
	Processing ProcessingConfig `json:"processing" yaml:"processing" mapstructure:"processing"`
	Database   DatabaseConfig   `json:"database" yaml:"database" mapstructure:"database"`
	API        APIConfig        `json:"api" yaml:"api" mapstructure:"api"`
	Research   ResearchConfig   `json:"research" yaml:"research" mapstructure:"research"`
	Archive    ArchiveConfig    `json:"archive" yaml:"archive" mapstructure:"archive"`
	Telemetry  TelemetryConfig  `json:"telemetry" yaml:"telemetry" mapstructure:"telemetry"`
}

// DefaultSectionPatterns returns the built-in header keywords in match order.
func DefaultSectionPatterns() []SectionPattern {
	return []SectionPattern{
		{Type: "abstract", Keywords: []string{"abstract", "summary"}},
		{Type: "introduction", Keywords: []string{"introduction", "intro"}},
		{Type: "related_work", Keywords: []string{"related work", "background", "literature review"}},
		{Type: "methodology", Keywords: []string{"methodology", "methods", "approach", "model"}},
		{Type: "experiments", Keywords: []string{"experiments", "evaluation", "results"}},
		{Type: "discussion", Keywords: []string{"discussion", "analysis"}},
		{Type: "conclusion", Keywords: []string{"conclusion", "conclusions", "summary"}},
		{Type: "references", Keywords: []string{"references", "bibliography"}},
	}
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Models: ModelConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   60 * time.Second,
				UserAgent: "research-assistant/0.1",
			},
			ScientificEmbeddings: "sentence-transformers/all-mpnet-base-v2",
			TextModel:            "allenai/scibert_scivocab_uncased",
			EmbeddingBackend:     EmbeddingHash,
			EmbeddingURL:         "http://localhost:11434",
			QABackend:            QARules,
			QA: AIConfig{
				Model:      "claude-sonnet-4-5-20250929",
				MaxRetries: 3,
			},
			CacheDir:     "./models",
			MaxLength:    512,
			BatchSize:    16,
			EmbeddingDim: 768,
		},
		Processing: ProcessingConfig{
			Extractor:        ExtractorNative,
			ExtractTables:    true,
			ExtractFigures:   true,
			ParseReferences:  true,
			MinSectionLength: 100,
			MaxFileSize:      100 * 1024 * 1024,
			SupportedFormats: []string{".pdf", ".tex", ".txt"},
			TempDir:          "./data/temp",
			UploadDir:        "./data/uploads",
			ProcessedDir:     "./data/processed",
			WatchDebounce:    500 * time.Millisecond,
		},
		Database: DatabaseConfig{
			VectorDBType:   VectorSQLite,
			VectorDBPath:   "./data/vectorstore",
			CollectionName: "research_papers",
			WeaviateURL:    "http://localhost:8002",
			MetadataDBPath: "./data/papers.db",
			MaxResults:     20,
			CacheEnabled:   true,
			CacheTTL:       time.Hour,
		},
		API: APIConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			WebPort:           8501,
			APIVersion:        "v1",
			CORSEnabled:       true,
			CORSOrigins:       []string{"*"},
			RateLimitEnabled:  true,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Hour,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      5 * time.Minute,
			ShutdownTimeout:   15 * time.Second,
		},
		Research: ResearchConfig{
			SectionPatterns:       DefaultSectionPatterns(),
			QAConfidenceThreshold: 0.5,
			MaxContextLength:      2000,
			ExportFormats:         []string{"txt", "json", "bibtex"},
		},
		Archive: ArchiveConfig{
			Backend: ArchiveLocal,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "research-assistant",
		},
	}
}

// Validate reports the first configuration value that cannot work.
func (c Config) Validate() error {
	switch c.Models.EmbeddingBackend {
	case EmbeddingHash, EmbeddingOllama:
	default:
		return fmt.Errorf("models.embedding_backend: unknown backend %q", c.Models.EmbeddingBackend)
	}
	switch c.Models.QABackend {
	case QARules, QAClaude:
	default:
		return fmt.Errorf("models.qa_backend: unknown backend %q", c.Models.QABackend)
	}
	switch c.Processing.Extractor {
	case ExtractorNative, ExtractorMarkitdown:
	default:
		return fmt.Errorf("processing.extractor: unknown backend %q", c.Processing.Extractor)
	}
	switch c.Database.VectorDBType {
	case VectorSQLite, VectorMemory, VectorWeaviate:
	default:
		return fmt.Errorf("database.vector_db_type: unknown type %q", c.Database.VectorDBType)
	}
	switch c.Archive.Backend {
	case ArchiveNone, ArchiveLocal:
	case ArchiveS3:
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("archive.backend: unknown backend %q", c.Archive.Backend)
	}
	if c.Models.EmbeddingDim <= 0 {
		return fmt.Errorf("models.embedding_dim must be positive, got %d", c.Models.EmbeddingDim)
	}
	if c.Models.BatchSize <= 0 {
		return fmt.Errorf("models.batch_size must be positive, got %d", c.Models.BatchSize)
	}
	if c.Processing.MaxFileSize <= 0 {
		return fmt.Errorf("processing.max_file_size must be positive, got %d", c.Processing.MaxFileSize)
	}
	if c.Research.MaxContextLength <= 0 {
		return fmt.Errorf("research.max_context_length must be positive, got %d", c.Research.MaxContextLength)
	}
	if t := c.Research.QAConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("research.qa_confidence_threshold %v out of range [0,1]", t)
	}
	if c.API.AuthEnabled && c.API.JWTSecret == "" {
		return fmt.Errorf("api.jwt_secret is required when api.auth_enabled is set")
	}
	if c.API.RateLimitEnabled && (c.API.RateLimitRequests <= 0 || c.API.RateLimitWindow <= 0) {
		return fmt.Errorf("api rate limit needs positive rate_limit_requests and rate_limit_window")
	}
	return nil
}

// EnsureDirs creates the data directories the configuration points at.
func (c Config) EnsureDirs() error {
	dirs := []string{
		c.Processing.TempDir,
		c.Processing.UploadDir,
		c.Processing.ProcessedDir,
		filepath.Dir(c.Database.MetadataDBPath),
	}
	if c.Database.VectorDBType == VectorSQLite {
		dirs = append(dirs, c.Database.VectorDBPath)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
