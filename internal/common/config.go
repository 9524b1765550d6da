package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	OCR        OCRConfig        `yaml:"ocr"`
	LLM        LLMConfig        `yaml:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Logging    LoggingConfig    `yaml:"logging"`

	PresetsPath string `yaml:"presets_path"`
}

// DatabaseConfig holds database-related configuration.
// DSN is either a sqlite file path or a postgres:// URL.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// StorageConfig points at the S3-compatible bucket that backs the file store.
type StorageConfig struct {
	// Backend is "s3" or "local". Local folders are directories under LocalRoot.
	Backend      string   `yaml:"backend"`
	LocalRoot    string   `yaml:"local_root"`
	Endpoint     string   `yaml:"endpoint"`
	AccessKey    string   `yaml:"access_key"`
	SecretKey    string   `yaml:"secret_key"`
	Bucket       string   `yaml:"bucket"`
	Region       string   `yaml:"region"`
	UseSSL       bool     `yaml:"use_ssl"`
	IncludeGlobs []string `yaml:"include_globs"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TesseractLang string `yaml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	DPI           int    `yaml:"dpi"`
	MaxPages      int    `yaml:"max_pages"`
	// Preprocess adds a second tesseract pass over an upscaled grayscale copy of each image.
	Preprocess    bool   `yaml:"preprocess"`
	HeicConverter string `yaml:"heic_converter"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	VisionModel       string        `yaml:"vision_model"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxImagePages     int           `yaml:"max_image_pages"`
	MaxImageWidth     int           `yaml:"max_image_width"`
}

// EmbeddingsConfig selects the similarity embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider"` // none | openai | ollama
	Model      string `yaml:"model"`
	OllamaHost string `yaml:"ollama_host"`
	Dimension  int    `yaml:"dimension"`
}

// ClassifierConfig holds the decision thresholds.
type ClassifierConfig struct {
	MatchThreshold        float64 `yaml:"match_threshold"`
	LexicalMatchThreshold float64 `yaml:"lexical_match_threshold"`
	AmbiguityMargin       float64 `yaml:"ambiguity_margin"`
	// StrictAmbiguity requires the runner-up to reach the threshold before a
	// close call is reported as AMBIGUOUS.
	StrictAmbiguity       bool    `yaml:"strict_ambiguity"`
	LLMLabelMinConfidence float64 `yaml:"llm_label_min_confidence"`
}

// PipelineConfig bounds per-file parallelism.
type PipelineConfig struct {
	Workers     int           `yaml:"workers"`
	FileTimeout time.Duration `yaml:"file_timeout"`
}

// LoggingConfig selects the log level and optional JSON log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             "./app.db",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			DialTimeout:     3 * time.Second,
			QueryTimeout:    5 * time.Second,
		},
		Server: ServerConfig{GRPCAddr: ":8080"},
		Storage: StorageConfig{
			Backend:      "local",
			LocalRoot:    ".",
			Region:       "us-east-1",
			UseSSL:       true,
			IncludeGlobs: []string{"*.{pdf,PDF,jpg,JPG,jpeg,JPEG,png,PNG,tif,tiff,txt}"},
		},
		OCR: OCRConfig{
			TesseractLang: "eng",
			DPI:           300,
			MaxPages:      10,
		},
		LLM: LLMConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			VisionModel:       "gpt-4o-mini",
			Temperature:       0.0,
			Timeout:           45 * time.Second,
			RequestsPerMinute: 60,
			MaxImagePages:     3,
			MaxImageWidth:     1600,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "none",
			Model:      "text-embedding-3-small",
			OllamaHost: "http://localhost:11434",
			Dimension:  0,
		},
		Classifier: ClassifierConfig{
			MatchThreshold:        0.6,
			LexicalMatchThreshold: 0.2,
			AmbiguityMargin:       0.02,
			StrictAmbiguity:       true,
			LLMLabelMinConfidence: 0.6,
		},
		Pipeline: PipelineConfig{
			Workers:     4,
			FileTimeout: 3 * time.Minute,
		},
		Logging:     LoggingConfig{Level: "info"},
		PresetsPath: "./presets.yaml",
	}
}

// LoadConfig layers defaults, an optional YAML file, then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("RENAMER_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse config file "+path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", int(c.Database.MaxConns)))
	c.Database.QueryTimeout = getEnvAsDuration("DB_QUERY_TIMEOUT", c.Database.QueryTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.Storage.Backend = strings.ToLower(getEnv("FILESTORE_BACKEND", c.Storage.Backend))
	c.Storage.LocalRoot = getEnv("FILESTORE_ROOT", c.Storage.LocalRoot)
	c.Storage.Endpoint = getEnv("S3_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnv("S3_ACCESS_KEY", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("S3_SECRET_KEY", c.Storage.SecretKey)
	c.Storage.Bucket = getEnv("S3_BUCKET", c.Storage.Bucket)
	c.Storage.Region = getEnv("S3_REGION", c.Storage.Region)
	c.Storage.UseSSL = getEnvAsBool("S3_USE_SSL", c.Storage.UseSSL)
	if v := os.Getenv("FILE_INCLUDE_GLOBS"); v != "" {
		c.Storage.IncludeGlobs = splitList(v)
	}

	c.OCR.TesseractLang = getEnv("TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.DPI = getEnvAsInt("OCR_DPI", c.OCR.DPI)
	c.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", c.OCR.MaxPages)
	c.OCR.Preprocess = getEnvAsBool("OCR_PREPROCESS", c.OCR.Preprocess)
	c.OCR.HeicConverter = getEnv("OCR_HEIC_CONVERTER", c.OCR.HeicConverter)

	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.VisionModel = getEnv("OPENAI_VISION_MODEL", c.LLM.VisionModel)
	c.LLM.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)
	c.LLM.RequestsPerMinute = getEnvAsInt("LLM_REQUESTS_PER_MINUTE", c.LLM.RequestsPerMinute)
	c.LLM.MaxImagePages = getEnvAsInt("LLM_EXTRACT_MAX_IMAGE_PAGES", c.LLM.MaxImagePages)
	c.LLM.MaxImageWidth = getEnvAsInt("LLM_MAX_IMAGE_WIDTH", c.LLM.MaxImageWidth)

	c.Embeddings.Provider = strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", c.Embeddings.Provider))
	c.Embeddings.Model = getEnv("EMBEDDINGS_MODEL", c.Embeddings.Model)
	c.Embeddings.OllamaHost = getEnv("OLLAMA_HOST", c.Embeddings.OllamaHost)
	c.Embeddings.Dimension = getEnvAsInt("EMBEDDINGS_DIMENSION", c.Embeddings.Dimension)

	c.Classifier.MatchThreshold = getEnvAsFloat64("MATCH_THRESHOLD", c.Classifier.MatchThreshold)
	c.Classifier.LexicalMatchThreshold = getEnvAsFloat64("LEXICAL_MATCH_THRESHOLD", c.Classifier.LexicalMatchThreshold)
	c.Classifier.AmbiguityMargin = getEnvAsFloat64("AMBIGUITY_MARGIN", c.Classifier.AmbiguityMargin)
	c.Classifier.StrictAmbiguity = getEnvAsBool("AMBIGUITY_STRICT", c.Classifier.StrictAmbiguity)
	c.Classifier.LLMLabelMinConfidence = getEnvAsFloat64("LLM_LABEL_MIN_CONFIDENCE", c.Classifier.LLMLabelMinConfidence)

	c.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", c.Pipeline.Workers)
	c.Pipeline.FileTimeout = getEnvAsDuration("PIPELINE_FILE_TIMEOUT", c.Pipeline.FileTimeout)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.File = getEnv("LOG_FILE", c.Logging.File)

	c.PresetsPath = getEnv("PRESETS_PATH", c.PresetsPath)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("DB_URL", c.Database.DSN, Required)
	if c.Classifier.MatchThreshold < -1 || c.Classifier.MatchThreshold > 1 {
		v.Add("MATCH_THRESHOLD", c.Classifier.MatchThreshold, "must be within [-1, 1]")
	}
	if c.Classifier.LexicalMatchThreshold < 0 || c.Classifier.LexicalMatchThreshold > 1 {
		v.Add("LEXICAL_MATCH_THRESHOLD", c.Classifier.LexicalMatchThreshold, "must be within [0, 1]")
	}
	if c.Classifier.AmbiguityMargin < 0 {
		v.Add("AMBIGUITY_MARGIN", c.Classifier.AmbiguityMargin, "must not be negative")
	}
	if c.Classifier.LLMLabelMinConfidence < 0 || c.Classifier.LLMLabelMinConfidence > 1 {
		v.Add("LLM_LABEL_MIN_CONFIDENCE", c.Classifier.LLMLabelMinConfidence, "must be within [0, 1]")
	}
	switch c.Storage.Backend {
	case "local":
		v.Field("FILESTORE_ROOT", c.Storage.LocalRoot, Required)
	case "s3":
		v.Field("S3_ENDPOINT", c.Storage.Endpoint, Required)
		v.Field("S3_BUCKET", c.Storage.Bucket, Required)
	default:
		v.Add("FILESTORE_BACKEND", c.Storage.Backend, "must be one of local, s3")
	}
	switch c.Embeddings.Provider {
	case "", "none", "ollama":
	case "openai":
		if c.LLM.APIKey == "" {
			v.Add("OPENAI_API_KEY", nil, "is required when EMBEDDINGS_PROVIDER=openai")
		}
	default:
		v.Add("EMBEDDINGS_PROVIDER", c.Embeddings.Provider, "must be one of none, openai, ollama")
	}
	if c.Pipeline.Workers < 1 {
		v.Add("PIPELINE_WORKERS", c.Pipeline.Workers, "must be at least 1")
	}
	if err := v.Error(); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	return nil
}

// EmbeddingsEnabled reports whether a similarity embedding provider is configured.
func (c *Config) EmbeddingsEnabled() bool {
	p := strings.ToLower(c.Embeddings.Provider)
	return p != "" && p != "none"
}

// LLMEnabled reports whether the structured generation capability can be built.
func (c *Config) LLMEnabled() bool { return c.LLM.APIKey != "" }

// String renders the config without secrets, for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("db=%s s3=%s/%s llm=%s embeddings=%s workers=%d",
		redactDSN(c.Database.DSN), c.Storage.Endpoint, c.Storage.Bucket, c.LLM.Model, c.Embeddings.Provider, c.Pipeline.Workers)
}

func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "@"); i > 0 && strings.Contains(dsn, "://") {
		return dsn[:strings.Index(dsn, "://")+3] + "***" + dsn[i:]
	}
	return dsn
}
