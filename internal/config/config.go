package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docsplit/internal/chunker"
	"github.com/dgallion1/docsplit/internal/parser"
	"github.com/dgallion1/docsplit/internal/render"
)

type Config struct {
	Port string `yaml:"port"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	// Lark open platform
	Lark struct {
		AppID       string `yaml:"app_id"`
		AppSecret   string `yaml:"app_secret"`
		BaseURL     string `yaml:"base_url"`
		HostPattern string `yaml:"host_pattern"`
	} `yaml:"lark"`

	Render struct {
		UseHTMLTags bool `yaml:"use_html_tags"`
		MaxDepth    int  `yaml:"max_depth"`
		Strict      bool `yaml:"strict"`
	} `yaml:"render"`

	Chunk struct {
		Size           int     `yaml:"size"`
		LeafOverlap    int     `yaml:"leaf_overlap"`
		MergeThreshold int     `yaml:"merge_threshold"`
		MergeRatio     float64 `yaml:"merge_ratio"`
		MaxNodes       int     `yaml:"max_nodes"`
	} `yaml:"chunk"`

	// Worker pool and job state
	Pipeline struct {
		Workers        int           `yaml:"workers"`
		QueueSize      int           `yaml:"queue_size"`
		MaxUploadBytes int64         `yaml:"max_upload_bytes"`
		JobTTL         time.Duration `yaml:"job_ttl"`
	} `yaml:"pipeline"`

	Parser struct {
		PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
	} `yaml:"parser"`
}

const (
	DefaultLarkBaseURL     = "https://open.feishu.cn"
	DefaultLarkHostPattern = `[a-zA-Z0-9-]+\.(?:feishu\.cn|larksuite\.com)`
)

// Defaults returns the built-in configuration.
func Defaults() Config {
	var cfg Config
	cfg.Port = "8090"
	cfg.Log.Level = "info"
	cfg.Lark.BaseURL = DefaultLarkBaseURL
	cfg.Lark.HostPattern = DefaultLarkHostPattern
	cfg.Render.MaxDepth = 256
	cfg.Chunk.Size = 150
	cfg.Chunk.LeafOverlap = 20
	cfg.Chunk.MergeThreshold = 20
	cfg.Chunk.MergeRatio = 2
	cfg.Chunk.MaxNodes = 200000
	cfg.Pipeline.Workers = 4
	cfg.Pipeline.QueueSize = 100
	cfg.Pipeline.MaxUploadBytes = 52428800 // 50MB
	cfg.Pipeline.JobTTL = 1 * time.Hour
	cfg.Parser.PDFFallbackPdftotext = true
	return cfg
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a .env file in the working directory, and the environment, in
// increasing priority.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.Log.Level = envOr("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Pretty = envBool("LOG_PRETTY", cfg.Log.Pretty)

	cfg.Lark.AppID = envOr("LARK_APP_ID", cfg.Lark.AppID)
	cfg.Lark.AppSecret = envOr("LARK_APP_SECRET", cfg.Lark.AppSecret)
	cfg.Lark.BaseURL = envOr("LARK_BASE_URL", cfg.Lark.BaseURL)
	cfg.Lark.HostPattern = envOr("LARK_HOST_PATTERN", cfg.Lark.HostPattern)

	cfg.Render.UseHTMLTags = envBool("USE_HTML_TAGS", cfg.Render.UseHTMLTags)
	cfg.Render.MaxDepth = envInt("MAX_DEPTH", cfg.Render.MaxDepth)
	cfg.Render.Strict = envBool("STRICT_RENDER", cfg.Render.Strict)

	cfg.Chunk.Size = envInt("CHUNK_SIZE", cfg.Chunk.Size)
	cfg.Chunk.LeafOverlap = envInt("LEAF_OVERLAP", cfg.Chunk.LeafOverlap)
	cfg.Chunk.MergeThreshold = envInt("MERGE_THRESHOLD", cfg.Chunk.MergeThreshold)
	cfg.Chunk.MergeRatio = envFloat("MERGE_RATIO", cfg.Chunk.MergeRatio)
	cfg.Chunk.MaxNodes = envInt("MAX_NODES", cfg.Chunk.MaxNodes)

	cfg.Pipeline.Workers = envInt("WORKER_COUNT", cfg.Pipeline.Workers)
	cfg.Pipeline.QueueSize = envInt("MAX_QUEUE_SIZE", cfg.Pipeline.QueueSize)
	cfg.Pipeline.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.Pipeline.MaxUploadBytes)
	cfg.Pipeline.JobTTL = envDuration("JOB_TTL", cfg.Pipeline.JobTTL)

	cfg.Parser.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.Parser.PDFFallbackPdftotext)

	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults resets zero or negative values to their defaults.
func (c *Config) fillDefaults() {
	d := Defaults()
	if c.Port == "" {
		c.Port = d.Port
	}
	if c.Lark.BaseURL == "" {
		c.Lark.BaseURL = d.Lark.BaseURL
	}
	if c.Lark.HostPattern == "" {
		c.Lark.HostPattern = d.Lark.HostPattern
	}
	if c.Render.MaxDepth <= 0 {
		c.Render.MaxDepth = d.Render.MaxDepth
	}
	if c.Chunk.Size <= 0 {
		c.Chunk.Size = d.Chunk.Size
	}
	if c.Chunk.LeafOverlap < 0 {
		c.Chunk.LeafOverlap = d.Chunk.LeafOverlap
	}
	if c.Chunk.MergeThreshold < 0 {
		c.Chunk.MergeThreshold = d.Chunk.MergeThreshold
	}
	if c.Chunk.MaxNodes <= 0 {
		c.Chunk.MaxNodes = d.Chunk.MaxNodes
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = d.Pipeline.Workers
	}
	if c.Pipeline.QueueSize <= 0 {
		c.Pipeline.QueueSize = d.Pipeline.QueueSize
	}
	if c.Pipeline.MaxUploadBytes <= 0 {
		c.Pipeline.MaxUploadBytes = d.Pipeline.MaxUploadBytes
	}
	if c.Pipeline.JobTTL <= 0 {
		c.Pipeline.JobTTL = d.Pipeline.JobTTL
	}
}

func (c Config) Validate() error {
	if c.Chunk.LeafOverlap >= c.Chunk.Size {
		return fmt.Errorf("LEAF_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.Chunk.LeafOverlap, c.Chunk.Size)
	}
	if c.Chunk.MergeRatio <= 0 {
		return fmt.Errorf("MERGE_RATIO must be positive, got %v", c.Chunk.MergeRatio)
	}
	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("LARK_APP_SECRET is required when LARK_APP_ID is set")
	}
	return nil
}

// LarkEnabled reports whether Lark credentials are configured.
func (c Config) LarkEnabled() bool {
	return c.Lark.AppID != "" && c.Lark.AppSecret != ""
}

// ChunkConfig returns the chunker thresholds.
func (c Config) ChunkConfig() chunker.Config {
	return chunker.Config{
		ChunkSize:      c.Chunk.Size,
		LeafOverlap:    c.Chunk.LeafOverlap,
		MergeThreshold: c.Chunk.MergeThreshold,
		MergeRatio:     c.Chunk.MergeRatio,
		MaxDepth:       c.Render.MaxDepth,
		MaxNodes:       c.Chunk.MaxNodes,
	}
}

func (c Config) RenderOptions() render.Options {
	return render.Options{
		UseHTMLTags: c.Render.UseHTMLTags,
		MaxDepth:    c.Render.MaxDepth,
	}
}

func (c Config) ParserOptions() parser.Options {
	return parser.Options{PDFFallbackPdftotext: c.Parser.PDFFallbackPdftotext}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
