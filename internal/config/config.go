package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Storage   StorageConfig
	Matching  MatchingConfig
	Web       WebConfig
	Auth      AuthConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type EmbeddingConfig struct {
	URL          string // face embedding server, defaults to http://localhost:8001
	Dim          int    // defaults to 512 (buffalo_l / ArcFace)
	Store        string // "file" (flat .npy files) or "postgres" (pgvector)
	MaxImageSize int    // images larger than this (either side) are downscaled before embedding
}

// PostgresVectorDim is the width of the canonical_embeddings.embedding column.
const PostgresVectorDim = 512

// Validate rejects embedding settings the selected store cannot hold.
func (e *EmbeddingConfig) Validate() error {
	switch e.Store {
	case "", "file":
		return nil
	case "postgres":
		if e.Dim != PostgresVectorDim {
			return fmt.Errorf("EMBEDDING_STORE=postgres stores vector(%d), but EMBEDDING_DIM is %d", PostgresVectorDim, e.Dim)
		}
		return nil
	default:
		return fmt.Errorf("unknown EMBEDDING_STORE %q (expected file or postgres)", e.Store)
	}
}

type StorageConfig struct {
	DataDir        string
	RawDir         string // enrollment images, <enrollment_no>_<filename>
	EnrollDir      string // canonical embeddings, <enrollment_no>__canonical.npy
	PredictionsDir string // probe images from recognition attempts
}

type MatchingConfig struct {
	Threshold float64 // minimum cosine similarity for a match
	Index     string  // "linear" or "hnsw"
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // CORS whitelist, localhost is always allowed
}

type AuthConfig struct {
	AdminPasswordHash string // bcrypt hash; empty disables admin auth
	JWTSecret         string
	TokenTTL          time.Duration
}

// Enabled reports whether admin routes are protected.
func (a *AuthConfig) Enabled() bool {
	return a.AdminPasswordHash != ""
}

type LogConfig struct {
	Level  string
	Format string // "console" or "json"
}

// defaults mirrors defaults.yaml.
type defaults struct {
	Embedding struct {
		URL          string `yaml:"url"`
		Dim          int    `yaml:"dim"`
		Store        string `yaml:"store"`
		MaxImageSize int    `yaml:"max_image_size"`
	} `yaml:"embedding"`
	Storage struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"storage"`
	Matching struct {
		Threshold float64 `yaml:"threshold"`
		Index     string  `yaml:"index"`
	} `yaml:"matching"`
	Web struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"web"`
	Auth struct {
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loadDefaults() defaults {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return d
}

func Load() *Config {
	d := loadDefaults()

	ttl, err := time.ParseDuration(d.Auth.TokenTTL)
	if err != nil {
		ttl = 12 * time.Hour
	}

	dataDir := envString("DATA_DIR", d.Storage.DataDir)

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Embedding: EmbeddingConfig{
			URL:          envString("EMBEDDING_URL", d.Embedding.URL),
			Dim:          envInt("EMBEDDING_DIM", d.Embedding.Dim),
			Store:        envString("EMBEDDING_STORE", d.Embedding.Store),
			MaxImageSize: envInt("MAX_IMAGE_SIZE", d.Embedding.MaxImageSize),
		},
		Storage: StorageConfig{
			DataDir:        dataDir,
			RawDir:         envString("RAW_DIR", filepath.Join(dataDir, "raw")),
			EnrollDir:      envString("ENROLL_DIR", filepath.Join(dataDir, "enrollments")),
			PredictionsDir: envString("PREDICTIONS_DIR", filepath.Join(dataDir, "predictions")),
		},
		Matching: MatchingConfig{
			Threshold: envFloat("MATCH_THRESHOLD", d.Matching.Threshold),
			Index:     envString("MATCH_INDEX", d.Matching.Index),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Auth: AuthConfig{
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			JWTSecret:         os.Getenv("JWT_SECRET"),
			TokenTTL:          envDuration("JWT_TTL", ttl),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", d.Log.Level),
			Format: envString("LOG_FORMAT", d.Log.Format),
		},
	}
}

// EnsureDirs creates the storage directories if they don't exist.
func (s *StorageConfig) EnsureDirs() error {
	for _, dir := range []string{s.RawDir, s.EnrollDir, s.PredictionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
