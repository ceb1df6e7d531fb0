// Package config loads service configuration from YAML with environment
// variable overrides and .env file support.
package config

import "time"

// Default configuration values.
const (
	defaultServiceName     = "cybermed-agent"
	defaultServiceVersion  = "1.0.0"
	defaultServicePort     = 8080
	defaultDBDriver        = "sqlite3"
	defaultDBPath          = "data/cybermed.db"
	defaultDBHost          = "localhost"
	defaultDBPort          = 5432
	defaultDBUser          = "postgres"
	defaultDBName          = "cybermed"
	defaultDBSSLMode       = "disable"
	defaultDBMaxConns      = 25
	defaultDBMaxIdleConns  = 5
	defaultESURL           = "http://localhost:9200"
	defaultESIndex         = "cybermed_documents"
	defaultESMaxRetries    = 3
	defaultESTimeoutSec    = 30
	defaultLLMModel        = "claude-3-5-haiku-latest"
	defaultMaxDocumentSize = 3000
	defaultDocTimeoutSec   = 120
	defaultLLMRPS          = 2
	defaultCrawlDepth      = 2
	defaultCrawlTimeoutSec = 30
	defaultTokenExpiry     = 30 * time.Minute
	defaultLogLevel        = "info"
)

// Config holds all configuration for the cybermed backend.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Database      DatabaseConfig      `yaml:"database"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Crawler       CrawlerConfig       `yaml:"crawler"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"AGENT_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"  yaml:"debug"`
}

// DatabaseConfig holds relational store configuration. Driver is either
// "postgres" or "sqlite3"; Path is only used by the sqlite driver.
type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER"         yaml:"driver"`
	Path            string        `env:"DB_PATH"           yaml:"path"`
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            int           `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database        string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode         string        `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// ElasticsearchConfig holds document index configuration.
type ElasticsearchConfig struct {
	URL        string        `env:"ELASTICSEARCH_URL" yaml:"url"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	Index      string        `yaml:"index"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ClassifierConfig holds LLM classification settings.
type ClassifierConfig struct {
	APIKey          string        `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	Model           string        `env:"MODEL_NAME"        yaml:"model"`
	MaxDocumentSize int           `env:"MAX_DOCUMENT_SIZE" yaml:"max_document_size"`
	DocumentTimeout time.Duration `yaml:"document_timeout"`
	RequestsPerSec  int           `yaml:"requests_per_second"`
}

// CrawlerConfig holds crawl settings.
type CrawlerConfig struct {
	UserAgent    string        `yaml:"user_agent"`
	MaxDepth     int           `yaml:"max_depth"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret   string        `env:"JWT_SECRET_KEY" yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" yaml:"level"`
}

// Load loads configuration from the specified path. A missing file yields a
// config built from defaults and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setElasticsearchDefaults(&cfg.Elasticsearch)
	setClassifierDefaults(&cfg.Classifier)
	setCrawlerDefaults(&cfg.Crawler)
	setAuthDefaults(&cfg.Auth)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Driver == "" {
		d.Driver = defaultDBDriver
	}
	if d.Path == "" {
		d.Path = defaultDBPath
	}
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Hour
	}
}

func setElasticsearchDefaults(e *ElasticsearchConfig) {
	if e.URL == "" {
		e.URL = defaultESURL
	}
	if e.Index == "" {
		e.Index = defaultESIndex
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = defaultESMaxRetries
	}
	if e.Timeout == 0 {
		e.Timeout = defaultESTimeoutSec * time.Second
	}
}

func setClassifierDefaults(c *ClassifierConfig) {
	if c.Model == "" {
		c.Model = defaultLLMModel
	}
	if c.MaxDocumentSize == 0 {
		c.MaxDocumentSize = defaultMaxDocumentSize
	}
	if c.DocumentTimeout == 0 {
		c.DocumentTimeout = defaultDocTimeoutSec * time.Second
	}
	if c.RequestsPerSec == 0 {
		c.RequestsPerSec = defaultLLMRPS
	}
}

func setCrawlerDefaults(c *CrawlerConfig) {
	if c.UserAgent == "" {
		c.UserAgent = "Cyber-Med-Agent Crawler/1.0"
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = defaultCrawlDepth
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = defaultCrawlTimeoutSec * time.Second
	}
}

func setAuthDefaults(a *AuthConfig) {
	if a.TokenExpiry == 0 {
		a.TokenExpiry = defaultTokenExpiry
	}
}
