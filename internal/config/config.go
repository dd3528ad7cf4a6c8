// Package config holds runtime configuration, its defaults and validation.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Source names
const (
	SourceMyVariant  = "myvariant"
	SourceEnsemblVEP = "ensembl_vep"
	SourceClinVar    = "clinvar"
	SourcePhyloP     = "phylop"
	SourcePhastCons  = "phastcons"
)

// AllSources lists every supported source in default consultation order
var AllSources = []string{SourceMyVariant, SourceEnsemblVEP, SourceClinVar, SourcePhyloP, SourcePhastCons}

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

const weightTolerance = 1e-6

// Config holds all runtime options
type Config struct {
	MinInterval       time.Duration            `mapstructure:"min_interval" yaml:"min_interval" validate:"gte=0"`
	SourceIntervals   map[string]time.Duration `mapstructure:"source_intervals" yaml:"source_intervals,omitempty"`
	MaxWait           time.Duration            `mapstructure:"max_wait" yaml:"max_wait" validate:"gte=0"`
	MaxRetries        int                      `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
	BaseDelay         time.Duration            `mapstructure:"base_delay" yaml:"base_delay" validate:"gte=0"`
	RequestTimeout    time.Duration            `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
	Weights           Weights                  `mapstructure:"weights" yaml:"weights"`
	EnabledSources    []string                 `mapstructure:"enabled_sources" yaml:"enabled_sources" validate:"min=1,unique,dive,oneof=myvariant ensembl_vep clinvar phylop phastcons"`
	WorkerConcurrency int                      `mapstructure:"worker_concurrency" yaml:"worker_concurrency" validate:"gte=1,lte=64"`
	Genome            string                   `mapstructure:"genome" yaml:"genome" validate:"oneof=hg19 hg38"`
	UserAgent         string                   `mapstructure:"user_agent" yaml:"user_agent" validate:"required"`
	NCBIAPIKey        string                   `mapstructure:"ncbi_api_key" yaml:"ncbi_api_key,omitempty"`
	Endpoints         Endpoints                `mapstructure:"endpoints" yaml:"endpoints"`
	Proxy             ProxyConfig              `mapstructure:"proxy" yaml:"proxy,omitempty"`
	Cache             CacheConfig              `mapstructure:"cache" yaml:"cache"`
	Server            ServerConfig             `mapstructure:"server" yaml:"server"`
	Log               LogConfig                `mapstructure:"log" yaml:"log"`
}

// Weights are the composite score factor weights; they must sum to 1
type Weights struct {
	CADD         float64 `mapstructure:"cadd" yaml:"cadd" validate:"gte=0,lte=1"`
	ClinVar      float64 `mapstructure:"clinvar" yaml:"clinvar" validate:"gte=0,lte=1"`
	Frequency    float64 `mapstructure:"frequency" yaml:"frequency" validate:"gte=0,lte=1"`
	Conservation float64 `mapstructure:"conservation" yaml:"conservation" validate:"gte=0,lte=1"`
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.CADD + w.ClinVar + w.Frequency + w.Conservation
}

// Endpoints are the base URLs of the remote services
type Endpoints struct {
	MyVariant string `mapstructure:"myvariant" yaml:"myvariant" validate:"required,url"`
	Ensembl   string `mapstructure:"ensembl" yaml:"ensembl" validate:"required,url"`
	EUtils    string `mapstructure:"eutils" yaml:"eutils" validate:"required,url"`
	UCSC      string `mapstructure:"ucsc" yaml:"ucsc" validate:"required,url"`
}

// ProxyConfig overrides the proxy of outbound requests; empty values fall
// back to HTTP_PROXY / HTTPS_PROXY / NO_PROXY
type ProxyConfig struct {
	HTTP  string `mapstructure:"http" yaml:"http,omitempty" validate:"omitempty,url"`
	HTTPS string `mapstructure:"https" yaml:"https,omitempty" validate:"omitempty,url"`
}

// CacheConfig controls the in-process annotation memo
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gte=0"`
}

// ServerConfig controls the HTTP API of the serve command
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
	MaxBatchSize    int           `mapstructure:"max_batch_size" yaml:"max_batch_size" validate:"gte=1"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
}

// Default returns the published defaults
func Default() Config {
	return Config{
		MinInterval:    600 * time.Millisecond,
		MaxWait:        30 * time.Second,
		MaxRetries:     3,
		BaseDelay:      500 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
		Weights: Weights{
			CADD:         0.35,
			ClinVar:      0.30,
			Frequency:    0.20,
			Conservation: 0.15,
		},
		EnabledSources:    append([]string(nil), AllSources...),
		WorkerConcurrency: 4,
		Genome:            "hg38",
		UserAgent:         "varscore/0.3 (+https://github.com/ppiankov/varscore)",
		Endpoints: Endpoints{
			MyVariant: "https://myvariant.info/v1",
			Ensembl:   "https://rest.ensembl.org",
			EUtils:    "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
			UCSC:      "https://api.genome.ucsc.edu",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			MaxBatchSize:    100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks struct constraints and that weights sum to 1
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if sum := c.Weights.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f, want 1.0", ErrInvalid, sum)
	}
	for name, d := range c.SourceIntervals {
		if !c.IsKnownSource(name) {
			return fmt.Errorf("%w: source_intervals names unknown source %q", ErrInvalid, name)
		}
		if d < 0 {
			return fmt.Errorf("%w: negative interval for %s", ErrInvalid, name)
		}
	}
	return nil
}

// IsKnownSource reports whether name is a supported source
func (c Config) IsKnownSource(name string) bool {
	for _, s := range AllSources {
		if s == name {
			return true
		}
	}
	return false
}

// SourceEnabled reports whether name is in EnabledSources
func (c Config) SourceEnabled(name string) bool {
	for _, s := range c.EnabledSources {
		if s == name {
			return true
		}
	}
	return false
}

// IntervalFor returns the minimum inter-request interval of a source
func (c Config) IntervalFor(source string) time.Duration {
	if d, ok := c.SourceIntervals[source]; ok {
		return d
	}
	return c.MinInterval
}

// SetDefaults registers every default with v so that environment variables
// and partial config files merge over them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("min_interval", d.MinInterval)
	v.SetDefault("max_wait", d.MaxWait)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("base_delay", d.BaseDelay)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("weights.cadd", d.Weights.CADD)
	v.SetDefault("weights.clinvar", d.Weights.ClinVar)
	v.SetDefault("weights.frequency", d.Weights.Frequency)
	v.SetDefault("weights.conservation", d.Weights.Conservation)
	v.SetDefault("enabled_sources", d.EnabledSources)
	v.SetDefault("worker_concurrency", d.WorkerConcurrency)
	v.SetDefault("genome", d.Genome)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("ncbi_api_key", "")
	v.SetDefault("endpoints.myvariant", d.Endpoints.MyVariant)
	v.SetDefault("endpoints.ensembl", d.Endpoints.Ensembl)
	v.SetDefault("endpoints.eutils", d.Endpoints.EUtils)
	v.SetDefault("endpoints.ucsc", d.Endpoints.UCSC)
	v.SetDefault("proxy.http", "")
	v.SetDefault("proxy.https", "")
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_batch_size", d.Server.MaxBatchSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load registers defaults on v, decodes it into a Config and validates it.
// Decoding starts from the zero Config so list values replace the defaults
// instead of being merged element-wise.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.EnabledSources = normalizeSources(cfg.EnabledSources)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalizeSources accepts comma-separated entries from env vars and flags
func normalizeSources(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
