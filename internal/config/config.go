// Package config loads and validates ad catalog configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/adcatalog/internal/capture"
	"github.com/JakeFAU/adcatalog/internal/catalog"
	"github.com/JakeFAU/adcatalog/internal/enrich"
)

// Storage backends for catalog resources.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	DB        DBConfig        `mapstructure:"db"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CaptureConfig describes the page the ads are captured from.
type CaptureConfig struct {
	TargetURL         string        `mapstructure:"target_url"`
	WindowWidth       int           `mapstructure:"window_width"`
	WindowHeight      int           `mapstructure:"window_height"`
	Headless          bool          `mapstructure:"headless"`
	UserAgent         string        `mapstructure:"user_agent"`
	ContainerSelector string        `mapstructure:"container_selector"`
	FrameDepth        int           `mapstructure:"frame_depth"`
	BannerClass       string        `mapstructure:"banner_class"`
	RedirectParam     string        `mapstructure:"redirect_param"`
	HouseLinks        []string      `mapstructure:"house_links"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	ResponseTableSize int           `mapstructure:"response_table_size"`
	MaxBodyReads      int           `mapstructure:"max_body_reads"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// CatalogConfig selects where catalog resources live.
type CatalogConfig struct {
	Backend        string  `mapstructure:"backend"`
	Dir            string  `mapstructure:"dir"`
	GCSBucket      string  `mapstructure:"gcs_bucket"`
	GCSPrefix      string  `mapstructure:"gcs_prefix"`
	Threshold      float64 `mapstructure:"threshold"`
	AdsDir         string  `mapstructure:"ads_dir"`
	AdIndex        string  `mapstructure:"ad_index"`
	CoversDir      string  `mapstructure:"covers_dir"`
	ContentIndex   string  `mapstructure:"content_index"`
	QuarantineDir  string  `mapstructure:"quarantine_dir"`
	TimeOrderedIDs bool    `mapstructure:"time_ordered_ids"`
}

// EnrichConfig reaches the content API.
type EnrichConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	APIBaseURL      string        `mapstructure:"api_base_url"`
	TokenURL        string        `mapstructure:"token_url"`
	ClientID        string        `mapstructure:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret"`
	RefreshToken    string        `mapstructure:"refresh_token"`
	ClientUserAgent string        `mapstructure:"client_user_agent"`
	MatureContent   bool          `mapstructure:"mature_content"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	Delay           time.Duration `mapstructure:"delay"`
	LinkPattern     string        `mapstructure:"link_pattern"`
}

// PubSubConfig holds metadata for accepted-ad notifications. An empty topic
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// DBConfig controls the audit database. An empty DSN disables auditing.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ServerConfig controls the read-only HTTP view.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig names the service in traces.
type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from a .env file, the environment and an optional
// config file, in increasing order of precedence for the file. Environment
// variables use the ADCATALOG_ prefix.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("ADCATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")

	def := capture.DefaultConfig()
	v.SetDefault("capture.target_url", def.TargetURL)
	v.SetDefault("capture.window_width", def.WindowWidth)
	v.SetDefault("capture.window_height", def.WindowHeight)
	v.SetDefault("capture.headless", false)
	v.SetDefault("capture.user_agent", "")
	v.SetDefault("capture.container_selector", def.ContainerSelector)
	v.SetDefault("capture.frame_depth", def.FrameDepth)
	v.SetDefault("capture.banner_class", def.BannerClass)
	v.SetDefault("capture.redirect_param", def.RedirectParam)
	v.SetDefault("capture.house_links", def.HouseLinks)
	v.SetDefault("capture.settle_delay", def.SettleDelay)
	v.SetDefault("capture.response_table_size", def.ResponseTableSize)
	v.SetDefault("capture.max_body_reads", def.MaxBodyReads)
	v.SetDefault("capture.timeout", 5*time.Minute)

	layout := catalog.DefaultLayout()
	v.SetDefault("catalog.backend", BackendLocal)
	v.SetDefault("catalog.dir", "docs")
	v.SetDefault("catalog.gcs_bucket", "")
	v.SetDefault("catalog.gcs_prefix", "")
	v.SetDefault("catalog.threshold", 10.0)
	v.SetDefault("catalog.ads_dir", layout.AdsDir)
	v.SetDefault("catalog.ad_index", layout.AdIndex)
	v.SetDefault("catalog.covers_dir", layout.CoversDir)
	v.SetDefault("catalog.content_index", layout.ContentIndex)
	v.SetDefault("catalog.quarantine_dir", layout.QuarantineDir)
	v.SetDefault("catalog.time_ordered_ids", false)

	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.api_base_url", "https://api.royalroad.com")
	v.SetDefault("enrich.token_url", "https://auth.royalroad.com/connect/token")
	v.SetDefault("enrich.client_id", "royalroad-mobile")
	v.SetDefault("enrich.client_secret", "")
	v.SetDefault("enrich.refresh_token", "")
	v.SetDefault("enrich.client_user_agent", "Royal Road Mobile/1.92.871 ( Android; 14; Arm64; Phone ) MAUI/9.0.5")
	v.SetDefault("enrich.mature_content", true)
	v.SetDefault("enrich.timeout", 30*time.Second)
	v.SetDefault("enrich.max_attempts", 3)
	v.SetDefault("enrich.delay", 2*time.Second)
	v.SetDefault("enrich.link_pattern", enrich.DefaultLinkPattern)

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "catalog_events")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)

	v.SetDefault("server.port", 8080)

	v.SetDefault("telemetry.service_name", "adcatalog")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Capture.TargetURL == "" {
		return fmt.Errorf("capture.target_url is required")
	}
	if c.Capture.ContainerSelector == "" {
		return fmt.Errorf("capture.container_selector is required")
	}
	if c.Capture.SettleDelay < 0 {
		return fmt.Errorf("capture.settle_delay must be >= 0")
	}
	switch c.Catalog.Backend {
	case BackendLocal:
		if c.Catalog.Dir == "" {
			return fmt.Errorf("catalog.dir is required for the local backend")
		}
	case BackendGCS:
		if c.Catalog.GCSBucket == "" {
			return fmt.Errorf("catalog.gcs_bucket is required for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("catalog.backend %q is not one of local, gcs, memory", c.Catalog.Backend)
	}
	if c.Catalog.Threshold <= 0 {
		return fmt.Errorf("catalog.threshold must be > 0")
	}
	if c.Enrich.Enabled {
		if c.Enrich.APIBaseURL == "" || c.Enrich.TokenURL == "" {
			return fmt.Errorf("enrich.api_base_url and enrich.token_url are required when enrichment is enabled")
		}
		if c.Enrich.Delay < 0 {
			return fmt.Errorf("enrich.delay must be >= 0")
		}
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	return nil
}

// ValidateCredentials checks the secrets needed to talk to the content API.
// It is separate from Validate so commands that never enrich can run
// without them.
func (c Config) ValidateCredentials() error {
	if c.Enrich.RefreshToken == "" {
		return fmt.Errorf("enrich.refresh_token is required (ADCATALOG_ENRICH_REFRESH_TOKEN)")
	}
	if c.Enrich.ClientSecret == "" {
		return fmt.Errorf("enrich.client_secret is required (ADCATALOG_ENRICH_CLIENT_SECRET)")
	}
	return nil
}

// CaptureSettings converts the capture section for capture.NewSession.
func (c Config) CaptureSettings() capture.Config {
	return capture.Config{
		TargetURL:         c.Capture.TargetURL,
		WindowWidth:       c.Capture.WindowWidth,
		WindowHeight:      c.Capture.WindowHeight,
		Headless:          c.Capture.Headless,
		UserAgent:         c.Capture.UserAgent,
		ContainerSelector: c.Capture.ContainerSelector,
		FrameDepth:        c.Capture.FrameDepth,
		BannerClass:       c.Capture.BannerClass,
		RedirectParam:     c.Capture.RedirectParam,
		HouseLinks:        append([]string(nil), c.Capture.HouseLinks...),
		SettleDelay:       c.Capture.SettleDelay,
		ResponseTableSize: c.Capture.ResponseTableSize,
		MaxBodyReads:      c.Capture.MaxBodyReads,
		BannerSize:        catalog.BannerSize,
	}
}

// CatalogLayout converts the catalog section for catalog.Open.
func (c Config) CatalogLayout() catalog.Layout {
	return catalog.Layout{
		AdsDir:        c.Catalog.AdsDir,
		AdIndex:       c.Catalog.AdIndex,
		CoversDir:     c.Catalog.CoversDir,
		ContentIndex:  c.Catalog.ContentIndex,
		QuarantineDir: c.Catalog.QuarantineDir,
	}
}

// EnrichSettings converts the enrich section for enrich.New.
func (c Config) EnrichSettings() enrich.Config {
	return enrich.Config{
		APIBaseURL:      c.Enrich.APIBaseURL,
		TokenURL:        c.Enrich.TokenURL,
		ClientID:        c.Enrich.ClientID,
		ClientSecret:    c.Enrich.ClientSecret,
		RefreshToken:    c.Enrich.RefreshToken,
		ClientUserAgent: c.Enrich.ClientUserAgent,
		MatureContent:   c.Enrich.MatureContent,
		Timeout:         c.Enrich.Timeout,
		MaxAttempts:     c.Enrich.MaxAttempts,
	}
}
