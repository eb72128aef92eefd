// Package config loads radarsync settings from an optional .env file, an
// optional radarsync.yaml file and the environment, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"radarsync/internal/geocode"
	"radarsync/internal/parse"
	"radarsync/internal/reconcile"
)

type Database struct {
	// Driver is one of postgres, sqlite or memory.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type MinIO struct {
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"accesskey"`
	SecretKey    string `mapstructure:"secretkey"`
	UseSSL       bool   `mapstructure:"usessl"`
	UploadBucket string `mapstructure:"uploadbucket"`
	CacheBucket  string `mapstructure:"cachebucket"`
}

// Enabled reports whether an object store is configured.
func (m MinIO) Enabled() bool { return m.Endpoint != "" }

type Kafka struct {
	Broker       string `mapstructure:"broker"`
	UploadTopic  string `mapstructure:"uploadtopic"`
	GroupID      string `mapstructure:"groupid"`
	SummaryTopic string `mapstructure:"summarytopic"`
}

type Bounds struct {
	MinLat float64 `mapstructure:"minlat"`
	MaxLat float64 `mapstructure:"maxlat"`
	MinLon float64 `mapstructure:"minlon"`
	MaxLon float64 `mapstructure:"maxlon"`
}

// Feed locates one official publication. Path wins over URL when both are
// set.
type Feed struct {
	URL         string `mapstructure:"url"`
	Path        string `mapstructure:"path"`
	License     string `mapstructure:"license"`
	Attribution string `mapstructure:"attribution"`
}

func (f Feed) Enabled() bool { return f.URL != "" || f.Path != "" }

type Sources struct {
	OfficialA Feed `mapstructure:"officiala"`
	OfficialB Feed `mapstructure:"officialb"`
	OfficialC Feed `mapstructure:"officialc"`
	OfficialD Feed `mapstructure:"officiald"`
	// JSONArrayField names the array holding records in the official-a
	// document. Empty means the first array of objects.
	JSONArrayField string `mapstructure:"jsonarrayfield"`
}

type Geocoder struct {
	BaseURL     string        `mapstructure:"baseurl"`
	UserAgent   string        `mapstructure:"useragent"`
	CountryCode string        `mapstructure:"countrycode"`
	Interval    time.Duration `mapstructure:"interval"`
	CacheTTL    time.Duration `mapstructure:"cachettl"`
}

type Reconcile struct {
	BatchSize            int `mapstructure:"batchsize"`
	SubBatchSize         int `mapstructure:"subbatchsize"`
	Parallelism          int `mapstructure:"parallelism"`
	OfficialConfirmCount int `mapstructure:"officialconfirmcount"`
	PromotionThreshold   int `mapstructure:"promotionthreshold"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Metrics struct {
	PushgatewayURL string `mapstructure:"pushgatewayurl"`
	Job            string `mapstructure:"job"`
}

type Sync struct {
	// Interval between official-source runs. Zero runs once and exits.
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Database    Database      `mapstructure:"database"`
	MinIO       MinIO         `mapstructure:"minio"`
	Kafka       Kafka         `mapstructure:"kafka"`
	Bounds      Bounds        `mapstructure:"bounds"`
	Sources     Sources       `mapstructure:"sources"`
	Geocoder    Geocoder      `mapstructure:"geocoder"`
	Reconcile   Reconcile     `mapstructure:"reconcile"`
	HTTPTimeout time.Duration `mapstructure:"httptimeout"`
	Log         Log           `mapstructure:"log"`
	Metrics     Metrics       `mapstructure:"metrics"`
	Sync        Sync          `mapstructure:"sync"`
}

// legacyEnv maps keys to the unprefixed variable names the deployment
// scripts already export.
var legacyEnv = map[string]string{
	"minio.endpoint":    "MINIO_ENDPOINT",
	"minio.accesskey":   "MINIO_ACCESS_KEY",
	"minio.secretkey":   "MINIO_SECRET_KEY",
	"minio.usessl":      "MINIO_USE_SSL",
	"kafka.broker":      "KAFKA_BROKER",
	"kafka.uploadtopic": "KAFKA_TOPIC",
	"kafka.groupid":     "KAFKA_GROUP_ID",
	"database.dsn":      "DATABASE_URL",
}

func setDefaults(v *viper.Viper) {
	rc := reconcile.DefaultConfig()

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:radarsync.db?_pragma=busy_timeout(5000)")
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.accesskey", "")
	v.SetDefault("minio.secretkey", "")
	v.SetDefault("minio.usessl", false)
	v.SetDefault("minio.uploadbucket", "radar-uploads")
	v.SetDefault("minio.cachebucket", "radar-feeds")
	v.SetDefault("kafka.broker", "")
	v.SetDefault("kafka.uploadtopic", "radar-uploads")
	v.SetDefault("kafka.groupid", "radarsync-importer")
	v.SetDefault("kafka.summarytopic", "")
	v.SetDefault("bounds.minlat", -35.0)
	v.SetDefault("bounds.maxlat", 5.0)
	v.SetDefault("bounds.minlon", -75.0)
	v.SetDefault("bounds.maxlon", -30.0)
	for _, s := range []string{"officiala", "officialb", "officialc", "officiald"} {
		v.SetDefault("sources."+s+".url", "")
		v.SetDefault("sources."+s+".path", "")
		v.SetDefault("sources."+s+".license", "")
		v.SetDefault("sources."+s+".attribution", "")
	}
	v.SetDefault("sources.jsonarrayfield", "")
	v.SetDefault("geocoder.baseurl", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.useragent", "radarsync/1.0")
	v.SetDefault("geocoder.countrycode", "br")
	v.SetDefault("geocoder.interval", geocode.MinInterval)
	v.SetDefault("geocoder.cachettl", 24*time.Hour)
	v.SetDefault("reconcile.batchsize", rc.BatchSize)
	v.SetDefault("reconcile.subbatchsize", rc.SubBatchSize)
	v.SetDefault("reconcile.parallelism", rc.Parallelism)
	v.SetDefault("reconcile.officialconfirmcount", rc.OfficialConfirmCount)
	v.SetDefault("reconcile.promotionthreshold", rc.PromotionThreshold)
	v.SetDefault("httptimeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.pushgatewayurl", "")
	v.SetDefault("metrics.job", "radarsync")
	v.SetDefault("sync.interval", time.Duration(0))
}

// LoadEnv reads a .env file from the working directory when there is one.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set directly.")
	}
}

// Load builds the configuration. file may be empty, in which case
// radarsync.yaml is looked up in the working directory and skipped when
// absent. Environment variables use the RADARSYNC_ prefix with dots replaced
// by underscores, e.g. RADARSYNC_RECONCILE_BATCHSIZE.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("radarsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "RADARSYNC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind %s: %w", legacy, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("radarsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of postgres, sqlite, memory", c.Database.Driver))
	}
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Geocoder.Interval < geocode.MinInterval {
		errs = append(errs, fmt.Errorf("geocoder.interval %s is below %s", c.Geocoder.Interval, geocode.MinInterval))
	}
	if _, err := c.ParseBounds(); err != nil {
		errs = append(errs, err)
	}
	if err := c.EngineConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("httptimeout must be positive"))
	}
	if c.MinIO.Enabled() && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		errs = append(errs, errors.New("minio.accesskey and minio.secretkey are required with minio.endpoint"))
	}
	return errors.Join(errs...)
}

// ParseBounds returns the coordinate acceptance box.
func (c *Config) ParseBounds() (parse.Bounds, error) {
	return parse.NewBounds(c.Bounds.MinLat, c.Bounds.MaxLat, c.Bounds.MinLon, c.Bounds.MaxLon)
}

// EngineConfig converts the reconcile settings.
func (c *Config) EngineConfig() reconcile.Config {
	return reconcile.Config{
		BatchSize:            c.Reconcile.BatchSize,
		SubBatchSize:         c.Reconcile.SubBatchSize,
		Parallelism:          c.Reconcile.Parallelism,
		OfficialConfirmCount: c.Reconcile.OfficialConfirmCount,
		PromotionThreshold:   c.Reconcile.PromotionThreshold,
	}
}
