package config

import (
	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"dispatch"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	MetricsAddress    string   `envconfig:"DISPATCH_ENGINE_METRICS_ADDRESS" default:":8080"`
	LogLevel          string   `envconfig:"DISPATCH_ENGINE_LOG_LEVEL" default:"info"`
	SweepInterval     string   `envconfig:"DISPATCH_ENGINE_SWEEP_INTERVAL" default:"5m"`
	SweepBatchSize    int      `envconfig:"DISPATCH_ENGINE_SWEEP_BATCH_SIZE" default:"500"`
	MatchParallelism  int      `envconfig:"DISPATCH_ENGINE_MATCH_PARALLELISM" default:"8"`
	NotifyAdminEmails []string `envconfig:"DISPATCH_ENGINE_ADMIN_EMAILS" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a configuration suitable for tests: an in-memory
// sqlite database and small sweep batches.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			// shared cache keeps the same in-memory db across pooled connections
			Name: "file::memory:?cache=shared",
		},
		Service: &svcConfig{
			MetricsAddress:   ":8080",
			LogLevel:         "info",
			SweepInterval:    "5m",
			SweepBatchSize:   500,
			MatchParallelism: 8,
		},
	}
}
