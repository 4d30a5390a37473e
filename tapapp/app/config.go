package app

import (
	"github.com/tapflow/tapflow/base/appbase"
	"github.com/tapflow/tapflow/base/logging"
	"github.com/tapflow/tapflow/taplib"
)

// Config of the tapflow application. Every field is settable through a
// TAPFLOW_-prefixed env variable or the optional tapflow.env config file.
type Config struct {
	// DatabaseURL MySQL DSN of the extraction source,
	// e.g. user:password@tcp(host:3306)/
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// CatalogPath path to the catalog file with stream descriptors
	// (selection already resolved).
	CatalogPath string `mapstructure:"CATALOG_PATH" default:"catalog.json"`
	// StatePath path to the initial checkpoint state file. Missing file
	// means a first run with an empty checkpoint tree.
	StatePath string `mapstructure:"STATE_PATH"`
	// StateOutputPath where the final checkpoint state is persisted.
	// Empty means the state is only emitted as STATE messages.
	StateOutputPath string `mapstructure:"STATE_OUTPUT_PATH"`

	// BatchMessages selects batched mode: records are buffered into
	// rotating jsonl files announced via BATCH messages.
	BatchMessages bool `mapstructure:"BATCH_MESSAGES" default:"false"`
	// BatchCursorSize rows to fetch from the cursor per chunk in batched
	// mode.
	BatchCursorSize int `mapstructure:"BATCH_CURSOR_SIZE" default:"500000"`
	// BatchSize per-file row threshold. 0 means 2*BatchCursorSize.
	BatchSize int `mapstructure:"BATCH_SIZE"`
	// BatchBasePath base output directory for batch files. Empty means a
	// per-run unique temporary path.
	BatchBasePath string `mapstructure:"BATCH_BASE_PATH"`

	// LogLevel log level. Default: `info`
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// LogFormat log format. Can be `text` or `json`. Default: `text`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// LogDir when set, log output is duplicated to a size-rotated file in
	// this directory.
	LogDir string `mapstructure:"LOG_DIR"`
}

func (c *Config) PostInit(settings *appbase.AppSettings) error {
	if c.LogFormat == "json" {
		logging.SetJsonFormatter()
	}
	logging.InitGlobalLogger(c.LogLevel)
	return nil
}

// SyncConfig builds the orchestrator config from the batching switches.
func (c *Config) SyncConfig() *taplib.SyncConfig {
	return &taplib.SyncConfig{
		BatchMessages:   c.BatchMessages,
		BatchCursorSize: c.BatchCursorSize,
		BatchSize:       c.BatchSize,
		BatchBasePath:   c.BatchBasePath,
	}
}
