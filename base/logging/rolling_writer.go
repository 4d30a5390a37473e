package logging

import (
	"io"
	"os"
	"path"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RollingConfig controls optional file output of the global logger.
type RollingConfig struct {
	Dir        string
	FileName   string
	MaxSizeMb  int
	MaxBackups int
	Compress   bool
}

// InitRollingOutput redirects the global logger to a size-rotated file
// under cfg.Dir, in addition to stderr. Returns the writer so the caller
// can close it on shutdown.
func InitRollingOutput(cfg RollingConfig) (io.WriteCloser, error) {
	if err := EnsureDir(cfg.Dir); err != nil {
		return nil, err
	}
	rwriter := &lumberjack.Logger{
		Filename:   path.Join(cfg.Dir, cfg.FileName),
		MaxSize:    cfg.MaxSizeMb,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rwriter))
	return rwriter, nil
}

func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0766)
}
