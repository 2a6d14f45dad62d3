// Package logging sets up the process-wide logrus logger every other
// package's *logrus.Entry fields are derived from.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Config selects the log level and output destination, mirroring the
// teacher CLI's -log-level/-log-file flags.
type Config struct {
	Level string
	File  string
}

// New builds a logrus.Logger from Config. An empty or unrecognized Level
// falls back to info rather than failing startup over a log setting.
// Output goes to stdout unless File is set; a File that cannot be opened
// is returned as an error.
func New(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		out = f
	}
	log.SetOutput(out)

	return log, nil
}
