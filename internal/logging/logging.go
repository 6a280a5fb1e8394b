// Package logging builds the server logger.
//
// Records are JSON encoded and go to stderr, leaving stdout to command
// output. When a log file is configured they are also written to it, rotated
// by size and age.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and the optional rotated log file.
type Config struct {
	Level string
	// File is the log file path; empty disables file logging.
	File string
	// MaxSize is the size in megabytes at which the file is rotated.
	MaxSize int
	// MaxAge is the number of days rotated files are kept.
	MaxAge int
}

// ParseLevel parses debug, info, warn or error. An empty string is info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a logger configured by c.
func New(c Config) (*zap.Logger, error) {
	return newLogger(c, os.Stderr)
}

func newLogger(c Config, stderr io.Writer) (*zap.Logger, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	sinks := []zapcore.WriteSyncer{zapcore.Lock(zapcore.AddSync(stderr))}
	if c.File != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename: c.File,
			MaxSize:  c.MaxSize, // megabytes
			MaxAge:   c.MaxAge,  // days
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.AddSync(stderr))), nil
}
