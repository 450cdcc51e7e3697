package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/habitrefresh/internal/constants"
)

// Logger is nil until Init; the package helpers are no-ops before then.
var Logger *log.Logger

const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatLogfmt = "logfmt"
)

type Config struct {
	Debug     bool
	ConfigDir string
	// Stderr mirrors log output to stderr outside debug mode (the daemon does this)
	Stderr bool
	// Format is text, json or logfmt; empty means text
	Format string
}

// ParseFormat maps a format name to a charmbracelet formatter
func ParseFormat(name string) (log.Formatter, error) {
	switch name {
	case "", FormatText:
		return log.TextFormatter, nil
	case FormatJSON:
		return log.JSONFormatter, nil
	case FormatLogfmt:
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("unknown log format %q (use %s, %s or %s)", name, FormatText, FormatJSON, FormatLogfmt)
	}
}

// Init writes to <ConfigDir>/logs/habitrefresh.log, rotated by lumberjack
func Init(cfg Config) error {
	formatter, err := ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	dir := filepath.Join(cfg.ConfigDir, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(dir, constants.AppName+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	var out io.Writer = rotating
	if cfg.Debug || cfg.Stderr {
		out = io.MultiWriter(os.Stderr, rotating)
	}

	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}
	Logger = log.NewWithOptions(out, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		ReportCaller:    cfg.Debug,
		CallerOffset:    2,
		Prefix:          constants.AppName,
	})
	return nil
}

func Debug(msg string, keyvals ...interface{}) { emit(log.DebugLevel, msg, keyvals) }
func Info(msg string, keyvals ...interface{})  { emit(log.InfoLevel, msg, keyvals) }
func Warn(msg string, keyvals ...interface{})  { emit(log.WarnLevel, msg, keyvals) }
func Error(msg string, keyvals ...interface{}) { emit(log.ErrorLevel, msg, keyvals) }

func emit(level log.Level, msg string, keyvals []interface{}) {
	if Logger == nil {
		return
	}
	Logger.Log(level, msg, keyvals...)
}
