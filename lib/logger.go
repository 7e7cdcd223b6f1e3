package lib

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/ziflex/lecho/v3"
)

var logLevels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

// ParseLogLevel maps a LOG_LEVEL value onto a gommon level, falling back to debug.
func ParseLogLevel(level string) log.Lvl {
	if lvl, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return lvl
	}
	return log.DEBUG
}

// Logger writes JSON lines to stdout, or to a dated file when logFilePath is set.
func Logger(level, logFilePath string) *lecho.Logger {
	var out io.Writer = os.Stdout
	var fileErr error
	if logFilePath != "" {
		file, err := GetLoggingFile(logFilePath)
		if err == nil {
			out = file
		}
		fileErr = err
	}

	logger := lecho.New(
		out,
		lecho.WithLevel(ParseLogLevel(level)),
		lecho.WithTimestamp(),
		lecho.WithCaller(),
	)
	if fileErr != nil {
		logger.Errorf("failed to create logging file, using stdout: %v", fileErr)
	}
	return logger
}

func GetLoggingFile(path string) (*os.File, error) {
	if filepath.Ext(path) == "" {
		path = path + time.Now().Format("-2006-01-02") + ".log"
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
}
