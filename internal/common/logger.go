package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

func consoleWriter() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	}
}

// GetLogger returns the process logger, creating a console logger if
// InitLogger has not run yet.
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		defer loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleWriter())
	}
	return globalLogger
}

// InitLogger initializes the arbor logger with configuration
func InitLogger(config *Config) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	logger := arbor.NewLogger()

	var toFile, toConsole bool
	for _, output := range config.Logging.Output {
		switch output {
		case "file":
			toFile = true
		case "stdout", "console":
			toConsole = true
		}
	}

	if toFile {
		if logFile, err := logFilePath(config.Logging.Dir); err != nil {
			fmt.Printf("Warning: file logging disabled: %v\n", err)
			toConsole = true
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   logFile,
				TimeFormat: "15:04:05",
				MaxSize:    50 * 1024 * 1024,
				MaxBackups: 5,
			})
		}
	}

	if toConsole {
		logger = logger.WithConsoleWriter(consoleWriter())
	}

	logger = logger.WithLevelFromString(config.Logging.Level)
	globalLogger = logger

	return logger
}

// logFilePath resolves <dir>/fundlens.log, defaulting dir to logs/ beside the executable.
func logFilePath(dir string) (string, error) {
	if dir == "" {
		execPath, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("failed to get executable path: %w", err)
		}
		dir = filepath.Join(filepath.Dir(execPath), "logs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}
	return filepath.Join(dir, "fundlens.log"), nil
}
