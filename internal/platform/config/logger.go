package config

import "github.com/sirupsen/logrus"

// NewLogger builds the process logger. Defaults to log level info and json
// format.
func NewLogger(cfg Config) logrus.FieldLogger {
	logger := logrus.New()
	if cfg.LogFormat != "text" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	switch cfg.LogLevel {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "trace":
		logger.SetLevel(logrus.TraceLevel)
	case "warn", "warning":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
