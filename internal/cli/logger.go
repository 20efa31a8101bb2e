package cli

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewLogger creates the application logger writing to w
func NewLogger(level logrus.Level, format string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
