// Package logging configures the process-wide logrus logger. Output goes to
// stderr because the MCP stdio transport owns stdout.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Setup sets the log level by name. Unknown names keep the current level
// and return the parse error.
func Setup(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	return logger
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return logger.WithField("component", component)
}
