// Package logging contains the loggers shared by the patchy server and the
// probe command.
package logging

import (
	golog "log"
	"net/http"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/gorilla/handlers"
)

// Logger emits structured JSON messages on the standard error. Probe
// attempt failures are logged at debug level, so the default level is info.
var Logger = log.Logger{
	Handler: json.New(os.Stderr),
	Level:   log.InfoLevel,
}

// SetLevel changes the level of Logger. Accepted names are those understood
// by log.ParseLevel, e.g. "debug", "info", "warn" and "error".
func SetLevel(name string) error {
	level, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	Logger.Level = level
	return nil
}

// MakeAccessLogHandler wraps |handler| with another handler that logs
// access to each resource on the standard output, in the Apache common log
// format rather than JSON.
func MakeAccessLogHandler(handler http.Handler) http.Handler {
	return handlers.LoggingHandler(golog.Writer(), handler)
}
