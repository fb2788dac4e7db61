// Package logging configures the logrus standard logger.
package logging

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// EnvLogLevel overrides the configured level when set.
const EnvLogLevel = "POINT_LOG_LEVEL"

// Configure sets the level of the standard logger. An empty or unknown
// level means info.
func Configure(level string) {
	lvl, ok := ParseLevel(level)

	if !ok {
		lvl = log.InfoLevel
	}

	if env, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		lvl = env
	}

	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

// ConfigureTests logs everything down to debug, unless overridden.
func ConfigureTests() {
	Configure("debug")
}

// ParseLevel reads a level name. Besides the logrus names it accepts "off".
func ParseLevel(raw string) (log.Level, bool) {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "":
		return log.InfoLevel, false
	case "off", "none", "disabled":
		return log.PanicLevel, true
	default:
		lvl, err := log.ParseLevel(s)

		if err != nil {
			return log.InfoLevel, false
		}

		return lvl, true
	}
}
