// internal/platform/logging/logging.go
package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger.
// format is "json" (default, Cloud Logging friendly) or "text".
// An unknown level falls back to info and is reported once.
func Setup(level, format string) {
	SetupTo(os.Stdout, level, format)
}

func SetupTo(w io.Writer, level, format string) {
	log.SetOutput(w)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		log.SetFormatter(&log.JSONFormatter{
			FieldMap: log.FieldMap{
				log.FieldKeyLevel: "severity",
				log.FieldKeyMsg:   "message",
			},
		})
	}

	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.Warnf("[logging] unknown LOG_LEVEL %q, using info", level)
		return
	}
	log.SetLevel(lvl)
}
