package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger: JSON output on stdout at the
// given level. Unknown levels fall back to info.
func Setup(level string) {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
