package util

import (
	"io"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"
)

// SetupLogging directs the standard logger, which backs log.L and log.G, to w. Debug entries are only written
// when verbose is set.
func SetupLogging(verbose bool, w io.Writer) {
	logrus.SetOutput(w)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	lvl := logrus.InfoLevel
	if verbose {
		lvl = logrus.DebugLevel
	}
	logrus.SetLevel(lvl)
	log.L.WithField("level", lvl.String()).Debug("logging configured")
}
