package movdemux

import "github.com/sirupsen/logrus"

// newDefaultLogger mirrors the teacher's use of logrus at every box
// decode/error site (core/box.go's "log \"github.com/sirupsen/logrus\""
// import), but injects the logger onto the Demuxer instead of relying
// on logrus's package-level standard logger, so multiple demuxers in
// one process don't fight over global log configuration.
func newDefaultLogger(debug bool) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	if debug {
		l.SetLevel(logrus.TraceLevel)
	}
	return l
}
