package logflags

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	tracer  = false
	scan    = false
	session = false

	out io.Writer = io.Discard
)

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Out = out
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Tracer returns true if ptrace attach/detach and peek/poke should be logged.
func Tracer() bool {
	return tracer
}

// TracerLogger returns a logger for the ptrace layer.
func TracerLogger() *logrus.Entry {
	return makeLogger(tracer, logrus.Fields{"layer": "tracer"})
}

// Scan returns true if scan and filter passes should be logged.
func Scan() bool {
	return scan
}

// ScanLogger returns a logger for the scan engine.
func ScanLogger() *logrus.Entry {
	return makeLogger(scan, logrus.Fields{"layer": "scan"})
}

// Session returns true if interactive commands should be logged.
func Session() bool {
	return session
}

func SessionLogger() *logrus.Entry {
	return makeLogger(session, logrus.Fields{"layer": "session"})
}

// Setup sets debugger flags based on the contents of logstr.
//
// The terminal belongs to the dashboard, so logs go to logDest, a file that
// is created or appended to. An empty logDest means stderr.
func Setup(logFlag bool, logstr, logDest string) error {
	if !logFlag {
		out = io.Discard
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}

	out = os.Stderr
	if logDest != "" {
		f, err := os.OpenFile(logDest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		out = f
	}

	if logstr == "" {
		logstr = "tracer,scan,session"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch strings.TrimSpace(logcmd) {
		case "tracer":
			tracer = true
		case "scan":
			scan = true
		case "session":
			session = true
		}
	}
	return nil
}
