// Copyright (c) 2015-2023 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"

	"hashpass/internal/admin"
	"hashpass/internal/audit"
	"hashpass/internal/blacklist"
	"hashpass/internal/hashrate"
	"hashpass/internal/httpapi"
	"hashpass/internal/hub"
	"hashpass/internal/puzzle"
	"hashpass/internal/session"
	"hashpass/internal/timeoutwatch"
	"hashpass/internal/webhook"
)

// logRotator is one of the logging outputs. It should be closed after
// use.
var logRotator *rotator.Rotator

// logWriter implements an io.Writer that outputs to both standard
// output and the log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	logRotator.Write(p)
	return len(p), nil
}

// backendLog is the logging backend used to create all subsystem
// loggers.
var backendLog = slog.NewBackend(logWriter{})

// mpLog is the logger for the main package.
var mpLog = backendLog.Logger("HPSS")

// pLog is the logger for config-loading and startup messages that
// predate the rest of the subsystem loggers.
var pLog = backendLog.Logger("CNFG")

// subsystemLoggers maps each subsystem identifier to its logger.
var subsystemLoggers = map[string]slog.Logger{
	"HPSS": mpLog,
	"CNFG": pLog,
	"PZZL": backendLog.Logger("PZZL"),
	"SESN": backendLog.Logger("SESN"),
	"HUB ": backendLog.Logger("HUB "),
	"HRAT": backendLog.Logger("HRAT"),
	"TOUT": backendLog.Logger("TOUT"),
	"HTTP": backendLog.Logger("HTTP"),
	"ADMN": backendLog.Logger("ADMN"),
	"AUDT": backendLog.Logger("AUDT"),
	"BLST": backendLog.Logger("BLST"),
	"WHOK": backendLog.Logger("WHOK"),
}

// initLogRotator initializes the logging rotator to write to the
// specified file and create roll files in the same directory. It must
// be called before the package-global log rotator variables are used.
func initLogRotator(logFile string) {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create log directory: "+err.Error())
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create file rotator: "+err.Error())
		os.Exit(1)
	}

	logRotator = r
	wireLoggers()
}

// wireLoggers hands each internal package its subsystem logger. It
// must run after subsystemLoggers has loggers attached to the shared
// backend; initLogRotator calls it once.
func wireLoggers() {
	puzzle.UseLogger(subsystemLoggers["PZZL"])
	session.UseLogger(subsystemLoggers["SESN"])
	hub.UseLogger(subsystemLoggers["HUB "])
	hashrate.UseLogger(subsystemLoggers["HRAT"])
	timeoutwatch.UseLogger(subsystemLoggers["TOUT"])
	httpapi.UseLogger(subsystemLoggers["HTTP"])
	admin.UseLogger(subsystemLoggers["ADMN"])
	audit.UseLogger(subsystemLoggers["AUDT"])
	blacklist.UseLogger(subsystemLoggers["BLST"])
	webhook.UseLogger(subsystemLoggers["WHOK"])
}

// setLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored. Uninitialized subsystems are ignored.
func setLogLevel(subsysID string, logLevel string) {
	logger, ok := subsystemLoggers[subsysID]
	if !ok {
		return
	}

	level, _ := slog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels sets the log level for all subsystems.
func setLogLevels(logLevel string) {
	for subsysID := range subsystemLoggers {
		setLogLevel(subsysID, logLevel)
	}
}
