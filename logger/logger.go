// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to both standard
// output and the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		LogRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it write to the backend. When adding
// a new subsystem, add its tag here and to subsystemLoggers.
//
// Loggers can not be used before the log rotator has been initialized
// with a log file. This must be performed early during application
// startup by calling InitLogRotator.
var (
	// backendLog is the logging backend used to create all subsystem
	// loggers. It must not be used before the log rotator has been
	// initialized, or data races and/or nil pointer dereferences will
	// occur.
	backendLog = btclog.NewBackend(logWriter{})

	// LogRotator is the logging output. It should be closed on
	// application shutdown.
	LogRotator *rotator.Rotator

	dagsLog = backendLog.Logger("DAGS")
	ghstLog = backendLog.Logger("GHST")
	chslLog = backendLog.Logger("CHSL")
	fnltLog = backendLog.Logger("FNLT")
	statLog = backendLog.Logger("STAT")
	mempLog = backendLog.Logger("MEMP")
	bldrLog = backendLog.Logger("BLDR")
	schdLog = backendLog.Logger("SCHD")
	execLog = backendLog.Logger("EXEC")
	storLog = backendLog.Logger("STOR")
	cnfgLog = backendLog.Logger("CNFG")
	nodeLog = backendLog.Logger("NODE")

	initiated = false
)

// SubsystemTags is an enum of all subsystem tags (spec.md §4.C14):
// DAGS dagstore, GHST ghostdag engine, CHSL chain selector, FNLT
// finality tracker, STAT account state, MEMP mempool, BLDR block
// builder, SCHD conflict scheduler, EXEC executor, STOR persistence,
// CNFG configuration, NODE top-level node/cmd wiring.
var SubsystemTags = struct {
	DAGS,
	GHST,
	CHSL,
	FNLT,
	STAT,
	MEMP,
	BLDR,
	SCHD,
	EXEC,
	STOR,
	CNFG,
	NODE string
}{
	DAGS: "DAGS",
	GHST: "GHST",
	CHSL: "CHSL",
	FNLT: "FNLT",
	STAT: "STAT",
	MEMP: "MEMP",
	BLDR: "BLDR",
	SCHD: "SCHD",
	EXEC: "EXEC",
	STOR: "STOR",
	CNFG: "CNFG",
	NODE: "NODE",
}

// subsystemLoggers maps each subsystem tag to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	SubsystemTags.DAGS: dagsLog,
	SubsystemTags.GHST: ghstLog,
	SubsystemTags.CHSL: chslLog,
	SubsystemTags.FNLT: fnltLog,
	SubsystemTags.STAT: statLog,
	SubsystemTags.MEMP: mempLog,
	SubsystemTags.BLDR: bldrLog,
	SubsystemTags.SCHD: schdLog,
	SubsystemTags.EXEC: execLog,
	SubsystemTags.STOR: storLog,
	SubsystemTags.CNFG: cnfgLog,
	SubsystemTags.NODE: nodeLog,
}

// InitLogRotator initializes the logging rotator to write logs to
// logFile and create roll files in the same directory. It must be
// called before the package-global log rotator variable is used.
func InitLogRotator(logFile string) {
	initiated = true
	LogRotator = initLogRotator(logFile)
}

func initLogRotator(logFile string) *rotator.Rotator {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	return r
}

// SetLogLevel sets the logging level for the given subsystem. Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for every subsystem logger.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// SupportedSubsystems returns a sorted slice of the supported
// subsystem tags.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// Get returns the logger for a specific subsystem tag.
func Get(tag string) (logger btclog.Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// ParseAndSetDebugLevels parses a debug-level spec of either a bare
// level ("info") or a comma-separated list of subsystem=level pairs
// ("DAGS=debug,MEMP=trace") and applies it.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", logLevelPair)
		}
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := Get(subsysID); !exists {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s",
				subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", logLevel)
		}
		SetLogLevel(subsysID, logLevel)
	}
	return nil
}

func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}
