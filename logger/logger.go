// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger wires the node's per-subsystem loggers to a rotating file
// backend. It is the same shape as btcd/dcrd's logger package, adapted to
// this node's subsystem set.
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

type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)  //nolint:errcheck
		logRotator.Write(p) //nolint:errcheck
	}
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})
	logRotator *rotator.Rotator
	initiated  bool
)

// SubsystemTags enumerates the per-component loggers the node registers.
var SubsystemTags = struct {
	NODE, LDGR, MPOL, CNSS, FORK, PRST, PEER, ADDR, CONN, RELY, MINR, CNFG string
}{
	NODE: "NODE",
	LDGR: "LDGR",
	MPOL: "MPOL",
	CNSS: "CNSS",
	FORK: "FORK",
	PRST: "PRST",
	PEER: "PEER",
	ADDR: "ADDR",
	CONN: "CONN",
	RELY: "RELY",
	MINR: "MINR",
	CNFG: "CNFG",
}

var subsystemLoggers = map[string]btclog.Logger{
	SubsystemTags.NODE: backendLog.Logger(SubsystemTags.NODE),
	SubsystemTags.LDGR: backendLog.Logger(SubsystemTags.LDGR),
	SubsystemTags.MPOL: backendLog.Logger(SubsystemTags.MPOL),
	SubsystemTags.CNSS: backendLog.Logger(SubsystemTags.CNSS),
	SubsystemTags.FORK: backendLog.Logger(SubsystemTags.FORK),
	SubsystemTags.PRST: backendLog.Logger(SubsystemTags.PRST),
	SubsystemTags.PEER: backendLog.Logger(SubsystemTags.PEER),
	SubsystemTags.ADDR: backendLog.Logger(SubsystemTags.ADDR),
	SubsystemTags.CONN: backendLog.Logger(SubsystemTags.CONN),
	SubsystemTags.RELY: backendLog.Logger(SubsystemTags.RELY),
	SubsystemTags.MINR: backendLog.Logger(SubsystemTags.MINR),
	SubsystemTags.CNFG: backendLog.Logger(SubsystemTags.CNFG),
}

// InitLogRotator initializes the rotating log file at logFile. It must be
// called once during startup before any subsystem logger is used.
func InitLogRotator(logFile string) {
	initiated = true
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
			os.Exit(1)
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	logRotator = r
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
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

// Get returns the logger registered for the given subsystem tag.
func Get(tag string) (logger btclog.Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// SupportedSubsystems returns a sorted list of registered subsystem tags.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for tag := range subsystemLoggers {
		subsystems = append(subsystems, tag)
	}
	sort.Strings(subsystems)
	return subsystems
}

// ParseAndSetDebugLevels parses a comma-separated subsystem=level list (or a
// bare level applied to every subsystem) and applies it.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		fields := strings.Split(pair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", pair)
		}
		subsysID, level := fields[0], fields[1]
		if _, exists := Get(subsysID); !exists {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s",
				subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if !validLogLevel(level) {
			return fmt.Errorf("the specified debug level [%s] is invalid", level)
		}
		SetLogLevel(subsysID, level)
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
