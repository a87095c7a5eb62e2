package main

import (
	"fmt"
	"os"

	"github.com/noteum-io/noteum/pkg/logger"
)

// Environment variables consulted when the CLI flags are unset.
const (
	logFileEnvVar   = "LOG_FILE"
	logLevelEnvVar  = "LOG_LEVEL"
	logFormatEnvVar = "LOG_FORMAT"
)

// initLoggerFromCLI initializes the logger. Priority: CLI flags, then
// environment variables, then defaults. The returned cleanup closes the
// log file when one was opened.
func initLoggerFromCLI(cliLevel, cliFile, cliFormat string) (func(), error) {
	logLevel := cliLevel
	if logLevel == "" {
		logLevel = os.Getenv(logLevelEnvVar)
	}
	if logLevel == "" {
		logLevel = "info"
	}

	logFile := cliFile
	if logFile == "" {
		logFile = os.Getenv(logFileEnvVar)
	}

	logFormat := cliFormat
	if logFormat == "" {
		logFormat = os.Getenv(logFormatEnvVar)
	}
	if logFormat == "" {
		logFormat = "simple"
	}

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if logFile != "" {
		file, cleanupFn, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	}

	logger.Init(level, output, logFormat)
	return cleanup, nil
}
