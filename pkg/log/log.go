// Copyright 2025 Emrys Liu
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log wires zerolog to a rotated log file plus the console,
// tagging every record with the run's trace id.
package log

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/emrysliu/ftptransfer/pkg/config"
)

// Defaults used when a rotation/retention string cannot be parsed.
const (
	defaultMaxSizeMB  = 100
	defaultMaxAgeDays = 30
)

// 🏭 Setup builds the run logger: rotated file sink plus a console
// writer, every record carrying trace_id.
func Setup(cfg config.LogConfig, traceID string, console io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Logger{}, errors.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	fileSink := &lumberjack.Logger{
		Filename: cfg.File,
		MaxSize:  rotationMB(cfg.Rotation),
		MaxAge:   retentionDays(cfg.Retention),
	}

	consoleSink := zerolog.ConsoleWriter{Out: console, TimeFormat: "2006-01-02 15:04:05"}

	logger := zerolog.New(zerolog.MultiLevelWriter(fileSink, consoleSink)).
		Level(level).
		With().
		Timestamp().
		Str("trace_id", traceID).
		Logger()

	return logger, nil
}

// rotationMB parses a "<n> MB"/"<n> GB" rotation size. Time-based
// strings from older configs fall back to the size default.
func rotationMB(s string) int {
	n, unit, ok := splitAmount(s)
	if !ok {
		return defaultMaxSizeMB
	}
	switch unit {
	case "mb", "megabyte", "megabytes":
		return n
	case "gb", "gigabyte", "gigabytes":
		return n * 1024
	default:
		return defaultMaxSizeMB
	}
}

// retentionDays parses "1 week" / "1 month" / "10 days" retention
// strings into days.
func retentionDays(s string) int {
	n, unit, ok := splitAmount(s)
	if !ok {
		return defaultMaxAgeDays
	}
	switch unit {
	case "day", "days":
		return n
	case "week", "weeks":
		return n * 7
	case "month", "months":
		return n * 30
	default:
		return defaultMaxAgeDays
	}
}

func splitAmount(s string) (int, string, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 2 {
		return 0, "", false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0, "", false
	}
	return n, fields[1], true
}

// 📝 Summary prints the colored end-of-run block the CLI shows.
func Summary(out io.Writer, found, succeeded, skipped, failed int, stagingDir, logFile, traceID string) {
	header := color.New(color.Bold, color.FgCyan).Sprint("transfer summary")
	fmt.Fprintf(out, "\n%s\n", header)
	fmt.Fprintf(out, "  files found:  %d\n", found)
	fmt.Fprintf(out, "  succeeded:    %s\n", color.New(color.FgGreen).Sprintf("%d", succeeded))
	fmt.Fprintf(out, "  skipped:      %s\n", color.New(color.FgYellow).Sprintf("%d", skipped))
	fmt.Fprintf(out, "  failed:       %s\n", color.New(color.FgRed).Sprintf("%d", failed))
	fmt.Fprintf(out, "  staging dir:  %s\n", stagingDir)
	fmt.Fprintf(out, "  log file:     %s\n", logFile)
	fmt.Fprintf(out, "  trace id:     %s\n", traceID)
}
