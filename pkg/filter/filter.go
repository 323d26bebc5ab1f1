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

// Package filter narrows a source listing to the files a run should
// move.
package filter

import (
	"context"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/emrysliu/ftptransfer/pkg/config"
	"github.com/emrysliu/ftptransfer/pkg/transport"
)

// Threshold layouts accepted by time-based rules.
const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// ⏱️ StatFunc resolves a per-file timestamp. ok is false when the
// server cannot report one; such files never pass a time rule.
type StatFunc func(ctx context.Context, name string, basis transport.TimeBasis) (t time.Time, ok bool)

// 🔍 Apply evaluates the rule against the listing, preserving order.
// A nil rule passes everything through. Only time-based rules consult
// stat.
func Apply(ctx context.Context, files []string, rule *config.FilterRule, stat StatFunc) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	if rule == nil || rule.Type == "" || rule.Type == config.FilterAll {
		out := make([]string, len(files))
		copy(out, files)
		return out, nil
	}

	switch rule.Type {
	case config.FilterPattern:
		return applyPattern(ctx, files, rule.Pattern)
	case config.FilterExtension:
		return applyExtension(files, rule.Extensions), nil
	case config.FilterCreationTime, config.FilterModificationTime:
		return applyTimeWindow(ctx, files, rule, stat)
	default:
		logger.Warn().Str("type", rule.Type).Msg("unknown filter type, passing all files through")
		out := make([]string, len(files))
		copy(out, files)
		return out, nil
	}
}

// applyPattern keeps names matching the glob. `*` spans any run of
// characters, `?` exactly one; dots are literal.
func applyPattern(ctx context.Context, files []string, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.Errorf("invalid glob pattern: %s", pattern)
	}

	out := make([]string, 0, len(files))
	for _, name := range files {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil, errors.Errorf("matching %q against %q: %w", name, pattern, err)
		}
		if ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// applyExtension keeps names whose suffix is in the set,
// case-insensitively. Names without a dot never match.
func applyExtension(files []string, extensions []string) []string {
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	out := make([]string, 0, len(files))
	for _, name := range files {
		idx := strings.LastIndex(name, ".")
		if idx < 0 || idx == len(name)-1 {
			continue
		}
		if set[strings.ToLower(name[idx+1:])] {
			out = append(out, name)
		}
	}
	return out
}

// applyTimeWindow keeps files whose timestamp satisfies the relation.
// Files with no retrievable timestamp are dropped, never passed
// through.
func applyTimeWindow(ctx context.Context, files []string, rule *config.FilterRule, stat StatFunc) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	threshold, err := ParseThreshold(rule.Time)
	if err != nil {
		return nil, err
	}

	basis := transport.ModificationTime
	if rule.Type == config.FilterCreationTime {
		basis = transport.CreationTime
	}

	out := make([]string, 0, len(files))
	for _, name := range files {
		t, ok := stat(ctx, name, basis)
		if !ok {
			logger.Debug().Str("name", name).Msg("no timestamp available, excluding from time filter")
			continue
		}

		keep := false
		switch rule.Relation {
		case config.RelationBefore:
			keep = !t.After(threshold)
		default: // since
			keep = !t.Before(threshold)
		}
		if keep {
			out = append(out, name)
		}
	}
	return out, nil
}

// ParseThreshold accepts a date-only or date-time threshold string.
func ParseThreshold(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateTimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, errors.Errorf("invalid time threshold %q, expected %q or %q", s, dateLayout, dateTimeLayout)
}

// NeedsStat reports whether evaluating the rule requires per-file
// timestamps from the server.
func NeedsStat(rule *config.FilterRule) bool {
	return rule != nil && (rule.Type == config.FilterCreationTime || rule.Type == config.FilterModificationTime)
}
