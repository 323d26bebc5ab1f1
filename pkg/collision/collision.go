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

// Package collision decides what to do when the destination already
// holds a file with a pending upload's name.
package collision

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// 🎯 Strategy names a collision policy
type Strategy string

const (
	StrategySkip      Strategy = "skip"
	StrategyOverwrite Strategy = "overwrite"
	StrategyRename    Strategy = "rename"
)

// timestampLayout produces the 14-digit suffix of renamed uploads.
const timestampLayout = "20060102150405"

// 📦 Resolution is the outcome of a collision decision
type Resolution struct {
	UploadName string // name to upload under
	Skip       bool   // true: do not transfer this file at all
	Renamed    bool   // true: UploadName differs from the source name
}

// 🔀 Resolve picks the upload name for a file. When the destination
// does not hold the name, the original is always used regardless of
// strategy. An unknown strategy logs a warning and behaves like
// rename.
func Resolve(ctx context.Context, name string, exists bool, strategy Strategy, now func() time.Time) Resolution {
	logger := zerolog.Ctx(ctx)

	if !exists {
		return Resolution{UploadName: name}
	}

	switch strategy {
	case StrategySkip:
		logger.Info().Str("name", name).Msg("destination already has file, skipping")
		return Resolution{UploadName: name, Skip: true}
	case StrategyOverwrite:
		logger.Warn().Str("name", name).Msg("destination already has file, overwriting")
		return Resolution{UploadName: name}
	case StrategyRename:
	default:
		logger.Warn().Str("strategy", string(strategy)).Msg("unknown file exists strategy, falling back to rename")
	}

	renamed := timestampedName(name, now())
	logger.Warn().Str("name", name).Str("upload_name", renamed).Msg("destination already has file, uploading under new name")
	return Resolution{UploadName: renamed, Renamed: true}
}

// timestampedName appends _<YYYYMMDDHHMMSS> before the extension:
// report.csv -> report_20250830120000.csv.
func timestampedName(name string, at time.Time) string {
	stamp := at.Format(timestampLayout)
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name + "_" + stamp
	}
	return name[:idx] + "_" + stamp + name[idx:]
}
