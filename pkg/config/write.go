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

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 💾 Save writes the configuration to a YAML file, creating the
// parent directory when needed. The file is written 0600 because it
// carries credentials.
func Save(ctx context.Context, path string, cfg *Config) error {
	logger := zerolog.Ctx(ctx)

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Errorf("creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Errorf("writing config file: %w", err)
	}

	logger.Info().Str("path", path).Msg("config file saved")
	return nil
}

// 🔄 Update applies a nested update map to an existing config file.
// Values present in updates replace the stored ones; maps are merged
// recursively so unrelated keys survive.
func Update(ctx context.Context, path string, updates map[string]any) error {
	logger := zerolog.Ctx(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Errorf("reading config file: %w", err)
	}

	current := map[string]any{}
	if err := yaml.Unmarshal(data, &current); err != nil {
		return errors.Errorf("parsing config file: %w", err)
	}

	merged := mergeMaps(current, updates)

	// Round-trip through Config so the result is still a valid
	// configuration before it lands on disk.
	out, err := yaml.Marshal(merged)
	if err != nil {
		return errors.Errorf("marshaling config: %w", err)
	}
	var check Config
	if err := yaml.Unmarshal(out, &check); err != nil {
		return errors.Errorf("updated config is not valid: %w", err)
	}

	if err := os.WriteFile(path, out, 0600); err != nil {
		return errors.Errorf("writing config file: %w", err)
	}

	logger.Info().Str("path", path).Int("keys", len(updates)).Msg("config file updated")
	return nil
}

// 📝 ParseUpdates turns "key=value" items (dot notation for nesting,
// e.g. source.port=2121) into the nested map Update consumes. Scalar
// values are coerced the YAML way, so "true", "21" and "1.5" come out
// typed.
func ParseUpdates(items []string) (map[string]any, error) {
	updates := map[string]any{}

	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, errors.Errorf("invalid config item %q, expected key=value", item)
		}

		var parsed any
		if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}

		keys := strings.Split(key, ".")
		current := updates
		for _, k := range keys[:len(keys)-1] {
			next, ok := current[k].(map[string]any)
			if !ok {
				next = map[string]any{}
				current[k] = next
			}
			current = next
		}
		current[keys[len(keys)-1]] = parsed
	}

	return updates, nil
}

// Flatten returns dotted key paths for display, mirroring the input
// format of ParseUpdates.
func Flatten(m map[string]any) map[string]any {
	out := map[string]any{}
	flattenInto(out, "", m)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

func mergeMaps(current, updates map[string]any) map[string]any {
	for k, v := range updates {
		if uv, ok := v.(map[string]any); ok {
			if cv, ok := current[k].(map[string]any); ok {
				current[k] = mergeMaps(cv, uv)
				continue
			}
		}
		current[k] = v
	}
	return current
}
