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
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Filter rule types accepted in the file_filter section.
const (
	FilterAll              = "all"
	FilterPattern          = "pattern"
	FilterExtension        = "extension"
	FilterCreationTime     = "creation_time"
	FilterModificationTime = "modification_time"
)

// Relations accepted by time-based filter rules.
const (
	RelationSince  = "since"
	RelationBefore = "before"
)

// 🔍 FilterRule narrows the source listing to the files worth moving
type FilterRule struct {
	Type       string   `json:"type" yaml:"type" hcl:"type,optional"`
	Pattern    string   `json:"pattern,omitempty" yaml:"pattern,omitempty" hcl:"pattern,optional"`
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty" hcl:"extensions,optional"`
	Relation   string   `json:"relation,omitempty" yaml:"relation,omitempty" hcl:"relation,optional"`
	Time       string   `json:"time,omitempty" yaml:"time,omitempty" hcl:"time,optional"`
}

// 📦 Endpoint describes one remote server (source or destination).
// It is built once from configuration at run start and never mutated.
type Endpoint struct {
	Host       string `json:"host" yaml:"host" hcl:"host,optional"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty" hcl:"port,optional"`
	User       string `json:"user" yaml:"user" hcl:"user,optional"`
	Password   string `json:"password" yaml:"password" hcl:"password,optional"`
	Directory  string `json:"directory" yaml:"directory" hcl:"directory,optional"`
	Encoding   string `json:"encoding,omitempty" yaml:"encoding,omitempty" hcl:"encoding,optional"`
	UseFTPS    bool   `json:"use_ftps,omitempty" yaml:"use_ftps,omitempty" hcl:"use_ftps,optional"`
	TLSImplicit bool  `json:"tls_implicit,omitempty" yaml:"tls_implicit,omitempty" hcl:"tls_implicit,optional"`
	UsePassive *bool  `json:"use_passive,omitempty" yaml:"use_passive,omitempty" hcl:"use_passive,optional"`
	UseSFTP    bool   `json:"use_sftp,omitempty" yaml:"use_sftp,omitempty" hcl:"use_sftp,optional"`
	KeyFile    string `json:"key_file,omitempty" yaml:"key_file,omitempty" hcl:"key_file,optional"`
	Passphrase string `json:"passphrase,omitempty" yaml:"passphrase,omitempty" hcl:"passphrase,optional"`

	// Source side only: where processed files are moved after a
	// successful transfer. The enable flag is authoritative; a
	// configured directory with the flag off is inert.
	BackupDirectory string `json:"backup_directory,omitempty" yaml:"backup_directory,omitempty" hcl:"backup_directory,optional"`
	EnableBackup    bool   `json:"enable_backup,omitempty" yaml:"enable_backup,omitempty" hcl:"enable_backup,optional"`

	// Destination side only: skip | overwrite | rename
	FileExistsStrategy string `json:"file_exists_strategy,omitempty" yaml:"file_exists_strategy,omitempty" hcl:"file_exists_strategy,optional"`

	// Source side only
	FileFilter *FilterRule `json:"file_filter,omitempty" yaml:"file_filter,omitempty" hcl:"file_filter,block"`
}

// 🎯 Protocol returns the transport protocol key for this endpoint
func (e *Endpoint) Protocol() string {
	if e.UseSFTP {
		return "sftp"
	}
	return "ftp"
}

// Addr returns the host:port dial address.
func (e *Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Passive reports the passive-mode flag with its default applied.
func (e *Endpoint) Passive() bool {
	return e.UsePassive == nil || *e.UsePassive
}

// 📝 LogConfig mirrors the original loguru knobs
type LogConfig struct {
	File      string `json:"file,omitempty" yaml:"file,omitempty" hcl:"file,optional"`
	Rotation  string `json:"rotation,omitempty" yaml:"rotation,omitempty" hcl:"rotation,optional"`
	Retention string `json:"retention,omitempty" yaml:"retention,omitempty" hcl:"retention,optional"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty" hcl:"level,optional"`
}

// 📧 EmailConfig configures the outcome reporter
type EmailConfig struct {
	Enable           bool     `json:"enable" yaml:"enable" hcl:"enable,optional"`
	Subject          string   `json:"subject,omitempty" yaml:"subject,omitempty" hcl:"subject,optional"`
	Sender           string   `json:"sender,omitempty" yaml:"sender,omitempty" hcl:"sender,optional"`
	Recipients       []string `json:"recipients,omitempty" yaml:"recipients,omitempty" hcl:"recipients,optional"`
	SMTPServer       string   `json:"smtp_server,omitempty" yaml:"smtp_server,omitempty" hcl:"smtp_server,optional"`
	SMTPPort         int      `json:"smtp_port,omitempty" yaml:"smtp_port,omitempty" hcl:"smtp_port,optional"`
	SMTPUsername     string   `json:"smtp_username,omitempty" yaml:"smtp_username,omitempty" hcl:"smtp_username,optional"`
	SMTPPassword     string   `json:"smtp_password,omitempty" yaml:"smtp_password,omitempty" hcl:"smtp_password,optional"`
	FailureThreshold int      `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty" hcl:"failure_threshold,optional"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Source      Endpoint    `json:"source" yaml:"source" hcl:"source,block"`
	Destination Endpoint    `json:"destination" yaml:"destination" hcl:"destination,block"`
	Log         LogConfig   `json:"log,omitempty" yaml:"log,omitempty" hcl:"log,block"`
	Email       EmailConfig `json:"email,omitempty" yaml:"email,omitempty" hcl:"email,block"`
}

// DefaultPath returns the default config file location,
// ~/.config/ftp_transfer/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "ftp_transfer", "config.yaml")
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🔍 Validate checks the configuration and fills in defaults
func (cfg *Config) Validate() error {
	if cfg.Source.Host == "" {
		return errors.Errorf("source.host is required")
	}
	if cfg.Destination.Host == "" {
		return errors.Errorf("destination.host is required")
	}
	if cfg.Source.Directory == "" {
		return errors.Errorf("source.directory is required")
	}
	if cfg.Destination.Directory == "" {
		return errors.Errorf("destination.directory is required")
	}

	applyEndpointDefaults(&cfg.Source)
	applyEndpointDefaults(&cfg.Destination)

	if cfg.Source.FileFilter != nil {
		if err := validateFilter(cfg.Source.FileFilter); err != nil {
			return errors.Errorf("source.file_filter: %w", err)
		}
	}

	if cfg.Destination.FileExistsStrategy == "" {
		cfg.Destination.FileExistsStrategy = "rename"
	}

	if cfg.Log.File == "" {
		cfg.Log.File = "ftp_transfer.log"
	}
	if cfg.Log.Rotation == "" {
		cfg.Log.Rotation = "1 week"
	}
	if cfg.Log.Retention == "" {
		cfg.Log.Retention = "1 month"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "INFO"
	}

	if cfg.Email.Subject == "" {
		cfg.Email.Subject = "FTP transfer report"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 465
	}
	if cfg.Email.FailureThreshold == 0 {
		cfg.Email.FailureThreshold = 3
	}

	return nil
}

func applyEndpointDefaults(e *Endpoint) {
	if e.Port == 0 {
		if e.UseSFTP {
			e.Port = 22
		} else {
			e.Port = 21
		}
	}
	if e.Encoding == "" {
		e.Encoding = "utf-8"
	}
	if e.UsePassive == nil {
		passive := true
		e.UsePassive = &passive
	}
}

func validateFilter(r *FilterRule) error {
	switch r.Type {
	case "", FilterAll:
		r.Type = FilterAll
	case FilterPattern:
		if r.Pattern == "" {
			return errors.Errorf("pattern is required for pattern filter")
		}
	case FilterExtension:
		if len(r.Extensions) == 0 {
			return errors.Errorf("extensions is required for extension filter")
		}
	case FilterCreationTime, FilterModificationTime:
		if r.Time == "" {
			return errors.Errorf("time is required for %s filter", r.Type)
		}
		switch r.Relation {
		case "":
			r.Relation = RelationSince
		case RelationSince, RelationBefore:
		default:
			return errors.Errorf("unknown relation: %s", r.Relation)
		}
	default:
		return errors.Errorf("unknown filter type: %s", r.Type)
	}
	return nil
}

// 📝 String returns a one-line description of the configured route
func (cfg *Config) String() string {
	return fmt.Sprintf("%s://%s%s -> %s://%s%s",
		cfg.Source.Protocol(), cfg.Source.Addr(), cfg.Source.Directory,
		cfg.Destination.Protocol(), cfg.Destination.Addr(), cfg.Destination.Directory)
}
