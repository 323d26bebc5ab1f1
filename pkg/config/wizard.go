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
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"gitlab.com/tozd/go/errors"
)

// 🧙 CreateInteractive walks the user through building a new config
// file and writes it to path.
func CreateInteractive(ctx context.Context, path string) (*Config, error) {
	pterm.DefaultSection.Println("New configuration")

	cfg := &Config{}

	pterm.DefaultSection.WithLevel(2).Println("Source server")
	if err := promptEndpoint(&cfg.Source, true); err != nil {
		return nil, err
	}

	pterm.DefaultSection.WithLevel(2).Println("Destination server")
	if err := promptEndpoint(&cfg.Destination, false); err != nil {
		return nil, err
	}

	pterm.DefaultSection.WithLevel(2).Println("Logging")
	cfg.Log.File = promptText("Log file path", "ftp_transfer.log")
	cfg.Log.Rotation = promptText("Log rotation", "1 week")
	cfg.Log.Retention = promptText("Log retention", "1 month")
	cfg.Log.Level = promptText("Log level", "INFO")

	pterm.DefaultSection.WithLevel(2).Println("Email notification")
	cfg.Email.Enable = promptConfirm("Enable email notification?", false)
	if cfg.Email.Enable {
		promptEmail(&cfg.Email)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}
	if err := Save(ctx, path, cfg); err != nil {
		return nil, err
	}

	pterm.Success.Printfln("Config file created: %s", path)
	return cfg, nil
}

// 🧙 UpdateInteractive re-prompts every section of an existing config
// file, offering the stored values as defaults.
func UpdateInteractive(ctx context.Context, path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Errorf("config file does not exist, run create-config first: %w", err)
	}

	cfg, err := Load(ctx, path)
	if err != nil {
		return nil, err
	}

	pterm.DefaultSection.Println("Update configuration")
	pterm.Info.Println("Press enter to keep the current value.")

	pterm.DefaultSection.WithLevel(2).Println("Source server")
	updateEndpoint(&cfg.Source, true)

	pterm.DefaultSection.WithLevel(2).Println("Destination server")
	updateEndpoint(&cfg.Destination, false)

	pterm.DefaultSection.WithLevel(2).Println("Logging")
	cfg.Log.File = promptText("Log file path", cfg.Log.File)
	cfg.Log.Rotation = promptText("Log rotation", cfg.Log.Rotation)
	cfg.Log.Retention = promptText("Log retention", cfg.Log.Retention)
	cfg.Log.Level = promptText("Log level", cfg.Log.Level)

	pterm.DefaultSection.WithLevel(2).Println("Email notification")
	cfg.Email.Enable = promptConfirm("Enable email notification?", cfg.Email.Enable)
	if cfg.Email.Enable {
		promptEmail(&cfg.Email)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}
	if err := Save(ctx, path, cfg); err != nil {
		return nil, err
	}

	pterm.Success.Printfln("Config file updated: %s", path)
	return cfg, nil
}

func promptEndpoint(e *Endpoint, isSource bool) error {
	e.UseSFTP = promptConfirm("Use SFTP instead of FTP/FTPS?", e.UseSFTP)

	e.Host = promptText("Host", e.Host)
	defPort := 21
	if e.UseSFTP {
		defPort = 22
	}
	if e.Port != 0 {
		defPort = e.Port
	}
	e.Port = promptInt("Port", defPort)
	e.User = promptText("Username", e.User)
	e.Password = promptPassword("Password")
	e.Directory = promptText("Directory", e.Directory)

	if e.UseSFTP {
		e.KeyFile = promptText("Private key file (empty for password auth)", e.KeyFile)
		if e.KeyFile != "" {
			e.Passphrase = promptPassword("Key passphrase (empty for none)")
		}
	} else {
		e.Encoding = promptText("Encoding (use 'gbk' for legacy windows servers)", valueOr(e.Encoding, "utf-8"))
		e.UseFTPS = promptConfirm("Use FTPS?", e.UseFTPS)
		if e.UseFTPS {
			e.TLSImplicit = promptConfirm("Implicit TLS (usually port 990)?", e.TLSImplicit)
		}
		passive := promptConfirm("Use passive mode?", e.Passive())
		e.UsePassive = &passive
	}

	if isSource {
		e.EnableBackup = promptConfirm("Move source files to a backup directory after transfer?", e.EnableBackup)
		if e.EnableBackup {
			e.BackupDirectory = promptText("Backup directory", e.BackupDirectory)
		}
	} else {
		e.FileExistsStrategy = promptText("File exists strategy (skip/overwrite/rename)", valueOr(e.FileExistsStrategy, "rename"))
	}

	return nil
}

func updateEndpoint(e *Endpoint, isSource bool) {
	// Same flow as promptEndpoint; stored values already act as
	// defaults, passwords are only replaced on request.
	e.UseSFTP = promptConfirm("Use SFTP instead of FTP/FTPS?", e.UseSFTP)
	e.Host = promptText("Host", e.Host)
	e.Port = promptInt("Port", e.Port)
	e.User = promptText("Username", e.User)
	if promptConfirm("Change the password?", false) || e.Password == "" {
		e.Password = promptPassword("Password")
	}
	e.Directory = promptText("Directory", e.Directory)

	if e.UseSFTP {
		e.KeyFile = promptText("Private key file (empty for password auth)", e.KeyFile)
	} else {
		e.Encoding = promptText("Encoding", valueOr(e.Encoding, "utf-8"))
		e.UseFTPS = promptConfirm("Use FTPS?", e.UseFTPS)
		if e.UseFTPS {
			e.TLSImplicit = promptConfirm("Implicit TLS (usually port 990)?", e.TLSImplicit)
		}
		passive := promptConfirm("Use passive mode?", e.Passive())
		e.UsePassive = &passive
	}

	if isSource {
		e.EnableBackup = promptConfirm("Move source files to a backup directory after transfer?", e.EnableBackup)
		if e.EnableBackup {
			e.BackupDirectory = promptText("Backup directory", e.BackupDirectory)
		}
	} else {
		e.FileExistsStrategy = promptText("File exists strategy (skip/overwrite/rename)", valueOr(e.FileExistsStrategy, "rename"))
	}
}

func promptEmail(e *EmailConfig) {
	e.Subject = promptText("Subject", valueOr(e.Subject, "FTP transfer report"))
	e.Sender = promptText("Sender address", e.Sender)
	recipients := promptText("Recipients (comma separated)", strings.Join(e.Recipients, ","))
	e.Recipients = nil
	for _, r := range strings.Split(recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			e.Recipients = append(e.Recipients, r)
		}
	}
	e.SMTPServer = promptText("SMTP server", e.SMTPServer)
	e.SMTPPort = promptInt("SMTP port", valueOrInt(e.SMTPPort, 465))
	e.SMTPUsername = promptText("SMTP username", e.SMTPUsername)
	if promptConfirm("Change the SMTP password?", false) || e.SMTPPassword == "" {
		e.SMTPPassword = promptPassword("SMTP password")
	}
	e.FailureThreshold = promptInt("Failure count threshold for warning subject", valueOrInt(e.FailureThreshold, 3))
}

func promptText(label, def string) string {
	v, _ := pterm.DefaultInteractiveTextInput.WithDefaultValue(def).Show(label)
	if v == "" {
		return def
	}
	return v
}

func promptPassword(label string) string {
	v, _ := pterm.DefaultInteractiveTextInput.WithMask("*").Show(label)
	return v
}

func promptConfirm(label string, def bool) bool {
	v, _ := pterm.DefaultInteractiveConfirm.WithDefaultValue(def).Show(label)
	return v
}

func promptInt(label string, def int) int {
	v, _ := pterm.DefaultInteractiveTextInput.WithDefaultValue(strconv.Itoa(def)).Show(label)
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func valueOrInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
