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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/emrysliu/ftptransfer/pkg/config"
	"github.com/emrysliu/ftptransfer/pkg/log"
	"github.com/emrysliu/ftptransfer/pkg/notify"
	"github.com/emrysliu/ftptransfer/pkg/transfer"
)

var version = "0.3.0"

var (
	configPath string
	debug      bool
)

func main() {
	// Minimal console logger for setup-phase messages; the transfer
	// command replaces it with the full file+console logger once the
	// run's trace id exists.
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	rootCmd := &cobra.Command{
		Use:     "ftptransfer",
		Short:   "Transfer files between FTP, FTPS and SFTP servers",
		Long:    "ftptransfer moves files from a source server to a destination server\nwith filtering, collision handling, source archiving and email reports.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "path to the config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newTransferCmd(),
		newCreateConfigCmd(),
		newUpdateConfigCmd(),
		newInteractiveUpdateConfigCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// newTransferCmd is the explicit form of the default action.
func newTransferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer",
		Short: "Run the configured transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd.Context())
		},
	}
}

// runTransfer executes one run. Config and setup problems surface as
// errors (non-zero exit); a run that connected its logger but then
// failed mid-flight still exits zero, because the outcome is already
// recorded, reported and printed.
func runTransfer(ctx context.Context) error {
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}
	if debug {
		cfg.Log.Level = "debug"
	}

	t, err := transfer.New(transfer.Options{
		Config:   cfg,
		Notifier: notify.NewMailer(cfg.Email),
	})
	if err != nil {
		return errors.Errorf("preparing transfer: %w", err)
	}

	logger, err := log.Setup(cfg.Log, t.TraceID(), os.Stderr)
	if err != nil {
		return errors.Errorf("setting up logging: %w", err)
	}
	ctx = logger.WithContext(ctx)

	tally, runErr := t.Run(ctx)
	if runErr != nil {
		// Already logged and reported inside Run; the summary below
		// tells the operator what happened.
		logger.Debug().Err(runErr).Msg("run finished with run-level error")
	}

	log.Summary(os.Stdout, tally.Found, tally.Succeeded, tally.Skipped, tally.Failed,
		t.StagingDir(), t.LogFile(), t.TraceID())

	return nil
}

func newCreateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-config",
		Short: "Create a config file through interactive prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.CreateInteractive(cmd.Context(), configPath)
			if err != nil {
				return errors.Errorf("creating config: %w", err)
			}
			fmt.Printf("Config written to %s (%s)\n", configPath, cfg.String())
			return nil
		},
	}
}

func newUpdateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-config key=value [key=value ...]",
		Short: "Update config values by dotted key",
		Long:  "Update individual config values without editing the file by hand,\ne.g. ftptransfer update-config source.host=ftp.example.com email.enable=true",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := config.ParseUpdates(args)
			if err != nil {
				return errors.Errorf("parsing updates: %w", err)
			}
			if err := config.Update(cmd.Context(), configPath, updates); err != nil {
				return errors.Errorf("updating config: %w", err)
			}
			fmt.Printf("Updated %d value(s) in %s\n", len(updates), configPath)
			return nil
		},
	}
}

func newInteractiveUpdateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interactive-update-config",
		Short: "Update the config file through interactive prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.UpdateInteractive(cmd.Context(), configPath); err != nil {
				return errors.Errorf("updating config: %w", err)
			}
			fmt.Printf("Config updated at %s\n", configPath)
			return nil
		},
	}
}
