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

// Package transfer orchestrates one end-to-end run between two remote
// endpoints: list, filter, collision resolution, download, upload,
// archive and cleanup, with per-file failure isolation.
package transfer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/emrysliu/ftptransfer/pkg/collision"
	"github.com/emrysliu/ftptransfer/pkg/config"
	"github.com/emrysliu/ftptransfer/pkg/filter"
	"github.com/emrysliu/ftptransfer/pkg/notify"
	"github.com/emrysliu/ftptransfer/pkg/transport"
)

// 🔧 Options contains everything a Transferer needs
type Options struct {
	// Config is the validated run configuration
	Config *config.Config
	// Dial opens transport sessions; defaults to the registry dialer
	Dial transport.Dialer
	// Notifier receives the run report; defaults to a no-op
	Notifier notify.Notifier
	// Now is the clock used for rename timestamps; defaults to time.Now
	Now func() time.Time
	// StagingRoot overrides the staging parent directory
	StagingRoot string
}

// 🎮 Transferer runs one transfer between the configured endpoints.
// One instance owns one run: its staging directory, its trace id and
// its outcome record are never shared or reused.
type Transferer struct {
	cfg        *config.Config
	dial       transport.Dialer
	notifier   notify.Notifier
	now        func() time.Time
	traceID    string
	stagingDir string
	outcome    *Outcome
}

// 🏭 New creates a Transferer and its run-scoped staging directory
func New(opts Options) (*Transferer, error) {
	if opts.Config == nil {
		return nil, errors.Errorf("config is required")
	}
	if opts.Dial == nil {
		opts.Dial = transport.Dial
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	root := opts.StagingRoot
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Errorf("resolving home directory: %w", err)
		}
		root = filepath.Join(home, ".local", "share", "ftp_transfer", "archives")
	}
	stagingDir := filepath.Join(root, opts.Now().Format("20060102_150405"))
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, errors.Errorf("creating staging directory: %w", err)
	}

	return &Transferer{
		cfg:        opts.Config,
		dial:       opts.Dial,
		notifier:   opts.Notifier,
		now:        opts.Now,
		traceID:    uuid.NewString(),
		stagingDir: stagingDir,
		outcome:    NewOutcome(),
	}, nil
}

// TraceID identifies this run in logs and reports.
func (t *Transferer) TraceID() string { return t.traceID }

// StagingDir is the run-scoped local directory holding in-flight
// files.
func (t *Transferer) StagingDir() string { return t.stagingDir }

// LogFile is the configured log path, for caller-side display.
func (t *Transferer) LogFile() string {
	abs, err := filepath.Abs(t.cfg.Log.File)
	if err != nil {
		return t.cfg.Log.File
	}
	return abs
}

// Outcome exposes the accounting record; read it only after Run
// returns.
func (t *Transferer) Outcome() *Outcome { return t.outcome }

// 🏃 Run executes the transfer pipeline. The report is delivered
// exactly once on every path, including total failure. The returned
// error carries a connect/list-level failure for library callers; the
// tally is valid either way.
func (t *Transferer) Run(ctx context.Context) (Tally, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("route", t.cfg.String()).Msg("starting transfer run")

	runErr := t.run(ctx)
	if runErr != nil {
		logger.Error().Err(runErr).Msg("transfer run failed")
		t.outcome.addError(runErr.Error())
	}

	t.sendReport(ctx)

	tally := t.outcome.Tally()
	logger.Info().
		Int("found", tally.Found).
		Int("succeeded", tally.Succeeded).
		Int("skipped", tally.Skipped).
		Int("failed", tally.Failed).
		Msg("transfer run complete")

	return tally, runErr
}

func (t *Transferer) run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	src, err := t.dial(ctx, &t.cfg.Source)
	if err != nil {
		return errors.Errorf("connecting to source: %w", err)
	}
	defer t.closeQuietly(ctx, src, "source")

	files, err := src.List(ctx, t.cfg.Source.Directory)
	if err != nil {
		return errors.Errorf("listing source directory: %w", err)
	}

	// The session stays open for the timestamp pass; every client
	// call takes an explicit directory so no cwd state can leak
	// between the filter phase and the transfer phase.
	stat := func(ctx context.Context, name string, basis transport.TimeBasis) (time.Time, bool) {
		return src.StatTime(ctx, t.cfg.Source.Directory, name, basis)
	}

	candidates, err := filter.Apply(ctx, files, t.cfg.Source.FileFilter, stat)
	if err != nil {
		return errors.Errorf("applying file filter: %w", err)
	}
	t.outcome.markFound(candidates)

	if len(candidates) == 0 {
		// Nothing to move; the destination is never dialed.
		logger.Info().Msg("no files to transfer")
		return nil
	}

	dst, err := t.dial(ctx, &t.cfg.Destination)
	if err != nil {
		return errors.Errorf("connecting to destination: %w", err)
	}
	defer t.closeQuietly(ctx, dst, "destination")

	for i, name := range candidates {
		// One file's failure never aborts the loop.
		t.processFile(ctx, i, name, src, dst)
	}

	return nil
}

// processFile drives the per-file pipeline: existence check, collision
// resolution, download to staging, upload, optional source backup,
// staging cleanup.
func (t *Transferer) processFile(ctx context.Context, seq int, name string, src, dst transport.Client) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("name", name).Msg("processing file")

	exists, err := dst.Exists(ctx, t.cfg.Destination.Directory, name)
	if err != nil {
		// Could-not-determine is a per-file failure, not a silent
		// absence.
		t.outcome.markFailed(name, fmt.Sprintf("existence check failed: %v", err))
		return
	}

	strategy := collision.Strategy(t.cfg.Destination.FileExistsStrategy)
	res := collision.Resolve(ctx, name, exists, strategy, t.now)
	if res.Skip {
		t.outcome.markSkipped(name)
		return
	}
	if res.Renamed {
		t.outcome.markRenamed(name, res.UploadName)
	}

	stagingPath := filepath.Join(t.stagingDir, fmt.Sprintf("temp_%03d_%s", seq, res.UploadName))
	defer func() {
		if _, err := os.Stat(stagingPath); err == nil {
			if err := os.Remove(stagingPath); err != nil {
				logger.Warn().Err(err).Str("path", stagingPath).Msg("failed to remove staging file")
			}
		}
	}()

	if err := src.Download(ctx, t.cfg.Source.Directory, name, stagingPath); err != nil {
		t.outcome.markFailed(name, fmt.Sprintf("download failed: %v", err))
		return
	}

	if err := dst.Upload(ctx, stagingPath, t.cfg.Destination.Directory, res.UploadName); err != nil {
		t.outcome.markFailed(name, fmt.Sprintf("upload failed: %v", err))
		return
	}

	if t.cfg.Source.EnableBackup && t.cfg.Source.BackupDirectory != "" {
		landing := path.Join(t.cfg.Source.BackupDirectory, res.UploadName)
		if err := src.Move(ctx, t.cfg.Source.Directory, name, landing); err != nil {
			// Download and upload succeeded, so the file now exists on
			// both servers. Accepted side effect; the failure is still
			// recorded.
			t.outcome.markFailed(name, fmt.Sprintf("moving to backup directory failed: %v", err))
			return
		}
	} else {
		logger.Debug().Str("name", name).Msg("source backup disabled, leaving file in place")
	}

	if res.Renamed {
		t.outcome.markSucceeded(fmt.Sprintf("%s -> %s", name, res.UploadName))
	} else {
		t.outcome.markSucceeded(name)
	}
	logger.Info().Str("name", name).Str("upload_name", res.UploadName).Msg("file transferred")
}

func (t *Transferer) sendReport(ctx context.Context) {
	logger := zerolog.Ctx(ctx)

	subject, body := buildReport(t.outcome, t.cfg.Email, t.LogFile(), t.traceID)
	if err := t.notifier.Notify(ctx, t.cfg.Email.Enable, subject, body, true); err != nil {
		// A failed notification never flips the run outcome.
		logger.Error().Err(err).Msg("failed to deliver run report")
	}
}

func (t *Transferer) closeQuietly(ctx context.Context, c transport.Client, role string) {
	logger := zerolog.Ctx(ctx)
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Str("endpoint", role).Msg("failed to close session")
	}
}
