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

package transfer

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/emrysliu/ftptransfer/pkg/config"
	"github.com/emrysliu/ftptransfer/pkg/transport"
)

// fakeServer is an in-memory transport.Client. Errors are injectable
// per file name so tests can fail one step of one file's pipeline.
type fakeServer struct {
	files map[string]map[string][]byte // dir -> name -> content

	listErr     error
	existsErr   map[string]error
	downloadErr map[string]error
	uploadErr   map[string]error
	moveErr     map[string]error

	downloads []string
	uploads   []string // "dir/name"
	moves     []string // "dir/name -> destPath"
	closed    bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		files:       map[string]map[string][]byte{},
		existsErr:   map[string]error{},
		downloadErr: map[string]error{},
		uploadErr:   map[string]error{},
		moveErr:     map[string]error{},
	}
}

func (s *fakeServer) put(dir, name string, content []byte) {
	if s.files[dir] == nil {
		s.files[dir] = map[string][]byte{}
	}
	s.files[dir][name] = content
}

func (s *fakeServer) List(ctx context.Context, dir string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	names := make([]string, 0, len(s.files[dir]))
	for name := range s.files[dir] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *fakeServer) Exists(ctx context.Context, dir, name string) (bool, error) {
	if err := s.existsErr[name]; err != nil {
		return false, err
	}
	_, ok := s.files[dir][name]
	return ok, nil
}

func (s *fakeServer) Download(ctx context.Context, dir, name, localPath string) error {
	if err := s.downloadErr[name]; err != nil {
		return err
	}
	content, ok := s.files[dir][name]
	if !ok {
		return errors.Errorf("no such file: %s", name)
	}
	s.downloads = append(s.downloads, name)
	return os.WriteFile(localPath, content, 0600)
}

func (s *fakeServer) Upload(ctx context.Context, localPath, dir, name string) error {
	if err := s.uploadErr[name]; err != nil {
		return err
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.put(dir, name, content)
	s.uploads = append(s.uploads, dir+"/"+name)
	return nil
}

func (s *fakeServer) Move(ctx context.Context, dir, name, destPath string) error {
	if err := s.moveErr[name]; err != nil {
		return err
	}
	content, ok := s.files[dir][name]
	if !ok {
		return errors.Errorf("no such file: %s", name)
	}
	delete(s.files[dir], name)
	s.put("", destPath, content)
	s.moves = append(s.moves, dir+"/"+name+" -> "+destPath)
	return nil
}

func (s *fakeServer) StatTime(ctx context.Context, dir, name string, basis transport.TimeBasis) (time.Time, bool) {
	return time.Time{}, false
}

func (s *fakeServer) Close() error {
	s.closed = true
	return nil
}

// fakeNotifier records every delivery.
type fakeNotifier struct {
	calls    int
	enabled  bool
	subjects []string
	bodies   []string
}

func (n *fakeNotifier) Notify(ctx context.Context, enabled bool, subject, body string, isHTML bool) error {
	n.calls++
	n.enabled = enabled
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Source: config.Endpoint{
			Host:      "src.example.com",
			Directory: "/out",
		},
		Destination: config.Endpoint{
			Host:      "dst.example.com",
			Directory: "/in",
		},
	}
	require.NoError(t, cfg.Validate(), "test config should validate")
	return cfg
}

func dialerFor(src, dst transport.Client, dialed *[]string) transport.Dialer {
	return func(ctx context.Context, ep *config.Endpoint) (transport.Client, error) {
		if dialed != nil {
			*dialed = append(*dialed, ep.Host)
		}
		switch ep.Host {
		case "src.example.com":
			return src, nil
		case "dst.example.com":
			return dst, nil
		}
		return nil, errors.Errorf("unexpected endpoint: %s", ep.Host)
	}
}

func newTestTransferer(t *testing.T, cfg *config.Config, dial transport.Dialer, n *fakeNotifier) *Transferer {
	t.Helper()
	tr, err := New(Options{
		Config:      cfg,
		Dial:        dial,
		Notifier:    n,
		Now:         func() time.Time { return time.Date(2025, 8, 30, 12, 0, 0, 0, time.UTC) },
		StagingRoot: t.TempDir(),
	})
	require.NoError(t, err, "creating transferer")
	return tr
}

func runCtx() context.Context {
	return zerolog.New(os.Stderr).WithContext(context.Background())
}

func TestRunEveryFileLandsInExactlyOneBucket(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "a.csv", []byte("aaa"))
	src.put("/out", "b.csv", []byte("bbb"))
	src.put("/out", "c.csv", []byte("ccc"))
	src.put("/out", "d.csv", []byte("ddd"))

	dst := newFakeServer()
	dst.put("/in", "b.csv", []byte("old")) // collides
	dst.uploadErr["c.csv"] = errors.Errorf("quota exceeded")

	cfg := testConfig(t)
	cfg.Destination.FileExistsStrategy = "skip"

	n := &fakeNotifier{}
	tr := newTestTransferer(t, cfg, dialerFor(src, dst, nil), n)

	tally, err := tr.Run(runCtx())
	require.NoError(t, err, "run should not report a run-level error")

	assert.Equal(t, Tally{Found: 4, Succeeded: 2, Skipped: 1, Failed: 1}, tally, "every file lands in exactly one bucket")
	assert.Equal(t, 4, tally.Succeeded+tally.Skipped+tally.Failed, "buckets should partition the found set")

	out := tr.Outcome()
	assert.ElementsMatch(t, []string{"a.csv", "d.csv"}, out.Succeeded(), "a and d should succeed")
	assert.Equal(t, []string{"b.csv"}, out.Skipped(), "colliding file should be skipped")
	assert.Contains(t, out.Failed()["c.csv"], "upload failed", "failure reason should name the step")
	assert.Equal(t, 1, n.calls, "report should be delivered exactly once")
}

func TestRunSkippedFileTransfersNothing(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "a.csv", []byte("aaa"))

	dst := newFakeServer()
	dst.put("/in", "a.csv", []byte("old"))

	cfg := testConfig(t)
	cfg.Destination.FileExistsStrategy = "skip"

	n := &fakeNotifier{}
	tr := newTestTransferer(t, cfg, dialerFor(src, dst, nil), n)

	tally, err := tr.Run(runCtx())
	require.NoError(t, err, "run should succeed")

	assert.Equal(t, Tally{Found: 1, Skipped: 1}, tally, "file should only be skipped")
	assert.Empty(t, src.downloads, "skipped file should never be downloaded")
	assert.Empty(t, dst.uploads, "skipped file should never be uploaded")
	assert.Empty(t, src.moves, "skipped file should never be archived")
	assert.Equal(t, []byte("old"), dst.files["/in"]["a.csv"], "destination content should be untouched")
}

func TestRunRenameOnCollision(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "report.csv", []byte("new"))

	dst := newFakeServer()
	dst.put("/in", "report.csv", []byte("old"))

	cfg := testConfig(t) // strategy defaults to rename

	n := &fakeNotifier{}
	tr := newTestTransferer(t, cfg, dialerFor(src, dst, nil), n)

	tally, err := tr.Run(runCtx())
	require.NoError(t, err, "run should succeed")
	assert.Equal(t, Tally{Found: 1, Succeeded: 1}, tally, "renamed upload still counts as success")

	renamedTo := "report_20250830120000.csv"
	assert.Equal(t, []byte("new"), dst.files["/in"][renamedTo], "upload should land under the timestamped name")
	assert.Equal(t, []byte("old"), dst.files["/in"]["report.csv"], "existing file should be untouched")
	assert.Equal(t, map[string]string{"report.csv": renamedTo}, tr.Outcome().Renamed(), "rename should be recorded")
	assert.Equal(t, []string{"report.csv -> " + renamedTo}, tr.Outcome().Succeeded(), "success entry should use arrow notation")
}

func TestRunExtensionFilterNarrowsTransfer(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "x.txt", []byte("xxx"))
	src.put("/out", "y.log", []byte("yyy"))

	dst := newFakeServer()

	cfg := testConfig(t)
	cfg.Source.FileFilter = &config.FilterRule{
		Type:       config.FilterExtension,
		Extensions: []string{"txt"},
	}
	require.NoError(t, cfg.Validate(), "filter config should validate")

	n := &fakeNotifier{}
	tr := newTestTransferer(t, cfg, dialerFor(src, dst, nil), n)

	tally, err := tr.Run(runCtx())
	require.NoError(t, err, "run should succeed")

	assert.Equal(t, Tally{Found: 1, Succeeded: 1}, tally, "only the matching file should be found and moved")
	assert.Equal(t, []string{"x.txt"}, tr.Outcome().Found(), "filtered-out files never count as found")
	assert.Equal(t, []byte("xxx"), dst.files["/in"]["x.txt"], "matching file should land on the destination")
	assert.Nil(t, dst.files["/in"]["y.log"], "filtered-out file should never be uploaded")
	assert.Equal(t, 1, n.calls, "report should be delivered exactly once")
}

func TestRunDownloadFailureIsolatedPerFile(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "a.csv", []byte("aaa"))
	src.put("/out", "b.csv", []byte("bbb"))
	src.put("/out", "c.csv", []byte("ccc"))
	src.downloadErr["b.csv"] = errors.Errorf("data channel reset")

	dst := newFakeServer()

	n := &fakeNotifier{}
	tr := newTestTransferer(t, testConfig(t), dialerFor(src, dst, nil), n)

	tally, err := tr.Run(runCtx())
	require.NoError(t, err, "one file's fault should not become a run-level error")

	assert.Equal(t, Tally{Found: 3, Succeeded: 2, Failed: 1}, tally, "neighbors of the broken file should still transfer")
	assert.Equal(t, []string{"a.csv", "c.csv"}, tr.Outcome().Succeeded(), "files before and after should succeed")
	assert.Contains(t, tr.Outcome().Failed()["b.csv"], "download failed", "reason should name the step")
	assert.Nil(t, dst.files["/in"]["b.csv"], "failed download should never reach the destination")
}

func TestRunOverwriteOnCollision(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "r.csv", []byte("new"))

	dst := newFakeServer()
	dst.put("/in", "r.csv", []byte("old"))

	cfg := testConfig(t)
	cfg.Destination.FileExistsStrategy = "overwrite"

	n := &fakeNotifier{}
	tr := newTestTransferer(t, cfg, dialerFor(src, dst, nil), n)

	tally, err := tr.Run(runCtx())
	require.NoError(t, err, "run should succeed")

	assert.Equal(t, Tally{Found: 1, Succeeded: 1}, tally, "overwrite counts as success")
	assert.Equal(t, []byte("new"), dst.files["/in"]["r.csv"], "destination copy should be replaced")
	assert.Empty(t, tr.Outcome().Renamed(), "overwrite never records a rename")
	assert.Equal(t, []string{"r.csv"}, tr.Outcome().Succeeded(), "success entry keeps the original name")
}

func TestRunDestinationConnectFailure(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "a.csv", []byte("aaa"))
	src.put("/out", "b.csv", []byte("bbb"))

	dial := func(ctx context.Context, ep *config.Endpoint) (transport.Client, error) {
		if ep.Host == "src.example.com" {
			return src, nil
		}
		return nil, errors.Errorf("connection refused")
	}

	n := &fakeNotifier{}
	tr := newTestTransferer(t, testConfig(t), dial, n)

	tally, err := tr.Run(runCtx())
	require.Error(t, err, "destination connect failure should surface")
	assert.Contains(t, err.Error(), "connecting to destination", "error should name the phase")

	assert.Equal(t, Tally{Found: 2}, tally, "found count should survive the short-circuit")
	assert.Empty(t, src.downloads, "no file work should have started")
	require.Equal(t, 1, n.calls, "reporter should fire exactly once")
	assert.Contains(t, n.subjects[0], "[ERROR]", "subject should be error-flagged")
	assert.True(t, src.closed, "source session should still be closed")
}

func TestRunBackupToggle(t *testing.T) {
	tests := []struct {
		name         string
		enableBackup bool
		backupDir    string
		wantMoves    []string
	}{
		{
			name:         "disabled_flag_wins_over_configured_directory",
			enableBackup: false,
			backupDir:    "/out/archive",
			wantMoves:    nil,
		},
		{
			name:         "enabled_without_directory_is_inert",
			enableBackup: true,
			backupDir:    "",
			wantMoves:    nil,
		},
		{
			name:         "enabled_with_directory_moves_source_file",
			enableBackup: true,
			backupDir:    "/out/archive",
			wantMoves:    []string{"/out/a.csv -> /out/archive/a.csv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeServer()
			src.put("/out", "a.csv", []byte("aaa"))
			dst := newFakeServer()

			cfg := testConfig(t)
			cfg.Source.EnableBackup = tt.enableBackup
			cfg.Source.BackupDirectory = tt.backupDir

			n := &fakeNotifier{}
			tr := newTestTransferer(t, cfg, dialerFor(src, dst, nil), n)

			tally, err := tr.Run(runCtx())
			require.NoError(t, err, "run should succeed")
			assert.Equal(t, Tally{Found: 1, Succeeded: 1}, tally, "transfer itself should succeed")
			assert.Equal(t, tt.wantMoves, src.moves, "backup moves should match")
			if tt.wantMoves == nil {
				assert.Equal(t, []byte("aaa"), src.files["/out"]["a.csv"], "source file should stay in place")
			}
		})
	}
}

func TestRunBackupMoveFailureIsPerFileFailure(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "a.csv", []byte("aaa"))
	src.moveErr["a.csv"] = errors.Errorf("permission denied")
	dst := newFakeServer()

	cfg := testConfig(t)
	cfg.Source.EnableBackup = true
	cfg.Source.BackupDirectory = "/out/archive"

	n := &fakeNotifier{}
	tr := newTestTransferer(t, cfg, dialerFor(src, dst, nil), n)

	tally, err := tr.Run(runCtx())
	require.NoError(t, err, "run should not report a run-level error")

	assert.Equal(t, Tally{Found: 1, Failed: 1}, tally, "failed archive step fails the file")
	assert.Contains(t, tr.Outcome().Failed()["a.csv"], "backup directory", "reason should name the step")
	// The upload already happened; that side effect is accepted.
	assert.Equal(t, []byte("aaa"), dst.files["/in"]["a.csv"], "uploaded copy remains on the destination")
}

func TestRunSourceConnectFailure(t *testing.T) {
	var dialed []string
	dial := func(ctx context.Context, ep *config.Endpoint) (transport.Client, error) {
		dialed = append(dialed, ep.Host)
		return nil, errors.Errorf("connection refused")
	}

	n := &fakeNotifier{}
	tr := newTestTransferer(t, testConfig(t), dial, n)

	tally, err := tr.Run(runCtx())
	require.Error(t, err, "run should surface the connect failure")
	assert.Contains(t, err.Error(), "connecting to source", "error should name the phase")

	assert.Equal(t, Tally{}, tally, "nothing was found or attempted")
	assert.Equal(t, []string{"src.example.com"}, dialed, "destination should never be dialed")
	assert.Equal(t, 1, n.calls, "report should still be delivered exactly once")
	require.Len(t, tr.Outcome().Errors(), 1, "connect failure should be recorded as run-level error")
}

func TestRunEmptyListingSkipsDestination(t *testing.T) {
	src := newFakeServer() // nothing in /out
	var dialed []string

	n := &fakeNotifier{}
	tr := newTestTransferer(t, testConfig(t), dialerFor(src, nil, &dialed), n)

	tally, err := tr.Run(runCtx())
	require.NoError(t, err, "empty run should succeed")

	assert.Equal(t, Tally{}, tally, "empty run has an empty tally")
	assert.Equal(t, []string{"src.example.com"}, dialed, "destination should never be dialed when nothing matched")
	assert.Equal(t, 1, n.calls, "report should still be delivered")
	assert.True(t, src.closed, "source session should be closed")
}

func TestRunFilterThresholdErrorIsRunLevel(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "a.csv", []byte("aaa"))

	cfg := testConfig(t)
	cfg.Source.FileFilter = &config.FilterRule{
		Type: config.FilterModificationTime,
		Time: "not-a-date",
	}

	n := &fakeNotifier{}
	tr := newTestTransferer(t, cfg, dialerFor(src, nil, nil), n)

	tally, err := tr.Run(runCtx())
	require.Error(t, err, "bad threshold should abort the run")
	assert.Contains(t, err.Error(), "applying file filter", "error should name the phase")
	assert.Equal(t, Tally{}, tally, "no files were counted as found")
	assert.Equal(t, 1, n.calls, "report should still be delivered")
}

func TestRunExistenceCheckErrorIsolatedPerFile(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "a.csv", []byte("aaa"))
	src.put("/out", "b.csv", []byte("bbb"))

	dst := newFakeServer()
	dst.existsErr["a.csv"] = errors.Errorf("server went away")

	n := &fakeNotifier{}
	tr := newTestTransferer(t, testConfig(t), dialerFor(src, dst, nil), n)

	tally, err := tr.Run(runCtx())
	require.NoError(t, err, "one file's fault should not become a run-level error")

	assert.Equal(t, Tally{Found: 2, Succeeded: 1, Failed: 1}, tally, "other files should still transfer")
	assert.Contains(t, tr.Outcome().Failed()["a.csv"], "existence check failed", "reason should name the step")
	assert.Equal(t, []string{"b.csv"}, tr.Outcome().Succeeded(), "the healthy file should succeed")
}

func TestRunCleansStagingFiles(t *testing.T) {
	src := newFakeServer()
	src.put("/out", "a.csv", []byte("aaa"))
	src.put("/out", "b.csv", []byte("bbb"))
	dst := newFakeServer()
	dst.uploadErr["b.csv"] = errors.Errorf("disk full")

	n := &fakeNotifier{}
	tr := newTestTransferer(t, testConfig(t), dialerFor(src, dst, nil), n)

	_, err := tr.Run(runCtx())
	require.NoError(t, err, "run should finish")

	entries, err := os.ReadDir(tr.StagingDir())
	require.NoError(t, err, "staging dir should exist")
	assert.Empty(t, entries, "staged copies should be removed after success and failure alike")
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err, "New should reject a missing config")
}
