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

// Package transport unifies FTP/FTPS and SFTP behind one capability
// interface so the orchestrator never branches on protocol type.
package transport

import (
	"context"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/emrysliu/ftptransfer/pkg/config"
)

// connectTimeout bounds every dial, matching the original 30s.
const connectTimeout = 30 * time.Second

// ⏱️ TimeBasis selects which file timestamp StatTime reports
type TimeBasis int

const (
	ModificationTime TimeBasis = iota
	CreationTime
)

func (b TimeBasis) String() string {
	if b == CreationTime {
		return "creation"
	}
	return "modification"
}

// 🔌 Client is one authenticated session against a remote server.
// Sessions are owned by a single run and never reused across runs.
//
// Existence checks follow one discipline on every implementation:
// a confirmed "no such file" is (false, nil); a connectivity or
// permission fault is (false, err) and callers treat it as a
// per-file failure, never as a silent absence.
type Client interface {
	// 📂 List returns the names of regular files in dir, directories
	// excluded.
	List(ctx context.Context, dir string) ([]string, error)

	// 🔍 Exists reports whether dir/name exists on the server.
	Exists(ctx context.Context, dir, name string) (bool, error)

	// 📥 Download streams dir/name to localPath. On failure any
	// partial local file is removed before returning.
	Download(ctx context.Context, dir, name, localPath string) error

	// 📤 Upload streams localPath to dir/name. Failure leaves the
	// remote side undefined; there is no remote rollback.
	Upload(ctx context.Context, localPath, dir, name string) error

	// 🔀 Move renames dir/name to destPath server-side. destPath may
	// live in a different directory.
	Move(ctx context.Context, dir, name, destPath string) error

	// ⏱️ StatTime reports the requested timestamp of dir/name.
	// Unsupported-by-server is not an error: ok is false and callers
	// exclude the file from time-based decisions.
	StatTime(ctx context.Context, dir, name string, basis TimeBasis) (t time.Time, ok bool)

	// 👋 Close ends the session. Best effort; callers only log the
	// returned error.
	Close() error
}

// 🏭 Dialer opens an authenticated session for one endpoint
type Dialer func(ctx context.Context, ep *config.Endpoint) (Client, error)

var (
	// 🗺️ dialers maps protocol keys to dialers
	dialers = make(map[string]Dialer)
)

// 📝 Register registers a dialer for a protocol key
func Register(protocol string, d Dialer) {
	dialers[protocol] = d
}

// 🎯 Dial connects to the endpoint with the dialer registered for its
// protocol.
func Dial(ctx context.Context, ep *config.Endpoint) (Client, error) {
	d, ok := dialers[ep.Protocol()]
	if !ok {
		return nil, errors.Errorf("no transport registered for protocol: %s", ep.Protocol())
	}
	return d(ctx, ep)
}
