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

package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net/textproto"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/text/encoding"

	"github.com/emrysliu/ftptransfer/pkg/config"
)

func init() {
	Register("ftp", dialFTP)
}

// 📦 ftpClient drives a plain FTP or FTPS session
type ftpClient struct {
	conn *ftp.ServerConn
	enc  encoding.Encoding
}

// dialFTP establishes an FTP or FTPS session. Explicit TLS logs in
// over a TLS-upgraded control channel and protects the data channel;
// implicit TLS wraps the connection from the first byte.
func dialFTP(ctx context.Context, ep *config.Endpoint) (Client, error) {
	logger := zerolog.Ctx(ctx)

	enc, err := lookupEncoding(ep.Encoding)
	if err != nil {
		return nil, errors.Errorf("resolving endpoint encoding: %w", err)
	}

	opts := []ftp.DialOption{ftp.DialWithTimeout(connectTimeout)}
	if ep.UseFTPS {
		tlsConfig := &tls.Config{
			ServerName: ep.Host,
			MinVersion: tls.VersionTLS12,
		}
		if ep.TLSImplicit {
			opts = append(opts, ftp.DialWithTLS(tlsConfig))
		} else {
			opts = append(opts, ftp.DialWithExplicitTLS(tlsConfig))
		}
	}

	if !ep.Passive() {
		// jlaffaye/ftp only does passive transfers; honor the key by
		// warning instead of failing the run.
		logger.Warn().Str("host", ep.Host).Msg("active mode is not supported, staying passive")
	}

	logger.Info().Str("addr", ep.Addr()).Bool("ftps", ep.UseFTPS).Bool("implicit", ep.TLSImplicit).Msg("connecting to FTP server")

	conn, err := ftp.Dial(ep.Addr(), opts...)
	if err != nil {
		return nil, errors.Errorf("connecting to %s: %w", ep.Addr(), err)
	}

	if err := conn.Login(ep.User, ep.Password); err != nil {
		_ = conn.Quit()
		return nil, errors.Errorf("logging in as %s: %w", ep.User, err)
	}

	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		logger.Warn().Err(err).Msg("failed to force binary mode")
	}

	logger.Info().Str("addr", ep.Addr()).Msg("FTP session established")
	return &ftpClient{conn: conn, enc: enc}, nil
}

// List runs NLST and drops directory entries. NLST does not
// distinguish entry types, so each name is probed with a cwd
// round-trip, the way classic FTP clients do.
func (c *ftpClient) List(ctx context.Context, dir string) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	names, err := c.conn.NameList(c.remote(dir))
	if err != nil {
		return nil, errors.Errorf("listing %s: %w", dir, err)
	}

	cwd, err := c.conn.CurrentDir()
	if err != nil {
		return nil, errors.Errorf("reading working directory: %w", err)
	}

	files := make([]string, 0, len(names))
	for _, raw := range names {
		name := path.Base(decodeName(c.enc, raw))
		if name == "." || name == ".." || name == "" {
			continue
		}
		if c.isDirectory(dir, name, cwd) {
			logger.Debug().Str("name", name).Msg("skipping directory entry")
			continue
		}
		files = append(files, name)
	}

	logger.Info().Str("dir", dir).Int("files", len(files)).Msg("listed source directory")
	return files, nil
}

// isDirectory probes an entry by attempting to cwd into it.
func (c *ftpClient) isDirectory(dir, name, restore string) bool {
	if err := c.conn.ChangeDir(c.remote(path.Join(dir, name))); err != nil {
		return false
	}
	_ = c.conn.ChangeDir(restore)
	return true
}

// Exists checks for dir/name via SIZE. A 550 reply is a confirmed
// absence; anything else is a fault the caller must handle.
func (c *ftpClient) Exists(ctx context.Context, dir, name string) (bool, error) {
	_, err := c.conn.FileSize(c.remote(path.Join(dir, name)))
	if err == nil {
		return true, nil
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable {
		return false, nil
	}
	return false, errors.Errorf("checking %s/%s: %w", dir, name, err)
}

func (c *ftpClient) Download(ctx context.Context, dir, name, localPath string) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("name", name).Str("local", localPath).Msg("downloading file")

	resp, err := c.conn.Retr(c.remote(path.Join(dir, name)))
	if err != nil {
		return errors.Errorf("retrieving %s: %w", name, err)
	}
	defer resp.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return errors.Errorf("creating local file: %w", err)
	}

	if _, err := io.Copy(out, resp); err != nil {
		_ = out.Close()
		_ = os.Remove(localPath)
		return errors.Errorf("reading %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(localPath)
		return errors.Errorf("closing local file: %w", err)
	}
	return nil
}

func (c *ftpClient) Upload(ctx context.Context, localPath, dir, name string) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("local", localPath).Str("name", name).Msg("uploading file")

	in, err := os.Open(localPath)
	if err != nil {
		return errors.Errorf("opening local file: %w", err)
	}
	defer in.Close()

	if err := c.conn.Stor(c.remote(path.Join(dir, name)), in); err != nil {
		return errors.Errorf("storing %s: %w", name, err)
	}
	return nil
}

func (c *ftpClient) Move(ctx context.Context, dir, name, destPath string) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("from", path.Join(dir, name)).Str("to", destPath).Msg("moving remote file")

	if err := c.conn.Rename(c.remote(path.Join(dir, name)), c.remote(destPath)); err != nil {
		return errors.Errorf("renaming %s to %s: %w", name, destPath, err)
	}
	return nil
}

// StatTime reads the MDTM timestamp. FTP has no portable creation
// time, so the creation basis falls back to the modification time,
// which is where the MLST/STAT probing of older builds ended anyway.
func (c *ftpClient) StatTime(ctx context.Context, dir, name string, basis TimeBasis) (time.Time, bool) {
	logger := zerolog.Ctx(ctx)

	t, err := c.conn.GetTime(c.remote(path.Join(dir, name)))
	if err != nil {
		logger.Debug().Err(err).Str("name", name).Stringer("basis", basis).Msg("server did not report a timestamp")
		return time.Time{}, false
	}
	if basis == CreationTime {
		logger.Debug().Str("name", name).Msg("creation time unavailable over FTP, using modification time")
	}
	return t, true
}

func (c *ftpClient) Close() error {
	return c.conn.Quit()
}

// remote converts a UTF-8 path to the server charset.
func (c *ftpClient) remote(p string) string {
	return encodeName(c.enc, p)
}
