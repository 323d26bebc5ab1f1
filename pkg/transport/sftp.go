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
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/crypto/ssh"

	"github.com/emrysliu/ftptransfer/pkg/config"
)

func init() {
	Register("sftp", dialSFTP)
}

// 📦 sftpClient drives an SFTP session over SSH
type sftpClient struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

// dialSFTP authenticates via password or private key (optionally
// passphrase-protected) and opens an SFTP subsystem on top.
func dialSFTP(ctx context.Context, ep *config.Endpoint) (Client, error) {
	logger := zerolog.Ctx(ctx)

	auth, err := sshAuthMethods(ep)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            ep.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}

	logger.Info().Str("addr", ep.Addr()).Bool("key_auth", ep.KeyFile != "").Msg("connecting to SFTP server")

	conn, err := ssh.Dial("tcp", ep.Addr(), sshConfig)
	if err != nil {
		return nil, errors.Errorf("connecting to %s: %w", ep.Addr(), err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Errorf("opening sftp subsystem: %w", err)
	}

	logger.Info().Str("addr", ep.Addr()).Msg("SFTP session established")
	return &sftpClient{ssh: conn, sftp: client}, nil
}

func sshAuthMethods(ep *config.Endpoint) ([]ssh.AuthMethod, error) {
	if ep.KeyFile == "" {
		return []ssh.AuthMethod{ssh.Password(ep.Password)}, nil
	}

	pem, err := os.ReadFile(ep.KeyFile)
	if err != nil {
		return nil, errors.Errorf("reading private key %s: %w", ep.KeyFile, err)
	}

	var signer ssh.Signer
	if ep.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(ep.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		return nil, errors.Errorf("parsing private key %s: %w", ep.KeyFile, err)
	}

	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

// List returns regular files only, using the mode bits SFTP reports
// directly.
func (c *sftpClient) List(ctx context.Context, dir string) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	entries, err := c.sftp.ReadDir(dir)
	if err != nil {
		return nil, errors.Errorf("listing %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, fi := range entries {
		if fi.IsDir() {
			logger.Debug().Str("name", fi.Name()).Msg("skipping directory entry")
			continue
		}
		files = append(files, fi.Name())
	}

	logger.Info().Str("dir", dir).Int("files", len(files)).Msg("listed source directory")
	return files, nil
}

func (c *sftpClient) Exists(ctx context.Context, dir, name string) (bool, error) {
	_, err := c.sftp.Stat(path.Join(dir, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Errorf("checking %s/%s: %w", dir, name, err)
}

func (c *sftpClient) Download(ctx context.Context, dir, name, localPath string) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("name", name).Str("local", localPath).Msg("downloading file")

	src, err := c.sftp.Open(path.Join(dir, name))
	if err != nil {
		return errors.Errorf("opening %s: %w", name, err)
	}
	defer src.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return errors.Errorf("creating local file: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
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

func (c *sftpClient) Upload(ctx context.Context, localPath, dir, name string) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("local", localPath).Str("name", name).Msg("uploading file")

	in, err := os.Open(localPath)
	if err != nil {
		return errors.Errorf("opening local file: %w", err)
	}
	defer in.Close()

	dst, err := c.sftp.Create(path.Join(dir, name))
	if err != nil {
		return errors.Errorf("creating %s: %w", name, err)
	}

	if _, err := io.Copy(dst, in); err != nil {
		_ = dst.Close()
		return errors.Errorf("writing %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return errors.Errorf("closing %s: %w", name, err)
	}
	return nil
}

func (c *sftpClient) Move(ctx context.Context, dir, name, destPath string) error {
	logger := zerolog.Ctx(ctx)
	from := path.Join(dir, name)
	logger.Info().Str("from", from).Str("to", destPath).Msg("moving remote file")

	// POSIX rename overwrites an existing target; fall back to the
	// plain rename when the server lacks the extension.
	if err := c.sftp.PosixRename(from, destPath); err != nil {
		if err := c.sftp.Rename(from, destPath); err != nil {
			return errors.Errorf("renaming %s to %s: %w", name, destPath, err)
		}
	}
	return nil
}

// StatTime reports the modification time from the file attributes.
// SFTP carries no creation time, so that basis falls back to the
// modification time as well.
func (c *sftpClient) StatTime(ctx context.Context, dir, name string, basis TimeBasis) (time.Time, bool) {
	logger := zerolog.Ctx(ctx)

	fi, err := c.sftp.Stat(path.Join(dir, name))
	if err != nil {
		logger.Debug().Err(err).Str("name", name).Stringer("basis", basis).Msg("server did not report a timestamp")
		return time.Time{}, false
	}
	if basis == CreationTime {
		logger.Debug().Str("name", name).Msg("creation time unavailable over SFTP, using modification time")
	}
	return fi.ModTime(), true
}

// Close shuts the SFTP channel first, then the SSH connection.
func (c *sftpClient) Close() error {
	sftpErr := c.sftp.Close()
	sshErr := c.ssh.Close()
	if sftpErr != nil {
		return sftpErr
	}
	return sshErr
}
