package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/gvanweelden/fulfilsync/internal/config"
)

// ErrDisabled is returned by the disabled SFTP variant. The factory hands
// it out when host or credentials are missing; callers log and skip
// instead of pretending the upload happened.
var ErrDisabled = errors.New("sftp transport disabled: host or credentials not configured")

// FileTransport is the SFTP surface the export and import flows need.
// Every operation opens its own connection and closes it unconditionally;
// connections are never pooled.
type FileTransport interface {
	Upload(dir, filename string, content []byte) error
	List(dir string) ([]string, error)
	Read(dir, filename string) ([]byte, error)
	Delete(dir, filename string) error
	Enabled() bool
}

// NewSFTP builds the real client, or the disabled variant when the
// channel is not configured.
func NewSFTP(cfg *config.Config, logger *slog.Logger) FileTransport {
	if !cfg.SFTPConfigured() {
		logger.Warn("SFTP channel not configured, file transfers disabled")
		return DisabledSFTP{}
	}
	return &SFTPClient{
		addr:     fmt.Sprintf("%s:%d", cfg.SFTPHost, cfg.SFTPPort),
		user:     cfg.SFTPUser,
		password: cfg.SFTPPassword,
		logger:   logger,
	}
}

type SFTPClient struct {
	addr     string
	user     string
	password string
	logger   *slog.Logger
}

func (c *SFTPClient) Enabled() bool { return true }

// connect opens a fresh session. The returned closer tears down both the
// SFTP client and the SSH connection and must run even on error paths.
func (c *SFTPClient) connect() (*sftp.Client, func(), error) {
	sshCfg := &ssh.ClientConfig{
		User:            c.user,
		Auth:            []ssh.AuthMethod{ssh.Password(c.password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}

	conn, err := ssh.Dial("tcp", c.addr, sshCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("ssh dial %s: %w", c.addr, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("sftp session: %w", err)
	}

	closer := func() {
		client.Close()
		conn.Close()
	}
	return client, closer, nil
}

func (c *SFTPClient) Upload(dir, filename string, content []byte) error {
	client, closer, err := c.connect()
	if err != nil {
		return err
	}
	defer closer()

	if dir != "" {
		if err := client.MkdirAll(dir); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	f, err := client.Create(path.Join(dir, filename))
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

func (c *SFTPClient) List(dir string) ([]string, error) {
	client, closer, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer closer()

	entries, err := client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *SFTPClient) Read(dir, filename string) ([]byte, error) {
	client, closer, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer closer()

	f, err := client.Open(path.Join(dir, filename))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	var buf []byte
	buf, err = io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return buf, nil
}

func (c *SFTPClient) Delete(dir, filename string) error {
	client, closer, err := c.connect()
	if err != nil {
		return err
	}
	defer closer()

	if err := client.Remove(path.Join(dir, filename)); err != nil {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	return nil
}

// DisabledSFTP rejects every operation with ErrDisabled.
type DisabledSFTP struct{}

func (DisabledSFTP) Enabled() bool { return false }

func (DisabledSFTP) Upload(string, string, []byte) error { return ErrDisabled }

func (DisabledSFTP) List(string) ([]string, error) { return nil, ErrDisabled }

func (DisabledSFTP) Read(string, string) ([]byte, error) { return nil, ErrDisabled }

func (DisabledSFTP) Delete(string, string) error { return ErrDisabled }
