package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type Dialer interface {
	Dial(ctx context.Context, host string, signer ssh.Signer) (Session, error)
}

// Session is an authenticated connection to an instance.
type Session interface {
	Upload(remotePath string, content io.Reader, mode os.FileMode) error
	// Run executes command and waits for it to exit. A non-zero exit status is returned as *ssh.ExitError.
	Run(ctx context.Context, command string) (*Output, error)
	Close() error
}

type Output struct {
	Stdout []byte
	Stderr []byte
}

type SSHDialer struct {
	User    string
	Port    string
	Timeout time.Duration
}

var _ Dialer = &SSHDialer{}

func (d *SSHDialer) Dial(ctx context.Context, host string, signer ssh.Signer) (Session, error) {
	port := d.Port
	if len(port) == 0 {
		port = "22"
	}
	address := net.JoinHostPort(host, port)

	config := &ssh.ClientConfig{
		User: d.User,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		// Instances are freshly created with unknown host keys.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.Timeout,
	}

	dialer := &net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	if deadline, ok := handshakeDeadline(ctx, d.Timeout); ok {
		conn.SetDeadline(deadline)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", address, err)
	}
	conn.SetDeadline(time.Time{})

	return &sshSession{client: ssh.NewClient(clientConn, chans, reqs)}, nil
}

// handshakeDeadline is the earlier of now+timeout and the deadline of ctx.
func handshakeDeadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	deadline, ok := ctx.Deadline()
	if timeout > 0 {
		limit := time.Now().Add(timeout)
		if !ok || limit.Before(deadline) {
			return limit, true
		}
	}
	return deadline, ok
}

type sshSession struct {
	client *ssh.Client
	sftp   *sftp.Client
}

func (s *sshSession) Upload(remotePath string, content io.Reader, mode os.FileMode) error {
	if s.sftp == nil {
		client, err := sftp.NewClient(s.client)
		if err != nil {
			return fmt.Errorf("start sftp: %w", err)
		}
		s.sftp = client
	}

	file, err := s.sftp.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("open %s: %w", remotePath, err)
	}

	_, err = file.ReadFrom(content)
	if err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", remotePath, err)
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("write %s: %w", remotePath, err)
	}

	return s.sftp.Chmod(remotePath, mode)
}

func (s *sshSession) Run(ctx context.Context, command string) (*Output, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	session.Stdout = stdout
	session.Stderr = stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, ctx.Err()
	}

	return &Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}

func (s *sshSession) Close() error {
	if s.sftp != nil {
		s.sftp.Close()
	}
	return s.client.Close()
}
