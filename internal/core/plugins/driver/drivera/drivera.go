// Package drivera implements plugins.DriverPort as a per-command exec
// driver over golang.org/x/crypto/ssh, grounded on the worker's
// NetmikoAdapter: one authenticated connection per device, each command
// run as its own exec request rather than fed into a shared interactive
// shell.
package drivera

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"tower/internal/core/plugins"
	perr "tower/internal/platform/errors"
)

// DialTimeout bounds how long the TCP+SSH handshake may take.
const DialTimeout = 10 * time.Second

// Driver dials devices with password auth and runs each command as a
// separate SSH exec request against the same connection.
type Driver struct{}

func New() *Driver { return &Driver{} }

func (d *Driver) Dial(ctx context.Context, cfg plugins.DeviceConfig, creds plugins.SSHCredentials) (plugins.DriverSession, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, perr.InvalidArgf("SSH credentials missing for device %s", cfg.Name)
	}

	clientCfg := &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(creds.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         DialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client, err := dialContext(ctx, addr, clientCfg)
	if err != nil {
		if isAuthError(err) {
			return nil, perr.Unauthorizedf("authentication failed for %s: %v", addr, err)
		}
		return nil, perr.Transientf("connect to %s: %v", addr, err)
	}
	return &session{client: client, deviceType: cfg.AdapterDriver}, nil
}

func isAuthError(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// dialContext wraps ssh.Dial with context cancellation, since the stdlib
// ssh package has no native context support.
func dialContext(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	type result struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, cfg)
		ch <- result{c, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.client, r.err
	}
}

type session struct {
	client     *ssh.Client
	deviceType string
}

// RunCommand opens a fresh SSH session for command, matching netmiko's
// one-shot send_command semantics (no shared shell state between calls).
func (s *session) RunCommand(ctx context.Context, command string) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", perr.Transientf("open session: %v", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", perr.Transientf("command %q failed: %v: %s", command, err, stderr.String())
		}
		return stdout.String(), nil
	}
}

func (s *session) Close() error { return s.client.Close() }
