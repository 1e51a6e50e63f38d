// Package driverb implements plugins.DriverPort as a persistent interactive
// shell driver over golang.org/x/crypto/ssh, grounded on the worker's
// ScrapliAsyncAdapter: one PTY-backed shell per device connection, with
// commands written to stdin and responses collected until the device
// prompt reappears, rather than one exec request per command.
package driverb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"tower/internal/core/plugins"
	perr "tower/internal/platform/errors"
)

// DialTimeout bounds the TCP+SSH handshake.
const DialTimeout = 10 * time.Second

// ReadTimeout bounds how long RunCommand waits for the prompt to reappear
// after sending a command.
const ReadTimeout = 30 * time.Second

// supportedDrivers mirrors valid_async_drivers' device-type allowlist; an
// adapter_driver outside this set is rejected before dialing.
var supportedDrivers = map[string]bool{
	"cisco_iosxe":   true,
	"cisco_nxos":    true,
	"cisco_iosxr":   true,
	"arista_eos":    true,
	"juniper_junos": true,
}

// promptPattern matches a trailing CLI prompt line ending in #, >, or $.
var promptPattern = regexp.MustCompile(`(?m)[\w\-.]+[#>$]\s*$`)

// Driver dials devices and keeps one interactive PTY shell open per
// connection for the lifetime of the session.
type Driver struct{}

func New() *Driver { return &Driver{} }

func (d *Driver) Dial(ctx context.Context, cfg plugins.DeviceConfig, creds plugins.SSHCredentials) (plugins.DriverSession, error) {
	if !supportedDrivers[cfg.AdapterDriver] {
		return nil, perr.InvalidArgf("device type %s not supported", cfg.AdapterDriver)
	}
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
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, perr.Unauthorizedf("authentication failed for %s: %v", addr, err)
		}
		return nil, perr.Transientf("connect to %s: %v", addr, err)
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, perr.Transientf("open shell session for %s: %v", addr, err)
	}
	if err := sess.RequestPty("vt100", 0, 200, ssh.TerminalModes{}); err != nil {
		sess.Close()
		client.Close()
		return nil, perr.Transientf("request pty for %s: %v", addr, err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, perr.Transientf("open stdin pipe for %s: %v", addr, err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, perr.Transientf("open stdout pipe for %s: %v", addr, err)
	}
	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return nil, perr.Transientf("start shell for %s: %v", addr, err)
	}

	return &shellSession{client: client, sess: sess, stdin: stdin, reader: bufio.NewReader(stdout)}, nil
}

type shellSession struct {
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	reader *bufio.Reader
}

// RunCommand writes command to the shell and reads output until the
// device prompt reappears or ReadTimeout elapses.
func (s *shellSession) RunCommand(ctx context.Context, command string) (string, error) {
	if _, err := io.WriteString(s.stdin, command+"\n"); err != nil {
		return "", perr.Transientf("write command %q: %v", command, err)
	}

	type result struct {
		out string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var sb strings.Builder
		buf := make([]byte, 4096)
		for {
			n, err := s.reader.Read(buf)
			if n > 0 {
				sb.Write(buf[:n])
				if promptPattern.MatchString(sb.String()) {
					ch <- result{out: sb.String(), err: nil}
					return
				}
			}
			if err != nil {
				ch <- result{out: sb.String(), err: err}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(ReadTimeout):
		return "", perr.Transientf("command %q timed out waiting for prompt", command)
	case r := <-ch:
		if r.err != nil && r.err != io.EOF {
			return "", perr.Transientf("command %q failed: %v", command, r.err)
		}
		return stripEcho(r.out, command), nil
	}
}

// stripEcho removes the echoed command line and trailing prompt from raw
// shell output, leaving just the command's result.
func stripEcho(raw, command string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == strings.TrimSpace(command) {
			continue
		}
		if promptPattern.MatchString(l) {
			continue
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func (s *shellSession) Close() error {
	s.sess.Close()
	return s.client.Close()
}
