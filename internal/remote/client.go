package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Endpoint identifies one SSH-reachable host.
type Endpoint struct {
	Host           string
	Port           int
	User           string
	IdentityFile   string
	KnownHostsFile string
}

func (e Endpoint) addr() string {
	port := e.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", e.Host, port)
}

// Client holds one multiplexed SSH connection to an endpoint. Sessions for
// individual commands are cheap channels over this connection, so batches
// reuse it instead of redialing.
type Client struct {
	endpoint Endpoint
	conn     *ssh.Client
}

var _ Executor = (*Client)(nil)

// Dial opens the SSH connection for an endpoint. Host key verification uses
// the endpoint's known-hosts file when one is configured.
func Dial(ctx context.Context, ep Endpoint) (*Client, error) {
	key, err := os.ReadFile(ep.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("reading identity file for %s: %w", ep.Host, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file for %s: %w", ep.Host, err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec
	if ep.KnownHostsFile != "" {
		hostKeyCallback, err = knownhosts.New(ep.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts for %s: %w", ep.Host, err)
		}
	}

	cfg := &ssh.ClientConfig{
		User:            ep.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         15 * time.Second,
	}

	dialer := net.Dialer{Timeout: cfg.Timeout}
	tcp, err := dialer.DialContext(ctx, "tcp", ep.addr())
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", ep.addr(), err)
	}
	conn, chans, reqs, err := ssh.NewClientConn(tcp, ep.addr(), cfg)
	if err != nil {
		tcp.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", ep.addr(), err)
	}

	log.Debug().Str("host", ep.Host).Msg("ssh connection established")
	return &Client{endpoint: ep, conn: ssh.NewClient(conn, chans, reqs)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Endpoint returns the endpoint this client is connected to.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Exec runs a single command in its own session over the shared connection.
// A non-zero exit is not an error; transport failures are.
func (c *Client) Exec(ctx context.Context, command string) (Result, error) {
	// No mid-flight cancellation of remote commands: the context is only
	// consulted between commands.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("opening session on %s: %w", c.endpoint.Host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	err = session.Run(command)
	result := Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if err != nil {
		exitErr, ok := err.(*ssh.ExitError)
		if !ok {
			return Result{}, fmt.Errorf("running %q on %s: %w", command, c.endpoint.Host, err)
		}
		result.ExitCode = exitErr.ExitStatus()
	}
	return result, nil
}

// DialSocket opens a stream to a unix socket on the remote host, forwarded
// over the SSH connection. Used to reach the remote container runtime.
func (c *Client) DialSocket(path string) (net.Conn, error) {
	return c.conn.Dial("unix", path)
}
