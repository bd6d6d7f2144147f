package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// startSSHServer runs a minimal in-process SSH server that echoes exec
// commands to stdout, or writes to stderr and exits 7 for commands prefixed
// "fail ".
func startSSHServer(t *testing.T) Endpoint {
	t.Helper()

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	_, clientKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(clientKey, "")
	require.NoError(t, err)
	identity := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(identity, pem.EncodeToMemory(block), 0o600))

	conf := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
	}
	conf.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			tcp, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSHConn(tcp, conf)
		}
	}()

	return Endpoint{
		Host:         "127.0.0.1",
		Port:         ln.Addr().(*net.TCPAddr).Port,
		User:         "deploy",
		IdentityFile: identity,
	}
}

func serveSSHConn(tcp net.Conn, conf *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(tcp, conf)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go serveSession(ch, requests)
	}
}

func serveSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()
	for req := range requests {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		_ = ssh.Unmarshal(req.Payload, &payload)
		_ = req.Reply(true, nil)

		status := uint32(0)
		if after, ok := strings.CutPrefix(payload.Command, "fail "); ok {
			fmt.Fprint(ch.Stderr(), after)
			status = 7
		} else {
			fmt.Fprint(ch, payload.Command)
		}
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
		return
	}
}

func TestDialAndExec(t *testing.T) {
	ep := startSSHServer(t)

	client, err := Dial(context.Background(), ep)
	require.NoError(t, err)
	defer client.Close()

	result, err := client.Exec(context.Background(), "echo hello")
	require.NoError(t, err)
	require.True(t, result.Ok())
	require.Equal(t, "echo hello", result.Out())

	// A second command reuses the connection on a fresh session.
	result, err = client.Exec(context.Background(), "fail boom")
	require.NoError(t, err, "a non-zero exit is not a transport error")
	require.Equal(t, 7, result.ExitCode)
	require.Equal(t, "boom", result.Diagnostic())
}

func TestExecConsultsContextBetweenCommands(t *testing.T) {
	ep := startSSHServer(t)

	client, err := Dial(context.Background(), ep)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Exec(ctx, "echo never")
	require.ErrorIs(t, err, context.Canceled)
}

func TestDialMissingIdentityFile(t *testing.T) {
	_, err := Dial(context.Background(), Endpoint{
		Host:         "127.0.0.1",
		User:         "deploy",
		IdentityFile: filepath.Join(t.TempDir(), "absent"),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading identity file")
}

func TestBatchOverSSH(t *testing.T) {
	ep := startSSHServer(t)

	client, err := Dial(context.Background(), ep)
	require.NoError(t, err)
	defer client.Close()

	batch := client.NewBatch().
		Add("ok", "echo one").
		Add("bad", "fail two").
		Add("again", "echo three")
	require.NoError(t, batch.Run(context.Background()))

	require.Equal(t, "echo one", batch.Result("ok").Out())
	require.Equal(t, 7, batch.Result("bad").ExitCode)
	require.Equal(t, "echo three", batch.Result("again").Out())
	require.Equal(t, []string{"bad"}, batch.Failed())
}
