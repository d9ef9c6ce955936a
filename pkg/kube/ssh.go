package kube

import (
	"bytes"
	"context"
	"net"
	"os"
	"strconv"

	"golang.org/x/crypto/ssh"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/chazu/litekube/pkg/kubeerr"
)

const sshPort = 22

// Execute runs command on the node over SSH, connecting to its external IP
// with the configured user and private key, and returns its stdout.
// Connection failures are retried; a failing command is not.
func (n *Nodes) Execute(ctx context.Context, name, command string) (string, error) {
	ip, err := n.ExternalIP(ctx, name)
	if err != nil {
		return "", err
	}
	if ip == "" {
		return "", kubeerr.Newf(kubeerr.NotFound, "could not find an external IP of node %s", name)
	}

	clientConfig, err := n.sshClientConfig()
	if err != nil {
		return "", err
	}
	addr := net.JoinHostPort(ip, strconv.Itoa(sshPort))

	var output string
	err = n.sshRetrier.Do(ctx, "ssh to node "+name, func(ctx context.Context) (bool, error) {
		conn, err := dialSSH(ctx, addr, clientConfig)
		if err != nil {
			return false, kubeerr.Newf(kubeerr.Unknown, "connect to %s: %v", addr, err)
		}
		defer conn.Close()

		output, err = runSSH(conn, command)
		if err != nil {
			return false, kubeerr.Newf(kubeerr.RuntimeFailure, "run %q on node %s: %v", command, name, err)
		}
		return true, nil
	})
	if err != nil {
		return output, err
	}

	log.FromContext(ctx).Info("Executed command on node", "node", name, "command", command)
	return output, nil
}

func (n *Nodes) sshClientConfig() (*ssh.ClientConfig, error) {
	if n.config.SSHKeyPath == "" {
		return nil, kubeerr.New(kubeerr.Unknown, "running commands on nodes requires an SSH key path")
	}
	key, err := os.ReadFile(n.config.SSHKeyPath)
	if err != nil {
		return nil, kubeerr.Newf(kubeerr.Unknown, "read SSH key: %v", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, kubeerr.Newf(kubeerr.Unknown, "parse SSH key: %v", err)
	}

	return &ssh.ClientConfig{
		User:            n.config.SSHUser,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // nodes are addressed by ephemeral IPs
		Timeout:         n.config.Wait.Timeout,
	}, nil
}

func dialSSH(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: config.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	conn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	return ssh.NewClient(conn, chans, reqs), nil
}

func runSSH(conn *ssh.Client, command string) (string, error) {
	session, err := conn.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &stdout
	err = session.Run(command)
	return stdout.String(), err
}
