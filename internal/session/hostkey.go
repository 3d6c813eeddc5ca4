package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyCallback returns the host key policy for a task.
//
// SECURITY: with an empty knownHostsPath any host key is accepted, so the
// connection has no protection against a man in the middle. Setting
// known_hosts switches to strict checking against that file.
func HostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if strings.HasPrefix(knownHostsPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		knownHostsPath = filepath.Join(home, knownHostsPath[2:])
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read known_hosts %s: %w", knownHostsPath, err)
	}
	return callback, nil
}
