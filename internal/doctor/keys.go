package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/teaxyz/teabase/internal/errors"
	"github.com/teaxyz/teabase/internal/keystore"
)

// KeyInspector reads the SSH key pair teabase manages.
type KeyInspector interface {
	Resolve() keystore.KeyPair
	Inspect() (keystore.KeyPair, error)
}

// KeyCheck verifies the SSH key pair exists, parses and is protected.
type KeyCheck struct {
	Keys KeyInspector
}

func (c *KeyCheck) Name() string     { return "ssh_key" }
func (c *KeyCheck) Category() string { return CategorySSH }

func (c *KeyCheck) Run(ctx context.Context) CheckResult {
	pair := c.Keys.Resolve()
	if !keystore.StillExists(pair) {
		return result(c, StatusWarn, "No SSH key at "+pair.PrivatePath, "Generate one with 'teabase ssh keygen'")
	}

	pair, err := c.Keys.Inspect()
	if err != nil {
		return result(c, StatusFail, errors.UserMessage(err), "")
	}

	msg := fmt.Sprintf("%s key at %s (%s)", pair.Algorithm, pair.PrivatePath, pair.Fingerprint)
	if !pair.HasPassphrase {
		return result(c, StatusWarn, msg+" has no passphrase", "Protect it with 'teabase ssh enable --passphrase'")
	}
	return result(c, StatusPass, msg, "")
}

func (c *KeyCheck) Fix(ctx context.Context) error { return nil }

// KeyPermissionsCheck verifies the private key is only readable by its
// owner and its directory is not writable by others. ssh refuses keys with
// looser modes.
type KeyPermissionsCheck struct {
	Keys KeyInspector
}

func (c *KeyPermissionsCheck) Name() string     { return "ssh_key_permissions" }
func (c *KeyPermissionsCheck) Category() string { return CategorySSH }

func (c *KeyPermissionsCheck) Run(ctx context.Context) CheckResult {
	pair := c.Keys.Resolve()
	keyInfo, err := os.Stat(pair.PrivatePath)
	if err != nil {
		return result(c, StatusPass, "No private key to check", "")
	}

	var problems []string
	if keyInfo.Mode().Perm()&0o077 != 0 {
		problems = append(problems, fmt.Sprintf("%s is %04o, should be 0600", pair.PrivatePath, keyInfo.Mode().Perm()))
	}
	dir := filepath.Dir(pair.PrivatePath)
	if dirInfo, err := os.Stat(dir); err == nil && dirInfo.Mode().Perm()&0o022 != 0 {
		problems = append(problems, fmt.Sprintf("%s is %04o, should be 0700", dir, dirInfo.Mode().Perm()))
	}

	if len(problems) == 0 {
		return result(c, StatusPass, "Key permissions are correct", "")
	}
	r := result(c, StatusFail, problems[0], fmt.Sprintf("Fix: chmod 700 %s && chmod 600 %s", dir, pair.PrivatePath))
	if len(problems) > 1 {
		r.Message = fmt.Sprintf("%s; %s", problems[0], problems[1])
	}
	r.Fixable = true
	return r
}

func (c *KeyPermissionsCheck) Fix(ctx context.Context) error {
	pair := c.Keys.Resolve()
	if err := os.Chmod(filepath.Dir(pair.PrivatePath), 0o700); err != nil {
		return err
	}
	return os.Chmod(pair.PrivatePath, 0o600)
}

// AgentCheck verifies a protected key is loaded into the running ssh-agent,
// so signing a commit doesn't ask for the passphrase every time.
type AgentCheck struct {
	Keys KeyInspector

	// Dial connects to the agent; nil means SSH_AUTH_SOCK.
	Dial func() (agent.Agent, func() error, error)
}

func (c *AgentCheck) Name() string     { return "ssh_agent" }
func (c *AgentCheck) Category() string { return CategorySSH }

func (c *AgentCheck) Run(ctx context.Context) CheckResult {
	pair, err := c.Keys.Inspect()
	if err != nil || !pair.HasPassphrase {
		return result(c, StatusPass, "No passphrase-protected key to load", "")
	}

	dial := c.Dial
	if dial == nil {
		dial = dialAgent
	}
	ag, closeFn, err := dial()
	if err != nil {
		return result(c, StatusWarn, "SSH agent not reachable", "Fix: eval $(ssh-agent) && ssh-add "+pair.PrivatePath)
	}
	defer closeFn() //nolint:errcheck // Best-effort close, error not actionable

	keys, err := ag.List()
	if err != nil {
		return result(c, StatusWarn, "Cannot query SSH agent", "Check SSH agent: ssh-add -l")
	}
	for _, k := range keys {
		if ssh.FingerprintSHA256(k) == pair.Fingerprint {
			return result(c, StatusPass, "Key is loaded in ssh-agent", "")
		}
	}
	return result(c, StatusWarn, "Key is not loaded in ssh-agent", "Add it with: ssh-add "+pair.PrivatePath)
}

func (c *AgentCheck) Fix(ctx context.Context) error { return nil }

func dialAgent() (agent.Agent, func() error, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, nil, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, nil, err
	}
	return agent.NewClient(conn), conn.Close, nil
}
