package keystore

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// IdentityFile returns the IdentityFile configured for host in the ssh
// client config at configPath, with ~ expanded against home. A missing
// config file is not an error.
func IdentityFile(configPath, host, home string) (string, error) {
	data, err := os.ReadFile(expandTilde(configPath, home))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	identity, err := cfg.Get(host, "IdentityFile")
	if err != nil || identity == "" {
		return "", err
	}
	return expandTilde(strings.Trim(identity, `"`), home), nil
}

func expandTilde(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
