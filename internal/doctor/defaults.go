package doctor

import "github.com/teaxyz/teabase/internal/config"

// Deps are the components the default checks inspect. Nil components skip
// their checks, e.g. when the config failed to load.
type Deps struct {
	ConfigPath string
	Config     *config.Config
	Keys       KeyInspector
	Signing    SigningReader
	Locker     LockInspector

	// LookPath overrides binary lookup (tests).
	LookPath func(string) (string, error)
}

// Checks returns the default check list in display order.
func Checks(d Deps) []Check {
	checks := []Check{&ConfigCheck{ConfigPath: d.ConfigPath}}

	sshKeygenRequired := false
	if d.Config != nil {
		sshKeygenRequired = d.Config.Keys.Generator == "ssh-keygen"
	}
	checks = append(checks,
		&BinaryCheck{Binary: "git", Required: true, Purpose: "commit signing", Install: "Install git, e.g. 'xcode-select --install'", LookPath: d.LookPath},
		&BinaryCheck{Binary: "ssh-keygen", Required: sshKeygenRequired, Purpose: "the ssh-keygen key generator", Install: "Install OpenSSH, or set keys.generator to native", LookPath: d.LookPath},
		&BinaryCheck{Binary: "gpg", Purpose: "GPG signing", Install: "Install GnuPG, e.g. 'brew install gnupg'", LookPath: d.LookPath},
	)

	if d.Keys != nil {
		checks = append(checks,
			&KeyCheck{Keys: d.Keys},
			&KeyPermissionsCheck{Keys: d.Keys},
			&AgentCheck{Keys: d.Keys},
		)
	}
	if d.Signing != nil {
		checks = append(checks, &SigningCheck{Signing: d.Signing})
	}
	if d.Locker != nil {
		checks = append(checks, &LockCheck{Locker: d.Locker})
	}
	return checks
}
