package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete teabase configuration file.
type Config struct {
	Version    int              `yaml:"version" mapstructure:"version"`
	Keys       KeysConfig       `yaml:"keys" mapstructure:"keys"`
	Passphrase PassphraseConfig `yaml:"passphrase" mapstructure:"passphrase"`
	Signing    SigningConfig    `yaml:"signing" mapstructure:"signing"`
	Tools      ToolsConfig      `yaml:"tools" mapstructure:"tools"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts" mapstructure:"timeouts"`
	Lock       LockConfig       `yaml:"lock" mapstructure:"lock"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// KeysConfig controls where the SSH identity lives and how it is generated.
type KeysConfig struct {
	// Path to the private key. Empty means resolve from ~/.ssh/config or
	// fall back to ~/.ssh/id_<algorithm>.
	Path string `yaml:"path" mapstructure:"path"`

	// Algorithm for new keys: "ed25519", "ecdsa", or "rsa".
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm"`

	// Generator backend: "native" or "ssh-keygen".
	Generator string `yaml:"generator" mapstructure:"generator"`

	// Comment embedded in the public key.
	Comment string `yaml:"comment" mapstructure:"comment"`

	// SSHConfig is the ssh client config consulted for IdentityFile.
	SSHConfig string `yaml:"ssh_config" mapstructure:"ssh_config"`

	// IdentityHost is the host whose IdentityFile names the signing key.
	IdentityHost string `yaml:"identity_host" mapstructure:"identity_host"`
}

// PassphraseConfig is the minimum-strength policy for key passphrases.
type PassphraseConfig struct {
	MinLength int `yaml:"min_length" mapstructure:"min_length"`

	// AllowEmpty lets the user explicitly opt into "no passphrase".
	AllowEmpty bool `yaml:"allow_empty" mapstructure:"allow_empty"`
}

// SigningConfig selects the global signing configuration store.
type SigningConfig struct {
	// Store is "git" (git config --global) or "file".
	Store string `yaml:"store" mapstructure:"store"`

	// File is the YAML file used when Store is "file".
	File string `yaml:"file" mapstructure:"file"`

	// SignTags also turns on tag.gpgsign.
	SignTags bool `yaml:"sign_tags" mapstructure:"sign_tags"`

	// GPGKey pins the GPG key id. Empty means the first secret key.
	GPGKey string `yaml:"gpg_key" mapstructure:"gpg_key"`
}

// ToolConfig overrides how one tool is installed and where its home is.
type ToolConfig struct {
	Install string `yaml:"install" mapstructure:"install"`
	Home    string `yaml:"home" mapstructure:"home"`
}

// ToolsConfig holds per-tool overrides.
type ToolsConfig struct {
	Homebrew ToolConfig `yaml:"homebrew" mapstructure:"homebrew"`
	PkgX     ToolConfig `yaml:"pkgx" mapstructure:"pkgx"`
}

// TimeoutsConfig bounds external process invocations.
type TimeoutsConfig struct {
	Generate time.Duration `yaml:"generate" mapstructure:"generate"`
	Install  time.Duration `yaml:"install" mapstructure:"install"`
	Command  time.Duration `yaml:"command" mapstructure:"command"`
}

// LockConfig controls the cross-process operation lock.
type LockConfig struct {
	// Dir holds the lock directory.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// Stale is when to consider a lock abandoned (holder probably crashed).
	Stale time.Duration `yaml:"stale" mapstructure:"stale"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	Color string `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Keys: KeysConfig{
			Algorithm:    "ed25519",
			Generator:    "native",
			SSHConfig:    "~/.ssh/config",
			IdentityHost: "github.com",
		},
		Passphrase: PassphraseConfig{
			MinLength:  8,
			AllowEmpty: true,
		},
		Signing: SigningConfig{
			Store:    "git",
			File:     "~/.config/teabase/signing.yaml",
			SignTags: false,
		},
		Timeouts: TimeoutsConfig{
			Generate: 30 * time.Second,
			Install:  15 * time.Minute,
			Command:  10 * time.Second,
		},
		Lock: LockConfig{
			Dir:   "~/.cache/teabase",
			Stale: 30 * time.Minute,
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}
